package middleware

import (
	"strconv"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/gin-gonic/gin"
)

// Sets the X-RateLimit-* headers and returns the Retry-After value in seconds
func setRateLimitHeaders(c *gin.Context, status qos.RateLimitStatus) int {
	c.Header("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(status.Reset.Unix(), 10))

	retryAfter := max(int(time.Until(status.Reset).Seconds()), 1)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	return retryAfter
}
