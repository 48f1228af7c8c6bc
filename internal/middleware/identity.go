package middleware

import (
	"net/http"
	"strings"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey      = "user_id"
	maxPriorityKey = "max_priority"
)

// Identity resolves the caller from a bearer token. Requests without an
// Authorization header continue anonymously; a malformed or invalid token is
// rejected. A nil token service disables the check entirely.
func Identity(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Anonymous callers may not ask for more than NORMAL
			c.Set(maxPriorityKey, models.PriorityNormal)
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
			return
		}

		identity, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(userIDKey, identity.UserID)
		c.Set(maxPriorityKey, identity.MaxPriority)
		c.Next()
	}
}
