package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/aman-churiwal/voice-qos/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newController(t *testing.T, mutate func(*config.QoSConfig)) *qos.Controller {
	t.Helper()
	cfg := config.DefaultQoSConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := qos.New(cfg, qos.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func newRouter(logger *zap.Logger, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(logger), RequestID())
	r.Use(handlers...)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newRouter(zaptest.NewLogger(t))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "turn-42")
	w = serve(r, req)
	assert.Equal(t, "turn-42", w.Header().Get(RequestIDHeader))
}

func TestAdmission_ReleasesAfterHandler(t *testing.T) {
	ctrl := newController(t, nil)
	logger := zaptest.NewLogger(t)

	var activeDuringHandler bool
	var upstreamBudget string
	r := newRouter(logger, Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) {
		activeDuringHandler = ctrl.IsActive(c.GetString("request_id"))
		upstreamBudget = c.Request.Header.Get(BudgetHeader)
		v, ok := c.Get(RequestContextKey)
		require.True(t, ok)
		assert.Equal(t, "session-1", v.(*models.RequestContext).SessionID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/turn", nil)
	req.Header.Set(SessionHeader, "session-1")
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, activeDuringHandler)
	assert.Equal(t, "1500", upstreamBudget)
	assert.Equal(t, "1500", w.Header().Get(BudgetHeader))
	assert.Equal(t, "none", w.Header().Get(DegradationHeader))
	assert.Zero(t, ctrl.ActiveCount())
	assert.EqualValues(t, 1, ctrl.Stats().Released)
	assert.Zero(t, ctrl.GetCurrentMetrics().ErrorRate)
}

func TestAdmission_CapacityRejected(t *testing.T) {
	ctrl := newController(t, func(cfg *config.QoSConfig) {
		cfg.MaxConcurrentSessions = 1
	})
	_, ok := ctrl.AcquireSlot(context.Background(), qos.SlotRequest{RequestID: "occupier", Priority: models.PriorityNormal})
	require.True(t, ok)

	logger := zaptest.NewLogger(t)
	r := newRouter(logger, Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) {
		t.Error("handler must not run")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/turn", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rejected_capacity", body["reason"])
	assert.Equal(t, "none", body["degradation_level"])
}

func TestAdmission_RateLimited(t *testing.T) {
	ctrl := newController(t, func(cfg *config.QoSConfig) {
		cfg.MaxRequestsPerMinute = 1
	})
	logger := zaptest.NewLogger(t)
	r := newRouter(logger, Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/turn", nil)).Code)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/turn", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAdmission_ServerErrorIsFailure(t *testing.T) {
	ctrl := newController(t, nil)
	logger := zaptest.NewLogger(t)
	r := newRouter(logger, Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/client-error", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	serve(r, httptest.NewRequest(http.MethodGet, "/turn", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/client-error", nil))

	assert.InDelta(t, 50.0, ctrl.GetCurrentMetrics().ErrorRate, 1e-9)
}

func TestAdmission_PanicReleasesSlot(t *testing.T) {
	ctrl := newController(t, nil)
	logger := zaptest.NewLogger(t)
	r := newRouter(logger, Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) { panic("pipeline exploded") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/turn", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, ctrl.ActiveCount())
	assert.InDelta(t, 100.0, ctrl.GetCurrentMetrics().ErrorRate, 1e-9)
}

func TestAdmission_PriorityClampedByIdentity(t *testing.T) {
	ctrl := newController(t, nil)
	logger := zaptest.NewLogger(t)
	tokens := service.NewTokenService("secret", time.Hour)

	r := newRouter(logger, Identity(tokens), Admission(ctrl, logger))
	r.GET("/turn", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Anonymous callers are capped at NORMAL
	req := httptest.NewRequest(http.MethodGet, "/turn", nil)
	req.Header.Set(PriorityHeader, "critical")
	w := serve(r, req)
	assert.Equal(t, "1500", w.Header().Get(BudgetHeader))

	token, err := tokens.Issue("operator", models.PriorityCritical)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/turn", nil)
	req.Header.Set(PriorityHeader, "critical")
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, "3000", w.Header().Get(BudgetHeader))

	// Lower priorities are always allowed
	req = httptest.NewRequest(http.MethodGet, "/turn", nil)
	req.Header.Set(PriorityHeader, "low")
	w = serve(r, req)
	assert.Equal(t, "2250", w.Header().Get(BudgetHeader))
}

func TestIdentity(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)

	r := newRouter(zaptest.NewLogger(t), Identity(tokens))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(userIDKey))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	token, err := tokens.Issue("caller-7", models.PriorityLow)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "caller-7", w.Body.String())
}

func TestIdentity_Disabled(t *testing.T) {
	r := newRouter(zaptest.NewLogger(t), Identity(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "garbage")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}
