package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/metrics"
	"github.com/aman-churiwal/voice-qos/internal/middleware"
	"github.com/aman-churiwal/voice-qos/internal/proxy"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// gin's writer asserts http.CloseNotifier on the underlying writer, which
// httputil.ReverseProxy calls and httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{
		ResponseRecorder: httptest.NewRecorder(),
		closed:           make(chan bool, 1),
	}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func newTestServer(t *testing.T) (*Server, *qos.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transcript":"hello"}`))
	}))
	t.Cleanup(upstream.Close)

	logger := zaptest.NewLogger(t)
	cfg := config.Default()
	cfg.Upstream.Target = upstream.URL

	ctrl, err := qos.New(cfg.QoS, qos.WithLogger(logger))
	require.NoError(t, err)

	p, err := proxy.New(cfg.Upstream.Target, logger)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg, ctrl, metrics.NewEventCounter()))

	srv := New(cfg, Deps{
		Controller: ctrl,
		Proxy:      p,
		Gatherer:   reg,
		Logger:     logger,
	})
	return srv, ctrl
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "none", body["degradation"])
}

func TestProxyRouteIsAdmitted(t *testing.T) {
	srv, ctrl := newTestServer(t)

	w := newRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/turn", nil)
	req.Header.Set(middleware.PriorityHeader, "low")
	srv.GetRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transcript":"hello"}`, w.Body.String())
	assert.Equal(t, "2250", w.Header().Get(middleware.BudgetHeader))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	stats := ctrl.Stats()
	assert.EqualValues(t, 1, stats.Admitted)
	assert.EqualValues(t, 1, stats.Released)
	assert.Zero(t, ctrl.ActiveCount())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "qos_active_requests 0")
	assert.Contains(t, w.Body.String(), `qos_slo_compliance_percent{slo="availability"} 100`)
}

func TestAdminRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{
		"/admin/status",
		"/admin/qos/metrics",
		"/admin/qos/stats",
		"/admin/qos/active",
		"/admin/qos/degradation",
		"/admin/qos/features/cloud_llm",
		"/admin/qos/budget/normal",
		"/admin/qos/slo",
	} {
		w := httptest.NewRecorder()
		srv.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equalf(t, http.StatusOK, w.Code, "GET %s", path)
	}

	// No event store configured
	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/qos/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
