package proxy

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aman-churiwal/voice-qos/internal/healthcheck"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Proxy forwards admitted voice turns to the upstream pipeline.
type Proxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	health *healthcheck.Checker
	logger *zap.Logger
}

func New(targetURL string, logger *zap.Logger) (*Proxy, error) {
	if targetURL == "" {
		return nil, errors.New("upstream target is required")
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("upstream target must be an absolute URL")
	}

	p := &Proxy{
		target: target,
		logger: logger,
	}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		ErrorHandler: p.handleError,
	}

	logger.Info("Proxy initialized", zap.String("target", target.String()))

	return p, nil
}

// SetHealthChecker makes Handle fail fast while the upstream is unhealthy.
func (p *Proxy) SetHealthChecker(h *healthcheck.Checker) {
	p.health = h
}

// Returns the upstream health, nil when no checker is attached
func (p *Proxy) HealthStatus() *healthcheck.Status {
	if p.health == nil {
		return nil
	}
	status := p.health.Status()
	return &status
}

// Forwards the request to the upstream
func (p *Proxy) Handle(c *gin.Context) {
	if p.health != nil && !p.health.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Upstream is unhealthy",
		})
		return
	}

	c.Header("X-Backend-Server", p.target.Host)
	p.proxy.ServeHTTP(c.Writer, c.Request)
}

func (p *Proxy) Target() string {
	return p.target.String()
}

// An unreachable upstream is a failed turn
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, r.Context().Err()) {
		// Client went away; 499 keeps it out of the error budget
		w.WriteHeader(499)
		return
	}

	p.logger.Warn("Upstream request failed",
		zap.String("target", p.target.Host),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"error":"Upstream unavailable"}`))
}
