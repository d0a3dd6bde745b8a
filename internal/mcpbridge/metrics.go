package mcpbridge

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargoshipper_tool_calls_total",
		Help: "Total MCP tool calls by tool and result.",
	}, []string{"tool", "result"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cargoshipper_tool_call_duration_seconds",
		Help:    "Tool call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	probeChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargoshipper_probe_checks_total",
		Help: "Total constraint probes by backend and result.",
	}, []string{"backend", "result"})

	permissionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargoshipper_permission_checks_total",
		Help: "Total permission checks by backend and decision.",
	}, []string{"backend", "decision"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargoshipper_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cargoshipper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordProbeCheck records one backend probe. It matches
// constraints.MetricsRecordFunc.
func RecordProbeCheck(backend string, degraded bool) {
	if degraded {
		probeChecksTotal.WithLabelValues(backend, "degraded").Inc()
	} else {
		probeChecksTotal.WithLabelValues(backend, "ok").Inc()
	}
}

func recordToolCall(tool string, isErr bool, d time.Duration) {
	result := "success"
	if isErr {
		result = "error"
	}
	toolCallsTotal.WithLabelValues(tool, result).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func recordPermissionCheck(backend string, allowed bool) {
	if allowed {
		permissionChecksTotal.WithLabelValues(backend, "allow").Inc()
	} else {
		permissionChecksTotal.WithLabelValues(backend, "deny").Inc()
	}
}
