package mcpbridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr          string
	RateRequests  int
	RateWindow    time.Duration
	RequireAPIKey bool
	APIKeyHeader  string
	AllowedKeys   []string
	CORSOrigins   []string
}

const requestIDHeader = "X-Request-ID"

// NewRouter builds the HTTP transport: POST /mcp carries one JSON-RPC
// message per request, GET /healthz and GET /metrics are unauthenticated.
func NewRouter(ctx context.Context, s *Server, cfg HTTPConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", cfg.APIKeyHeader, requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || slices.Contains(cfg.CORSOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsCfg))
	router.Use(requestLogger(logger))
	router.Use(PrometheusMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	mcpGroup := router.Group("/")
	if cfg.RateRequests > 0 && cfg.RateWindow > 0 {
		mcpGroup.Use(RateLimiter(ctx, cfg.RateRequests, cfg.RateWindow, cfg.APIKeyHeader))
	}
	if cfg.RequireAPIKey {
		mcpGroup.Use(APIKeyAuth(cfg.APIKeyHeader, cfg.AllowedKeys))
	}
	mcpGroup.POST("/mcp", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
			return
		}
		resp := s.handle(c.Request.Context(), body)
		if resp == nil {
			c.Status(http.StatusAccepted)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	return router
}

// APIKeyAuth rejects requests whose header does not carry one of keys.
func APIKeyAuth(header string, keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(got), []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// ServeHTTP runs the HTTP transport on cfg.Addr until ctx is cancelled,
// then shuts down gracefully.
func ServeHTTP(ctx context.Context, s *Server, cfg HTTPConfig, logger *zap.Logger) error {
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(ctx, s, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("MCP HTTP listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down MCP HTTP transport")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		return err
	}
	return nil
}
