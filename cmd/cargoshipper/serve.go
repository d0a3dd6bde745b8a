package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cargoshipper/cargoshipper/internal/mcpbridge"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var transportFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run the MCP server on stdio (the default for local hosts) or over HTTP
with --transport http.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&transportFlag, "transport", "", "stdio or http (default from mcp.transport)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if transportFlag != "" {
		s.Transport = transportFlag
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	logger, err := newLogger(s.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, s, logger)
	if err != nil {
		return err
	}
	defer a.close()

	guard := mcpbridge.NewGuard(a.inspector(), a.backends(), s.EnforcePermissions, logger.Named("guard"))
	res := guard.Refresh(ctx)
	logger.Info("credential constraints detected",
		zap.Strings("backends", res.Backends()),
		zap.Bool("enforce", s.EnforcePermissions),
	)

	srv := a.server(guard, os.Stdout)

	switch s.Transport {
	case "http":
		return serveHTTP(ctx, srv, a)
	default:
		logger.Info("MCP stdio server ready", zap.String("name", s.ServerName), zap.String("version", s.ServerVersion))
		return srv.Serve(ctx, os.Stdin)
	}
}

func serveHTTP(ctx context.Context, srv *mcpbridge.Server, a *app) error {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := a.settings
	return mcpbridge.ServeHTTP(ctx, srv, mcpbridge.HTTPConfig{
		Addr:          s.HTTPAddr,
		RateRequests:  s.RateLimitRequests,
		RateWindow:    s.RateLimitWindow,
		RequireAPIKey: s.RequireAPIKey,
		APIKeyHeader:  s.APIKeyHeader,
		AllowedKeys:   s.AllowedAPIKeys,
		CORSOrigins:   s.CORSOrigins,
	}, a.logger.Named("http"))
}
