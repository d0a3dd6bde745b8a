package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cargoshipper/cargoshipper/internal/cloudflare"
	"github.com/cargoshipper/cargoshipper/internal/config"
	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/digitalocean"
	"github.com/cargoshipper/cargoshipper/internal/docker"
	"github.com/cargoshipper/cargoshipper/internal/mcpbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the backend handles. Each is built once and shared by the
// prober, the tools and the resources.
type app struct {
	settings *config.Settings
	logger   *zap.Logger

	docker       *docker.Client
	digitalocean *digitalocean.Client
	cloudflare   *cloudflare.Client
}

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// newLogger builds a production JSON logger on stderr; stdout belongs to
// the stdio transport.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newApp(ctx context.Context, s *config.Settings, logger *zap.Logger) (*app, error) {
	a := &app{settings: s, logger: logger}
	userAgent := fmt.Sprintf("%s/%s", s.ServerName, s.ServerVersion)

	if s.DockerEnabled {
		d, err := docker.New(docker.Config{
			Host:             s.DockerHost,
			RegistryUsername: s.DockerRegistryUsername,
			RegistryPassword: s.DockerRegistryPassword,
			RegistryServer:   s.DockerRegistryServer,
			ConfigPath:       s.DockerConfigPath,
		}, logger.Named("docker"))
		if err != nil {
			// The engine may be absent on this host; the other backends still work.
			logger.Warn("docker backend disabled", zap.Error(err))
		} else {
			a.docker = d
		}
	}

	if s.HasDigitalOcean() {
		do, err := digitalocean.New(ctx, digitalocean.Config{
			Token:     s.DigitalOceanToken,
			APIURL:    s.DigitalOceanAPIURL,
			UserAgent: userAgent,
		}, logger.Named("digitalocean"))
		if err != nil {
			return nil, fmt.Errorf("digitalocean: %w", err)
		}
		a.digitalocean = do
	}

	if s.HasCloudflare() {
		c, err := cloudflare.New(cloudflare.Config{
			APIToken:  s.CloudflareAPIToken,
			APIKey:    s.CloudflareAPIKey,
			Email:     s.CloudflareEmail,
			UserAgent: userAgent,
		}, logger.Named("cloudflare"))
		if err != nil {
			return nil, fmt.Errorf("cloudflare: %w", err)
		}
		a.cloudflare = c
	}

	logger.Info("backends configured",
		zap.Bool("docker", a.docker != nil),
		zap.Bool("digitalocean", a.digitalocean != nil),
		zap.Bool("cloudflare", a.cloudflare != nil),
	)
	return a, nil
}

// backends returns the prober's view. Absent clients stay nil interfaces
// so the prober skips them.
func (a *app) backends() constraints.Backends {
	var b constraints.Backends
	if a.docker != nil {
		b.ContainerRuntime = a.docker
	}
	if a.digitalocean != nil {
		b.VPS = a.digitalocean
	}
	if a.cloudflare != nil {
		b.DNS = a.cloudflare
	}
	return b
}

func (a *app) inspector() *constraints.Inspector {
	in := constraints.NewInspector(a.logger.Named("constraints"))
	in.SetMetricsRecord(mcpbridge.RecordProbeCheck)
	return in
}

// server wires the guard and both registries into an MCP server writing
// stdio responses to w.
func (a *app) server(guard *mcpbridge.Guard, w io.Writer) *mcpbridge.Server {
	tools := mcpbridge.NewToolRegistry(guard, a.logger.Named("tools"))
	resources := mcpbridge.NewResourceRegistry(guard)

	if a.docker != nil {
		tools.RegisterDocker(a.docker)
		resources.RegisterDocker(a.docker)
	}
	if a.digitalocean != nil {
		tools.RegisterDigitalOcean(a.digitalocean)
		resources.RegisterDigitalOcean(a.digitalocean)
	}
	if a.cloudflare != nil {
		tools.RegisterCloudflare(a.cloudflare)
		resources.RegisterCloudflare(a.cloudflare)
	}
	a.logger.Info("tools registered", zap.Strings("tools", tools.Names()))

	info := mcpbridge.ServerInfo{Name: a.settings.ServerName, Version: a.settings.ServerVersion}
	return mcpbridge.NewServer(w, info, tools, resources, a.logger.Named("mcp"))
}

func (a *app) close() {
	if a.docker != nil {
		if err := a.docker.Close(); err != nil {
			a.logger.Debug("close docker client", zap.Error(err))
		}
	}
}
