// Package docker wraps the Docker Engine API client for the container tools
// and the constraint prober.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// Config configures the engine connection and registry credentials.
type Config struct {
	Host             string // empty uses DOCKER_HOST or the default socket
	RegistryUsername string
	RegistryPassword string
	RegistryServer   string
	ConfigPath       string // docker CLI config file; empty uses the default
}

// Client talks to one Docker engine. It is safe for concurrent use.
type Client struct {
	api    client.APIClient
	auth   *Authenticator
	logger *zap.Logger
}

// New connects to the engine named by cfg.Host or the environment.
// The connection is not verified until the first call.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewWithAPI(api, NewAuthenticator(cfg), logger), nil
}

// NewWithAPI builds a Client over an existing engine API client.
func NewWithAPI(api client.APIClient, auth *Authenticator, logger *zap.Logger) *Client {
	if auth == nil {
		auth = NewAuthenticator(Config{})
	}
	return &Client{api: api, auth: auth, logger: logger}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.api.Close()
}

// Ping checks that the engine answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	return err
}

// SampleContainers lists at most limit containers, running or not.
func (c *Client) SampleContainers(ctx context.Context, limit int) (int, error) {
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Limit: limit})
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// SampleImages lists images and reports at most limit of them. The engine
// has no server-side limit for images.
func (c *Client) SampleImages(ctx context.Context, limit int) (int, error) {
	list, err := c.api.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return 0, err
	}
	return min(len(list), limit), nil
}
