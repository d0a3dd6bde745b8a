// Package digitalocean wraps godo for the droplet, image, domain and
// account tools and for the constraint prober.
package digitalocean

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/digitalocean/godo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultAPIURL is the public API endpoint.
const DefaultAPIURL = "https://api.digitalocean.com/"

// Config configures the API client.
type Config struct {
	Token     string
	APIURL    string
	UserAgent string
}

// Client is a DigitalOcean API client that remembers the last rate-limit
// headers it saw.
type Client struct {
	api    *godo.Client
	logger *zap.Logger

	mu       sync.Mutex
	lastRate godo.Rate
	hasRate  bool
}

// New creates a client authenticated with cfg.Token.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	token := strings.Trim(strings.TrimSpace(cfg.Token), "'\"")
	if token == "" {
		return nil, fmt.Errorf("digitalocean: empty API token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	opts := []godo.ClientOpt{}
	if cfg.APIURL != "" {
		opts = append(opts, godo.SetBaseURL(cfg.APIURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, godo.SetUserAgent(cfg.UserAgent))
	}
	api, err := godo.New(oauth2.NewClient(ctx, ts), opts...)
	if err != nil {
		return nil, fmt.Errorf("create digitalocean client: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

func (c *Client) observe(resp *godo.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	c.mu.Lock()
	c.lastRate = resp.Rate
	c.hasRate = true
	c.mu.Unlock()
}

// ObservedRate returns the most recent rate-limit headers.
func (c *Client) ObservedRate() (constraints.RateSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasRate {
		return constraints.RateSample{}, false
	}
	return constraints.RateSample{
		Limit:     c.lastRate.Limit,
		Remaining: c.lastRate.Remaining,
		Reset:     c.lastRate.Reset.Time,
	}, true
}

// AccountStatus returns the account status, e.g. "active" or "locked".
func (c *Client) AccountStatus(ctx context.Context) (string, error) {
	acct, resp, err := c.api.Account.Get(ctx)
	c.observe(resp)
	if err != nil {
		return "", err
	}
	return acct.Status, nil
}

// SampleDroplets lists one page of at most limit droplets.
func (c *Client) SampleDroplets(ctx context.Context, limit int) (int, error) {
	list, resp, err := c.api.Droplets.List(ctx, &godo.ListOptions{PerPage: limit})
	c.observe(resp)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// SampleDomains returns the names of at most limit domains.
func (c *Client) SampleDomains(ctx context.Context, limit int) ([]string, error) {
	list, resp, err := c.api.Domains.List(ctx, &godo.ListOptions{PerPage: limit})
	c.observe(resp)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, d := range list {
		names = append(names, d.Name)
	}
	return names, nil
}

// Account describes the authenticated account.
type Account struct {
	UUID            string `json:"uuid"`
	Email           string `json:"email"`
	EmailVerified   bool   `json:"email_verified"`
	Status          string `json:"status"`
	StatusMessage   string `json:"status_message,omitempty"`
	DropletLimit    int    `json:"droplet_limit"`
	FloatingIPLimit int    `json:"floating_ip_limit"`
	VolumeLimit     int    `json:"volume_limit"`
	Team            string `json:"team,omitempty"`
}

// GetAccount returns the authenticated account.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	acct, resp, err := c.api.Account.Get(ctx)
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	out := &Account{
		UUID:            acct.UUID,
		Email:           acct.Email,
		EmailVerified:   acct.EmailVerified,
		Status:          acct.Status,
		StatusMessage:   acct.StatusMessage,
		DropletLimit:    acct.DropletLimit,
		FloatingIPLimit: acct.FloatingIPLimit,
		VolumeLimit:     acct.VolumeLimit,
	}
	if acct.Team != nil {
		out.Team = acct.Team.Name
	}
	return out, nil
}
