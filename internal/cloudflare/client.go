// Package cloudflare wraps cloudflare-go for the zone, DNS, cache and
// settings tools and for the constraint prober.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	cf "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// Config selects token or legacy key/email authentication. The token wins
// when both are set.
type Config struct {
	APIToken  string
	APIKey    string
	Email     string
	BaseURL   string
	UserAgent string
}

// Client is a Cloudflare API client.
type Client struct {
	api    *cf.API
	logger *zap.Logger
}

// New creates a client from cfg.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	opts := []cf.Option{
		cf.HTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: &statusTransport{next: http.DefaultTransport},
		}),
		cf.UsingRetryPolicy(0, 0, 0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cf.BaseURL(cfg.BaseURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, cf.UserAgent(cfg.UserAgent))
	}

	var (
		api *cf.API
		err error
	)
	switch {
	case cfg.APIToken != "":
		api, err = cf.NewWithAPIToken(cfg.APIToken, opts...)
	case cfg.APIKey != "" && cfg.Email != "":
		api, err = cf.New(cfg.APIKey, cfg.Email, opts...)
	default:
		return nil, errors.New("cloudflare: no API token or key/email pair configured")
	}
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// APIError carries the HTTP status of a failed call alongside the SDK error.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string { return e.Err.Error() }

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatusCode returns the response status, 0 when none was received.
func (e *APIError) HTTPStatusCode() int { return e.Status }

type statusKey struct{}

// statusTransport records failed response statuses into a slot carried by
// the request context, so a call's error can be tagged with it. The SDK
// fetches list pages concurrently under one context, so the slot is atomic
// and only error statuses are stored.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if slot, ok := req.Context().Value(statusKey{}).(*atomic.Int32); ok && resp != nil && resp.StatusCode >= 400 {
		slot.Store(int32(resp.StatusCode))
	}
	return resp, err
}

// call runs fn with a status slot in ctx and wraps its error.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	status := new(atomic.Int32)
	v, err := fn(context.WithValue(ctx, statusKey{}, status))
	if err != nil {
		return v, &APIError{Status: int(status.Load()), Err: err}
	}
	return v, nil
}

// listZones fetches every zone matching opts. ListZonesContext pages
// through the results itself and rejects explicit page options, so callers
// slice the result.
func (c *Client) listZones(ctx context.Context, opts ...cf.ReqOption) ([]cf.Zone, error) {
	resp, err := call(ctx, func(ctx context.Context) (cf.ZonesResponse, error) {
		return c.api.ListZonesContext(ctx, opts...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// VerifyToken checks the API token. Key/email clients have no token to
// verify and report an active status once the user lookup succeeds.
func (c *Client) VerifyToken(ctx context.Context) (constraints.TokenInfo, error) {
	if c.api.APIToken == "" {
		_, err := call(ctx, c.api.UserDetails)
		if err != nil {
			return constraints.TokenInfo{}, err
		}
		return constraints.TokenInfo{Status: "active"}, nil
	}

	body, err := call(ctx, c.api.VerifyAPIToken)
	if err != nil {
		return constraints.TokenInfo{}, err
	}
	info := constraints.TokenInfo{Status: body.Status}
	if !body.ExpiresOn.IsZero() {
		exp := body.ExpiresOn
		info.ExpiresOn = &exp
	}
	return info, nil
}

// SampleZones returns at most limit zones.
func (c *Client) SampleZones(ctx context.Context, limit int) ([]constraints.ZoneRef, error) {
	zones, err := c.listZones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]constraints.ZoneRef, 0, min(len(zones), limit))
	for _, z := range zones {
		if len(out) == limit {
			break
		}
		out = append(out, constraints.ZoneRef{ID: z.ID, Name: z.Name})
	}
	return out, nil
}

// SampleDNSRecords lists at most limit records of zoneID.
func (c *Client) SampleDNSRecords(ctx context.Context, zoneID string, limit int) (int, error) {
	recs, err := call(ctx, func(ctx context.Context) ([]cf.DNSRecord, error) {
		recs, _, err := c.api.ListDNSRecords(ctx, cf.ZoneIdentifier(zoneID), cf.ListDNSRecordsParams{
			ResultInfo: cf.ResultInfo{Page: 1, PerPage: max(limit, 5)},
		})
		return recs, err
	})
	if err != nil {
		return 0, err
	}
	return min(len(recs), limit), nil
}

// SampleAccounts lists at most limit accounts.
func (c *Client) SampleAccounts(ctx context.Context, limit int) (int, error) {
	accts, err := call(ctx, func(ctx context.Context) ([]cf.Account, error) {
		accts, _, err := c.api.Accounts(ctx, cf.AccountsListParams{
			PaginationOptions: cf.PaginationOptions{Page: 1, PerPage: max(limit, 5)},
		})
		return accts, err
	})
	if err != nil {
		return 0, err
	}
	return min(len(accts), limit), nil
}

// Account is the flattened form of an account.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ListAccounts returns the accounts the credential can see.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	accts, err := call(ctx, func(ctx context.Context) ([]cf.Account, error) {
		accts, _, err := c.api.Accounts(ctx, cf.AccountsListParams{})
		return accts, err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]Account, 0, len(accts))
	for _, a := range accts {
		out = append(out, Account{ID: a.ID, Name: a.Name, Type: a.Type})
	}
	return out, nil
}
