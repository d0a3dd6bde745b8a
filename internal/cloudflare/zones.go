package cloudflare

import (
	"context"
	"fmt"
	"time"

	cf "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// ZoneStatuses lists the status values ListZones accepts as a filter.
var ZoneStatuses = []string{"active", "pending", "initializing", "moved", "deleted", "deactivated"}

// Zone is the flattened form of a zone.
type Zone struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Paused      bool     `json:"paused"`
	Type        string   `json:"type"`
	Plan        string   `json:"plan,omitempty"`
	NameServers []string `json:"name_servers"`
	AccountID   string   `json:"account_id,omitempty"`
	DevMode     int      `json:"development_mode"`
	Created     string   `json:"created_on,omitempty"`
	Modified    string   `json:"modified_on,omitempty"`
}

func zoneView(z cf.Zone) Zone {
	v := Zone{
		ID:          z.ID,
		Name:        z.Name,
		Status:      z.Status,
		Paused:      z.Paused,
		Type:        z.Type,
		Plan:        z.Plan.Name,
		NameServers: z.NameServers,
		AccountID:   z.Account.ID,
		DevMode:     z.DevMode,
	}
	if v.NameServers == nil {
		v.NameServers = []string{}
	}
	if !z.CreatedOn.IsZero() {
		v.Created = z.CreatedOn.UTC().Format(time.RFC3339)
	}
	if !z.ModifiedOn.IsZero() {
		v.Modified = z.ModifiedOn.UTC().Format(time.RFC3339)
	}
	return v
}

// ZonePage is one page of zones.
type ZonePage struct {
	Zones      []Zone `json:"zones"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	Total      int    `json:"total_count"`
	TotalPages int    `json:"total_pages"`
}

// ListZones returns one page of zones, optionally filtered by name and
// status. Pages are cut locally from the full listing.
func (c *Client) ListZones(ctx context.Context, page, perPage int, name, status string) (*ZonePage, error) {
	var opts []cf.ReqOption
	if name != "" || status != "" {
		opts = append(opts, cf.WithZoneFilters(name, "", status))
	}
	zones, err := c.listZones(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	page = max(page, 1)
	perPage = max(perPage, 1)
	start := min((page-1)*perPage, len(zones))
	end := min(start+perPage, len(zones))

	out := &ZonePage{
		Zones:      make([]Zone, 0, end-start),
		Page:       page,
		PerPage:    perPage,
		Total:      len(zones),
		TotalPages: (len(zones) + perPage - 1) / perPage,
	}
	for _, z := range zones[start:end] {
		out.Zones = append(out.Zones, zoneView(z))
	}
	return out, nil
}

// GetZone returns one zone.
func (c *Client) GetZone(ctx context.Context, zoneID string) (*Zone, error) {
	z, err := call(ctx, func(ctx context.Context) (cf.Zone, error) {
		return c.api.ZoneDetails(ctx, zoneID)
	})
	if err != nil {
		return nil, fmt.Errorf("get zone %s: %w", zoneID, err)
	}
	v := zoneView(z)
	return &v, nil
}

// CreateZoneRequest describes a new zone. ZoneType is "full" or "partial".
type CreateZoneRequest struct {
	Name      string
	AccountID string
	JumpStart bool
	ZoneType  string
}

// CreateZone adds a zone to an account.
func (c *Client) CreateZone(ctx context.Context, req CreateZoneRequest) (*Zone, error) {
	z, err := call(ctx, func(ctx context.Context) (cf.Zone, error) {
		return c.api.CreateZone(ctx, req.Name, req.JumpStart, cf.Account{ID: req.AccountID}, req.ZoneType)
	})
	if err != nil {
		return nil, fmt.Errorf("create zone %s: %w", req.Name, err)
	}
	c.logger.Info("cloudflare: zone created", zap.String("id", z.ID), zap.String("name", z.Name))
	v := zoneView(z)
	return &v, nil
}

// DeleteZone removes a zone.
func (c *Client) DeleteZone(ctx context.Context, zoneID string) error {
	_, err := call(ctx, func(ctx context.Context) (cf.ZoneID, error) {
		return c.api.DeleteZone(ctx, zoneID)
	})
	if err != nil {
		return fmt.Errorf("delete zone %s: %w", zoneID, err)
	}
	c.logger.Info("cloudflare: zone deleted", zap.String("id", zoneID))
	return nil
}
