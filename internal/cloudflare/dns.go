package cloudflare

import (
	"context"
	"fmt"
	"time"

	cf "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// Record is the flattened form of a DNS record.
type Record struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	TTL       int      `json:"ttl"`
	Proxied   bool     `json:"proxied"`
	Proxiable bool     `json:"proxiable"`
	Priority  *uint16  `json:"priority,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	ZoneID    string   `json:"zone_id,omitempty"`
	Modified  string   `json:"modified_on,omitempty"`
}

func recordView(zoneID string, r cf.DNSRecord) Record {
	v := Record{
		ID:        r.ID,
		Type:      r.Type,
		Name:      r.Name,
		Content:   r.Content,
		TTL:       r.TTL,
		Proxiable: r.Proxiable,
		Priority:  r.Priority,
		Comment:   r.Comment,
		Tags:      r.Tags,
		ZoneID:    zoneID,
	}
	if r.Proxied != nil {
		v.Proxied = *r.Proxied
	}
	if !r.ModifiedOn.IsZero() {
		v.Modified = r.ModifiedOn.UTC().Format(time.RFC3339)
	}
	return v
}

// RecordFilter narrows ListDNSRecords. Empty fields match everything.
type RecordFilter struct {
	Type    string
	Name    string
	Content string
}

// ListDNSRecords returns the records of a zone.
func (c *Client) ListDNSRecords(ctx context.Context, zoneID string, f RecordFilter) ([]Record, error) {
	recs, err := call(ctx, func(ctx context.Context) ([]cf.DNSRecord, error) {
		recs, _, err := c.api.ListDNSRecords(ctx, cf.ZoneIdentifier(zoneID), cf.ListDNSRecordsParams{
			Type:    f.Type,
			Name:    f.Name,
			Content: f.Content,
		})
		return recs, err
	})
	if err != nil {
		return nil, fmt.Errorf("list dns records for zone %s: %w", zoneID, err)
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordView(zoneID, r))
	}
	return out, nil
}

// RecordRequest describes a record to create, or the fields to change on
// update. Nil pointers leave the current value in place on update.
type RecordRequest struct {
	Type     string
	Name     string
	Content  string
	TTL      int
	Proxied  *bool
	Priority *uint16
	Comment  *string
}

// CreateDNSRecord adds a record to a zone.
func (c *Client) CreateDNSRecord(ctx context.Context, zoneID string, req RecordRequest) (*Record, error) {
	params := cf.CreateDNSRecordParams{
		Type:     req.Type,
		Name:     req.Name,
		Content:  req.Content,
		TTL:      req.TTL,
		Proxied:  req.Proxied,
		Priority: req.Priority,
	}
	if req.Comment != nil {
		params.Comment = *req.Comment
	}
	r, err := call(ctx, func(ctx context.Context) (cf.DNSRecord, error) {
		return c.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(zoneID), params)
	})
	if err != nil {
		return nil, fmt.Errorf("create %s record in zone %s: %w", req.Type, zoneID, err)
	}
	c.logger.Info("cloudflare: record created",
		zap.String("zone_id", zoneID),
		zap.String("id", r.ID),
		zap.String("type", r.Type),
	)
	v := recordView(zoneID, r)
	return &v, nil
}

// UpdateDNSRecord changes a record. Fields left empty in req keep the
// record's current values, which are fetched first.
func (c *Client) UpdateDNSRecord(ctx context.Context, zoneID, recordID string, req RecordRequest) (*Record, error) {
	cur, err := call(ctx, func(ctx context.Context) (cf.DNSRecord, error) {
		return c.api.GetDNSRecord(ctx, cf.ZoneIdentifier(zoneID), recordID)
	})
	if err != nil {
		return nil, fmt.Errorf("get dns record %s: %w", recordID, err)
	}

	params := cf.UpdateDNSRecordParams{
		ID:       recordID,
		Type:     cur.Type,
		Name:     cur.Name,
		Content:  cur.Content,
		TTL:      cur.TTL,
		Proxied:  cur.Proxied,
		Priority: cur.Priority,
		Comment:  req.Comment,
	}
	if req.Type != "" {
		params.Type = req.Type
	}
	if req.Name != "" {
		params.Name = req.Name
	}
	if req.Content != "" {
		params.Content = req.Content
	}
	if req.TTL != 0 {
		params.TTL = req.TTL
	}
	if req.Proxied != nil {
		params.Proxied = req.Proxied
	}
	if req.Priority != nil {
		params.Priority = req.Priority
	}

	r, err := call(ctx, func(ctx context.Context) (cf.DNSRecord, error) {
		return c.api.UpdateDNSRecord(ctx, cf.ZoneIdentifier(zoneID), params)
	})
	if err != nil {
		return nil, fmt.Errorf("update dns record %s: %w", recordID, err)
	}
	c.logger.Info("cloudflare: record updated", zap.String("zone_id", zoneID), zap.String("id", recordID))
	v := recordView(zoneID, r)
	return &v, nil
}

// DeleteDNSRecord removes a record from a zone.
func (c *Client) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	_, err := call(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(zoneID), recordID)
	})
	if err != nil {
		return fmt.Errorf("delete dns record %s: %w", recordID, err)
	}
	c.logger.Info("cloudflare: record deleted", zap.String("zone_id", zoneID), zap.String("id", recordID))
	return nil
}
