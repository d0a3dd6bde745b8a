package digitalocean

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
	"go.uber.org/zap"
)

// Image is the flattened form of an image.
type Image struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug,omitempty"`
	Distribution string   `json:"distribution"`
	Type         string   `json:"type"`
	Public       bool     `json:"public"`
	MinDiskSize  int      `json:"min_disk_size"`
	SizeGB       float64  `json:"size_gigabytes"`
	Regions      []string `json:"regions"`
	Created      string   `json:"created_at"`
}

// ListImages returns one page of images. imageType is "distribution",
// "application" or empty; private restricts the list to the user's own
// images.
func (c *Client) ListImages(ctx context.Context, imageType string, private bool, page, perPage int) ([]Image, error) {
	opt := &godo.ListOptions{Page: page, PerPage: perPage}
	var (
		list []godo.Image
		resp *godo.Response
		err  error
	)
	switch {
	case private:
		list, resp, err = c.api.Images.ListUser(ctx, opt)
	case imageType == "distribution":
		list, resp, err = c.api.Images.ListDistribution(ctx, opt)
	case imageType == "application":
		list, resp, err = c.api.Images.ListApplication(ctx, opt)
	default:
		list, resp, err = c.api.Images.List(ctx, opt)
	}
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	out := make([]Image, 0, len(list))
	for _, img := range list {
		regions := img.Regions
		if regions == nil {
			regions = []string{}
		}
		out = append(out, Image{
			ID:           img.ID,
			Name:         img.Name,
			Slug:         img.Slug,
			Distribution: img.Distribution,
			Type:         img.Type,
			Public:       img.Public,
			MinDiskSize:  img.MinDiskSize,
			SizeGB:       img.SizeGigaBytes,
			Regions:      regions,
			Created:      img.Created,
		})
	}
	return out, nil
}

// Domain is the flattened form of a domain.
type Domain struct {
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
}

// ListDomains returns every domain on the account.
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	var out []Domain
	opt := &godo.ListOptions{PerPage: 200}
	for {
		list, resp, err := c.api.Domains.List(ctx, opt)
		c.observe(resp)
		if err != nil {
			return nil, fmt.Errorf("list domains: %w", err)
		}
		for _, d := range list {
			out = append(out, Domain{Name: d.Name, TTL: d.TTL})
		}
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = page + 1
	}
	if out == nil {
		out = []Domain{}
	}
	return out, nil
}

// Record is the flattened form of a DNS record.
type Record struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Data     string `json:"data"`
	Priority int    `json:"priority,omitempty"`
	Port     int    `json:"port,omitempty"`
	Weight   int    `json:"weight,omitempty"`
	TTL      int    `json:"ttl"`
	Flags    int    `json:"flags,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

func recordView(r godo.DomainRecord) Record {
	return Record{
		ID:       r.ID,
		Type:     r.Type,
		Name:     r.Name,
		Data:     r.Data,
		Priority: r.Priority,
		Port:     r.Port,
		Weight:   r.Weight,
		TTL:      r.TTL,
		Flags:    r.Flags,
		Tag:      r.Tag,
	}
}

// ListRecords returns the records of domain, optionally filtered by type.
func (c *Client) ListRecords(ctx context.Context, domain, recordType string) ([]Record, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var (
		list []godo.DomainRecord
		resp *godo.Response
		err  error
	)
	if recordType != "" {
		list, resp, err = c.api.Domains.RecordsByType(ctx, domain, recordType, opt)
	} else {
		list, resp, err = c.api.Domains.Records(ctx, domain, opt)
	}
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", domain, err)
	}
	out := make([]Record, 0, len(list))
	for _, r := range list {
		out = append(out, recordView(r))
	}
	return out, nil
}

// CreateRecordRequest describes a new DNS record.
type CreateRecordRequest struct {
	Type     string
	Name     string
	Data     string
	TTL      int
	Priority int
	Port     int
	Weight   int
}

// CreateRecord adds a record to domain.
func (c *Client) CreateRecord(ctx context.Context, domain string, req CreateRecordRequest) (*Record, error) {
	r, resp, err := c.api.Domains.CreateRecord(ctx, domain, &godo.DomainRecordEditRequest{
		Type:     req.Type,
		Name:     req.Name,
		Data:     req.Data,
		TTL:      req.TTL,
		Priority: req.Priority,
		Port:     req.Port,
		Weight:   req.Weight,
	})
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("create %s record in %s: %w", req.Type, domain, err)
	}
	c.logger.Info("digitalocean: record created",
		zap.String("domain", domain),
		zap.Int("id", r.ID),
		zap.String("type", r.Type),
	)
	v := recordView(*r)
	return &v, nil
}

// DeleteRecord removes a record from domain.
func (c *Client) DeleteRecord(ctx context.Context, domain string, id int) error {
	resp, err := c.api.Domains.DeleteRecord(ctx, domain, id)
	c.observe(resp)
	if err != nil {
		return fmt.Errorf("delete record %d in %s: %w", id, domain, err)
	}
	c.logger.Info("digitalocean: record deleted", zap.String("domain", domain), zap.Int("id", id))
	return nil
}
