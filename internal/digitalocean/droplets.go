package digitalocean

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/digitalocean/godo"
	"go.uber.org/zap"
)

// Droplet is the flattened form of a droplet.
type Droplet struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Memory      int      `json:"memory"`
	VCPUs       int      `json:"vcpus"`
	Disk        int      `json:"disk"`
	Region      string   `json:"region,omitempty"`
	Image       string   `json:"image,omitempty"`
	Size        string   `json:"size"`
	PublicIPv4  string   `json:"public_ipv4,omitempty"`
	PrivateIPv4 string   `json:"private_ipv4,omitempty"`
	PublicIPv6  string   `json:"public_ipv6,omitempty"`
	Tags        []string `json:"tags"`
	Features    []string `json:"features,omitempty"`
	VPCUUID     string   `json:"vpc_uuid,omitempty"`
	Created     string   `json:"created_at"`
}

func dropletView(d *godo.Droplet) Droplet {
	v := Droplet{
		ID:       d.ID,
		Name:     d.Name,
		Status:   d.Status,
		Memory:   d.Memory,
		VCPUs:    d.Vcpus,
		Disk:     d.Disk,
		Size:     d.SizeSlug,
		Tags:     d.Tags,
		Features: d.Features,
		VPCUUID:  d.VPCUUID,
		Created:  d.Created,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if d.Region != nil {
		v.Region = d.Region.Slug
	}
	if d.Image != nil {
		v.Image = d.Image.Slug
		if v.Image == "" {
			v.Image = fmt.Sprintf("%s %s", d.Image.Distribution, d.Image.Name)
		}
	}
	if d.Networks != nil {
		v.PublicIPv4, _ = d.PublicIPv4()
		v.PrivateIPv4, _ = d.PrivateIPv4()
		v.PublicIPv6, _ = d.PublicIPv6()
	}
	return v
}

// DropletPage is one page of droplets.
type DropletPage struct {
	Droplets []Droplet `json:"droplets"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Total    int       `json:"total"`
}

// ListDroplets returns one page of droplets, optionally filtered by tag.
func (c *Client) ListDroplets(ctx context.Context, page, perPage int, tag string) (*DropletPage, error) {
	opt := &godo.ListOptions{Page: page, PerPage: perPage}
	var (
		list []godo.Droplet
		resp *godo.Response
		err  error
	)
	if tag != "" {
		list, resp, err = c.api.Droplets.ListByTag(ctx, tag, opt)
	} else {
		list, resp, err = c.api.Droplets.List(ctx, opt)
	}
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("list droplets: %w", err)
	}

	out := &DropletPage{Droplets: make([]Droplet, 0, len(list)), Page: page, PerPage: perPage, Total: len(list)}
	for i := range list {
		out.Droplets = append(out.Droplets, dropletView(&list[i]))
	}
	if resp != nil && resp.Meta != nil {
		out.Total = resp.Meta.Total
	}
	return out, nil
}

// GetDroplet returns one droplet.
func (c *Client) GetDroplet(ctx context.Context, id int) (*Droplet, error) {
	d, resp, err := c.api.Droplets.Get(ctx, id)
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("get droplet %d: %w", id, err)
	}
	v := dropletView(d)
	return &v, nil
}

// CreateDropletRequest describes a new droplet. Image is a slug or a
// numeric image ID.
type CreateDropletRequest struct {
	Name       string
	Region     string
	Size       string
	Image      string
	SSHKeys    []string // IDs or fingerprints
	Backups    bool
	IPv6       bool
	Monitoring bool
	Tags       []string
	UserData   string
	VPCUUID    string
}

// CreateDroplet creates a droplet and returns it as first reported.
func (c *Client) CreateDroplet(ctx context.Context, req CreateDropletRequest) (*Droplet, error) {
	create := &godo.DropletCreateRequest{
		Name:       req.Name,
		Region:     req.Region,
		Size:       req.Size,
		Image:      imageRef(req.Image),
		Backups:    req.Backups,
		IPv6:       req.IPv6,
		Monitoring: req.Monitoring,
		Tags:       req.Tags,
		UserData:   req.UserData,
		VPCUUID:    req.VPCUUID,
	}
	for _, k := range req.SSHKeys {
		if id, err := strconv.Atoi(k); err == nil {
			create.SSHKeys = append(create.SSHKeys, godo.DropletCreateSSHKey{ID: id})
		} else {
			create.SSHKeys = append(create.SSHKeys, godo.DropletCreateSSHKey{Fingerprint: k})
		}
	}

	d, resp, err := c.api.Droplets.Create(ctx, create)
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("create droplet %s: %w", req.Name, err)
	}
	c.logger.Info("digitalocean: droplet created", zap.Int("id", d.ID), zap.String("name", d.Name))
	v := dropletView(d)
	return &v, nil
}

func imageRef(s string) godo.DropletCreateImage {
	if id, err := strconv.Atoi(s); err == nil {
		return godo.DropletCreateImage{ID: id}
	}
	return godo.DropletCreateImage{Slug: s}
}

// DeleteDroplet destroys a droplet.
func (c *Client) DeleteDroplet(ctx context.Context, id int) error {
	resp, err := c.api.Droplets.Delete(ctx, id)
	c.observe(resp)
	if err != nil {
		return fmt.Errorf("delete droplet %d: %w", id, err)
	}
	c.logger.Info("digitalocean: droplet deleted", zap.Int("id", id))
	return nil
}

// Action is the flattened form of a droplet action.
type Action struct {
	ID           int    `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	ResourceID   int    `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	Region       string `json:"region,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
}

// ActionRequest carries the parameters some droplet actions need.
type ActionRequest struct {
	Type       string
	Size       string // resize
	ResizeDisk bool   // resize
	Name       string // snapshot
	Image      string // rebuild, restore
}

// ActionTypes lists the droplet actions DropletAction accepts.
var ActionTypes = []string{
	"power_on", "power_off", "reboot", "power_cycle", "shutdown",
	"resize", "snapshot", "rebuild", "restore",
	"enable_backups", "disable_backups", "enable_ipv6", "enable_private_networking",
}

// DropletAction runs one action on a droplet.
func (c *Client) DropletAction(ctx context.Context, id int, req ActionRequest) (*Action, error) {
	svc := c.api.DropletActions
	var (
		a    *godo.Action
		resp *godo.Response
		err  error
	)
	switch req.Type {
	case "power_on":
		a, resp, err = svc.PowerOn(ctx, id)
	case "power_off":
		a, resp, err = svc.PowerOff(ctx, id)
	case "reboot":
		a, resp, err = svc.Reboot(ctx, id)
	case "power_cycle":
		a, resp, err = svc.PowerCycle(ctx, id)
	case "shutdown":
		a, resp, err = svc.Shutdown(ctx, id)
	case "resize":
		if req.Size == "" {
			return nil, fmt.Errorf("resize requires a size")
		}
		a, resp, err = svc.Resize(ctx, id, req.Size, req.ResizeDisk)
	case "snapshot":
		if req.Name == "" {
			return nil, fmt.Errorf("snapshot requires a name")
		}
		a, resp, err = svc.Snapshot(ctx, id, req.Name)
	case "rebuild":
		if req.Image == "" {
			return nil, fmt.Errorf("rebuild requires an image")
		}
		if imageID, convErr := strconv.Atoi(req.Image); convErr == nil {
			a, resp, err = svc.RebuildByImageID(ctx, id, imageID)
		} else {
			a, resp, err = svc.RebuildByImageSlug(ctx, id, req.Image)
		}
	case "restore":
		imageID, convErr := strconv.Atoi(req.Image)
		if convErr != nil {
			return nil, fmt.Errorf("restore requires a numeric image or snapshot id")
		}
		a, resp, err = svc.Restore(ctx, id, imageID)
	case "enable_backups":
		a, resp, err = svc.EnableBackups(ctx, id)
	case "disable_backups":
		a, resp, err = svc.DisableBackups(ctx, id)
	case "enable_ipv6":
		a, resp, err = svc.EnableIPv6(ctx, id)
	case "enable_private_networking":
		a, resp, err = svc.EnablePrivateNetworking(ctx, id)
	default:
		return nil, fmt.Errorf("unknown droplet action %q", req.Type)
	}
	c.observe(resp)
	if err != nil {
		return nil, fmt.Errorf("%s droplet %d: %w", req.Type, id, err)
	}

	c.logger.Info("digitalocean: droplet action", zap.Int("droplet_id", id), zap.String("type", req.Type))
	out := &Action{
		ID:           a.ID,
		Type:         a.Type,
		Status:       a.Status,
		ResourceID:   a.ResourceID,
		ResourceType: a.ResourceType,
		Region:       a.RegionSlug,
	}
	if a.StartedAt != nil {
		out.StartedAt = a.StartedAt.Time.UTC().Format(time.RFC3339)
	}
	return out, nil
}
