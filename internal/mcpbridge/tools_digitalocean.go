package mcpbridge

import (
	"context"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/digitalocean"
	"github.com/cargoshipper/cargoshipper/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// DigitalOceanBackend is the VPS API surface the do_* tools use.
type DigitalOceanBackend interface {
	ListDroplets(ctx context.Context, page, perPage int, tag string) (*digitalocean.DropletPage, error)
	GetDroplet(ctx context.Context, id int) (*digitalocean.Droplet, error)
	CreateDroplet(ctx context.Context, req digitalocean.CreateDropletRequest) (*digitalocean.Droplet, error)
	DeleteDroplet(ctx context.Context, id int) error
	DropletAction(ctx context.Context, id int, req digitalocean.ActionRequest) (*digitalocean.Action, error)
	ListImages(ctx context.Context, imageType string, private bool, page, perPage int) ([]digitalocean.Image, error)
	ListDomains(ctx context.Context) ([]digitalocean.Domain, error)
	ListRecords(ctx context.Context, domain, recordType string) ([]digitalocean.Record, error)
	CreateRecord(ctx context.Context, domain string, req digitalocean.CreateRecordRequest) (*digitalocean.Record, error)
	DeleteRecord(ctx context.Context, domain string, id int) error
	GetAccount(ctx context.Context) (*digitalocean.Account, error)
}

func dropletID(a args) (int, error) {
	if err := a.require("droplet_id"); err != nil {
		return 0, err
	}
	id, err := a.integer("droplet_id", 0)
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, &validate.Error{Field: "droplet_id", Message: "must be a positive integer"}
	}
	return id, nil
}

func pagination(a args, defPerPage, maxPerPage int) (page, perPage int, err error) {
	if page, err = a.integer("page", 1); err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, &validate.Error{Field: "page", Message: "must be at least 1"}
	}
	if perPage, err = a.integer("per_page", defPerPage); err != nil {
		return 0, 0, err
	}
	if err = validate.Range("per_page", perPage, 1, maxPerPage); err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

// RegisterDigitalOcean adds the do_* tools.
func (r *ToolRegistry) RegisterDigitalOcean(do DigitalOceanBackend) {
	const b = constraints.BackendDigitalOcean

	r.add(mcp.NewTool("do_list_droplets",
		mcp.WithDescription("List droplets, optionally filtered by tag."),
		mcp.WithNumber("per_page", mcp.DefaultNumber(20), mcp.Description("Results per page (1-200)")),
		mcp.WithNumber("page", mcp.DefaultNumber(1), mcp.Description("Page number")),
		mcp.WithString("tag_name", mcp.Description("Only droplets with this tag")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_droplets", func(ctx context.Context, a args) (any, error) {
		page, perPage, err := pagination(a, 20, 200)
		if err != nil {
			return nil, err
		}
		return do.ListDroplets(ctx, page, perPage, a.str("tag_name"))
	})

	r.add(mcp.NewTool("do_get_droplet",
		mcp.WithDescription("Get one droplet."),
		mcp.WithNumber("droplet_id", mcp.Required(), mcp.Description("Droplet ID")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "get_droplet", func(ctx context.Context, a args) (any, error) {
		id, err := dropletID(a)
		if err != nil {
			return nil, err
		}
		return do.GetDroplet(ctx, id)
	})

	r.add(mcp.NewTool("do_create_droplet",
		mcp.WithDescription("Create a droplet."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Droplet hostname")),
		mcp.WithString("region", mcp.Required(), mcp.Description("Region slug, e.g. nyc3")),
		mcp.WithString("size", mcp.Required(), mcp.Description("Size slug, e.g. s-1vcpu-1gb")),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image slug or numeric ID")),
		mcp.WithArray("ssh_keys", mcp.WithStringItems(), mcp.Description("SSH key IDs or fingerprints")),
		mcp.WithBoolean("backups", mcp.DefaultBool(false)),
		mcp.WithBoolean("ipv6", mcp.DefaultBool(false)),
		mcp.WithBoolean("monitoring", mcp.DefaultBool(false)),
		mcp.WithArray("tags", mcp.WithStringItems()),
		mcp.WithString("user_data", mcp.Description("cloud-init user data")),
		mcp.WithString("vpc_uuid", mcp.Description("VPC to place the droplet in")),
	), b, "create_droplet", func(ctx context.Context, a args) (any, error) {
		if err := a.require("name", "region", "size", "image"); err != nil {
			return nil, err
		}
		sshKeys, err := a.strings("ssh_keys")
		if err != nil {
			return nil, err
		}
		tags, err := a.strings("tags")
		if err != nil {
			return nil, err
		}
		return do.CreateDroplet(ctx, digitalocean.CreateDropletRequest{
			Name:       a.str("name"),
			Region:     a.str("region"),
			Size:       a.str("size"),
			Image:      a.str("image"),
			SSHKeys:    sshKeys,
			Backups:    a.boolean("backups", false),
			IPv6:       a.boolean("ipv6", false),
			Monitoring: a.boolean("monitoring", false),
			Tags:       tags,
			UserData:   a.str("user_data"),
			VPCUUID:    a.str("vpc_uuid"),
		})
	})

	r.add(mcp.NewTool("do_delete_droplet",
		mcp.WithDescription("Destroy a droplet. This cannot be undone."),
		mcp.WithNumber("droplet_id", mcp.Required(), mcp.Description("Droplet ID")),
		mcp.WithDestructiveHintAnnotation(true),
	), b, "delete_droplet", func(ctx context.Context, a args) (any, error) {
		id, err := dropletID(a)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"droplet_id": id, "status": "deleted"}
		if d, err := do.GetDroplet(ctx, id); err == nil {
			out["name"] = d.Name
		} else {
			r.logger.Debug("droplet name lookup failed", zap.Int("droplet_id", id), zap.Error(err))
		}
		if err := do.DeleteDroplet(ctx, id); err != nil {
			return nil, err
		}
		return out, nil
	})

	r.add(mcp.NewTool("do_droplet_action",
		mcp.WithDescription("Run a power, resize, snapshot, rebuild, restore, backup or networking action on a droplet."),
		mcp.WithNumber("droplet_id", mcp.Required(), mcp.Description("Droplet ID")),
		mcp.WithString("action_type", mcp.Required(), mcp.Enum(digitalocean.ActionTypes...)),
		mcp.WithString("size", mcp.Description("New size slug (resize)")),
		mcp.WithBoolean("disk", mcp.DefaultBool(false), mcp.Description("Also resize the disk; permanent (resize)")),
		mcp.WithString("name", mcp.Description("Snapshot name (snapshot)")),
		mcp.WithString("image", mcp.Description("Image slug or ID (rebuild), image or snapshot ID (restore)")),
	), b, "droplet_action", func(ctx context.Context, a args) (any, error) {
		id, err := dropletID(a)
		if err != nil {
			return nil, err
		}
		if err := a.require("action_type"); err != nil {
			return nil, err
		}
		action := a.str("action_type")
		if err := validate.OneOf("action_type", action, digitalocean.ActionTypes...); err != nil {
			return nil, err
		}
		return do.DropletAction(ctx, id, digitalocean.ActionRequest{
			Type:       action,
			Size:       a.str("size"),
			ResizeDisk: a.boolean("disk", false),
			Name:       a.str("name"),
			Image:      a.str("image"),
		})
	})

	r.add(mcp.NewTool("do_list_images",
		mcp.WithDescription("List images."),
		mcp.WithString("image_type", mcp.Enum("distribution", "application"), mcp.Description("Restrict to one image type")),
		mcp.WithBoolean("private", mcp.DefaultBool(false), mcp.Description("Only the account's own images")),
		mcp.WithNumber("per_page", mcp.DefaultNumber(20)),
		mcp.WithNumber("page", mcp.DefaultNumber(1)),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_images", func(ctx context.Context, a args) (any, error) {
		imageType := a.str("image_type")
		if imageType != "" {
			if err := validate.OneOf("image_type", imageType, "distribution", "application"); err != nil {
				return nil, err
			}
		}
		page, perPage, err := pagination(a, 20, 200)
		if err != nil {
			return nil, err
		}
		list, err := do.ListImages(ctx, imageType, a.boolean("private", false), page, perPage)
		if err != nil {
			return nil, err
		}
		return map[string]any{"images": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("do_list_domains",
		mcp.WithDescription("List DNS domains."),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_domains", func(ctx context.Context, _ args) (any, error) {
		list, err := do.ListDomains(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"domains": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("do_list_dns_records",
		mcp.WithDescription("List the DNS records of a domain."),
		mcp.WithString("domain_name", mcp.Required(), mcp.Description("Domain, e.g. example.com")),
		mcp.WithString("record_type", mcp.Enum(validate.RecordTypes...), mcp.Description("Only records of this type")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_dns_records", func(ctx context.Context, a args) (any, error) {
		domain := a.str("domain_name")
		if err := validate.ZoneName(domain); err != nil {
			return nil, err
		}
		recordType := a.str("record_type")
		if recordType != "" {
			var err error
			if recordType, err = validate.RecordType(recordType); err != nil {
				return nil, err
			}
		}
		list, err := do.ListRecords(ctx, domain, recordType)
		if err != nil {
			return nil, err
		}
		return map[string]any{"domain": domain, "records": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("do_create_dns_record",
		mcp.WithDescription("Create a DNS record in a domain."),
		mcp.WithString("domain_name", mcp.Required()),
		mcp.WithString("record_type", mcp.Required(), mcp.Enum(validate.RecordTypes...)),
		mcp.WithString("name", mcp.Required(), mcp.Description(`Record name; "@" for the apex`)),
		mcp.WithString("data", mcp.Required(), mcp.Description("Record value")),
		mcp.WithNumber("ttl", mcp.DefaultNumber(3600)),
		mcp.WithNumber("priority", mcp.Description("MX and SRV priority")),
		mcp.WithNumber("port", mcp.Description("SRV port")),
		mcp.WithNumber("weight", mcp.Description("SRV weight")),
	), b, "create_dns_record", func(ctx context.Context, a args) (any, error) {
		if err := a.require("domain_name", "record_type", "name", "data"); err != nil {
			return nil, err
		}
		domain := a.str("domain_name")
		if err := validate.ZoneName(domain); err != nil {
			return nil, err
		}
		recordType, err := validate.RecordType(a.str("record_type"))
		if err != nil {
			return nil, err
		}
		data := a.str("data")
		if err := validate.RecordContent(recordType, data); err != nil {
			return nil, err
		}
		req := digitalocean.CreateRecordRequest{Type: recordType, Name: a.str("name"), Data: data}
		if req.TTL, err = a.integer("ttl", 3600); err != nil {
			return nil, err
		}
		if err := validate.Range("ttl", req.TTL, 30, 86400); err != nil {
			return nil, err
		}
		if req.Priority, err = a.integer("priority", 0); err != nil {
			return nil, err
		}
		if recordType == "MX" && !a.has("priority") {
			return nil, &validate.Error{Field: "priority", Message: "MX records require a priority"}
		}
		if a.has("port") {
			if req.Port, err = validate.Port(a["port"]); err != nil {
				return nil, err
			}
		}
		if req.Weight, err = a.integer("weight", 0); err != nil {
			return nil, err
		}
		return do.CreateRecord(ctx, domain, req)
	})

	r.add(mcp.NewTool("do_delete_dns_record",
		mcp.WithDescription("Delete a DNS record from a domain."),
		mcp.WithString("domain_name", mcp.Required()),
		mcp.WithNumber("record_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), b, "delete_dns_record", func(ctx context.Context, a args) (any, error) {
		if err := a.require("domain_name", "record_id"); err != nil {
			return nil, err
		}
		domain := a.str("domain_name")
		if err := validate.ZoneName(domain); err != nil {
			return nil, err
		}
		id, err := a.integer("record_id", 0)
		if err != nil {
			return nil, err
		}
		if err := do.DeleteRecord(ctx, domain, id); err != nil {
			return nil, err
		}
		return map[string]any{"domain": domain, "record_id": id, "status": "deleted"}, nil
	})

	r.add(mcp.NewTool("do_get_account",
		mcp.WithDescription("Describe the authenticated account: status and resource limits."),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "get_account", func(ctx context.Context, _ args) (any, error) {
		return do.GetAccount(ctx)
	})
}
