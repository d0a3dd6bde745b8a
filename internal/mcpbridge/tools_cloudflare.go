package mcpbridge

import (
	"context"
	"slices"

	"github.com/cargoshipper/cargoshipper/internal/cloudflare"
	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

// CloudflareBackend is the DNS/CDN API surface the cf_* tools use.
type CloudflareBackend interface {
	ListZones(ctx context.Context, page, perPage int, name, status string) (*cloudflare.ZonePage, error)
	GetZone(ctx context.Context, zoneID string) (*cloudflare.Zone, error)
	CreateZone(ctx context.Context, req cloudflare.CreateZoneRequest) (*cloudflare.Zone, error)
	DeleteZone(ctx context.Context, zoneID string) error
	ListDNSRecords(ctx context.Context, zoneID string, f cloudflare.RecordFilter) ([]cloudflare.Record, error)
	CreateDNSRecord(ctx context.Context, zoneID string, req cloudflare.RecordRequest) (*cloudflare.Record, error)
	UpdateDNSRecord(ctx context.Context, zoneID, recordID string, req cloudflare.RecordRequest) (*cloudflare.Record, error)
	DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error
	PurgeCache(ctx context.Context, zoneID string, req cloudflare.PurgeRequest) (string, error)
	ZoneSettings(ctx context.Context, zoneID string) ([]cloudflare.Setting, error)
	UpdateZoneSetting(ctx context.Context, zoneID, setting string, value any) (*cloudflare.Setting, error)
	ListAccounts(ctx context.Context) ([]cloudflare.Account, error)
}

// proxiableTypes are the record types Cloudflare can proxy.
var proxiableTypes = []string{"A", "AAAA", "CNAME"}

func zoneID(a args) (string, error) {
	id := a.str("zone_id")
	if id == "" {
		return "", &validate.Error{Field: "zone_id", Message: "zone id must be a non-empty string"}
	}
	return id, nil
}

// checkTTL accepts 1 (automatic) or 120..7200 seconds.
func checkTTL(ttl int) error {
	if ttl == 1 {
		return nil
	}
	if err := validate.Range("ttl", ttl, 120, 7200); err != nil {
		return &validate.Error{Field: "ttl", Message: "must be 1 (automatic) or between 120 and 7200"}
	}
	return nil
}

// recordRequest decodes the record fields shared by create and update.
// Absent fields stay zero or nil.
func recordRequest(a args) (cloudflare.RecordRequest, error) {
	var req cloudflare.RecordRequest
	if s := a.str("record_type"); s != "" {
		t, err := validate.RecordType(s)
		if err != nil {
			return req, err
		}
		req.Type = t
	}
	req.Name = a.str("name")
	req.Content = a.str("content")
	if req.Type != "" && req.Content != "" {
		if err := validate.RecordContent(req.Type, req.Content); err != nil {
			return req, err
		}
	}
	if a.has("ttl") {
		ttl, err := a.integer("ttl", 1)
		if err != nil {
			return req, err
		}
		if err := checkTTL(ttl); err != nil {
			return req, err
		}
		req.TTL = ttl
	}
	if a.has("proxied") {
		req.Proxied = lo.ToPtr(a.boolean("proxied", false))
	}
	if a.has("priority") {
		p, err := a.integer("priority", 0)
		if err != nil {
			return req, err
		}
		if err := validate.Range("priority", p, 0, 65535); err != nil {
			return req, err
		}
		req.Priority = lo.ToPtr(uint16(p))
	}
	if a.has("comment") {
		req.Comment = lo.ToPtr(a.str("comment"))
	}
	return req, nil
}

// RegisterCloudflare adds the cf_* tools.
func (r *ToolRegistry) RegisterCloudflare(cf CloudflareBackend) {
	const b = constraints.BackendCloudflare

	r.add(mcp.NewTool("cf_list_zones",
		mcp.WithDescription("List zones, optionally filtered by name and status."),
		mcp.WithNumber("per_page", mcp.DefaultNumber(20), mcp.Description("Results per page (5-50)")),
		mcp.WithNumber("page", mcp.DefaultNumber(1)),
		mcp.WithString("name", mcp.Description("Exact zone name")),
		mcp.WithString("status", mcp.Enum(cloudflare.ZoneStatuses...)),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_zones", func(ctx context.Context, a args) (any, error) {
		page, err := a.integer("page", 1)
		if err != nil {
			return nil, err
		}
		if page < 1 {
			return nil, &validate.Error{Field: "page", Message: "must be at least 1"}
		}
		perPage, err := a.integer("per_page", 20)
		if err != nil {
			return nil, err
		}
		if err := validate.Range("per_page", perPage, 5, 50); err != nil {
			return nil, err
		}
		status := a.str("status")
		if status != "" {
			if err := validate.OneOf("status", status, cloudflare.ZoneStatuses...); err != nil {
				return nil, err
			}
		}
		return cf.ListZones(ctx, page, perPage, a.str("name"), status)
	})

	r.add(mcp.NewTool("cf_get_zone",
		mcp.WithDescription("Get one zone."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "get_zone", func(ctx context.Context, a args) (any, error) {
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		return cf.GetZone(ctx, id)
	})

	r.add(mcp.NewTool("cf_create_zone",
		mcp.WithDescription("Add a zone to an account."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Domain name")),
		mcp.WithString("account_id", mcp.Required()),
		mcp.WithBoolean("jump_start", mcp.DefaultBool(true), mcp.Description("Import existing DNS records")),
		mcp.WithString("zone_type", mcp.Enum("full", "partial"), mcp.DefaultString("full")),
	), b, "create_zone", func(ctx context.Context, a args) (any, error) {
		if err := a.require("name", "account_id"); err != nil {
			return nil, err
		}
		name := a.str("name")
		if err := validate.ZoneName(name); err != nil {
			return nil, err
		}
		zoneType := a.strOr("zone_type", "full")
		if err := validate.OneOf("zone_type", zoneType, "full", "partial"); err != nil {
			return nil, err
		}
		return cf.CreateZone(ctx, cloudflare.CreateZoneRequest{
			Name:      name,
			AccountID: a.str("account_id"),
			JumpStart: a.boolean("jump_start", true),
			ZoneType:  zoneType,
		})
	})

	r.add(mcp.NewTool("cf_delete_zone",
		mcp.WithDescription("Delete a zone and all of its records."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), b, "delete_zone", func(ctx context.Context, a args) (any, error) {
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		if err := cf.DeleteZone(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"zone_id": id, "status": "deleted"}, nil
	})

	r.add(mcp.NewTool("cf_list_dns_records",
		mcp.WithDescription("List the DNS records of a zone."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithString("record_type", mcp.Enum(validate.RecordTypes...)),
		mcp.WithString("name", mcp.Description("Exact record name")),
		mcp.WithString("content", mcp.Description("Exact record content")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_dns_records", func(ctx context.Context, a args) (any, error) {
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		f := cloudflare.RecordFilter{Name: a.str("name"), Content: a.str("content")}
		if s := a.str("record_type"); s != "" {
			if f.Type, err = validate.RecordType(s); err != nil {
				return nil, err
			}
		}
		list, err := cf.ListDNSRecords(ctx, id, f)
		if err != nil {
			return nil, err
		}
		return map[string]any{"zone_id": id, "records": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("cf_create_dns_record",
		mcp.WithDescription("Create a DNS record in a zone."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithString("record_type", mcp.Required(), mcp.Enum(validate.RecordTypes...)),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
		mcp.WithNumber("ttl", mcp.DefaultNumber(1), mcp.Description("1 for automatic, otherwise 120-7200")),
		mcp.WithBoolean("proxied", mcp.DefaultBool(false), mcp.Description("Proxy through Cloudflare (A, AAAA, CNAME only)")),
		mcp.WithNumber("priority", mcp.Description("Required for MX")),
		mcp.WithString("comment"),
	), b, "create_dns_record", func(ctx context.Context, a args) (any, error) {
		if err := a.require("zone_id", "record_type", "name", "content"); err != nil {
			return nil, err
		}
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		req, err := recordRequest(a)
		if err != nil {
			return nil, err
		}
		if req.TTL == 0 {
			req.TTL = 1
		}
		if req.Proxied != nil && *req.Proxied && !slices.Contains(proxiableTypes, req.Type) {
			return nil, &validate.Error{Field: "proxied", Message: "only A, AAAA and CNAME records can be proxied"}
		}
		if req.Type == "MX" && req.Priority == nil {
			return nil, &validate.Error{Field: "priority", Message: "MX records require a priority"}
		}
		return cf.CreateDNSRecord(ctx, id, req)
	})

	r.add(mcp.NewTool("cf_update_dns_record",
		mcp.WithDescription("Update a DNS record. Fields not given keep their current values."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithString("record_id", mcp.Required()),
		mcp.WithString("record_type", mcp.Enum(validate.RecordTypes...)),
		mcp.WithString("name"),
		mcp.WithString("content"),
		mcp.WithNumber("ttl"),
		mcp.WithBoolean("proxied"),
		mcp.WithNumber("priority"),
		mcp.WithString("comment"),
	), b, "update_dns_record", func(ctx context.Context, a args) (any, error) {
		if err := a.require("zone_id", "record_id"); err != nil {
			return nil, err
		}
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		req, err := recordRequest(a)
		if err != nil {
			return nil, err
		}
		if req.Proxied != nil && *req.Proxied && req.Type != "" && !slices.Contains(proxiableTypes, req.Type) {
			return nil, &validate.Error{Field: "proxied", Message: "only A, AAAA and CNAME records can be proxied"}
		}
		return cf.UpdateDNSRecord(ctx, id, a.str("record_id"), req)
	})

	r.add(mcp.NewTool("cf_delete_dns_record",
		mcp.WithDescription("Delete a DNS record from a zone."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithString("record_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), b, "delete_dns_record", func(ctx context.Context, a args) (any, error) {
		if err := a.require("zone_id", "record_id"); err != nil {
			return nil, err
		}
		id := a.str("zone_id")
		recordID := a.str("record_id")
		if err := cf.DeleteDNSRecord(ctx, id, recordID); err != nil {
			return nil, err
		}
		return map[string]any{"zone_id": id, "record_id": recordID, "status": "deleted"}, nil
	})

	r.add(mcp.NewTool("cf_purge_cache",
		mcp.WithDescription("Purge a zone's cache: everything, or by files, cache tags or hosts."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithBoolean("purge_everything", mcp.DefaultBool(false)),
		mcp.WithArray("files", mcp.WithStringItems(), mcp.Description("URLs to purge")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Cache tags to purge")),
		mcp.WithArray("hosts", mcp.WithStringItems(), mcp.Description("Hostnames to purge")),
	), b, "purge_cache", func(ctx context.Context, a args) (any, error) {
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		req := cloudflare.PurgeRequest{Everything: a.boolean("purge_everything", false)}
		if req.Files, err = a.strings("files"); err != nil {
			return nil, err
		}
		if req.Tags, err = a.strings("tags"); err != nil {
			return nil, err
		}
		if req.Hosts, err = a.strings("hosts"); err != nil {
			return nil, err
		}
		if !req.Everything && len(req.Files) == 0 && len(req.Tags) == 0 && len(req.Hosts) == 0 {
			return nil, &validate.Error{Message: cloudflare.ErrNothingToPurge.Error()}
		}
		purgeID, err := cf.PurgeCache(ctx, id, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"zone_id": id, "purge_id": purgeID, "purge_everything": req.Everything}, nil
	})

	r.add(mcp.NewTool("cf_get_zone_settings",
		mcp.WithDescription("List a zone's settings."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "get_zone_settings", func(ctx context.Context, a args) (any, error) {
		id, err := zoneID(a)
		if err != nil {
			return nil, err
		}
		settings, err := cf.ZoneSettings(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"zone_id": id, "settings": settings}, nil
	})

	r.add(mcp.NewTool("cf_update_zone_setting",
		mcp.WithDescription("Change one zone setting, e.g. ssl, always_use_https, security_level, cache_level or development_mode."),
		mcp.WithString("zone_id", mcp.Required()),
		mcp.WithString("setting", mcp.Required()),
		mcp.WithString("value", mcp.Required()),
	), b, "update_zone_setting", func(ctx context.Context, a args) (any, error) {
		if err := a.require("zone_id", "setting", "value"); err != nil {
			return nil, err
		}
		id := a.str("zone_id")
		setting := a.str("setting")
		value := a["value"]
		if err := cloudflare.CheckSettingValue(setting, value); err != nil {
			return nil, &validate.Error{Field: "value", Message: err.Error()}
		}
		return cf.UpdateZoneSetting(ctx, id, setting, value)
	})

	r.add(mcp.NewTool("cf_list_accounts",
		mcp.WithDescription("List the accounts the credential can see."),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_accounts", func(ctx context.Context, _ args) (any, error) {
		list, err := cf.ListAccounts(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"accounts": list, "count": len(list)}, nil
	})
}
