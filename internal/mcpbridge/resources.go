package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cargoshipper/cargoshipper/internal/cloudflare"
	"github.com/mark3labs/mcp-go/mcp"
)

const jsonMIME = "application/json"

// resourceHandler loads a resource body. vars holds the template variables.
type resourceHandler func(ctx context.Context, vars map[string]string) (any, error)

type staticResource struct {
	res    mcp.Resource
	handle resourceHandler
}

type templateResource struct {
	tmpl   mcp.ResourceTemplate
	handle resourceHandler
}

var errUnknownResource = errors.New("unknown resource")

func isUnknownResource(err error) bool { return errors.Is(err, errUnknownResource) }

// ResourceRegistry serves read-only JSON views addressed by URI.
type ResourceRegistry struct {
	static    []staticResource
	templates []templateResource
}

// NewResourceRegistry creates an empty ResourceRegistry. When guard is
// non-nil the token permissions resource is registered.
func NewResourceRegistry(guard *Guard) *ResourceRegistry {
	r := &ResourceRegistry{}
	if guard != nil {
		r.addStatic("cargoshipper://token-permissions", "Token permissions",
			"Latest constraint detection result with guidance per backend",
			func(ctx context.Context, _ map[string]string) (any, error) {
				res := guard.Snapshot()
				if res == nil {
					res = guard.Refresh(ctx)
				}
				return permissionsReport(res), nil
			})
	}
	return r
}

func (r *ResourceRegistry) addStatic(uri, name, desc string, h resourceHandler) {
	r.static = append(r.static, staticResource{
		res:    mcp.NewResource(uri, name, mcp.WithResourceDescription(desc), mcp.WithMIMEType(jsonMIME)),
		handle: h,
	})
}

func (r *ResourceRegistry) addTemplate(tmpl, name, desc string, h resourceHandler) {
	r.templates = append(r.templates, templateResource{
		tmpl:   mcp.NewResourceTemplate(tmpl, name, mcp.WithTemplateDescription(desc), mcp.WithTemplateMIMEType(jsonMIME)),
		handle: h,
	})
}

// List returns the fixed resources.
func (r *ResourceRegistry) List() []mcp.Resource {
	out := make([]mcp.Resource, 0, len(r.static))
	for _, s := range r.static {
		out = append(out, s.res)
	}
	return out
}

// Templates returns the parameterized resources.
func (r *ResourceRegistry) Templates() []mcp.ResourceTemplate {
	out := make([]mcp.ResourceTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t.tmpl)
	}
	return out
}

// Read resolves uri against the fixed resources, then the templates, and
// returns its JSON body.
func (r *ResourceRegistry) Read(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	h, vars, ok := r.match(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownResource, uri)
	}
	v, err := h(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      uri,
		MIMEType: jsonMIME,
		Text:     string(body),
	}}, nil
}

func (r *ResourceRegistry) match(uri string) (resourceHandler, map[string]string, bool) {
	for _, s := range r.static {
		if s.res.URI == uri {
			return s.handle, nil, true
		}
	}
	for _, t := range r.templates {
		tpl := t.tmpl.URITemplate
		if tpl == nil || !tpl.Regexp().MatchString(uri) {
			continue
		}
		values := tpl.Match(uri)
		vars := make(map[string]string, len(tpl.Varnames()))
		for _, name := range tpl.Varnames() {
			vars[name] = values.Get(name).String()
		}
		return t.handle, vars, true
	}
	return nil, nil, false
}

// RegisterDocker adds the docker:// resources.
func (r *ResourceRegistry) RegisterDocker(d DockerBackend) {
	r.addStatic("docker://containers", "Containers", "All containers, running and stopped",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return d.ListContainers(ctx, true, nil)
		})
	r.addStatic("docker://images", "Images", "Local images",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return d.ListImages(ctx, false)
		})
	r.addStatic("docker://system", "Engine", "Container engine host information",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return d.Info(ctx)
		})
	r.addTemplate("docker://container/{container_id}", "Container", "One container's details",
		func(ctx context.Context, vars map[string]string) (any, error) {
			return d.Inspect(ctx, vars["container_id"])
		})
	r.addTemplate("docker://container/{container_id}/logs", "Container logs", "The last 100 log lines of a container",
		func(ctx context.Context, vars map[string]string) (any, error) {
			logs, err := d.Logs(ctx, vars["container_id"], 100, true)
			if err != nil {
				return nil, err
			}
			return map[string]any{"container_id": vars["container_id"], "logs": logs}, nil
		})
}

// RegisterDigitalOcean adds the digitalocean:// resources.
func (r *ResourceRegistry) RegisterDigitalOcean(do DigitalOceanBackend) {
	r.addStatic("digitalocean://droplets", "Droplets", "First page of droplets",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return do.ListDroplets(ctx, 1, 200, "")
		})
	r.addStatic("digitalocean://account", "Account", "Account status and limits",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return do.GetAccount(ctx)
		})
	r.addStatic("digitalocean://domains", "Domains", "DNS domains",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return do.ListDomains(ctx)
		})
	r.addStatic("digitalocean://images", "Distribution images", "Public distribution images",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return do.ListImages(ctx, "distribution", false, 1, 200)
		})
	r.addTemplate("digitalocean://droplet/{droplet_id}", "Droplet", "One droplet's details",
		func(ctx context.Context, vars map[string]string) (any, error) {
			id, err := strconv.Atoi(vars["droplet_id"])
			if err != nil {
				return nil, fmt.Errorf("droplet id %q is not numeric", vars["droplet_id"])
			}
			return do.GetDroplet(ctx, id)
		})
	r.addTemplate("digitalocean://domain/{domain_name}/records", "Domain records", "DNS records of one domain",
		func(ctx context.Context, vars map[string]string) (any, error) {
			return do.ListRecords(ctx, vars["domain_name"], "")
		})
}

// RegisterCloudflare adds the cloudflare:// resources.
func (r *ResourceRegistry) RegisterCloudflare(cf CloudflareBackend) {
	r.addStatic("cloudflare://zones", "Zones", "First page of zones",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return cf.ListZones(ctx, 1, 50, "", "")
		})
	r.addStatic("cloudflare://accounts", "Accounts", "Accounts visible to the credential",
		func(ctx context.Context, _ map[string]string) (any, error) {
			return cf.ListAccounts(ctx)
		})
	r.addTemplate("cloudflare://zone/{zone_id}", "Zone", "One zone's details",
		func(ctx context.Context, vars map[string]string) (any, error) {
			return cf.GetZone(ctx, vars["zone_id"])
		})
	r.addTemplate("cloudflare://zone/{zone_id}/dns", "Zone DNS records", "DNS records of one zone",
		func(ctx context.Context, vars map[string]string) (any, error) {
			return cf.ListDNSRecords(ctx, vars["zone_id"], cloudflare.RecordFilter{})
		})
	r.addTemplate("cloudflare://zone/{zone_id}/settings", "Zone settings", "Settings of one zone",
		func(ctx context.Context, vars map[string]string) (any, error) {
			return cf.ZoneSettings(ctx, vars["zone_id"])
		})
}
