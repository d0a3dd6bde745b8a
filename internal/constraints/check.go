package constraints

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// operations maps each backend's operation names to the capability they need.
var operations = map[string]map[string]Capability{
	BackendDocker: {
		"run_container":     DockerContainersWrite,
		"start_container":   DockerContainersWrite,
		"stop_container":    DockerContainersWrite,
		"remove_container":  DockerContainersWrite,
		"pull_image":        DockerImagesWrite,
		"list_containers":   DockerContainersRead,
		"inspect_container": DockerContainersRead,
		"get_logs":          DockerContainersRead,
		"list_images":       DockerImagesRead,
		"system_info":       DockerPing,
	},
	BackendDigitalOcean: {
		"create_droplet":    DropletsWrite,
		"delete_droplet":    DropletsWrite,
		"droplet_action":    DropletsWrite,
		"list_droplets":     DropletsRead,
		"get_droplet":       DropletsRead,
		"list_images":       DropletsRead,
		"create_dns_record": DomainsWrite,
		"delete_dns_record": DomainsWrite,
		"list_domains":      DomainsRead,
		"list_dns_records":  DomainsRead,
		"get_account":       AccountRead,
	},
	BackendCloudflare: {
		"create_zone":         ZonesWrite,
		"delete_zone":         ZonesWrite,
		"update_zone_setting": ZonesWrite,
		"create_dns_record":   DNSWrite,
		"update_dns_record":   DNSWrite,
		"delete_dns_record":   DNSWrite,
		"purge_cache":         CachePurge,
		"list_zones":          ZonesRead,
		"get_zone":            ZonesRead,
		"get_zone_settings":   ZonesRead,
		"list_dns_records":    DNSRead,
		"list_accounts":       AccountsRead,
	},
}

// writeVerbs is the fallback for operations missing from the table.
var writeVerbs = []string{"create", "delete", "update", "modify", "start", "stop", "restart"}

// CapabilityFor returns the capability backend's operation needs, if known.
func CapabilityFor(backend, operation string) (Capability, bool) {
	c, ok := operations[backend][strings.ToLower(operation)]
	return c, ok
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, a ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, a...)}
}

// Check decides whether operation on backend looks permitted by res. It is
// advisory: an allow does not promise the real call succeeds, and a deny may
// rest on an inferred capability. A backend missing from res is allowed.
func Check(backend, operation string, res *Result) Decision {
	rec, ok := res.Get(backend)
	if !ok {
		return allow()
	}
	op := strings.ToLower(operation)
	capability, known := CapabilityFor(backend, op)

	if rec.ReadOnly && isWriteOperation(op, capability, known) {
		return deny("%s token is read-only; %s is not permitted", backend, operation)
	}

	for _, r := range rec.Restrictions {
		if restrictionMatches(r, op, capability, known) {
			return deny("%s", r.String())
		}
	}

	if len(rec.Permissions) > 0 && !permissionGranted(rec, op, capability, known) {
		return deny("insufficient permissions for %s on %s", operation, backend)
	}

	return allow()
}

func isWriteOperation(op string, c Capability, known bool) bool {
	if known {
		return c.IsWrite()
	}
	for _, v := range writeVerbs {
		if strings.Contains(op, v) {
			return true
		}
	}
	return false
}

func restrictionMatches(r Restriction, op string, c Capability, known bool) bool {
	if known {
		return r.Kind == Denied && r.Capability == c
	}
	return strings.Contains(strings.ToLower(r.String()), op)
}

func permissionGranted(rec *Record, op string, c Capability, known bool) bool {
	if known {
		return rec.Has(c)
	}
	dotted := strings.ReplaceAll(op, "_", ".")
	for _, p := range rec.Permissions {
		s := strings.ToLower(string(p))
		if strings.Contains(s, op) || strings.Contains(s, dotted) {
			return true
		}
	}
	return false
}

// Guidance renders rec as advisory text for a human.
func Guidance(backend string, rec *Record) string {
	if rec == nil {
		return fmt.Sprintf("%s: not configured; operations are not checked.", backend)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s credential\n", backend)

	switch {
	case rec.ReadOnly:
		b.WriteString("  mode: read-only, write operations will be refused\n")
	case len(rec.Permissions) == 0:
		b.WriteString("  mode: no capability confirmed\n")
	default:
		b.WriteString("  mode: read/write (write access is inferred, not verified)\n")
	}
	if rec.AccountLevel != "" {
		fmt.Fprintf(&b, "  account: %s\n", rec.AccountLevel)
	}
	if rec.ExpiresAt != nil {
		fmt.Fprintf(&b, "  expires: %s (%s)\n", rec.ExpiresAt.UTC().Format(time.RFC3339), humanize.Time(*rec.ExpiresAt))
	}

	if len(rec.Permissions) > 0 {
		b.WriteString("  permissions:\n")
		for _, p := range rec.Permissions {
			fmt.Fprintf(&b, "    - %s\n", p)
		}
	}
	if len(rec.Restrictions) > 0 {
		b.WriteString("  restrictions:\n")
		for _, r := range rec.Restrictions {
			fmt.Fprintf(&b, "    - %s\n", r)
		}
	}
	if len(rec.AllowedResources) > 0 {
		fmt.Fprintf(&b, "  reachable: %s\n", strings.Join(rec.AllowedResources, ", "))
	}
	if len(rec.ForbiddenResources) > 0 {
		fmt.Fprintf(&b, "  denied: %s\n", strings.Join(rec.ForbiddenResources, ", "))
	}
	if len(rec.RateLimits) > 0 {
		keys := make([]string, 0, len(rec.RateLimits))
		for k := range rec.RateLimits {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("  rate limits:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s: %v\n", k, rec.RateLimits[k])
		}
	}
	return b.String()
}
