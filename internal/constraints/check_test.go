package constraints

import (
	"strings"
	"testing"
	"time"
)

func resultWith(backend string, rec *Record) *Result {
	return NewResult(Entry{Backend: backend, Record: rec})
}

func TestCheck(t *testing.T) {
	readOnly := newRecord()
	readOnly.ReadOnly = true
	readOnly.grant(DropletsRead)
	readOnly.restrict(DropletsWrite, Denied, "read-only token")
	readOnly.restrict("token", ReadOnly, "")

	dnsDenied := newRecord()
	dnsDenied.grant(TokenVerified)
	dnsDenied.grant(ZonesRead)
	dnsDenied.restrict(DNSRead, Denied, "Authentication error (10000)")

	partial := newRecord()
	partial.grant(DockerContainersRead)

	legacy := newRecord()
	legacy.grant("snapshots.read")
	legacy.restrict("volumes.attach", Denied, "scope missing")

	tests := []struct {
		name      string
		backend   string
		operation string
		res       *Result
		allowed   bool
		reason    string
	}{
		{"absent backend allows", BackendDigitalOcean, "delete_droplet", NewResult(), true, ""},
		{"nil result allows", BackendDocker, "run_container", nil, true, ""},
		{"empty record allows", BackendDigitalOcean, "delete_droplet", resultWith(BackendDigitalOcean, newRecord()), true, ""},
		{"read-only denies delete", BackendDigitalOcean, "delete_droplet", resultWith(BackendDigitalOcean, readOnly), false, "read-only"},
		{"read-only allows reads", BackendDigitalOcean, "list_droplets", resultWith(BackendDigitalOcean, readOnly), true, ""},
		{"read-only denies unknown write verb", BackendDigitalOcean, "Restart_Droplet", resultWith(BackendDigitalOcean, readOnly), false, "read-only"},
		{"restriction cited verbatim", BackendCloudflare, "list_dns_records", resultWith(BackendCloudflare, dnsDenied), false, "dns.read_denied: Authentication error (10000)"},
		{"missing permission denies", BackendCloudflare, "purge_cache", resultWith(BackendCloudflare, dnsDenied), false, "insufficient permissions"},
		{"granted permission allows", BackendDocker, "get_logs", resultWith(BackendDocker, partial), true, ""},
		{"ungranted write denies", BackendDocker, "run_container", resultWith(BackendDocker, partial), false, "insufficient permissions"},
		{"unknown op substring restriction", BackendDigitalOcean, "attach", resultWith(BackendDigitalOcean, legacy), false, "volumes.attach_denied: scope missing"},
		{"unknown op dotted permission", BackendDigitalOcean, "snapshots_read", resultWith(BackendDigitalOcean, legacy), true, ""},
		{"unknown op without permission", BackendDigitalOcean, "list_vpcs", resultWith(BackendDigitalOcean, legacy), false, "insufficient permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Check(tt.backend, tt.operation, tt.res)
			if d.Allowed != tt.allowed {
				t.Fatalf("allowed = %v, want %v (reason %q)", d.Allowed, tt.allowed, d.Reason)
			}
			if tt.reason != "" && !strings.Contains(d.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestCapability_IsWrite(t *testing.T) {
	for _, c := range []Capability{DockerContainersWrite, DropletsWrite, DomainsWrite, DNSWrite, CachePurge} {
		if !c.IsWrite() {
			t.Errorf("%s should be a write capability", c)
		}
	}
	for _, c := range []Capability{DockerPing, DropletsRead, ZonesRead, TokenActive} {
		if c.IsWrite() {
			t.Errorf("%s should not be a write capability", c)
		}
	}
}

func TestRestriction_String(t *testing.T) {
	tests := []struct {
		r    Restriction
		want string
	}{
		{Restriction{DockerPing, Unavailable, "no socket"}, "docker.unavailable: no socket"},
		{Restriction{AccountRead, Unavailable, "timeout"}, "account.unavailable: timeout"},
		{Restriction{TokenVerified, Unavailable, "bad"}, "token.unavailable: bad"},
		{Restriction{ZonesRead, Denied, "nope"}, "zones.read_denied: nope"},
		{Restriction{"token", ReadOnly, ""}, "token.read_only"},
		{Restriction{TokenVerified, TokenStatus, "expired"}, "token.status: expired"},
		{Restriction{"", DetectionFailed, "boom"}, "detection_failed: boom"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestGuidance(t *testing.T) {
	exp := time.Now().Add(48 * time.Hour)
	rec := newRecord()
	rec.ReadOnly = true
	rec.ExpiresAt = &exp
	rec.AccountLevel = "active"
	rec.grant(ZonesRead)
	rec.restrict("token", ReadOnly, "")
	rec.AllowedResources = []string{"example.com"}

	text := Guidance(BackendCloudflare, rec)
	for _, want := range []string{"read-only", "account: active", "zones.read", "token.read_only", "example.com", "from now"} {
		if !strings.Contains(text, want) {
			t.Errorf("guidance missing %q:\n%s", want, text)
		}
	}

	if got := Guidance(BackendDocker, nil); !strings.Contains(got, "not configured") {
		t.Errorf("nil record guidance = %q", got)
	}
}
