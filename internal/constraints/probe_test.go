package constraints

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubRuntime struct {
	pingErr       error
	containersErr error
	imagesErr     error
}

func (s *stubRuntime) Ping(_ context.Context) error { return s.pingErr }

func (s *stubRuntime) SampleContainers(_ context.Context, _ int) (int, error) {
	return 1, s.containersErr
}

func (s *stubRuntime) SampleImages(_ context.Context, _ int) (int, error) {
	return 1, s.imagesErr
}

type stubVPS struct {
	status     string
	accountErr error
	dropletErr error
	domains    []string
	domainErr  error
	rate       *RateSample
}

func (s *stubVPS) AccountStatus(_ context.Context) (string, error) { return s.status, s.accountErr }

func (s *stubVPS) SampleDroplets(_ context.Context, _ int) (int, error) { return 0, s.dropletErr }

func (s *stubVPS) SampleDomains(_ context.Context, _ int) ([]string, error) {
	return s.domains, s.domainErr
}

type observingVPS struct {
	stubVPS
}

func (o *observingVPS) ObservedRate() (RateSample, bool) {
	if o.rate == nil {
		return RateSample{}, false
	}
	return *o.rate, true
}

type stubDNS struct {
	info       TokenInfo
	verifyErr  error
	zones      []ZoneRef
	zonesErr   error
	recordsErr error
	accountErr error

	recordZone string
}

func (s *stubDNS) VerifyToken(_ context.Context) (TokenInfo, error) { return s.info, s.verifyErr }

func (s *stubDNS) SampleZones(_ context.Context, _ int) ([]ZoneRef, error) {
	return s.zones, s.zonesErr
}

func (s *stubDNS) SampleDNSRecords(_ context.Context, zoneID string, _ int) (int, error) {
	s.recordZone = zoneID
	return 1, s.recordsErr
}

func (s *stubDNS) SampleAccounts(_ context.Context, _ int) (int, error) { return 1, s.accountErr }

// failingRuntime errors on every call.
func failingRuntime() *stubRuntime {
	err := errors.New("connection refused")
	return &stubRuntime{pingErr: err, containersErr: err, imagesErr: err}
}

func failingVPS() *stubVPS {
	err := errors.New("dial tcp: i/o timeout")
	return &stubVPS{accountErr: err, dropletErr: err, domainErr: err}
}

func failingDNS() *stubDNS {
	err := errors.New("network unreachable")
	return &stubDNS{verifyErr: err, zonesErr: err, recordsErr: err, accountErr: err}
}

func permStrings(r *Record) []string {
	out := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		out[i] = string(p)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestProbe_failingHandleYieldsOnlyRestrictions(t *testing.T) {
	ctx := context.Background()
	records := map[string]*Record{
		BackendDocker:       ProbeContainerRuntime(ctx, failingRuntime()),
		BackendDigitalOcean: ProbeVPS(ctx, failingVPS()),
		BackendCloudflare:   ProbeDNS(ctx, failingDNS()),
	}
	for name, rec := range records {
		if len(rec.Permissions) != 0 {
			t.Errorf("%s: permissions = %v, want none", name, rec.Permissions)
		}
		if len(rec.Restrictions) == 0 {
			t.Errorf("%s: expected restrictions", name)
		}
		if rec.ReadOnly {
			t.Errorf("%s: unexpected read_only", name)
		}
	}
}

func TestProbeContainerRuntime_allSucceed(t *testing.T) {
	rec := ProbeContainerRuntime(context.Background(), &stubRuntime{})

	want := []string{
		"docker.ping",
		"docker.containers.read",
		"docker.images.read",
		"docker.containers.write",
		"docker.images.write",
	}
	if got := permStrings(rec); !equalStrings(got, want) {
		t.Errorf("permissions = %v, want %v", got, want)
	}
	if len(rec.Restrictions) != 0 {
		t.Errorf("restrictions = %v, want none", rec.RestrictionStrings())
	}
	if len(rec.RateLimits) != 0 {
		t.Errorf("docker should carry no rate limits, got %v", rec.RateLimits)
	}
}

func TestProbeVPS_connectivityFailsReadSucceeds(t *testing.T) {
	rec := ProbeVPS(context.Background(), &stubVPS{
		accountErr: errors.New("503 service unavailable"),
	})

	restrictions := rec.RestrictionStrings()
	if len(restrictions) != 1 {
		t.Fatalf("restrictions = %v, want exactly one", restrictions)
	}
	if !strings.HasPrefix(restrictions[0], "account.unavailable: ") {
		t.Errorf("restriction = %q, want account.unavailable prefix", restrictions[0])
	}

	count := 0
	for _, p := range rec.Permissions {
		if p == DropletsRead {
			count++
		}
		if p.IsWrite() {
			t.Errorf("write permission %q recorded without connectivity", p)
		}
	}
	if count != 1 {
		t.Errorf("droplets.read appears %d times, want 1", count)
	}
	if rec.AccountLevel != "" {
		t.Errorf("account level = %q, want empty", rec.AccountLevel)
	}
}

func TestProbeVPS_readOnlyToken(t *testing.T) {
	rec := ProbeVPS(context.Background(), &stubVPS{
		status:    "active",
		domainErr: errors.New("GET https://api.digitalocean.com/v2/domains: 403 You are not authorized"),
	})

	if !rec.ReadOnly {
		t.Fatal("expected read_only")
	}
	var sawToken, sawWrite bool
	for _, r := range rec.RestrictionStrings() {
		if strings.Contains(r, "read_only") {
			sawToken = true
		}
		if strings.HasPrefix(r, "droplets.write_denied") {
			sawWrite = true
		}
	}
	if !sawToken || !sawWrite {
		t.Errorf("restrictions = %v, want token.read_only and droplets.write_denied", rec.RestrictionStrings())
	}
	if rec.Has(DropletsWrite) {
		t.Error("read-only record must not grant droplets.write")
	}
	if rec.AccountLevel != "active" {
		t.Errorf("account level = %q, want active", rec.AccountLevel)
	}
}

func TestProbeVPS_domainsCappedAndRates(t *testing.T) {
	reset := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := &observingVPS{stubVPS{
		status:  "active",
		domains: []string{"a.io", "b.io", "c.io", "d.io", "e.io", "f.io", "g.io"},
		rate:    &RateSample{Limit: 5000, Remaining: 4990, Reset: reset},
	}}
	rec := ProbeVPS(context.Background(), h)

	if len(rec.AllowedResources) != sampleSize {
		t.Errorf("allowed resources = %v, want %d entries", rec.AllowedResources, sampleSize)
	}
	if rec.RateLimits["requests_per_hour"] != 5000 {
		t.Errorf("requests_per_hour = %v", rec.RateLimits["requests_per_hour"])
	}
	if rec.RateLimits["observed_remaining"] != 4990 {
		t.Errorf("observed_remaining = %v", rec.RateLimits["observed_remaining"])
	}
	if rec.RateLimits["observed_reset"] != "2026-01-02T03:04:05Z" {
		t.Errorf("observed_reset = %v", rec.RateLimits["observed_reset"])
	}
}

func TestProbeDNS_success(t *testing.T) {
	exp := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	h := &stubDNS{
		info:  TokenInfo{Status: "active", ExpiresOn: &exp},
		zones: []ZoneRef{{ID: "z1", Name: "example.com"}, {ID: "z2", Name: "example.org"}},
	}
	rec := ProbeDNS(context.Background(), h)

	want := []string{
		"token.verified", "token.active", "zones.read", "dns.read", "accounts.read",
		"zones.write", "dns.write", "cache.purge",
	}
	if got := permStrings(rec); !equalStrings(got, want) {
		t.Errorf("permissions = %v, want %v", got, want)
	}
	if h.recordZone != "z1" {
		t.Errorf("records sampled on zone %q, want z1", h.recordZone)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(exp) {
		t.Errorf("expires_at = %v, want %v", rec.ExpiresAt, exp)
	}
	if !equalStrings(rec.AllowedResources, []string{"example.com", "example.org"}) {
		t.Errorf("allowed resources = %v", rec.AllowedResources)
	}
	if rec.RateLimits["global_limit"] != "1200/5min" {
		t.Errorf("global_limit = %v", rec.RateLimits["global_limit"])
	}
}

func TestProbeDNS_inactiveTokenAndForbiddenZone(t *testing.T) {
	h := &stubDNS{
		info:       TokenInfo{Status: "disabled"},
		zones:      []ZoneRef{{ID: "z1", Name: "example.com"}},
		recordsErr: errors.New("Authentication error (10000)"),
	}
	rec := ProbeDNS(context.Background(), h)

	rs := rec.RestrictionStrings()
	if len(rs) < 2 || rs[0] != "token.status: disabled" || !strings.HasPrefix(rs[1], "dns.read_denied: ") {
		t.Errorf("restrictions = %v", rs)
	}
	if !equalStrings(rec.ForbiddenResources, []string{"example.com"}) {
		t.Errorf("forbidden resources = %v", rec.ForbiddenResources)
	}
	if rec.ReadOnly {
		t.Error("authentication errors are not a read-only signal")
	}
}

func TestProbeDNS_zonesDeniedWithoutReadOnlySignalKeepsWriteGrants(t *testing.T) {
	h := &stubDNS{
		info:     TokenInfo{Status: "active"},
		zonesErr: errors.New("HTTP status 500: internal error"),
	}
	rec := ProbeDNS(context.Background(), h)

	rs := rec.RestrictionStrings()
	if len(rs) != 1 || !strings.HasPrefix(rs[0], "zones.read_denied: ") {
		t.Errorf("restrictions = %v", rs)
	}
	if rec.ReadOnly || rec.Has(ZonesRead) || rec.Has(DNSRead) {
		t.Errorf("record = %+v", rec)
	}
	if h.recordZone != "" {
		t.Errorf("records sampled on %q without a zone sample", h.recordZone)
	}
	// Connectivity passed and nothing signalled read-only, so the advisory
	// write grants stand even though the zone read failed.
	for _, c := range []Capability{ZonesWrite, DNSWrite, CachePurge} {
		if !rec.Has(c) {
			t.Errorf("missing %s; permissions = %v", c, permStrings(rec))
		}
	}
	if len(rec.AllowedResources) != 0 {
		t.Errorf("allowed resources = %v", rec.AllowedResources)
	}
}

func TestProbeDNS_noZonesSkipsRecords(t *testing.T) {
	h := &stubDNS{info: TokenInfo{Status: "active"}}
	rec := ProbeDNS(context.Background(), h)

	if rec.Has(DNSRead) {
		t.Error("dns.read must not be recorded without a zone to sample")
	}
	if h.recordZone != "" {
		t.Errorf("records sampled on %q", h.recordZone)
	}
}

func TestRecord_readOnlyImpliesRestriction(t *testing.T) {
	handles := []*Record{
		ProbeContainerRuntime(context.Background(), &stubRuntime{imagesErr: errors.New("permission denied: forbidden")}),
		ProbeVPS(context.Background(), &stubVPS{dropletErr: errors.New("read-only token")}),
		ProbeDNS(context.Background(), &stubDNS{accountErr: errors.New("HTTP status 403")}),
	}
	for i, rec := range handles {
		if !rec.ReadOnly {
			t.Errorf("record %d: expected read_only", i)
			continue
		}
		found := false
		for _, r := range rec.RestrictionStrings() {
			if strings.Contains(r, "read_only") {
				found = true
			}
		}
		if !found {
			t.Errorf("record %d: read_only without a read_only restriction: %v", i, rec.RestrictionStrings())
		}
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(newRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"permissions", "restrictions", "scopes", "allowed_resources", "forbidden_resources"} {
		if _, ok := got[key].([]any); !ok {
			t.Errorf("%s = %#v, want empty list", key, got[key])
		}
	}
	if got["expires_at"] != nil || got["account_level"] != nil {
		t.Errorf("expected null expires_at and account_level, got %v / %v", got["expires_at"], got["account_level"])
	}
	if got["read_only"] != false {
		t.Errorf("read_only = %v", got["read_only"])
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	exp := time.Now()
	orig := newRecord()
	orig.grant(DropletsRead)
	orig.ExpiresAt = &exp
	orig.RateLimits["x"] = 1

	c := orig.Clone()
	c.grant(DropletsWrite)
	c.RateLimits["x"] = 2
	*c.ExpiresAt = exp.Add(time.Hour)

	if len(orig.Permissions) != 1 || orig.RateLimits["x"] != 1 || !orig.ExpiresAt.Equal(exp) {
		t.Error("mutating the clone changed the original")
	}
}
