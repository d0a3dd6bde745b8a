package constraints

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// Backend names used as keys in a Result.
const (
	BackendDocker       = "docker"
	BackendDigitalOcean = "digitalocean"
	BackendCloudflare   = "cloudflare"
)

// sampleSize caps how many resource names a probe copies into a record.
const sampleSize = 5

// ContainerRuntime is the subset of a container engine client the prober uses.
type ContainerRuntime interface {
	Ping(ctx context.Context) error
	SampleContainers(ctx context.Context, limit int) (int, error)
	SampleImages(ctx context.Context, limit int) (int, error)
}

// VPSProvider is the subset of a VPS API client the prober uses.
type VPSProvider interface {
	AccountStatus(ctx context.Context) (string, error)
	SampleDroplets(ctx context.Context, limit int) (int, error)
	SampleDomains(ctx context.Context, limit int) ([]string, error)
}

// TokenInfo is what a DNS provider reports about its own token.
type TokenInfo struct {
	Status    string
	ExpiresOn *time.Time
}

// ZoneRef names one DNS zone.
type ZoneRef struct {
	ID   string
	Name string
}

// DNSProvider is the subset of a DNS/CDN API client the prober uses.
type DNSProvider interface {
	VerifyToken(ctx context.Context) (TokenInfo, error)
	SampleZones(ctx context.Context, limit int) ([]ZoneRef, error)
	SampleDNSRecords(ctx context.Context, zoneID string, limit int) (int, error)
	SampleAccounts(ctx context.Context, limit int) (int, error)
}

// RateSample is a rate-limit reading taken from response headers.
type RateSample struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateObserver is implemented by handles that remember the last rate-limit
// headers they saw.
type RateObserver interface {
	ObservedRate() (RateSample, bool)
}

// prober accumulates one record and the errors seen while building it.
type prober struct {
	rec  *Record
	errs []error
}

func newProber() *prober {
	return &prober{rec: newRecord()}
}

func (p *prober) connect(c Capability, err error) bool {
	if err != nil {
		p.errs = append(p.errs, err)
		p.rec.restrict(c, Unavailable, err.Error())
		return false
	}
	p.rec.grant(c)
	return true
}

func (p *prober) read(c Capability, err error) bool {
	if err != nil {
		p.errs = append(p.errs, err)
		p.rec.restrict(c, Denied, err.Error())
		return false
	}
	p.rec.grant(c)
	return true
}

// inferWrites records the write capabilities of backend without calling
// anything. A read-only signal on an earlier error marks the token read-only.
// Otherwise the writes are granted optimistically, but only when the
// connectivity check passed; this grant is unverified.
func (p *prober) inferWrites(backend string, connected bool) {
	caps := writeCapabilities[backend]
	if lo.ContainsBy(p.errs, isReadOnlySignal) {
		p.rec.ReadOnly = true
		for _, c := range caps {
			p.rec.restrict(c, Denied, "read-only token")
		}
		p.rec.restrict("token", ReadOnly, "")
		return
	}
	if !connected {
		return
	}
	for _, c := range caps {
		p.rec.grant(c)
	}
}

// ProbeContainerRuntime probes a container engine. It never fails; every
// error becomes a restriction.
func ProbeContainerRuntime(ctx context.Context, h ContainerRuntime) *Record {
	p := newProber()

	connected := p.connect(DockerPing, h.Ping(ctx))

	_, err := h.SampleContainers(ctx, 1)
	p.read(DockerContainersRead, err)

	_, err = h.SampleImages(ctx, 1)
	p.read(DockerImagesRead, err)

	p.inferWrites(BackendDocker, connected)
	return p.rec
}

// ProbeVPS probes a VPS provider account.
func ProbeVPS(ctx context.Context, h VPSProvider) *Record {
	p := newProber()

	status, err := h.AccountStatus(ctx)
	connected := p.connect(AccountRead, err)
	if connected {
		p.rec.AccountLevel = status
	}

	_, err = h.SampleDroplets(ctx, 1)
	p.read(DropletsRead, err)

	domains, err := h.SampleDomains(ctx, sampleSize)
	if p.read(DomainsRead, err) {
		p.rec.AllowedResources = append(p.rec.AllowedResources, lo.Slice(domains, 0, sampleSize)...)
	}

	p.inferWrites(BackendDigitalOcean, connected)

	p.rec.RateLimits["requests_per_hour"] = 5000
	p.rec.RateLimits["requests_per_minute"] = 250
	p.rec.RateLimits["note"] = "documented defaults; observed values are added when response headers were seen"
	if obs, ok := h.(RateObserver); ok {
		if rs, ok := obs.ObservedRate(); ok {
			p.rec.RateLimits["observed_limit"] = rs.Limit
			p.rec.RateLimits["observed_remaining"] = rs.Remaining
			if !rs.Reset.IsZero() {
				p.rec.RateLimits["observed_reset"] = rs.Reset.UTC().Format(time.RFC3339)
			}
		}
	}
	return p.rec
}

// ProbeDNS probes a DNS/CDN provider token.
func ProbeDNS(ctx context.Context, h DNSProvider) *Record {
	p := newProber()

	info, err := h.VerifyToken(ctx)
	connected := p.connect(TokenVerified, err)
	if connected {
		if info.Status == "" || info.Status == "active" {
			p.rec.grant(TokenActive)
		} else {
			p.rec.restrict(TokenVerified, TokenStatus, info.Status)
		}
		if info.ExpiresOn != nil && !info.ExpiresOn.IsZero() {
			t := info.ExpiresOn.UTC()
			p.rec.ExpiresAt = &t
		}
	}

	zones, err := h.SampleZones(ctx, sampleSize)
	if p.read(ZonesRead, err) {
		zones = lo.Slice(zones, 0, sampleSize)
		p.rec.AllowedResources = append(p.rec.AllowedResources,
			lo.Map(zones, func(z ZoneRef, _ int) string { return z.Name })...)
	} else {
		zones = nil
	}

	if len(zones) > 0 {
		first := zones[0]
		_, err = h.SampleDNSRecords(ctx, first.ID, 1)
		if !p.read(DNSRead, err) {
			p.rec.ForbiddenResources = append(p.rec.ForbiddenResources, first.Name)
		}
	}

	_, err = h.SampleAccounts(ctx, 1)
	p.read(AccountsRead, err)

	p.inferWrites(BackendCloudflare, connected)

	p.rec.RateLimits["global_limit"] = "1200/5min"
	p.rec.RateLimits["note"] = "per-endpoint limits vary; the global limit applies per user"
	return p.rec
}
