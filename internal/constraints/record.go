// Package constraints probes backend credentials with low-risk calls and
// normalizes what they can do into a Record per backend.
//
// Everything a Record says is advisory. Write capabilities are inferred, not
// verified, so a Check that allows an operation does not guarantee the real
// call succeeds, and a deny may be a false positive.
package constraints

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Capability identifies one thing a credential may be able to do.
type Capability string

// Docker capabilities.
const (
	DockerPing            Capability = "docker.ping"
	DockerContainersRead  Capability = "docker.containers.read"
	DockerImagesRead      Capability = "docker.images.read"
	DockerContainersWrite Capability = "docker.containers.write"
	DockerImagesWrite     Capability = "docker.images.write"
)

// DigitalOcean capabilities.
const (
	AccountRead   Capability = "account.read"
	DropletsRead  Capability = "droplets.read"
	DomainsRead   Capability = "domains.read"
	DropletsWrite Capability = "droplets.write"
	DomainsWrite  Capability = "domains.write"
)

// Cloudflare capabilities.
const (
	TokenVerified Capability = "token.verified"
	TokenActive   Capability = "token.active"
	ZonesRead     Capability = "zones.read"
	DNSRead       Capability = "dns.read"
	AccountsRead  Capability = "accounts.read"
	ZonesWrite    Capability = "zones.write"
	DNSWrite      Capability = "dns.write"
	CachePurge    Capability = "cache.purge"
)

// writeCapabilities lists, per backend, the capabilities that mutate state.
var writeCapabilities = map[string][]Capability{
	BackendDocker:       {DockerContainersWrite, DockerImagesWrite},
	BackendDigitalOcean: {DropletsWrite, DomainsWrite},
	BackendCloudflare:   {ZonesWrite, DNSWrite, CachePurge},
}

// IsWrite reports whether c mutates backend state.
func (c Capability) IsWrite() bool {
	for _, caps := range writeCapabilities {
		for _, w := range caps {
			if w == c {
				return true
			}
		}
	}
	return false
}

// base is the prefix before the last dot, "docker.ping" -> "docker".
func (c Capability) base() string {
	s := string(c)
	if i := strings.LastIndex(s, "."); i > 0 {
		return s[:i]
	}
	return s
}

// RestrictionKind classifies why a capability is missing.
type RestrictionKind int

const (
	// Unavailable means the connectivity check failed.
	Unavailable RestrictionKind = iota
	// Denied means the backend refused the call.
	Denied
	// ReadOnly marks the token itself as read-only.
	ReadOnly
	// TokenStatus carries a non-active token status.
	TokenStatus
	// DetectionFailed replaces a whole record when its probe crashed.
	DetectionFailed
)

// Restriction is one failure observed while probing.
type Restriction struct {
	Capability Capability
	Kind       RestrictionKind
	Message    string
}

// String renders the restriction in its wire form.
func (r Restriction) String() string {
	switch r.Kind {
	case Unavailable:
		return fmt.Sprintf("%s.unavailable: %s", r.Capability.base(), r.Message)
	case Denied:
		return fmt.Sprintf("%s_denied: %s", r.Capability, r.Message)
	case ReadOnly:
		return "token.read_only"
	case TokenStatus:
		return "token.status: " + r.Message
	case DetectionFailed:
		return "detection_failed: " + r.Message
	}
	return r.Message
}

// Record is everything learned about one backend credential during a single
// probing pass. A Record handed out by a probe is never mutated again; use
// Clone before changing one.
type Record struct {
	Permissions        []Capability
	Restrictions       []Restriction
	Scopes             []string
	RateLimits         map[string]any
	ExpiresAt          *time.Time
	ReadOnly           bool
	AllowedResources   []string
	ForbiddenResources []string
	AccountLevel       string
}

func newRecord() *Record {
	return &Record{RateLimits: map[string]any{}}
}

func (r *Record) grant(c Capability) {
	r.Permissions = append(r.Permissions, c)
}

func (r *Record) restrict(c Capability, kind RestrictionKind, msg string) {
	r.Restrictions = append(r.Restrictions, Restriction{Capability: c, Kind: kind, Message: msg})
}

// Has reports whether c was granted.
func (r *Record) Has(c Capability) bool {
	for _, p := range r.Permissions {
		if p == c {
			return true
		}
	}
	return false
}

// RestrictionStrings returns the wire form of every restriction.
func (r *Record) RestrictionStrings() []string {
	out := make([]string, len(r.Restrictions))
	for i, res := range r.Restrictions {
		out[i] = res.String()
	}
	return out
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Permissions:        append([]Capability(nil), r.Permissions...),
		Restrictions:       append([]Restriction(nil), r.Restrictions...),
		Scopes:             append([]string(nil), r.Scopes...),
		RateLimits:         make(map[string]any, len(r.RateLimits)),
		ReadOnly:           r.ReadOnly,
		AllowedResources:   append([]string(nil), r.AllowedResources...),
		ForbiddenResources: append([]string(nil), r.ForbiddenResources...),
		AccountLevel:       r.AccountLevel,
	}
	for k, v := range r.RateLimits {
		c.RateLimits[k] = v
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

type recordJSON struct {
	Permissions        []string       `json:"permissions"`
	Restrictions       []string       `json:"restrictions"`
	Scopes             []string       `json:"scopes"`
	RateLimits         map[string]any `json:"rate_limits"`
	ExpiresAt          *string        `json:"expires_at"`
	ReadOnly           bool           `json:"read_only"`
	AllowedResources   []string       `json:"allowed_resources"`
	ForbiddenResources []string       `json:"forbidden_resources"`
	AccountLevel       *string        `json:"account_level"`
}

// MarshalJSON encodes the record with empty lists as [] and absent optional
// values as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Permissions:        make([]string, len(r.Permissions)),
		Restrictions:       r.RestrictionStrings(),
		Scopes:             nonNil(r.Scopes),
		RateLimits:         r.RateLimits,
		ReadOnly:           r.ReadOnly,
		AllowedResources:   nonNil(r.AllowedResources),
		ForbiddenResources: nonNil(r.ForbiddenResources),
	}
	for i, p := range r.Permissions {
		out.Permissions[i] = string(p)
	}
	if out.RateLimits == nil {
		out.RateLimits = map[string]any{}
	}
	if r.ExpiresAt != nil {
		s := r.ExpiresAt.UTC().Format(time.RFC3339)
		out.ExpiresAt = &s
	}
	if r.AccountLevel != "" {
		lvl := r.AccountLevel
		out.AccountLevel = &lvl
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
