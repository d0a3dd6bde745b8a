package mcpbridge

import (
	"context"
	"errors"
	"sync"

	"github.com/cargoshipper/cargoshipper/internal/cloudflare"
	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/digitalocean"
	"github.com/cargoshipper/cargoshipper/internal/docker"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubDocker struct {
	mu      sync.Mutex
	calls   []string
	lastRun docker.RunRequest
	stopErr error
}

func (s *stubDocker) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubDocker) called(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (s *stubDocker) Run(_ context.Context, req docker.RunRequest) (*docker.RunResult, error) {
	s.record("run")
	s.lastRun = req
	return &docker.RunResult{Container: docker.ContainerView{ID: "abc123", Name: req.Name, Image: req.Image, Ports: []string{}}}, nil
}

func (s *stubDocker) ListContainers(_ context.Context, _ bool, _ map[string]string) ([]docker.ContainerView, error) {
	s.record("list")
	return []docker.ContainerView{{ID: "abc123", Name: "web", Image: "nginx", Status: "Up 2 hours", Ports: []string{}}}, nil
}

func (s *stubDocker) Inspect(_ context.Context, id string) (*docker.ContainerView, error) {
	s.record("inspect")
	return &docker.ContainerView{ID: id, Name: "web", Ports: []string{}}, nil
}

func (s *stubDocker) Stop(_ context.Context, _ string, _ int) error {
	s.record("stop")
	return s.stopErr
}

func (s *stubDocker) Start(_ context.Context, _ string) error {
	s.record("start")
	return nil
}

func (s *stubDocker) Remove(_ context.Context, _ string, _ bool) error {
	s.record("remove")
	return nil
}

func (s *stubDocker) Logs(_ context.Context, id string, _ int, _ bool) (string, error) {
	s.record("logs")
	return "hello from " + id + "\n", nil
}

func (s *stubDocker) ListImages(_ context.Context, _ bool) ([]docker.ImageView, error) {
	s.record("images")
	return []docker.ImageView{{ID: "sha", Tags: []string{"nginx:latest"}}}, nil
}

func (s *stubDocker) Pull(_ context.Context, ref string) (*docker.PullResult, error) {
	s.record("pull")
	return &docker.PullResult{Image: ref}, nil
}

func (s *stubDocker) Info(_ context.Context) (*docker.SystemView, error) {
	s.record("info")
	return &docker.SystemView{ServerVersion: "28.2.2"}, nil
}

type stubDO struct {
	lastRecord digitalocean.CreateRecordRequest
	deleted    int
}

func (s *stubDO) ListDroplets(_ context.Context, page, perPage int, _ string) (*digitalocean.DropletPage, error) {
	return &digitalocean.DropletPage{Droplets: []digitalocean.Droplet{}, Page: page, PerPage: perPage}, nil
}

func (s *stubDO) GetDroplet(_ context.Context, id int) (*digitalocean.Droplet, error) {
	if id == 404 {
		return nil, errors.New("not found")
	}
	return &digitalocean.Droplet{ID: id, Name: "web-1", Tags: []string{}}, nil
}

func (s *stubDO) CreateDroplet(_ context.Context, req digitalocean.CreateDropletRequest) (*digitalocean.Droplet, error) {
	return &digitalocean.Droplet{ID: 1, Name: req.Name, Tags: req.Tags}, nil
}

func (s *stubDO) DeleteDroplet(_ context.Context, id int) error {
	s.deleted = id
	return nil
}

func (s *stubDO) DropletAction(_ context.Context, _ int, req digitalocean.ActionRequest) (*digitalocean.Action, error) {
	return &digitalocean.Action{ID: 9, Type: req.Type, Status: "in-progress"}, nil
}

func (s *stubDO) ListImages(_ context.Context, _ string, _ bool, _, _ int) ([]digitalocean.Image, error) {
	return []digitalocean.Image{}, nil
}

func (s *stubDO) ListDomains(_ context.Context) ([]digitalocean.Domain, error) {
	return []digitalocean.Domain{{Name: "example.com", TTL: 1800}}, nil
}

func (s *stubDO) ListRecords(_ context.Context, _, _ string) ([]digitalocean.Record, error) {
	return []digitalocean.Record{{ID: 1, Type: "A", Name: "www", Data: "203.0.113.10", TTL: 3600}}, nil
}

func (s *stubDO) CreateRecord(_ context.Context, _ string, req digitalocean.CreateRecordRequest) (*digitalocean.Record, error) {
	s.lastRecord = req
	return &digitalocean.Record{ID: 2, Type: req.Type, Name: req.Name, Data: req.Data, TTL: req.TTL}, nil
}

func (s *stubDO) DeleteRecord(_ context.Context, _ string, _ int) error { return nil }

func (s *stubDO) GetAccount(_ context.Context) (*digitalocean.Account, error) {
	return &digitalocean.Account{Status: "active", DropletLimit: 25}, nil
}

type stubCF struct {
	lastCreate cloudflare.RecordRequest
	created    bool
}

func (s *stubCF) ListZones(_ context.Context, page, perPage int, _, _ string) (*cloudflare.ZonePage, error) {
	return &cloudflare.ZonePage{Zones: []cloudflare.Zone{{ID: "z1", Name: "example.com"}}, Page: page, PerPage: perPage, Total: 1}, nil
}

func (s *stubCF) GetZone(_ context.Context, id string) (*cloudflare.Zone, error) {
	return &cloudflare.Zone{ID: id, Name: "example.com"}, nil
}

func (s *stubCF) CreateZone(_ context.Context, req cloudflare.CreateZoneRequest) (*cloudflare.Zone, error) {
	return &cloudflare.Zone{ID: "z2", Name: req.Name, Type: req.ZoneType}, nil
}

func (s *stubCF) DeleteZone(_ context.Context, _ string) error { return nil }

func (s *stubCF) ListDNSRecords(_ context.Context, zoneID string, _ cloudflare.RecordFilter) ([]cloudflare.Record, error) {
	return []cloudflare.Record{{ID: "r1", Type: "A", Name: "www.example.com", ZoneID: zoneID}}, nil
}

func (s *stubCF) CreateDNSRecord(_ context.Context, _ string, req cloudflare.RecordRequest) (*cloudflare.Record, error) {
	s.created = true
	s.lastCreate = req
	return &cloudflare.Record{ID: "r2", Type: req.Type, Name: req.Name, Content: req.Content, TTL: req.TTL}, nil
}

func (s *stubCF) UpdateDNSRecord(_ context.Context, _, recordID string, req cloudflare.RecordRequest) (*cloudflare.Record, error) {
	return &cloudflare.Record{ID: recordID, Content: req.Content}, nil
}

func (s *stubCF) DeleteDNSRecord(_ context.Context, _, _ string) error { return nil }

func (s *stubCF) PurgeCache(_ context.Context, _ string, _ cloudflare.PurgeRequest) (string, error) {
	return "purge-1", nil
}

func (s *stubCF) ZoneSettings(_ context.Context, _ string) ([]cloudflare.Setting, error) {
	return []cloudflare.Setting{{ID: "ssl", Value: "full", Editable: true}}, nil
}

func (s *stubCF) UpdateZoneSetting(_ context.Context, _, setting string, value any) (*cloudflare.Setting, error) {
	return &cloudflare.Setting{ID: setting, Value: value, Editable: true}, nil
}

func (s *stubCF) ListAccounts(_ context.Context) ([]cloudflare.Account, error) {
	return []cloudflare.Account{{ID: "acc-1", Name: "Ops"}}, nil
}

// stubInspector returns a fixed result and counts passes.
type stubInspector struct {
	mu     sync.Mutex
	result *constraints.Result
	passes int
}

func (s *stubInspector) Inspect(_ context.Context, _ constraints.Backends) *constraints.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	return s.result
}

// readOnlyDocker is a docker record whose token can only read.
func readOnlyDocker() *constraints.Result {
	rec := &constraints.Record{
		Permissions: []constraints.Capability{constraints.DockerPing, constraints.DockerContainersRead, constraints.DockerImagesRead},
		Restrictions: []constraints.Restriction{
			{Kind: constraints.ReadOnly},
		},
		RateLimits: map[string]any{},
		ReadOnly:   true,
	}
	return constraints.NewResult(constraints.Entry{Backend: constraints.BackendDocker, Record: rec})
}
