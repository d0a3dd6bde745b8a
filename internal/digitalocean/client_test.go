package digitalocean

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type fakeAPI struct {
	dropletsStatus int
	lastAction     map[string]any
	lastAuth       string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastAuth = r.Header.Get("Authorization")
	w.Header().Set("RateLimit-Limit", "5000")
	w.Header().Set("RateLimit-Remaining", "4321")
	w.Header().Set("RateLimit-Reset", "1767225600")

	switch {
	case r.URL.Path == "/v2/account":
		writeJSON(w, http.StatusOK, map[string]any{"account": map[string]any{
			"uuid": "acct-1", "email": "ops@example.com", "status": "active", "droplet_limit": 25,
			"team": map[string]any{"uuid": "t1", "name": "Platform"},
		}})
	case r.URL.Path == "/v2/droplets" && r.Method == http.MethodGet:
		if f.dropletsStatus != 0 {
			writeJSON(w, f.dropletsStatus, map[string]any{"id": "forbidden", "message": "You are not authorized to perform this operation"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"droplets": []map[string]any{{
				"id": 123, "name": "web-1", "status": "active", "memory": 1024, "vcpus": 1, "disk": 25,
				"size_slug": "s-1vcpu-1gb",
				"region":    map[string]any{"slug": "nyc3", "name": "New York 3"},
				"image":     map[string]any{"id": 7, "slug": "ubuntu-24-04-x64", "distribution": "Ubuntu"},
				"networks": map[string]any{"v4": []map[string]any{
					{"ip_address": "203.0.113.10", "type": "public"},
					{"ip_address": "10.0.0.5", "type": "private"},
				}},
				"tags": []string{"web"},
			}},
			"links": map[string]any{},
			"meta":  map[string]any{"total": 1},
		})
	case r.URL.Path == "/v2/domains":
		writeJSON(w, http.StatusOK, map[string]any{
			"domains": []map[string]any{{"name": "example.com", "ttl": 1800}, {"name": "example.org", "ttl": 1800}},
			"links":   map[string]any{},
			"meta":    map[string]any{"total": 2},
		})
	case r.URL.Path == "/v2/droplets/123/actions" && r.Method == http.MethodPost:
		_ = json.NewDecoder(r.Body).Decode(&f.lastAction)
		writeJSON(w, http.StatusCreated, map[string]any{"action": map[string]any{
			"id": 99, "status": "in-progress", "type": f.lastAction["type"],
			"resource_id": 123, "resource_type": "droplet", "region_slug": "nyc3",
		}})
	case r.URL.Path == "/v2/domains/example.com/records" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = 555
		writeJSON(w, http.StatusCreated, map[string]any{"domain_record": body})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"id": "not_found", "message": "The resource you requested could not be found."})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{Token: " 'dop_v1_test' ", APIURL: srv.URL + "/"}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestNew_rejectsEmptyToken(t *testing.T) {
	if _, err := New(context.Background(), Config{Token: "  "}, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestListDroplets(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	page, err := c.ListDroplets(context.Background(), 1, 20, "")
	if err != nil {
		t.Fatalf("ListDroplets: %v", err)
	}
	if page.Total != 1 || len(page.Droplets) != 1 {
		t.Fatalf("page = %+v", page)
	}
	d := page.Droplets[0]
	if d.Name != "web-1" || d.Region != "nyc3" || d.Image != "ubuntu-24-04-x64" || d.PublicIPv4 != "203.0.113.10" || d.PrivateIPv4 != "10.0.0.5" {
		t.Errorf("droplet = %+v", d)
	}
	if api.lastAuth != "Bearer dop_v1_test" {
		t.Errorf("authorization = %q", api.lastAuth)
	}
}

func TestGetAccount(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	acct, err := c.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Status != "active" || acct.Team != "Platform" || acct.DropletLimit != 25 {
		t.Errorf("account = %+v", acct)
	}
}

func TestDropletAction(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	a, err := c.DropletAction(context.Background(), 123, ActionRequest{Type: "resize", Size: "s-2vcpu-4gb", ResizeDisk: true})
	if err != nil {
		t.Fatalf("DropletAction: %v", err)
	}
	if a.ID != 99 || a.Type != "resize" || a.Region != "nyc3" {
		t.Errorf("action = %+v", a)
	}
	if api.lastAction["size"] != "s-2vcpu-4gb" || api.lastAction["disk"] != true {
		t.Errorf("request body = %v", api.lastAction)
	}

	if _, err := c.DropletAction(context.Background(), 123, ActionRequest{Type: "explode"}); err == nil {
		t.Error("expected error for unknown action")
	}
	if _, err := c.DropletAction(context.Background(), 123, ActionRequest{Type: "restore", Image: "ubuntu"}); err == nil {
		t.Error("restore with a slug should be rejected")
	}
}

func TestCreateRecord(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	rec, err := c.CreateRecord(context.Background(), "example.com", CreateRecordRequest{Type: "A", Name: "www", Data: "203.0.113.10", TTL: 3600})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.ID != 555 || rec.Data != "203.0.113.10" || rec.TTL != 3600 {
		t.Errorf("record = %+v", rec)
	}
}

func TestProbeVPS_againstAPI(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	rec := constraints.ProbeVPS(context.Background(), c)
	if rec.AccountLevel != "active" {
		t.Errorf("account level = %q", rec.AccountLevel)
	}
	if len(rec.AllowedResources) != 2 || rec.AllowedResources[0] != "example.com" {
		t.Errorf("allowed resources = %v", rec.AllowedResources)
	}
	if rec.RateLimits["observed_remaining"] != 4321 {
		t.Errorf("observed_remaining = %v", rec.RateLimits["observed_remaining"])
	}
	if !rec.Has(constraints.DropletsWrite) {
		t.Error("expected optimistic droplets.write")
	}
}

func TestProbeVPS_forbiddenMarksReadOnly(t *testing.T) {
	c := newTestClient(t, &fakeAPI{dropletsStatus: http.StatusForbidden})

	rec := constraints.ProbeVPS(context.Background(), c)
	if !rec.ReadOnly {
		t.Fatalf("expected read_only, restrictions = %v", rec.RestrictionStrings())
	}
	found := false
	for _, r := range rec.RestrictionStrings() {
		if strings.HasPrefix(r, "droplets.read_denied: ") {
			found = true
		}
	}
	if !found {
		t.Errorf("restrictions = %v", rec.RestrictionStrings())
	}

	d := constraints.Check(constraints.BackendDigitalOcean, "delete_droplet",
		constraints.NewResult(constraints.Entry{Backend: constraints.BackendDigitalOcean, Record: rec}))
	if d.Allowed {
		t.Error("delete_droplet should be denied for a read-only token")
	}
}
