package mcpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, cfg HTTPConfig) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s, _ := newTestServer(t)
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	return NewRouter(ctx, s, cfg, zap.NewNop())
}

func post(h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const pingBody = `{"jsonrpc":"2.0","id":7,"method":"ping"}`

// ── Tests ────────────────────────────────────────────────────────────────

func TestHTTP_healthzAndMetrics(t *testing.T) {
	h := newTestRouter(t, HTTPConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Header().Get(requestIDHeader) == "" {
		t.Errorf("healthz: status %d, request id %q", w.Code, w.Header().Get(requestIDHeader))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "cargoshipper_http_requests_total") {
		t.Errorf("metrics: status %d", w.Code)
	}
}

func TestHTTP_rpcRoundTrip(t *testing.T) {
	h := newTestRouter(t, HTTPConfig{})

	w := post(h, pingBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] != float64(7) || resp["result"] == nil {
		t.Errorf("response = %v", resp)
	}

	w = post(h, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("notification status = %d", w.Code)
	}
}

func TestHTTP_apiKey(t *testing.T) {
	h := newTestRouter(t, HTTPConfig{RequireAPIKey: true, AllowedKeys: []string{"k1", "k2"}})

	if w := post(h, pingBody, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status %d", w.Code)
	}
	if w := post(h, pingBody, map[string]string{"X-API-Key": "nope"}); w.Code != http.StatusForbidden {
		t.Errorf("wrong key: status %d", w.Code)
	}
	if w := post(h, pingBody, map[string]string{"X-API-Key": "k2"}); w.Code != http.StatusOK {
		t.Errorf("valid key: status %d", w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz should not need a key: status %d", w.Code)
	}
}

func TestHTTP_rateLimit(t *testing.T) {
	h := newTestRouter(t, HTTPConfig{RateRequests: 2, RateWindow: time.Hour})

	for i := 0; i < 2; i++ {
		if w := post(h, pingBody, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := post(h, pingBody, nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Errorf("third request: status %d, retry-after %q", w.Code, w.Header().Get("Retry-After"))
	}

	// A different API key gets its own bucket.
	if w := post(h, pingBody, map[string]string{"X-API-Key": "other"}); w.Code != http.StatusOK {
		t.Errorf("separate client: status %d", w.Code)
	}
}
