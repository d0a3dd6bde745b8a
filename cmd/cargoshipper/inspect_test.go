package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
)

func sampleResult() *constraints.Result {
	return constraints.NewResult(constraints.Entry{
		Backend: constraints.BackendDocker,
		Record: &constraints.Record{
			Permissions: []constraints.Capability{constraints.DockerPing, constraints.DockerContainersRead},
			ReadOnly:    true,
			RateLimits:  map[string]any{},
		},
	})
}

func TestPrintResult_json(t *testing.T) {
	var buf bytes.Buffer
	if err := printResult(&buf, sampleResult(), "json"); err != nil {
		t.Fatalf("printResult: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if _, ok := decoded["docker"]; !ok || len(decoded) != 1 {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestPrintResult_text(t *testing.T) {
	var buf bytes.Buffer
	if err := printResult(&buf, sampleResult(), "text"); err != nil {
		t.Fatalf("printResult: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"docker credential",
		"read-only",
		"digitalocean: not configured",
		"cloudflare: not configured",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestPrintResult_unknownFormat(t *testing.T) {
	if err := printResult(&bytes.Buffer{}, sampleResult(), "yaml"); err == nil {
		t.Error("want an error for an unknown format")
	}
}
