package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestContainerName(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"web", false},
		{"web-1.prod_a", false},
		{"9lives", false},
		{"", true},
		{"-leading", true},
		{"has space", true},
		{"slash/name", true},
	}
	for _, tt := range tests {
		if err := ContainerName(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("ContainerName(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestImageName(t *testing.T) {
	for _, ok := range []string{"nginx", "nginx:1.27", "ghcr.io/acme/app:v2", "registry.local:5000/team/svc"} {
		if err := ImageName(ok); err != nil {
			t.Errorf("ImageName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "   ", "UPPER/Case", "nginx:bad tag"} {
		if err := ImageName(bad); err == nil {
			t.Errorf("ImageName(%q) accepted", bad)
		}
	}
}

func TestZoneName(t *testing.T) {
	for _, ok := range []string{"example.com", "sub.example.co.uk", "xn--bcher-kva.example"} {
		if err := ZoneName(ok); err != nil {
			t.Errorf("ZoneName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "exa mple.com", "under_score.com", "bad!.io"} {
		if err := ZoneName(bad); err == nil {
			t.Errorf("ZoneName(%q) accepted", bad)
		}
	}
}

func TestRecordType(t *testing.T) {
	got, err := RecordType("aaaa")
	if err != nil || got != "AAAA" {
		t.Errorf("RecordType(aaaa) = %q, %v", got, err)
	}
	for _, bad := range []string{"", "SOA", "CAA", "BOGUS"} {
		if _, err := RecordType(bad); err == nil {
			t.Errorf("RecordType(%q) accepted", bad)
		}
	}
}

func TestPort(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{80, 80, false},
		{float64(8080), 8080, false},
		{"443", 443, false},
		{0, 0, true},
		{65536, 0, true},
		{"http", 0, true},
		{1.5, 0, true},
		{nil, 0, true},
	}
	for _, tt := range tests {
		got, err := Port(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Port(%v) = %d, %v; want %d, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestIPs(t *testing.T) {
	if err := IPv4("192.168.1.10"); err != nil {
		t.Errorf("IPv4 valid: %v", err)
	}
	for _, bad := range []string{"256.1.1.1", "1.2.3", "::1", ""} {
		if IPv4(bad) == nil {
			t.Errorf("IPv4(%q) accepted", bad)
		}
	}
	if err := IPv6("2001:db8::1"); err != nil {
		t.Errorf("IPv6 valid: %v", err)
	}
	if IPv6("10.0.0.1") == nil {
		t.Error("IPv6 accepted an IPv4 address")
	}
}

func TestRecordContent(t *testing.T) {
	if err := RecordContent("A", "1.2.3.4"); err != nil {
		t.Errorf("A: %v", err)
	}
	if RecordContent("A", "example.com") == nil {
		t.Error("A accepted a host name")
	}
	if err := RecordContent("CNAME", "target.example.com"); err != nil {
		t.Errorf("CNAME: %v", err)
	}
	if err := RecordContent("TXT", "v=spf1 -all"); err != nil {
		t.Errorf("TXT: %v", err)
	}
	if RecordContent("TXT", "") == nil {
		t.Error("empty content accepted")
	}
}

func TestRequired(t *testing.T) {
	err := Required(map[string]any{"name": "x", "region": "", "size": nil}, "name", "region", "size", "image")
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(err.Error(), "region, size, image") {
		t.Errorf("message = %q", err.Error())
	}
	if Required(map[string]any{"a": 1}, "a") != nil {
		t.Error("present field reported missing")
	}
}

func TestRangeAndOneOf(t *testing.T) {
	if Range("per_page", 0, 1, 200) == nil {
		t.Error("Range accepted 0")
	}
	if Range("per_page", 200, 1, 200) != nil {
		t.Error("Range rejected the upper bound")
	}
	if OneOf("zone_type", "full", "full", "partial") != nil {
		t.Error("OneOf rejected a member")
	}
	if err := OneOf("zone_type", "secondary", "full", "partial"); err == nil || !strings.HasPrefix(err.Error(), "zone_type: ") {
		t.Errorf("OneOf error = %v", err)
	}
}
