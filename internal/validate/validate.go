// Package validate checks tool inputs before they reach a backend SDK.
package validate

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/miekg/dns"
)

// Error is returned for any rejected input.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, a ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, a...)}
}

var (
	containerNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	zoneNameRe      = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
)

// RecordTypes lists the DNS record types accepted by the record tools.
var RecordTypes = []string{"A", "AAAA", "CNAME", "MX", "TXT", "SRV", "NS", "PTR"}

// ContainerName checks a Docker container name.
func ContainerName(s string) error {
	if s == "" {
		return invalid("name", "container name must be a non-empty string")
	}
	if !containerNameRe.MatchString(s) {
		return invalid("name", "container name must match [a-zA-Z0-9][a-zA-Z0-9_.-]*")
	}
	return nil
}

// ContainerRef checks a container ID or name.
func ContainerRef(s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid("container_id", "container id must be a non-empty string")
	}
	return nil
}

// ImageName checks that s parses as an image reference.
func ImageName(s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid("image", "image name must be a non-empty string")
	}
	if _, err := name.ParseReference(s); err != nil {
		return invalid("image", "%v", err)
	}
	return nil
}

// ZoneName checks a DNS zone or domain name.
func ZoneName(s string) error {
	if s == "" {
		return invalid("zone", "zone name must be a non-empty string")
	}
	if !zoneNameRe.MatchString(s) {
		return invalid("zone", "zone name contains invalid characters")
	}
	if _, ok := dns.IsDomainName(s); !ok {
		return invalid("zone", "%q is not a valid domain name", s)
	}
	return nil
}

// RecordType checks a DNS record type and returns it upper-cased.
func RecordType(s string) (string, error) {
	if s == "" {
		return "", invalid("type", "DNS record type must be a non-empty string")
	}
	t := strings.ToUpper(s)
	if _, known := dns.StringToType[t]; known {
		for _, rt := range RecordTypes {
			if rt == t {
				return t, nil
			}
		}
	}
	return "", invalid("type", "invalid DNS record type, must be one of: %s", strings.Join(RecordTypes, ", "))
}

// Port checks a TCP/UDP port number given as a string or number.
func Port(v any) (int, error) {
	var n int
	switch p := v.(type) {
	case int:
		n = p
	case float64:
		if p != float64(int(p)) {
			return 0, invalid("port", "port must be a valid integer")
		}
		n = int(p)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, invalid("port", "port must be a valid integer")
		}
		n = parsed
	default:
		return 0, invalid("port", "port must be a valid integer")
	}
	if n < 1 || n > 65535 {
		return 0, invalid("port", "port must be between 1 and 65535")
	}
	return n, nil
}

// IPv4 checks a dotted-quad IPv4 address.
func IPv4(s string) error {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return invalid("ip", "invalid IPv4 address %q", s)
	}
	return nil
}

// IPv6 checks an IPv6 address.
func IPv6(s string) error {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is6() || addr.Is4In6() {
		return invalid("ip", "invalid IPv6 address %q", s)
	}
	return nil
}

// RecordContent checks content against its record type where the type
// constrains the format.
func RecordContent(recordType, content string) error {
	if content == "" {
		return invalid("content", "record content must be a non-empty string")
	}
	switch recordType {
	case "A":
		return IPv4(content)
	case "AAAA":
		return IPv6(content)
	case "CNAME", "NS", "PTR", "MX":
		if _, ok := dns.IsDomainName(content); !ok {
			return invalid("content", "%q is not a valid host name", content)
		}
	}
	return nil
}

// Required reports every key of fields whose value is missing.
func Required(fields map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			missing = append(missing, k)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return invalid("", "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Range checks lo <= n <= hi.
func Range(field string, n, lo, hi int) error {
	if n < lo || n > hi {
		return invalid(field, "must be between %d and %d", lo, hi)
	}
	return nil
}

// OneOf checks that s is one of allowed.
func OneOf(field, s string, allowed ...string) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return invalid(field, "must be one of: %s", strings.Join(allowed, ", "))
}
