package mcpbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cargoshipper/cargoshipper/internal/validate"
)

// args holds a tool call's decoded arguments.
type args map[string]any

func parseArgs(raw json.RawMessage) (args, error) {
	a := args{}
	if len(raw) == 0 || string(raw) == "null" {
		return a, nil
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, &validate.Error{Message: "arguments must be a JSON object"}
	}
	return a, nil
}

func (a args) require(keys ...string) error {
	return validate.Required(map[string]any(a), keys...)
}

func (a args) has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// str returns key as a trimmed string, or "" when absent.
func (a args) str(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a args) strOr(key, def string) string {
	if s := a.str(key); s != "" {
		return s
	}
	return def
}

// integer accepts JSON numbers and numeric strings.
func (a args) integer(key string, def int) (int, error) {
	switch v := a[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != float64(int(v)) {
			return 0, &validate.Error{Field: key, Message: "must be an integer"}
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &validate.Error{Field: key, Message: "must be an integer"}
		}
		return n, nil
	default:
		return 0, &validate.Error{Field: key, Message: "must be an integer"}
	}
}

func (a args) boolean(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// stringMap decodes an object whose values are rendered as strings.
func (a args) stringMap(key string) (map[string]string, error) {
	switch v := a[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if val == nil {
				continue
			}
			out[k] = fmt.Sprint(val)
		}
		return out, nil
	default:
		return nil, &validate.Error{Field: key, Message: "must be an object"}
	}
}

// strings decodes an array of strings; a single string is accepted as a
// one-element list.
func (a args) strings(key string) ([]string, error) {
	switch v := a[key].(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return nil, &validate.Error{Field: key, Message: "must be an array of strings"}
	}
}
