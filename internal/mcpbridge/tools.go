package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// toolHandler runs one tool call and returns the data for the envelope.
type toolHandler func(ctx context.Context, a args) (any, error)

type tool struct {
	def       mcp.Tool
	backend   string
	operation string
	handle    toolHandler
}

// mutating reports whether the tool needs a permission check first.
func (t *tool) mutating() bool {
	if t.backend == "" {
		return false
	}
	c, ok := constraints.CapabilityFor(t.backend, t.operation)
	return ok && c.IsWrite()
}

// envelope is the JSON body every tool returns.
type envelope struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// deniedError is returned when the guard rejects a call.
type deniedError struct {
	backend   string
	operation string
	reason    string
}

func (e *deniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.reason)
}

// ToolRegistry holds the definitions and handlers for all tools.
type ToolRegistry struct {
	tools  map[string]*tool
	order  []string
	guard  *Guard
	logger *zap.Logger
	now    func() time.Time
}

// NewToolRegistry creates a ToolRegistry. When guard is non-nil, mutating
// tools are checked against its snapshot and the token_permissions tool is
// registered.
func NewToolRegistry(guard *Guard, logger *zap.Logger) *ToolRegistry {
	r := &ToolRegistry{
		tools:  make(map[string]*tool),
		guard:  guard,
		logger: logger,
		now:    time.Now,
	}
	if guard != nil {
		r.registerConstraints(guard)
	}
	return r
}

// add registers a tool. backend and operation name the entry in the
// constraint operation table; both are empty for tools that are never
// checked.
func (r *ToolRegistry) add(def mcp.Tool, backend, operation string, h toolHandler) {
	if _, dup := r.tools[def.Name]; dup {
		panic("mcpbridge: duplicate tool " + def.Name)
	}
	r.tools[def.Name] = &tool{def: def, backend: backend, operation: operation, handle: h}
	r.order = append(r.order, def.Name)
}

// Definitions returns the list of tool definitions for tools/list responses.
func (r *ToolRegistry) Definitions() []mcp.Tool {
	defs := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Call dispatches a tool call by name and returns (envelope JSON, isError).
func (r *ToolRegistry) Call(ctx context.Context, name string, raw json.RawMessage) (string, bool) {
	start := time.Now()
	t, ok := r.tools[name]
	if !ok {
		return r.render(name, nil, fmt.Errorf("unknown tool: %q", name))
	}

	data, err := r.run(ctx, t, raw)
	text, isErr := r.render(name, data, err)
	recordToolCall(name, isErr, time.Since(start))
	if isErr {
		r.logger.Info("tool call failed", zap.String("tool", name), zap.Error(err))
	}
	return text, isErr
}

func (r *ToolRegistry) run(ctx context.Context, t *tool, raw json.RawMessage) (any, error) {
	a, err := parseArgs(raw)
	if err != nil {
		return nil, err
	}
	if r.guard != nil && t.mutating() {
		if d := r.guard.Authorize(t.backend, t.operation); !d.Allowed {
			return nil, &deniedError{backend: t.backend, operation: t.operation, reason: d.Reason}
		}
	}
	return t.handle(ctx, a)
}

func (r *ToolRegistry) render(name string, data any, err error) (string, bool) {
	env := envelope{
		Success:   err == nil,
		Operation: name,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}
	if err == nil {
		env.Data = data
	} else {
		env.Error = err.Error()
		env.Details = errorDetails(err)
	}

	out, mErr := json.MarshalIndent(env, "", "  ")
	if mErr != nil {
		return fmt.Sprintf(`{"success":false,"operation":%q,"error":"encode result: %s"}`, name, mErr), true
	}
	return string(out), err != nil
}

func errorDetails(err error) any {
	var denied *deniedError
	if errors.As(err, &denied) {
		return map[string]string{
			"backend":   denied.backend,
			"operation": denied.operation,
			"hint":      "call token_permissions to see what the configured credentials allow",
		}
	}
	var invalid *validate.Error
	if errors.As(err, &invalid) {
		return map[string]string{"kind": "validation", "field": invalid.Field}
	}
	return nil
}
