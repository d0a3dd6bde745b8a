package mcpbridge

import (
	"context"
	"sync"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"go.uber.org/zap"
)

// Inspector runs one constraint detection pass.
type Inspector interface {
	Inspect(ctx context.Context, b constraints.Backends) *constraints.Result
}

// Guard keeps the latest constraint snapshot and checks mutating tool calls
// against it.
type Guard struct {
	inspector Inspector
	backends  constraints.Backends
	enforce   bool
	logger    *zap.Logger

	mu     sync.RWMutex
	result *constraints.Result
}

// NewGuard creates a Guard. With enforce off, denials are logged and the
// call proceeds.
func NewGuard(in Inspector, b constraints.Backends, enforce bool, logger *zap.Logger) *Guard {
	return &Guard{inspector: in, backends: b, enforce: enforce, logger: logger}
}

// Refresh runs a detection pass and replaces the snapshot.
func (g *Guard) Refresh(ctx context.Context) *constraints.Result {
	res := g.inspector.Inspect(ctx, g.backends)
	g.mu.Lock()
	g.result = res
	g.mu.Unlock()
	return res
}

// Snapshot returns the latest result, or nil before the first Refresh.
func (g *Guard) Snapshot() *constraints.Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.result
}

// Authorize checks backend's operation against the snapshot and returns the
// decision that applies. Before the first Refresh every call is allowed.
func (g *Guard) Authorize(backend, operation string) constraints.Decision {
	d := constraints.Check(backend, operation, g.Snapshot())
	recordPermissionCheck(backend, d.Allowed)
	if d.Allowed {
		return d
	}

	if !g.enforce {
		g.logger.Warn("permission check failed; not enforced",
			zap.String("backend", backend),
			zap.String("operation", operation),
			zap.String("reason", d.Reason),
		)
		return constraints.Decision{Allowed: true, Reason: d.Reason}
	}
	g.logger.Info("permission denied",
		zap.String("backend", backend),
		zap.String("operation", operation),
		zap.String("reason", d.Reason),
	)
	return d
}
