package mcpbridge

import (
	"context"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/mark3labs/mcp-go/mcp"
)

var allBackends = []string{constraints.BackendDocker, constraints.BackendDigitalOcean, constraints.BackendCloudflare}

func (r *ToolRegistry) registerConstraints(g *Guard) {
	r.add(mcp.NewTool("token_permissions",
		mcp.WithDescription("Probe every configured backend credential and report what it can do: "+
			"granted permissions, restrictions, read-only state, reachable resources and rate limits. "+
			"Mutating tools are checked against the result of the latest probe."),
		mcp.WithReadOnlyHintAnnotation(true),
	), "", "", func(ctx context.Context, _ args) (any, error) {
		res := g.Refresh(ctx)
		return permissionsReport(res), nil
	})
}

// permissionsReport pairs the serialized result with per-backend guidance.
func permissionsReport(res *constraints.Result) map[string]any {
	guidance := make(map[string]string, len(allBackends))
	for _, b := range allBackends {
		rec, _ := res.Get(b)
		guidance[b] = constraints.Guidance(b, rec)
	}
	return map[string]any{
		"constraints": res,
		"guidance":    guidance,
	}
}
