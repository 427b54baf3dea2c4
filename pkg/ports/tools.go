package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// ToolRegistry dispatches tool calls by name.
//
// ExecuteTool never returns an error and never panics: unknown tools,
// invalid parameters and tool failures are all reported as
// ToolResult{Success: false}.
type ToolRegistry interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) domain.ToolResult

	// Names lists the registered tools in a stable order.
	Names() []string
}

// ToolCatalog is implemented by registries that can describe their tools to
// a tool-call decision.
type ToolCatalog interface {
	Tools() []domain.Tool
}
