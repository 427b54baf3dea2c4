package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	got := graph.GenerateMermaid(runtime.DefaultTransitions(), nil)

	for _, want := range []string{
		"graph TD\n",
		`planner(("planner"))`,
		`tool_runner[["tool_runner"]]`,
		`error_recovery{{"error_recovery"}}`,
		`completed(["completed"])`,
		`failed(["failed"])`,
		`executor["executor"]`,
		"planner --> executor",
		"tool_runner --> planner",
		"executor -.-> error_recovery",
		"error_recovery -.-> failed",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "classDef")
	assert.NotContains(t, got, "executor --> planner", "absent pairs are not drawn")
}

func TestGenerateMermaid_Deterministic(t *testing.T) {
	a := graph.GenerateMermaid(runtime.DefaultTransitions(), nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a, graph.GenerateMermaid(runtime.DefaultTransitions(), nil))
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	state := domain.NewRunState("hi", "c1", domain.DefaultLimits())
	state.Messages = []domain.Message{
		{Role: domain.RoleHuman, Content: "hi"},
		{Role: domain.RoleAssistant, Phase: domain.PhasePlanner},
		{Role: domain.RoleToolResult, Phase: domain.PhaseToolRunner},
		{Role: domain.RoleAssistant, Phase: domain.PhasePlanner},
	}
	state.CurrentPhase = domain.PhaseExecutor

	overlay := graph.OverlayFromState(state)
	overlay.Disabled = []domain.Phase{domain.PhaseValidation}
	got := graph.GenerateMermaid(runtime.DefaultTransitions(), overlay)

	assert.Equal(t, 1, strings.Count(got, "class planner visited;"))
	assert.Contains(t, got, "class tool_runner visited;")
	assert.Contains(t, got, "class validation disabled;")
	assert.Contains(t, got, "class executor current;")
}
