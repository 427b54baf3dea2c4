package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Table is a phase transition table. runtime.Transitions implements it.
type Table interface {
	Phases() []domain.Phase
	Targets(from domain.Phase) []domain.Phase
}

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedPhases []domain.Phase
	CurrentPhase  domain.Phase
	// Disabled marks phases that have no node registered.
	Disabled []domain.Phase
}

// OverlayFromState builds an overlay from the phases recorded on a run's
// messages and its current phase.
func OverlayFromState(state *domain.RunState) *GraphOverlay {
	o := &GraphOverlay{CurrentPhase: state.CurrentPhase}
	for _, m := range state.Messages {
		if m.Phase != "" {
			o.VisitedPhases = append(o.VisitedPhases, m.Phase)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the transition table.
// It applies semantic styling:
// - Entry phase: ((Circle))
// - Tool runner: [[Subroutine]]
// - Error recovery: {{Hexagon}}
// - Terminal phases: ([Stadium])
// - Default: [Rectangle]
// Hand-offs into error recovery or the failed terminal are dotted.
func GenerateMermaid(table Table, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, phase := range table.Phases() {
		opener, closer := "[", "]"
		switch {
		case phase == domain.PhasePlanner:
			opener, closer = "((", "))"
		case phase == domain.PhaseToolRunner:
			opener, closer = "[[", "]]"
		case phase == domain.PhaseErrorRecovery:
			opener, closer = "{{", "}}"
		case phase.IsTerminal():
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", phase, opener, phase, closer)
	}

	for _, from := range table.Phases() {
		for _, to := range table.Targets(from) {
			arrow := "-->"
			if to == domain.PhaseErrorRecovery || to == domain.PhaseFailed {
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on light backgrounds regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef disabled fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:5 5,color:#757575;\n")

		seen := make(map[domain.Phase]bool)
		for _, p := range overlay.VisitedPhases {
			if !seen[p] && p != "" {
				seen[p] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", p)
			}
		}
		for _, p := range overlay.Disabled {
			fmt.Fprintf(&sb, "    class %s disabled;\n", p)
		}
		if overlay.CurrentPhase != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.CurrentPhase)
		}
	}

	return sb.String()
}
