package runtime

import (
	"slices"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Transitions maps each phase to the phases it may legally hand off to.
type Transitions map[domain.Phase][]domain.Phase

// DefaultTransitions returns the transition table of the agent graph.
// The failed terminal is reachable from every node phase.
func DefaultTransitions() Transitions {
	return Transitions{
		domain.PhasePlanner: {
			domain.PhaseExecutor,
			domain.PhaseValidation,
			domain.PhaseCompleted,
			domain.PhaseErrorRecovery,
			domain.PhaseFailed,
		},
		domain.PhaseExecutor: {
			domain.PhaseToolRunner,
			domain.PhaseErrorRecovery,
			domain.PhaseFailed,
		},
		domain.PhaseToolRunner: {
			domain.PhasePlanner,
			domain.PhaseErrorRecovery,
			domain.PhaseFailed,
		},
		domain.PhaseValidation: {
			domain.PhaseCompleted,
			domain.PhasePlanner,
			domain.PhaseErrorRecovery,
			domain.PhaseFailed,
		},
		domain.PhaseErrorRecovery: {
			domain.PhasePlanner,
			domain.PhaseFailed,
		},
	}
}

// Valid reports whether from may hand off to to.
func (t Transitions) Valid(from, to domain.Phase) bool {
	return slices.Contains(t[from], to)
}

// Targets returns the legal successors of from.
func (t Transitions) Targets(from domain.Phase) []domain.Phase {
	return slices.Clone(t[from])
}

// Phases returns every phase appearing in the table, sources first in graph
// order, then any extra targets sorted by name.
func (t Transitions) Phases() []domain.Phase {
	var out []domain.Phase
	seen := make(map[domain.Phase]bool)
	add := func(p domain.Phase) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range domain.NodePhases() {
		if _, ok := t[p]; ok {
			add(p)
		}
	}
	var rest []domain.Phase
	for from, targets := range t {
		if !seen[from] {
			rest = append(rest, from)
		}
		for _, to := range targets {
			if !seen[to] {
				rest = append(rest, to)
			}
		}
	}
	slices.Sort(rest)
	for _, p := range rest {
		add(p)
	}
	return out
}
