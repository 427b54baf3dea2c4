// Package validator checks the structure of a phase transition table.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// ValidateTransitions checks a transition table starting from the entry
// phase. It reports unknown phases, terminal phases with successors, node
// phases unreachable from the entry, and node phases that cannot reach the
// failed terminal directly.
func ValidateTransitions(table map[domain.Phase][]domain.Phase) error {
	var problems []string
	known := func(p domain.Phase) bool { return p.IsNode() || p.IsTerminal() }

	for from, targets := range table {
		if !known(from) {
			problems = append(problems, fmt.Sprintf("unknown phase '%s'", from))
			continue
		}
		if from.IsTerminal() && len(targets) > 0 {
			problems = append(problems, fmt.Sprintf("terminal phase '%s' has successors", from))
		}
		for _, to := range targets {
			if !known(to) {
				problems = append(problems, fmt.Sprintf("'%s' targets unknown phase '%s'", from, to))
			}
		}
		if from.IsNode() && !slices.Contains(targets, domain.PhaseFailed) {
			problems = append(problems, fmt.Sprintf("'%s' cannot reach '%s'", from, domain.PhaseFailed))
		}
	}

	visited := reachable(table, domain.PhaseEntry)
	for _, p := range domain.NodePhases() {
		if _, listed := table[p]; listed && !visited[p] {
			problems = append(problems, fmt.Sprintf("phase '%s' is unreachable from '%s'", p, domain.PhaseEntry))
		}
	}
	if !visited[domain.PhaseCompleted] {
		problems = append(problems, fmt.Sprintf("'%s' is unreachable from '%s'", domain.PhaseCompleted, domain.PhaseEntry))
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// reachable crawls the table breadth-first from start.
func reachable(table map[domain.Phase][]domain.Phase, start domain.Phase) map[domain.Phase]bool {
	visited := make(map[domain.Phase]bool)
	queue := []domain.Phase{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, to := range table[current] {
			if !visited[to] {
				queue = append(queue, to)
			}
		}
	}
	return visited
}
