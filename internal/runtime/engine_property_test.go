package runtime_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func loopEngine(t *testing.T, opts ...runtime.Option) *runtime.Engine {
	t.Helper()
	e, err := runtime.NewEngine(runtime.Services{
		Planner:    fakePlanner{},
		ToolCaller: fakeCaller{},
		Corrector:  fakeCorrector{},
		Tools:      fakeRegistry{},
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// TestBudgetProperty checks that no run executes more nodes than its budgets
// allow and that exhausting a budget always terminates the run.
func TestBudgetProperty(t *testing.T) {
	e := loopEngine(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("budgets bound every run", prop.ForAll(
		func(global, plannerCap, executorCap, runnerCap int) bool {
			limits := domain.Limits{
				MaxGraphIterations: global,
				MaxNodeIterations: map[domain.Phase]int{
					domain.PhasePlanner:    plannerCap,
					domain.PhaseExecutor:   executorCap,
					domain.PhaseToolRunner: runnerCap,
				},
			}
			state := domain.NewRunState("loop", "chat", limits)
			final, err := e.Run(context.Background(), state)
			if !errors.Is(err, domain.ErrIterationLimit) || !final.IsCompleted {
				return false
			}
			if final.Iteration > global {
				return false
			}
			for p, limit := range limits.MaxNodeIterations {
				if limit > 0 && final.NodeIterations[p] > limit {
					return false
				}
			}
			total := 0
			for _, n := range final.NodeIterations {
				total += n
			}
			return total == final.Iteration
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}

// TestRecoveryProperty checks that every correction branch clears the error
// and that continue abandons the failed task.
func TestRecoveryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	decisions := gen.OneConstOf(domain.CorrectionRetry, domain.CorrectionModifyPlan, domain.CorrectionContinue)

	properties.Property("recovery always clears the error", prop.ForAll(
		func(kind domain.Correction, plan []string, taskIdx int, errText string) bool {
			decision := domain.CorrectionDecision{Decision: kind}
			if kind == domain.CorrectionModifyPlan {
				decision.NewPlan = []string{"new task"}
			}
			e := loopEngine(t, runtime.WithNode(runtime.NewRecoveryNode(fakeCorrector{decision: decision})))

			state := domain.NewRunState("q", "chat", domain.DefaultLimits())
			state.CurrentPhase = domain.PhaseErrorRecovery
			state.Error = "boom " + errText
			state.CurrentPlan = plan
			if len(plan) > 0 {
				state.CurrentTask = plan[taskIdx%len(plan)]
			}
			task := state.CurrentTask

			if _, err := e.Step(context.Background(), state); err != nil {
				return false
			}
			if state.Error != "" || state.CurrentPhase != domain.PhasePlanner {
				return false
			}
			switch kind {
			case domain.CorrectionContinue:
				return state.CurrentTask == "" && (task == "" || !slices.Contains(state.CurrentPlan, task))
			case domain.CorrectionModifyPlan:
				return state.CurrentTask == "" && slices.Equal(state.CurrentPlan, []string{"new task"})
			default:
				return state.CurrentTask == task
			}
		},
		decisions,
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 100),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestTransitionProperty checks that proposals absent from the table are
// replaced by a route to error recovery.
func TestTransitionProperty(t *testing.T) {
	table := runtime.DefaultTransitions()
	all := append(domain.NodePhases(), domain.PhaseCompleted, domain.PhaseFailed)
	phases := make([]interface{}, 0, len(all))
	for _, p := range all {
		phases = append(phases, p)
	}

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("validator agrees with the table", prop.ForAll(
		func(from, to domain.Phase) bool {
			return table.Valid(from, to) == slices.Contains(table[from], to)
		},
		gen.OneConstOf(phases...),
		gen.OneConstOf(phases...),
	))

	properties.Property("illegal proposals route to recovery", prop.ForAll(
		func(to domain.Phase) bool {
			e := loopEngine(t, runtime.WithNode(proposingNode{phase: domain.PhaseExecutor, next: to}))
			state := domain.NewRunState("q", "chat", domain.DefaultLimits())
			state.CurrentPhase = domain.PhaseExecutor

			if _, err := e.Step(context.Background(), state); err != nil {
				return false
			}
			if table.Valid(domain.PhaseExecutor, to) {
				return state.CurrentPhase == to && state.Error == ""
			}
			return state.CurrentPhase == domain.PhaseErrorRecovery && state.Error != ""
		},
		gen.OneConstOf(phases...),
	))

	properties.TestingRun(t)
}

func TestFactoryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("zero executions leave an empty state", prop.ForAll(
		func(input, chat string, global int) bool {
			s := domain.NewRunState(input, chat, domain.Limits{MaxGraphIterations: global})
			if s.Iteration != 0 || len(s.Messages) != 0 || len(s.CurrentPlan) != 0 {
				return false
			}
			for _, p := range domain.NodePhases() {
				if n, ok := s.NodeIterations[p]; !ok || n != 0 {
					return false
				}
			}
			return s.CurrentPhase == domain.PhaseEntry
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
