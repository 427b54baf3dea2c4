package domain

// Phase identifies a node of the agent graph or one of its terminal states.
type Phase string

const (
	// PhasePlanner decides the next task or declares the plan complete.
	PhasePlanner Phase = "planner"
	// PhaseExecutor turns the current task into a concrete tool call.
	PhaseExecutor Phase = "executor"
	// PhaseToolRunner dispatches the pending tool call to the registry.
	PhaseToolRunner Phase = "tool_runner"
	// PhaseValidation checks a final answer before the run completes.
	PhaseValidation Phase = "validation"
	// PhaseErrorRecovery is the single sink for node failures. It is the only
	// phase allowed to clear RunState.Error.
	PhaseErrorRecovery Phase = "error_recovery"

	// PhaseCompleted is the terminal success state.
	PhaseCompleted Phase = "completed"
	// PhaseFailed is the terminal state for fatal outcomes (exhausted budgets,
	// cancellation, a failing recovery).
	PhaseFailed Phase = "failed"
)

// PhaseEntry is the phase every run starts in.
const PhaseEntry = PhasePlanner

// NodePhases lists the phases backed by an executable node, in graph order.
func NodePhases() []Phase {
	return []Phase{PhasePlanner, PhaseExecutor, PhaseToolRunner, PhaseValidation, PhaseErrorRecovery}
}

// IsTerminal reports whether no node runs in this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// IsNode reports whether the phase is backed by a node.
func (p Phase) IsNode() bool {
	for _, n := range NodePhases() {
		if n == p {
			return true
		}
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}
