/*
Package domain contains the core models of the agent graph runtime.

It defines the phases of the graph, the RunState threaded through every step
of a conversation turn, the Patch type that is the only way to mutate a
RunState, the structured decisions returned by model-backed services and the
typed errors of the runtime. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Phase: a node of the graph (planner, executor, tool_runner, validation,
    error_recovery) or a terminal state (completed, failed).
  - RunState: the record of one turn (messages, plan, tool usage, budgets).
  - Patch: a partial update returned by a node and applied by the runner.
  - PlanDecision, ToolCallDecision, CorrectionDecision, ValidationDecision:
    self-validating decision contracts.
  - StateDiff: a compact description of what one step changed.
*/
package domain
