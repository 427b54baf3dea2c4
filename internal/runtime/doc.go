/*
Package runtime implements the agent graph: the node execution template, the
built-in nodes, the transition table and the engine that drives a RunState
from the planner to a terminal phase.

Every node runs through the same template, which enforces the global and
per-phase iteration budgets, checks cancellation, reports to the
observability sink and turns node errors into a route to error recovery.
*/
package runtime
