/*
Package observability provides the telemetry side of the agent graph runtime.

The Sink times every node execution and reports phase.started,
phase.completed and phase.error events to an EventDispatcher and durations to
a PerformanceCollector. Implementations are provided for slog, Prometheus and
fan-out to several dispatchers.
*/
package observability
