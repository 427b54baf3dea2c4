/*
Package ports defines the driven ports (interfaces) of the agent graph runtime.

These interfaces decouple the runtime from model providers, tool
implementations, storage backends and telemetry.

# Key Interfaces

  - Planner, ToolCaller, Corrector, Validator: model-backed decision services.
  - ToolRegistry: dispatches tool calls, never failing with an error.
  - EventDispatcher, PerformanceCollector: observability collaborators.
  - StateStore: persists RunState per chat.
  - DistributedLocker: serializes turns of one chat across replicas.
*/
package ports
