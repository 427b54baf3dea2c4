/*
Package agentgraph is a runtime for AI coding assistants modeled as a small
directed graph of phases.

Each conversation turn is a RunState threaded through the graph: the planner
picks the next task or declares the plan complete, the executor turns a task
into a tool call, the tool runner dispatches it, an optional validation phase
checks the final answer and error recovery is the single sink for failures.
Every phase is bounded by a global and a per-phase iteration budget, so a run
always terminates.

# Concept

Nodes never mutate state. They return a Patch that the engine applies after
checking the proposed transition against the graph's table. Illegal
transitions are rerouted to error recovery. Decisions come from a language
model through a Completer and are schema-validated and repaired before any
node sees them.

# Usage

	completer, _ := anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), anthropic.Options{Model: "claude-sonnet-4-5"})

	reg := registry.NewRegistry()
	reg.MustRegister(domain.Tool{Name: "list_files"}, listFiles)

	engine, err := agentgraph.New(
		agentgraph.WithCompleter(completer),
		agentgraph.WithRegistry(reg),
	)
	if err != nil {
		log.Fatal(err)
	}

	state, err := engine.Ask(ctx, "", "list the files in src")
	fmt.Println(state.FinalAnswer)

Hosts that keep conversations across turns use pkg/session with a
StateStore from pkg/adapters/memory or pkg/adapters/redis. The HTTP and MCP
adapters in pkg/adapters expose an Engine over the network.
*/
package agentgraph
