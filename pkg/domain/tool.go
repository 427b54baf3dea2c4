package domain

// ToolCall is a structured request the executor hands to the tool runner.
type ToolCall struct {
	Tool       string         `json:"tool" yaml:"tool" mapstructure:"tool"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// ToolContext identifies the run on whose behalf a tool executes.
type ToolContext struct {
	ChatID string `json:"chat_id"`
}

// ToolResult is the outcome of a tool registry dispatch. All failures are
// encoded here; registries never return errors.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tool describes a registered tool. Parameters is an optional JSON Schema
// for the call parameters.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}
