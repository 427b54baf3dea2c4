package domain

import "time"

// EventType defines the category of an observability event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseError     EventType = "phase.error"
)

// PhaseEvent is the payload published for every phase event.
type PhaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    string    `json:"chat_id"`
	Phase     Phase     `json:"phase"`
	Iteration int       `json:"iteration"`
	// Duration is only set on completion events.
	Duration time.Duration `json:"duration_ns,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ExecContext is the per-execution context handed to a node.
type ExecContext struct {
	Timestamp time.Time
	Phase     Phase
	ChatID    string
	// Iteration is the global iteration at which the node runs.
	Iteration int
}
