package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// executionHistory formats the most recent tool result for a decision prompt.
func executionHistory(state *domain.RunState) string {
	m, ok := state.LastToolResult()
	if !ok {
		return ""
	}
	return "Most recent tool result:\n" + m.Content
}

// formatToolResult renders a registry result as tool_result message content.
func formatToolResult(r domain.ToolResult) string {
	if !r.Success {
		return "ERROR: " + r.Error
	}
	if r.Data == nil {
		return "null"
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprintf("%v", r.Data)
	}
	return string(raw)
}

func message(role domain.Role, phase domain.Phase, content string, at time.Time) domain.Message {
	return domain.Message{Role: role, Content: content, Phase: phase, Timestamp: at}
}

// appendThought appends a thought message unless the thought is blank.
func appendThought(p *domain.Patch, phase domain.Phase, thought string, at time.Time) {
	if thought != "" {
		p.AppendMessages(message(domain.RoleThought, phase, thought, at))
	}
}
