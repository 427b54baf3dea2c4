package runtime

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/zeebo/blake3"
)

// ToolCallSignature returns the dedup signature of a tool call within a chat.
// Parameters are hashed in canonical JSON form (object keys sorted).
func ToolCallSignature(call domain.ToolCall, chatID string) (string, error) {
	params := call.Parameters
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(struct {
		Tool       string         `json:"tool"`
		Parameters map[string]any `json:"parameters"`
		ChatID     string         `json:"chatId"`
	}{call.Tool, params, chatID})
	if err != nil {
		return "", fmt.Errorf("failed to encode tool call %s: %w", call.Tool, err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
