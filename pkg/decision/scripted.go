package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scripted is a deterministic Completer that replays canned answers per
// decision kind. The last answer of a kind is repeated once its queue is
// drained. It is used for offline runs and tests.
type Scripted struct {
	mu      sync.Mutex
	answers map[Kind][]string
	calls   map[Kind]int
}

// NewScripted builds a scripted completer. Answers that are not strings are
// encoded as JSON.
func NewScripted(answers map[Kind][]any) (*Scripted, error) {
	s := &Scripted{
		answers: make(map[Kind][]string),
		calls:   make(map[Kind]int),
	}
	for kind, list := range answers {
		for _, a := range list {
			text, ok := a.(string)
			if !ok {
				raw, err := json.Marshal(a)
				if err != nil {
					return nil, fmt.Errorf("encode %s answer: %w", kind, err)
				}
				text = string(raw)
			}
			s.answers[kind] = append(s.answers[kind], text)
		}
	}
	return s, nil
}

// LoadScript reads a YAML file mapping decision kinds to answer lists.
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var raw map[Kind][]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return NewScripted(raw)
}

// Complete implements Completer.
func (s *Scripted) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.answers[p.Kind]
	if len(list) == 0 {
		return "", fmt.Errorf("no scripted answer for %s", p.Kind)
	}
	i := min(s.calls[p.Kind], len(list)-1)
	s.calls[p.Kind]++
	return list[i], nil
}

// Calls returns how many completions of kind were served.
func (s *Scripted) Calls(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}
