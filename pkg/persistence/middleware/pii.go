package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// Mask replaces every redacted value.
const Mask = "***"

// PIIConfig selects what is redacted before a state is persisted.
type PIIConfig struct {
	// KeyPatterns mask the value of any tool input or debug key they match.
	KeyPatterns []string
	// ContentPatterns mask matching substrings of message contents,
	// the final answer and the working memory.
	ContentPatterns []string
}

type piiMiddleware struct {
	next    ports.StateStore
	keys    []*regexp.Regexp
	content []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that redacts sensitive data on Save.
// Loads return the redacted form.
func NewPIIMiddleware(config PIIConfig) (Middleware, error) {
	keys, err := compileAll(config.KeyPatterns)
	if err != nil {
		return nil, err
	}
	content, err := compileAll(config.ContentPatterns)
	if err != nil {
		return nil, err
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, keys: keys, content: content}
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (m *piiMiddleware) Save(ctx context.Context, chatID string, state *domain.RunState) error {
	// The engine keeps using state; only the copy is masked.
	cloned := state.Snapshot()

	cloned.DebugInfo = deepCopyMap(cloned.DebugInfo)
	maskMap(cloned.DebugInfo, m.keys)
	for i := range cloned.ToolsUsed {
		cloned.ToolsUsed[i].Input = deepCopyMap(cloned.ToolsUsed[i].Input)
		maskMap(cloned.ToolsUsed[i].Input, m.keys)
	}

	for i := range cloned.Messages {
		cloned.Messages[i].Content = m.redact(cloned.Messages[i].Content)
	}
	cloned.UserInput = m.redact(cloned.UserInput)
	cloned.FinalAnswer = m.redact(cloned.FinalAnswer)
	cloned.WorkingMemory = m.redact(cloned.WorkingMemory)

	return m.next.Save(ctx, chatID, cloned)
}

func (m *piiMiddleware) redact(s string) string {
	for _, re := range m.content {
		s = re.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) Load(ctx context.Context, chatID string) (*domain.RunState, error) {
	return m.next.Load(ctx, chatID)
}

func (m *piiMiddleware) Delete(ctx context.Context, chatID string) error {
	return m.next.Delete(ctx, chatID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
