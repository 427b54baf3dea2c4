package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listFiles = domain.Tool{
	Name:        "listFiles",
	Description: "List the files of a directory",
	Parameters: map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path":  map[string]any{"type": "string"},
			"depth": map[string]any{"type": "integer", "minimum": 1},
		},
	},
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(listFiles, func(ctx context.Context, args map[string]any) (any, error) {
		return []string{args["path"].(string) + "/main.go"}, nil
	}))
	r.MustRegister(domain.Tool{Name: "fail"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("disk on fire")
	})
	r.MustRegister(domain.Tool{Name: "panic"}, func(ctx context.Context, args map[string]any) (any, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	r.MustRegister(domain.Tool{Name: "whoami"}, func(ctx context.Context, args map[string]any) (any, error) {
		tc, _ := ToolContextFrom(ctx)
		return tc.ChatID, nil
	})
	return r
}

func TestRegistry_ExecuteTool(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	tc := domain.ToolContext{ChatID: "chat-1"}

	tests := []struct {
		name      string
		tool      string
		params    map[string]any
		wantOK    bool
		wantError string
	}{
		{name: "success", tool: "listFiles", params: map[string]any{"path": "src"}, wantOK: true},
		{name: "integer parameter", tool: "listFiles", params: map[string]any{"path": "src", "depth": 2}, wantOK: true},
		{name: "unknown tool", tool: "nope", wantError: "tool not found"},
		{name: "missing required parameter", tool: "listFiles", params: map[string]any{}, wantError: "invalid parameters"},
		{name: "wrong parameter type", tool: "listFiles", params: map[string]any{"path": 3}, wantError: "invalid parameters"},
		{name: "tool error", tool: "fail", wantError: "disk on fire"},
		{name: "tool panic", tool: "panic", wantError: "panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res domain.ToolResult
			require.NotPanics(t, func() {
				res = r.ExecuteTool(ctx, tt.tool, tt.params, tc)
			})
			assert.Equal(t, tt.wantOK, res.Success)
			if tt.wantError != "" {
				assert.Contains(t, res.Error, tt.wantError)
			}
		})
	}
}

func TestRegistry_ToolContext(t *testing.T) {
	r := newTestRegistry(t)
	res := r.ExecuteTool(context.Background(), "whoami", nil, domain.ToolContext{ChatID: "chat-42"})
	require.True(t, res.Success)
	assert.Equal(t, "chat-42", res.Data)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(domain.Tool{}, func(context.Context, map[string]any) (any, error) { return nil, nil }))
	assert.Error(t, r.Register(domain.Tool{Name: "x"}, nil))
	assert.Error(t, r.Register(domain.Tool{Name: "bad", Parameters: map[string]any{"type": 12}},
		func(context.Context, map[string]any) (any, error) { return nil, nil }))
	assert.Panics(t, func() { r.MustRegister(domain.Tool{}, nil) })
}

func TestRegistry_Catalog(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{"fail", "listFiles", "panic", "whoami"}, r.Names())
	tools := r.Tools()
	require.Len(t, tools, 4)
	assert.Equal(t, "List the files of a directory", tools[1].Description)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := newTestRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.ExecuteTool(context.Background(), "listFiles", map[string]any{"path": "src"}, domain.ToolContext{})
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()
}
