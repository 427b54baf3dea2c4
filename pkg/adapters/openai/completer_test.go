package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentgraph/pkg/decision"
)

type stubChatClient struct {
	lastParams openai.ChatCompletionNewParams
	resp       *openai.ChatCompletion
	err        error
}

func (s *stubChatClient) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func reply(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Model: "gpt"})
	assert.Error(t, err)
	_, err = New(&stubChatClient{}, Options{})
	assert.Error(t, err)
	_, err = NewFromAPIKey(" ", "", Options{Model: "gpt"})
	assert.Error(t, err)
}

func TestComplete_BuildsMessages(t *testing.T) {
	stub := &stubChatClient{resp: reply(`{"tool":"echo"}`)}
	c, err := New(stub, Options{Model: "gpt-test", MaxTokens: 256, JSONMode: true})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), decision.Prompt{Kind: decision.KindToolCall, System: "sys", User: "task"})
	require.NoError(t, err)
	assert.Equal(t, `{"tool":"echo"}`, out)

	assert.Equal(t, "gpt-test", string(stub.lastParams.Model))
	assert.Len(t, stub.lastParams.Messages, 2)
	assert.NotNil(t, stub.lastParams.ResponseFormat.OfJSONObject)
}

func TestComplete_NoSystem(t *testing.T) {
	stub := &stubChatClient{resp: reply("{}")}
	c, _ := New(stub, Options{Model: "gpt-test"})

	_, err := c.Complete(context.Background(), decision.Prompt{User: "task"})
	require.NoError(t, err)
	assert.Len(t, stub.lastParams.Messages, 1)
	assert.Nil(t, stub.lastParams.ResponseFormat.OfJSONObject)
}

func TestComplete_Errors(t *testing.T) {
	boom := errors.New("boom")
	c, _ := New(&stubChatClient{err: boom}, Options{Model: "m"})
	_, err := c.Complete(context.Background(), decision.Prompt{Kind: decision.KindPlan})
	assert.ErrorIs(t, err, boom)

	c, _ = New(&stubChatClient{resp: &openai.ChatCompletion{}}, Options{Model: "m"})
	_, err = c.Complete(context.Background(), decision.Prompt{})
	assert.ErrorContains(t, err, "no choices")

	c, _ = New(&stubChatClient{resp: reply("  ")}, Options{Model: "m"})
	_, err = c.Complete(context.Background(), decision.Prompt{})
	assert.ErrorContains(t, err, "empty content")
}

func TestNewFromAPIKey_CompatibleServer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"local",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewFromAPIKey("secret", srv.URL, Options{Model: "local"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), decision.Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "local", got["model"])
}
