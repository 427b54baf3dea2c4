package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/session"
)

type answeringAgent struct {
	fail error
}

func (a *answeringAgent) NewRun(chatID, userInput string, opts ...domain.StateOption) *domain.RunState {
	return domain.NewRunState(userInput, chatID, domain.DefaultLimits(), opts...)
}

func (a *answeringAgent) Step(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	p := domain.NewPatch()
	p.Executed = domain.PhasePlanner
	if a.fail != nil {
		p.SetFailure(a.fail.Error()).GoTo(domain.PhaseFailed).Apply(state)
		return state, a.fail
	}
	answer := "answer to " + state.UserInput
	if state.RequiresValidation {
		answer += " (validated)"
	}
	p.SetFinalAnswer(answer).Complete().GoTo(domain.PhaseCompleted).Apply(state)
	return state, nil
}

func (a *answeringAgent) Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	for !state.Finished() {
		if _, err := a.Step(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

func newServer(agent Agent, opts ...Option) *Server {
	return NewServer(agent, session.NewManager(memory.NewStore()), "test", opts...)
}

func TestHandleAsk(t *testing.T) {
	s := newServer(&answeringAgent{})
	ctx := context.Background()

	out, err := s.handleAsk(ctx, mcp.CallToolRequest{}, AskArgs{Input: "fix the tests", ChatID: "c1", RequiresValidation: true})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ChatID)
	assert.True(t, out.Completed)
	assert.Equal(t, "answer to fix the tests (validated)", out.FinalAnswer)

	got, err := s.handleGetRun(ctx, mcp.CallToolRequest{}, RunArgs{ChatID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestHandleAsk_NewChatID(t *testing.T) {
	s := newServer(&answeringAgent{})
	out, err := s.handleAsk(context.Background(), mcp.CallToolRequest{}, AskArgs{Input: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ChatID)
}

func TestHandleAsk_Failure(t *testing.T) {
	s := newServer(&answeringAgent{fail: errors.New("budget exhausted")})
	out, err := s.handleAsk(context.Background(), mcp.CallToolRequest{}, AskArgs{Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFailed, out.Phase)
	assert.Equal(t, "budget exhausted", out.Failure)
}

func TestHandleAsk_RejectsInput(t *testing.T) {
	s := newServer(&answeringAgent{}, WithMaxInputSize(4))
	_, err := s.handleAsk(context.Background(), mcp.CallToolRequest{}, AskArgs{Input: "too long"})
	assert.ErrorContains(t, err, "input rejected")
}

func TestHandleGetRun_Errors(t *testing.T) {
	s := newServer(&answeringAgent{})
	_, err := s.handleGetRun(context.Background(), mcp.CallToolRequest{}, RunArgs{})
	assert.Error(t, err)

	_, err = s.handleGetRun(context.Background(), mcp.CallToolRequest{}, RunArgs{ChatID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
