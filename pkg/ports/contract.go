package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore
// implementation adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	chatID := "contract-test-chat-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewRunState("list the files in src", chatID, domain.DefaultLimits())
		state.CurrentPlan = []string{"list files in src"}
		state.CurrentTask = "list files in src"
		state.Messages = append(state.Messages, domain.Message{Role: domain.RoleHuman, Content: state.UserInput})
		state.DebugInfo[domain.DebugPendingToolCall] = domain.ToolCall{
			Tool:       "listFiles",
			Parameters: map[string]any{"path": "src"},
		}
		state.Iteration = 2
		state.NodeIterations[domain.PhasePlanner] = 1
		state.NodeIterations[domain.PhaseExecutor] = 1

		err := store.Save(ctx, chatID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, chatID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.ChatID, loaded.ChatID)
		assert.Equal(t, state.CurrentPhase, loaded.CurrentPhase)
		assert.Equal(t, state.CurrentPlan, loaded.CurrentPlan)
		assert.Equal(t, state.CurrentTask, loaded.CurrentTask)
		assert.Equal(t, 2, loaded.Iteration)
		assert.Equal(t, 1, loaded.NodeIterations[domain.PhaseExecutor])
		require.Len(t, loaded.Messages, 1)
		assert.Equal(t, domain.RoleHuman, loaded.Messages[0].Role)

		// Serializing stores hand the pending call back as a plain object.
		call, ok := loaded.PendingToolCall()
		require.True(t, ok)
		assert.Equal(t, "listFiles", call.Tool)
		assert.Equal(t, "src", call.Parameters["path"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+chatID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, chatID, domain.NewRunState("hi", chatID, domain.DefaultLimits()))
		require.NoError(t, err)

		err = store.Delete(ctx, chatID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, chatID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := chatID + "-1"
		id2 := chatID + "-2"
		_ = store.Save(ctx, id1, domain.NewRunState("a", id1, domain.DefaultLimits()))
		_ = store.Save(ctx, id2, domain.NewRunState("b", id2, domain.DefaultLimits()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		chats, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, chats, id1)
		assert.Contains(t, chats, id2)
	})
}
