package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	state := domain.NewRunState("hi", "c1", domain.DefaultLimits())
	state.CurrentPlan = []string{"a"}
	require.NoError(t, store.Save(ctx, "c1", state))

	state.CurrentPlan[0] = "mutated"
	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, loaded.CurrentPlan)

	loaded.CurrentPlan[0] = "mutated again"
	again, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.CurrentPlan)
}
