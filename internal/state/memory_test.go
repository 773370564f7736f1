package state

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/core"
)

func TestMemoryPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()

	snap, err := p.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap.Transactions)
	assert.Empty(t, snap.Goals)

	s := newTestStore()
	_, txs, err := s.AddTransaction(input(core.Expense, 40))
	require.NoError(t, err)
	margin := decimal.NewFromInt(10)
	_, goals := s.UpdateGoal(core.Goal{ID: "g1", Type: core.GoalMonthly, ManualMarginValue: &margin})

	require.NoError(t, p.SaveTransactions(ctx, txs))
	require.NoError(t, p.SaveGoals(ctx, goals))

	// Mutating the saved slices must not leak into the persister.
	txs[0].Description = "changed"
	*goals[0].ManualMarginValue = decimal.NewFromInt(99)

	snap, err = p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.NotEqual(t, "changed", snap.Transactions[0].Description)
	require.Len(t, snap.Goals, 1)
	assert.True(t, snap.Goals[0].ManualMarginValue.Equal(decimal.NewFromInt(10)))
}
