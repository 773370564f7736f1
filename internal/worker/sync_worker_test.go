package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/amqp"
	"meurenda/internal/core"
	"meurenda/internal/sheets/memory"
)

func tx(id string, typ core.TransactionType) core.Transaction {
	return core.Transaction{ID: id, Date: core.NewDate(2024, 4, 1), Amount: decimal.NewFromInt(10), Type: typ}
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, nil)

	for _, msg := range []*amqp.TransactionSyncMessage{
		amqp.NewUpsertMessage(tx("1", core.Income)),
		amqp.NewUpsertMessage(tx("2", core.Expense)),
		amqp.NewUpsertMessage(tx("3", core.Expense)),
		amqp.NewDeleteMessage("1"),
	} {
		require.NoError(t, w.HandleSyncMessage(ctx, msg))
	}
	assert.Len(t, mirror.Rows(), 2)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewClearMessage(core.Expense)))
	assert.Empty(t, mirror.Rows())

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewUpsertMessage(tx("4", core.Investment))))
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewResetMessage()))
	assert.Empty(t, mirror.Rows())

	err := w.HandleSyncMessage(ctx, &amqp.TransactionSyncMessage{Op: "merge"})
	assert.ErrorIs(t, err, amqp.ErrInvalidMessage)
}

type failingMirror struct {
	*memory.Mirror
	failID string
}

func (f *failingMirror) Upsert(ctx context.Context, t core.Transaction) error {
	if t.ID == f.failID {
		return errors.New("quota exceeded")
	}
	return f.Mirror.Upsert(ctx, t)
}

func TestHandleSyncMessagePropagatesMirrorError(t *testing.T) {
	w := NewSyncWorker(&failingMirror{Mirror: memory.New(), failID: "x"}, nil)
	err := w.HandleSyncMessage(context.Background(), amqp.NewUpsertMessage(tx("x", core.Income)))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestResync(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	require.NoError(t, mirror.Upsert(ctx, tx("stale", core.Income)))

	w := NewSyncWorker(mirror, nil)
	require.NoError(t, w.Resync(ctx, []core.Transaction{tx("a", core.Income), tx("b", core.Expense)}))

	rows := mirror.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
}

func TestResyncReportsFailures(t *testing.T) {
	fm := &failingMirror{Mirror: memory.New(), failID: "b"}
	w := NewSyncWorker(fm, nil)
	err := w.Resync(context.Background(), []core.Transaction{tx("a", core.Income), tx("b", core.Income)})
	assert.ErrorContains(t, err, "1 of 2")
	assert.Len(t, fm.Rows(), 1)
}
