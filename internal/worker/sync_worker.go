// Package worker applies ledger sync messages to an external mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"meurenda/internal/amqp"
	"meurenda/internal/core"
	"meurenda/internal/sheets"
)

// SyncWorker mirrors ledger mutations into a sheets.LedgerMirror.
type SyncWorker struct {
	mirror sheets.LedgerMirror
	logger *slog.Logger
}

func NewSyncWorker(mirror sheets.LedgerMirror, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{mirror: mirror, logger: logger}
}

// HandleSyncMessage applies one message. Errors are returned so the consumer
// can requeue the delivery.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		"op", msg.Op,
		"transaction_id", msg.TransactionID,
		"type", msg.Type)

	var err error
	switch msg.Op {
	case amqp.OpUpsert:
		err = w.mirror.Upsert(ctx, *msg.Transaction)
	case amqp.OpDelete:
		err = w.mirror.Delete(ctx, msg.TransactionID)
	case amqp.OpClear:
		err = w.mirror.ClearType(ctx, msg.Type)
	case amqp.OpReset:
		err = w.mirror.Reset(ctx)
	default:
		return fmt.Errorf("%w: unknown op %q", amqp.ErrInvalidMessage, msg.Op)
	}
	if err != nil {
		return fmt.Errorf("apply %s to mirror: %w", msg.Op, err)
	}
	return nil
}

// Resync rebuilds the mirror from a full ledger. The worker runs it at
// startup when it can read the same store as the server, to recover from
// messages lost while it was down.
func (w *SyncWorker) Resync(ctx context.Context, txs []core.Transaction) error {
	if err := w.mirror.Reset(ctx); err != nil {
		return fmt.Errorf("reset mirror: %w", err)
	}

	failed := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirror.Upsert(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction", "transaction_id", tx.ID, "error", err)
			failed++
		}
	}

	w.logger.InfoContext(ctx, "Startup resync completed",
		"total", len(txs),
		"synced", len(txs)-failed,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("resync: %d of %d transactions failed", failed, len(txs))
	}
	return nil
}
