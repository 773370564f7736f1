// Package sheets defines the ledger mirror the sync worker writes to.
package sheets

import (
	"context"

	"meurenda/internal/core"
)

// Header is the first row of a mirrored ledger sheet.
var Header = []string{"ID", "Data", "Tipo", "Valor", "Categoria", "Descrição"}

// LedgerMirror keeps an external copy of the ledger, one row per transaction.
type LedgerMirror interface {
	// Upsert writes tx, replacing any row with the same id.
	Upsert(ctx context.Context, tx core.Transaction) error
	// Delete removes the row for id. Missing rows are not an error.
	Delete(ctx context.Context, id string) error
	// ClearType removes every row of typ.
	ClearType(ctx context.Context, typ core.TransactionType) error
	// Reset removes every row but the header.
	Reset(ctx context.Context) error
}
