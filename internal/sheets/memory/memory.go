package memory

import (
	"context"
	"slices"
	"sync"

	"meurenda/internal/core"
	ports "meurenda/internal/sheets"
)

// Mirror is an in-process LedgerMirror. The worker uses it when no
// spreadsheet is configured.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Upsert(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(tx.ID); i >= 0 {
		m.rows[i] = tx
		return nil
	}
	m.rows = append(m.rows, tx)
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.rows = slices.Delete(m.rows, i, i+1)
	}
	return nil
}

func (m *Mirror) ClearType(_ context.Context, typ core.TransactionType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.DeleteFunc(m.rows, func(t core.Transaction) bool { return t.Type == typ })
	return nil
}

func (m *Mirror) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	return nil
}

// Rows returns a copy of the mirrored rows in sheet order.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}

func (m *Mirror) index(id string) int {
	return slices.IndexFunc(m.rows, func(t core.Transaction) bool { return t.ID == id })
}
