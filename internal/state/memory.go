package state

import (
	"context"
	"sync"

	"meurenda/internal/core"
)

// MemoryPersister keeps the last saved collections in process memory. It
// backs DATA_BACKEND=memory, where nothing survives a restart.
type MemoryPersister struct {
	mu   sync.Mutex
	snap Snapshot
}

var _ Persister = (*MemoryPersister)(nil)

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Transactions: cloneOrEmpty(p.snap.Transactions),
		Goals:        cloneGoals(p.snap.Goals),
	}, nil
}

func (p *MemoryPersister) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Transactions = cloneOrEmpty(txs)
	return nil
}

func (p *MemoryPersister) SaveGoals(_ context.Context, goals []core.Goal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Goals = cloneGoals(goals)
	return nil
}
