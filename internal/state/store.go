// Package state holds the application's transactions and goals.
//
// Store is the single owner of both collections. Every mutation replaces a
// whole collection, which is what the persistence layer writes back.
package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"meurenda/internal/core"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrGoalNotFound        = errors.New("goal not found")
)

// Snapshot is a point-in-time copy of both collections.
type Snapshot struct {
	Transactions []core.Transaction `json:"transactions"`
	Goals        []core.Goal        `json:"goals"`
}

// Persister loads and saves the collections. Saves replace the stored
// collection entirely.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	SaveTransactions(ctx context.Context, txs []core.Transaction) error
	SaveGoals(ctx context.Context, goals []core.Goal) error
}

type Store struct {
	mu           sync.RWMutex
	transactions []core.Transaction
	goals        []core.Goal
	newID        func() string
}

func NewStore() *Store {
	return &Store{
		transactions: []core.Transaction{},
		goals:        []core.Goal{},
		newID:        uuid.NewString,
	}
}

// Load replaces the store's contents with snap. At most one goal stays active.
func (s *Store) Load(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = cloneOrEmpty(snap.Transactions)
	s.goals = cloneGoals(snap.Goals)
	s.enforceSingleActive("")
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Transactions: slices.Clone(s.transactions),
		Goals:        cloneGoals(s.goals),
	}
}

func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

func (s *Store) Goals() []core.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneGoals(s.goals)
}

// ActiveGoal returns a copy of the active goal, or nil.
func (s *Store) ActiveGoal() *core.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.IsActive {
			c := cloneGoal(g)
			return &c
		}
	}
	return nil
}

// AddTransaction assigns an id and appends the transaction.
func (s *Store) AddTransaction(in core.TransactionInput) (core.Transaction, []core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := in.WithID(s.newID())
	s.transactions = append(slices.Clone(s.transactions), tx)
	return tx, slices.Clone(s.transactions), nil
}

// DeleteTransaction removes the transaction with id.
func (s *Store) DeleteTransaction(id string) (core.Transaction, []core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	removed := s.transactions[i]
	s.transactions = slices.Delete(slices.Clone(s.transactions), i, i+1)
	return removed, slices.Clone(s.transactions), nil
}

// ClearTransactionsByType removes every transaction of typ and reports how
// many were removed.
func (s *Store) ClearTransactionsByType(typ core.TransactionType) (int, []core.Transaction, error) {
	if !typ.Valid() {
		return 0, nil, fmt.Errorf("%w: %q", core.ErrInvalidType, typ)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if t.Type != typ {
			kept = append(kept, t)
		}
	}
	removed := len(s.transactions) - len(kept)
	s.transactions = kept
	return removed, slices.Clone(kept), nil
}

// UpdateGoal inserts or replaces the goal with g.ID, assigning an id when it
// is empty. Saving an active goal deactivates every other goal.
func (s *Store) UpdateGoal(g core.Goal) (core.Goal, []core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = s.newID()
	}
	g = cloneGoal(g)

	goals := cloneGoals(s.goals)
	if i := slices.IndexFunc(goals, func(x core.Goal) bool { return x.ID == g.ID }); i >= 0 {
		goals[i] = g
	} else {
		goals = append(goals, g)
	}
	s.goals = goals
	if g.IsActive {
		s.enforceSingleActive(g.ID)
	}
	return cloneGoal(g), cloneGoals(s.goals)
}

func (s *Store) DeleteGoal(id string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.goals, func(g core.Goal) bool { return g.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	s.goals = slices.Delete(cloneGoals(s.goals), i, i+1)
	return cloneGoals(s.goals), nil
}

// SetActiveGoal activates id and deactivates all others. An unknown id is
// rejected and leaves the goals untouched.
func (s *Store) SetActiveGoal(id string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.goals, func(g core.Goal) bool { return g.ID == id }) {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	goals := cloneGoals(s.goals)
	for i := range goals {
		goals[i].IsActive = goals[i].ID == id
	}
	s.goals = goals
	return cloneGoals(s.goals), nil
}

func (s *Store) ClearGoals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = []core.Goal{}
}

// ResetApp clears both collections.
func (s *Store) ResetApp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = []core.Transaction{}
	s.goals = []core.Goal{}
}

// enforceSingleActive keeps only keepID active. With an empty keepID the
// first active goal wins. Callers hold the write lock.
func (s *Store) enforceSingleActive(keepID string) {
	found := false
	for i := range s.goals {
		if !s.goals[i].IsActive {
			continue
		}
		switch {
		case keepID != "":
			s.goals[i].IsActive = s.goals[i].ID == keepID
		case found:
			s.goals[i].IsActive = false
		default:
			found = true
		}
	}
}

func cloneGoal(g core.Goal) core.Goal {
	g.SelectedWeekDays = slices.Clone(g.SelectedWeekDays)
	if g.ManualMarginValue != nil {
		v := *g.ManualMarginValue
		g.ManualMarginValue = &v
	}
	return g
}

func cloneGoals(goals []core.Goal) []core.Goal {
	out := make([]core.Goal, len(goals))
	for i, g := range goals {
		out[i] = cloneGoal(g)
	}
	return out
}

func cloneOrEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clone(in)
}
