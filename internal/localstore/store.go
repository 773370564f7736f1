// Package localstore persists the two collections as JSON documents in a
// data directory.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"meurenda/internal/core"
	"meurenda/internal/state"
)

const (
	TransactionsFile = "transactions.json"
	GoalsFile        = "goals.json"
)

var ErrCorrupt = errors.New("corrupt data file")

// FileStore implements state.Persister on top of two JSON files. Each save
// writes a temporary file and renames it over the previous one.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

var _ state.Persister = (*FileStore)(nil)

func New(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Ping reports whether the data directory is still usable.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Load reads both collections. Missing files load as empty collections.
func (s *FileStore) Load(ctx context.Context) (state.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := state.Snapshot{Transactions: []core.Transaction{}, Goals: []core.Goal{}}
	if err := s.read(TransactionsFile, &snap.Transactions); err != nil {
		return state.Snapshot{}, err
	}
	if err := s.read(GoalsFile, &snap.Goals); err != nil {
		return state.Snapshot{}, err
	}
	if snap.Transactions == nil {
		snap.Transactions = []core.Transaction{}
	}
	if snap.Goals == nil {
		snap.Goals = []core.Goal{}
	}

	s.logger.DebugContext(ctx, "Data files loaded",
		"dir", s.dir, "transactions", len(snap.Transactions), "goals", len(snap.Goals))
	return snap, nil
}

func (s *FileStore) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	return s.write(ctx, TransactionsFile, txs)
}

func (s *FileStore) SaveGoals(ctx context.Context, goals []core.Goal) error {
	if goals == nil {
		goals = []core.Goal{}
	}
	return s.write(ctx, GoalsFile, goals)
}

func (s *FileStore) read(name string, dst any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

func (s *FileStore) write(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Data file written", "file", name, "bytes", len(data))
	return nil
}
