package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/amqp"
	"meurenda/internal/config"
	"meurenda/internal/identity"
	"meurenda/internal/localstore"
	"meurenda/internal/state"
	"meurenda/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "file",
		DataDir:      "/tmp/data",
		AMQPURL:      "amqp://localhost/",
		AMQPExchange: "meurenda",
		AMQPQueue:    "q",
	})
	require.NoError(t, err)
	assert.Equal(t, FileBackend, cfg.Type)
	assert.Equal(t, "/tmp/data", cfg.DataDirectory)
	assert.Equal(t, "meurenda", cfg.AMQPExchange)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"file", Config{Type: FileBackend, DataDirectory: "data"}, false},
		{"file without dir", Config{Type: FileBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x/", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "file", "sqlite"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)

	assert.IsType(t, &state.MemoryPersister{}, res.Persister)
	assert.IsType(t, &identity.MemoryRepository{}, res.Users)
	assert.Nil(t, res.Pinger)
	assert.Nil(t, res.Publisher)
	assert.NoError(t, res.Close())
}

func TestCreateFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: FileBackend, DataDirectory: dir})
	require.NoError(t, err)

	store, ok := res.Persister.(*localstore.FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, store.Dir())
	require.NotNil(t, res.Pinger)
	assert.NoError(t, res.Pinger.Ping(context.Background()))
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meurenda.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	repo, ok := res.Persister.(*storage.SQLiteRepository)
	require.True(t, ok)
	assert.Same(t, repo, res.Users)
	assert.NoError(t, res.Pinger.Ping(context.Background()))
}

func TestUnreachableBrokerDisablesSync(t *testing.T) {
	f := NewFactory(nil)
	dialed := 0
	f.dialPublisher = func(Config) (*amqp.Client, error) {
		dialed++
		return nil, errors.New("connection refused")
	}

	res, err := f.CreateBackend(context.Background(), Config{
		Type:         MemoryBackend,
		AMQPURL:      "amqp://localhost:5672/",
		AMQPExchange: "meurenda",
		AMQPQueue:    "sync_transactions",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dialed)
	assert.Nil(t, res.Publisher)
	assert.NoError(t, res.Close())
}

func TestJoinCleanup(t *testing.T) {
	var order []string
	fn := joinCleanup(
		func() error { order = append(order, "a"); return errors.New("a failed") },
		nil,
		func() error { order = append(order, "b"); return nil },
	)
	err := fn()
	assert.EqualError(t, err, "a failed")
	assert.Equal(t, []string{"a", "b"}, order)
}
