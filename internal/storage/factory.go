package storage

import (
	"fmt"
	"log/slog"
)

// BackendType selects the Store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// NewStore creates the configured Store implementation. dbPath is only used
// by the sqlite backend.
func NewStore(backend BackendType, dbPath string) (Store, error) {
	switch backend {
	case SQLiteBackend:
		store, err := NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		slog.Info("Initialized SQLite store", "db_path", dbPath)
		return store, nil
	case MemoryBackend:
		slog.Info("Initialized in-memory store")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid storage backend: %s", backend)
	}
}
