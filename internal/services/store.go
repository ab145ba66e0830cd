package services

import (
	"context"
	"time"
)

type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// SessionStore is the key/value capability the engine persists sessions in. A whole
// session record lives under one key so that CompareAndSwap covers every field.
//
// Implementations return ErrStoreMiss for absent or expired keys and wrap transport
// failures in ErrStoreUnavailable.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetMany returns one slot per key, nil where the key is missing.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	SetMany(ctx context.Context, entries []Entry) error
	DeleteMany(ctx context.Context, keys []string) error

	// CompareAndSwap replaces the value at key with next only if it still equals
	// expected, keeping the remaining TTL. It reports false when another writer won.
	CompareAndSwap(ctx context.Context, key string, expected, next []byte) (bool, error)
}

// OwnerIndex links owners to their sessions for lookup. It carries no fairness state.
type OwnerIndex interface {
	LinkOwnerSession(ctx context.Context, ownerID, sessionID string, ttl time.Duration) error
	UnlinkOwnerSession(ctx context.Context, ownerID, sessionID string) error
	LastSessionID(ctx context.Context, ownerID string) (string, error)
	RecordFinished(ctx context.Context, ownerID, sessionID string, at time.Time) error
	SessionHistory(ctx context.Context, ownerID string, limit int64) ([]string, error)
}
