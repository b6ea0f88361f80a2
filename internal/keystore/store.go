// Package keystore manages the durable secret behind state sealing. The
// secret is persisted in a key-value Store and only ever surfaces as an
// opaque Key handle that can seal and open but never reveal key bytes.
package keystore

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageUnavailable means the persistent key store could not be reached.
// Sealing must fail closed on it: an in-memory fallback key would die with
// the process and leave the callback leg unable to open anything sealed
// before the failure.
var ErrStorageUnavailable = errors.New("key storage unavailable")

// Store persists named secrets. Implementations wrap every backend failure
// with ErrStorageUnavailable.
type Store interface {
	// Get returns the secret stored under name, reporting whether it exists.
	Get(ctx context.Context, name string) ([]byte, bool, error)

	// Put stores value under name, replacing any existing entry.
	Put(ctx context.Context, name string, value []byte) error

	// PutIfAbsent stores value under name unless an entry already exists,
	// and returns whatever ended up stored. First writer wins, so every
	// caller converges on the same secret.
	PutIfAbsent(ctx context.Context, name string, value []byte) ([]byte, error)

	// Delete removes the entry under name. Deleting a missing entry is not
	// an error.
	Delete(ctx context.Context, name string) error
}

// MemStore is an in-memory Store for tests and composition roots that inject
// a fresh key per run. It must not back a real login flow: the callback leg
// may be a different process.
type MemStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]byte)}
}

func (m *MemStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemStore) Put(ctx context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) PutIfAbsent(ctx context.Context, name string, value []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[name]; ok {
		return append([]byte(nil), existing...), nil
	}
	m.entries[name] = append([]byte(nil), value...)
	return append([]byte(nil), value...), nil
}

func (m *MemStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, name)
	return nil
}
