package keystore

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsStableKey(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemStore())

	first, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	second, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	// Same handle shared across calls.
	assert.Same(t, first, second)
}

func TestKeySealOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemStore())

	key, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	iv := make([]byte, key.NonceSize())
	_, err = rand.Read(iv)
	require.NoError(t, err)

	plaintext := []byte(`{"verifier":"abc"}`)
	sealed := key.Seal(iv, plaintext)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := key.Open(iv, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestKeyOpenRejectsModifiedCiphertext(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemStore())

	key, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	iv := make([]byte, key.NonceSize())
	sealed := key.Seal(iv, []byte("payload"))
	sealed[0] ^= 0x01

	_, err = key.Open(iv, sealed)
	assert.Error(t, err)
}

func TestManagersOnSameStoreShareOneKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	keyA, err := NewManager(store).GetOrCreate(ctx)
	require.NoError(t, err)
	keyB, err := NewManager(store).GetOrCreate(ctx)
	require.NoError(t, err)

	iv := make([]byte, keyA.NonceSize())
	sealed := keyA.Seal(iv, []byte("cross-manager"))

	opened, err := keyB.Open(iv, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("cross-manager"), opened)
}

func TestConcurrentFirstCreationConverges(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	const n = 16
	keys := make([]*Key, n)
	managers := make([]*Manager, n)
	for i := range managers {
		managers[i] = NewManager(store)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := managers[i].GetOrCreate(ctx)
			assert.NoError(t, err)
			keys[i] = key
		}(i)
	}
	wg.Wait()

	// Every manager must hold a key derived from the same stored secret:
	// anything one seals, all others can open.
	iv := make([]byte, keys[0].NonceSize())
	sealed := keys[0].Seal(iv, []byte("converged"))
	for i := 1; i < n; i++ {
		opened, err := keys[i].Open(iv, sealed)
		require.NoError(t, err, "manager %d diverged", i)
		assert.Equal(t, []byte("converged"), opened)
	}
}

func TestResetInvalidatesOldKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	m := NewManager(store)

	old, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	iv := make([]byte, old.NonceSize())
	sealed := old.Seal(iv, []byte("pre-reset"))

	require.NoError(t, m.Reset(ctx))

	fresh, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	_, err = fresh.Open(iv, sealed)
	assert.Error(t, err, "new key must not open old tokens")
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemStore())

	ok, err := m.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.GetOrCreate(ctx)
	require.NoError(t, err)

	ok, err = m.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// failingStore simulates a store whose backend is unreachable.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	return nil, false, ErrStorageUnavailable
}

func (failingStore) Put(ctx context.Context, name string, value []byte) error {
	return ErrStorageUnavailable
}

func (failingStore) PutIfAbsent(ctx context.Context, name string, value []byte) ([]byte, error) {
	return nil, ErrStorageUnavailable
}

func (failingStore) Delete(ctx context.Context, name string) error {
	return ErrStorageUnavailable
}

func TestGetOrCreateFailsClosedWithoutStorage(t *testing.T) {
	m := NewManager(failingStore{})

	_, err := m.GetOrCreate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}
