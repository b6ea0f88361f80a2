package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/singleflight"
)

// RootSecretName is the fixed logical name the sealing secret lives under.
const RootSecretName = "state-sealing-root"

const (
	rootSecretSize = 32

	// Changing the label invalidates every previously sealed token.
	kdfLabel = "authlite state sealing v1"
)

// Key is a non-extractable handle over the derived AES-256-GCM key. The raw
// key bytes never leave this package; holders can only Seal and Open.
type Key struct {
	aead cipher.AEAD
}

// NonceSize returns the AEAD IV length in bytes.
func (k *Key) NonceSize() int {
	return k.aead.NonceSize()
}

// Seal encrypts and authenticates plaintext under iv. The iv must be freshly
// random for every call; reuse under the same key breaks GCM.
func (k *Key) Seal(iv, plaintext []byte) []byte {
	return k.aead.Seal(nil, iv, plaintext, nil)
}

// Open decrypts ciphertext (which carries the GCM tag) under iv. Any
// authentication failure is returned as an error, never as garbage output.
func (k *Key) Open(iv, ciphertext []byte) ([]byte, error) {
	return k.aead.Open(nil, iv, ciphertext, nil)
}

// Manager lazily creates or loads the one durable sealing key per store and
// hands out the shared Key handle. Construct it at the composition root and
// inject it; there is no package-level instance.
type Manager struct {
	store Store

	group singleflight.Group

	mu  sync.RWMutex
	key *Key
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// GetOrCreate returns the sealing key handle, generating and persisting the
// root secret on first use. Concurrent callers collapse into one creation,
// and across processes the first stored secret wins, so every caller ends up
// with the same key. Store failures surface as ErrStorageUnavailable with no
// in-memory fallback.
func (m *Manager) GetOrCreate(ctx context.Context) (*Key, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	v, err, _ := m.group.Do(RootSecretName, func() (any, error) {
		return m.loadOrCreate(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Key), nil
}

func (m *Manager) loadOrCreate(ctx context.Context) (*Key, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	secret, ok, err := m.store.Get(ctx, RootSecretName)
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh := make([]byte, rootSecretSize)
		if _, err := rand.Read(fresh); err != nil {
			return nil, fmt.Errorf("generate sealing secret: %w", err)
		}
		secret, err = m.store.PutIfAbsent(ctx, RootSecretName, fresh)
		if err != nil {
			return nil, err
		}
	}

	key, err = deriveKey(secret)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return key, nil
}

// Exists reports whether a sealing secret has been persisted, without
// creating one.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, ok, err := m.store.Get(ctx, RootSecretName)
	return ok, err
}

// Reset drops the cached handle and deletes the stored secret. Anything
// sealed under the old key becomes unopenable.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.key = nil
	m.mu.Unlock()
	return m.store.Delete(ctx, RootSecretName)
}

func deriveKey(secret []byte) (*Key, error) {
	kdf := hkdf.New(sha256.New, secret, nil, []byte(kdfLabel))
	raw := make([]byte, 32)
	if _, err := io.ReadFull(kdf, raw); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return &Key{aead: aead}, nil
}
