package session

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "tasknotes"
	tokenKey    = "session-token"
)

// TokenStore persists the access token between runs.
type TokenStore interface {
	// Load returns "" with a nil error when nothing is stored.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// KeyringStore keeps the token in a keyring item.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an open keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under fileDir on systems without one.
func OpenKeyring(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("tasknotes-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// Load implements TokenStore.
func (s *KeyringStore) Load() (string, error) {
	item, err := s.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting session token: %w", err)
	}
	return string(item.Data), nil
}

// Save implements TokenStore.
func (s *KeyringStore) Save(token string) error {
	err := s.ring.Set(keyring.Item{Key: tokenKey, Data: []byte(token), Label: "tasknotes session"})
	if err != nil {
		return fmt.Errorf("setting session token: %w", err)
	}
	return nil
}

// Clear implements TokenStore. Clearing an empty store is not an error.
func (s *KeyringStore) Clear() error {
	err := s.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session token: %w", err)
	}
	return nil
}
