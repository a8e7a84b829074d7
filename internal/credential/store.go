package credential

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
)

// KeyringStore keeps secrets in the platform credential store.
type KeyringStore struct {
	Service string
}

// NewKeyringStore returns a store under the application's service name.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: constants.AppName}
}

// KeyringUser is the account name for conn: "<username>@<base url>".
func KeyringUser(conn config.Connection) string {
	return conn.Username + "@" + conn.URL
}

func (s *KeyringStore) Get(conn config.Connection) (string, error) {
	secret, err := keyring.Get(s.Service, KeyringUser(conn))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return secret, err
}

func (s *KeyringStore) Set(conn config.Connection, secret string) error {
	return keyring.Set(s.Service, KeyringUser(conn), secret)
}

func (s *KeyringStore) Delete(conn config.Connection) error {
	err := keyring.Delete(s.Service, KeyringUser(conn))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) Get(conn config.Connection) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[KeyringUser(conn)]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (s *MemoryStore) Set(conn config.Connection, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[KeyringUser(conn)] = secret
	return nil
}

func (s *MemoryStore) Delete(conn config.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := KeyringUser(conn)
	if _, ok := s.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(s.secrets, key)
	return nil
}
