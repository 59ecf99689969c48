package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringService = "gmail-compose"
	snapshotKey    = "session"
)

// Store is the durable key-value slot holding the serialized session. Load
// returns (nil, nil) when nothing is persisted.
type Store interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
	Delete() error
}

// KeyringStore persists the session snapshot in the system keychain, falling
// back to an encrypted file backend where no keychain is available.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyringStore opens the keyring backing store. fileDir is used by the
// file backend fallback.
func OpenKeyringStore(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyring.Open failed: %w", err)
	}

	return &KeyringStore{ring: ring}, nil
}

// Load reads the persisted session snapshot, if any.
func (s *KeyringStore) Load() (*Snapshot, error) {
	item, err := s.ring.Get(snapshotKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("ring.Get failed: %w", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(item.Data, snap); err != nil {
		return nil, fmt.Errorf("json.Unmarshal failed: %w", err)
	}

	return snap, nil
}

// Save writes the session snapshot, replacing any previous one.
func (s *KeyringStore) Save(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %w", err)
	}

	if err := s.ring.Set(keyring.Item{Key: snapshotKey, Data: data}); err != nil {
		return fmt.Errorf("ring.Set failed: %w", err)
	}

	return nil
}

// Delete removes the persisted snapshot. Missing entries are not an error.
func (s *KeyringStore) Delete() error {
	if err := s.ring.Remove(snapshotKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("ring.Remove failed: %w", err)
	}

	return nil
}
