package store

import (
	"encoding/json"
	"fmt"

	"steemauth/internal/domain"
)

// AccountStore persists the account registry through a Storage.
type AccountStore struct {
	kv  domain.Storage
	key string
}

// NewAccountStore returns an AccountStore writing under keys.Accounts().
func NewAccountStore(kv domain.Storage, keys Keys) *AccountStore {
	return &AccountStore{kv: kv, key: keys.Accounts()}
}

// LoadRegistry reads the registry; a missing entry yields an empty registry.
func (s *AccountStore) LoadRegistry() (domain.Registry, error) {
	var reg domain.Registry
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		return reg, err
	}
	if !ok || raw == "" {
		return reg, nil
	}
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		return domain.Registry{}, fmt.Errorf("could not decode account registry: %w", err)
	}
	return reg, nil
}

// SaveRegistry writes the registry, replacing the previous one.
func (s *AccountStore) SaveRegistry(reg domain.Registry) error {
	b, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return s.kv.Set(s.key, string(b))
}

// ClearRegistry removes the registry entirely.
func (s *AccountStore) ClearRegistry() error {
	return s.kv.Delete(s.key)
}
