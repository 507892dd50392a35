package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Names of the durable storage slots holding the current identity.
const (
	SlotUser = "user"
	SlotRole = "role"
)

// Storage is durable client-side key/value storage. *shared.Session
// satisfies it for browser clients.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// MemoryStorage is a Storage kept in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStorage) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// WriteIdentity serializes identity into the user and role slots.
func WriteIdentity(s Storage, identity Identity) error {
	user, err := json.Marshal(identity.User)
	if err != nil {
		return fmt.Errorf("auth: encode user: %w", err)
	}
	role, err := json.Marshal(identity.Role)
	if err != nil {
		return fmt.Errorf("auth: encode role: %w", err)
	}
	s.Set(SlotUser, string(user))
	s.Set(SlotRole, string(role))
	return nil
}

// ClearIdentity removes both identity slots.
func ClearIdentity(s Storage) {
	s.Delete(SlotUser)
	s.Delete(SlotRole)
}

// errIdentityMissing reports that no slots are stored.
var errIdentityMissing = errors.New("auth: no stored identity")

// readIdentity decodes the slots. A missing pair yields errIdentityMissing;
// anything else that is wrong with the slots is reported as corruption.
func readIdentity(s Storage) (Identity, error) {
	rawUser, rawRole := s.Get(SlotUser), s.Get(SlotRole)
	if rawUser == "" && rawRole == "" {
		return Identity{}, errIdentityMissing
	}
	if rawUser == "" || rawRole == "" {
		return Identity{}, errors.New("auth: partial identity in storage")
	}
	var identity Identity
	if err := json.Unmarshal([]byte(rawUser), &identity.User); err != nil {
		return Identity{}, fmt.Errorf("auth: decode user: %w", err)
	}
	if err := json.Unmarshal([]byte(rawRole), &identity.Role); err != nil {
		return Identity{}, fmt.Errorf("auth: decode role: %w", err)
	}
	if identity.User.ID == "" || identity.Role.ID == "" || identity.User.RoleID != identity.Role.ID {
		return Identity{}, errors.New("auth: stored user and role do not match")
	}
	return identity, nil
}
