package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("session: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RedisStore keeps sessions in Redis with a key TTL matching ExpiresAt.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store using the default key prefix.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return NewRedisStoreWithPrefix(client, "roommend:session:")
}

// NewRedisStoreWithPrefix creates a Redis-backed store with a custom key prefix.
func NewRedisStoreWithPrefix(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("session: empty id")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// unreadable entries are treated as absent
		if err := s.Delete(ctx, id); err != nil {
			return Session{}, fmt.Errorf("session: evict unreadable: %w", err)
		}
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
