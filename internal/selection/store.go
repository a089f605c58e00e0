package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotSet is returned when a user has no current company selected.
var ErrNotSet = errors.New("no company selected")

// Store persists one value per user: the company currently treated as their
// default. It is a dumb mirror; no reconciliation logic lives here.
type Store interface {
	Get(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, companyID string) error
	Clear(ctx context.Context, userID string) error
}

// RedisStore keeps selections in redis under a session-scoped TTL, so they
// survive a service restart the way session storage survives a page reload.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func selectionKey(userID string) string {
	return "selection:" + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (string, error) {
	val, err := s.rdb.Get(ctx, selectionKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrNotSet
	}
	if err != nil {
		return "", fmt.Errorf("reading selection: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, companyID string) error {
	if err := s.rdb.Set(ctx, selectionKey(userID), companyID, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, selectionKey(userID)).Err(); err != nil {
		return fmt.Errorf("clearing selection: %w", err)
	}
	return nil
}

// MemoryStore is the fallback when redis is unavailable, and the store used
// in tests. Selections do not survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selections: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	companyID, ok := s.selections[userID]
	if !ok {
		return "", ErrNotSet
	}
	return companyID, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[userID] = companyID
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, userID)
	return nil
}
