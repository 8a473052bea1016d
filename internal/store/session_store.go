// Package store holds the two shared mutable resources of the exam core:
// the TTL-bearing session store and the lease-based submission lock. Both
// live in Redis so any number of stateless service instances can share them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/traincenter/traincenter-backend/internal/model"
)

// SessionStore keeps one ExamSession per (org, paper) key, expiring
// entries after their TTL.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Redis client.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Put writes the session under key, unconditionally overwriting any previous
// entry and resetting expiry to ttl from now.
func (s *SessionStore) Put(ctx context.Context, key string, session *model.ExamSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns the session at key, or (nil, nil) when the entry was never
// written or has expired.
func (s *SessionStore) Get(ctx context.Context, key string) (*model.ExamSession, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	var session model.ExamSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Delete removes the entry at key. Idempotent; reports whether an entry was
// actually removed.
func (s *SessionStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether a live entry is present at key.
func (s *SessionStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}
