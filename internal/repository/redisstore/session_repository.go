// Package redisstore keeps arbiter sessions in Redis so several service
// instances can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/pkg/arbiter/session"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "arbiter:session:"

type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (r *SessionRepository) Save(ctx context.Context, s *session.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.rdb.Set(ctx, key(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, bool, error) {
	raw, err := r.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", id, err)
	}

	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, true, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, key(id)).Err()
}
