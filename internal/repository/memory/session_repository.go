package memory

import (
	"context"
	"time"

	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/pkg/arbiter/session"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

var _ contract.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository keeps sessions in process. Idle sessions expire after
// ttl and are purged every ttl/6.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, ttl/6),
	}
}

// Save refreshes the expiry on every write.
func (r *SessionRepository) Save(_ context.Context, s *session.Session) error {
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (*session.Session, bool, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*session.Session), true, nil
	}
	return nil, false, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.cache.Delete(id)
	return nil
}
