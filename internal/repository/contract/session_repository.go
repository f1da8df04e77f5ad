package contract

import (
	"context"

	"ai-command-arbiter/pkg/arbiter/session"
)

// SessionRepository stores arbiter sessions between turns. Get reports a
// missing or expired session as (nil, false, nil).
type SessionRepository interface {
	Save(ctx context.Context, s *session.Session) error
	Get(ctx context.Context, id string) (*session.Session, bool, error)
	Delete(ctx context.Context, id string) error
}
