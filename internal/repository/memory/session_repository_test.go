package memory

import (
	"context"
	"testing"
	"time"

	"ai-command-arbiter/pkg/arbiter/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Minute)
	s := session.New("user-1", session.Config{RingSize: 5, FocusPendingTTLTurns: 2})

	require.NoError(t, repo.Save(ctx, s))

	got, ok, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, ok, err = repo.Get(ctx, s.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepositoryExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(20 * time.Millisecond)
	s := session.New("user-1", session.Config{RingSize: 5})
	require.NoError(t, repo.Save(ctx, s))

	assert.Eventually(t, func() bool {
		_, ok, _ := repo.Get(ctx, s.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
