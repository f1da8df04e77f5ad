package candidate

import (
	"context"
	"fmt"

	"ai-command-arbiter/pkg/arbiter/arbiterr"
)

// Source is the host capability that lists candidates for a scope.
type Source interface {
	GetCandidatePool(ctx context.Context, scope Scope) ([]Candidate, error)
}

// Builder assembles the bounded pool for one turn.
type Builder struct {
	source  Source
	maxSize int
}

// NewBuilder creates a pool builder. maxSize <= 0 means unbounded.
func NewBuilder(source Source, maxSize int) *Builder {
	return &Builder{source: source, maxSize: maxSize}
}

// Build fetches and hard-filters the pool for scope. An empty result is
// returned together with a PoolEmpty error so callers can still report the
// scope it was bound to.
func (b *Builder) Build(ctx context.Context, scope Scope) (Pool, error) {
	raw, err := b.source.GetCandidatePool(ctx, scope)
	if err != nil {
		return Pool{Source: scope}, fmt.Errorf("get candidate pool %s: %w", scope, err)
	}

	pool := NewPool(scope, raw).Truncate(b.maxSize)
	if pool.IsEmpty() {
		return pool, arbiterr.New(arbiterr.KindPoolEmpty, "build_pool", nil)
	}
	return pool, nil
}
