package service

import (
	"context"
	"errors"

	"ai-command-arbiter/internal/dto"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/engine"
)

var errNoTurnInput = errors.New("no turn input on context")

// turnInput is what the client sent with one turn: its UI snapshot and the
// candidates it can offer per scope.
type turnInput struct {
	snapshot candidate.Snapshot
	pools    map[string][]candidate.Candidate
}

type turnInputKey struct{}

func withTurnInput(ctx context.Context, in *turnInput) context.Context {
	return context.WithValue(ctx, turnInputKey{}, in)
}

func turnInputFrom(ctx context.Context) (*turnInput, bool) {
	in, ok := ctx.Value(turnInputKey{}).(*turnInput)
	return in, ok
}

// requestHost answers the engine's host calls from the turn request on the
// context. Execution is performed by the client once it sees action=execute,
// so ExecuteCandidate only has to accept.
type requestHost struct{}

var _ engine.Host = requestHost{}

func (requestHost) GetCandidatePool(ctx context.Context, s candidate.Scope) ([]candidate.Candidate, error) {
	in, ok := turnInputFrom(ctx)
	if !ok {
		return nil, errNoTurnInput
	}
	return in.pools[s.String()], nil
}

func (requestHost) GetActiveSnapshot(ctx context.Context) (candidate.Snapshot, error) {
	in, ok := turnInputFrom(ctx)
	if !ok {
		return candidate.Snapshot{}, errNoTurnInput
	}
	return in.snapshot, nil
}

func (requestHost) ExecuteCandidate(context.Context, candidate.Candidate, candidate.Scope) (engine.ExecResult, error) {
	return engine.ExecResult{}, nil
}

func toTurnInput(req *dto.SubmitTurnRequest) *turnInput {
	in := &turnInput{
		snapshot: candidate.Snapshot{
			ActiveWidgetID:    req.Snapshot.ActiveWidgetId,
			ActivePanelID:     req.Snapshot.ActivePanelId,
			ActiveDashboardID: req.Snapshot.ActiveDashboardId,
			ActiveWorkspaceID: req.Snapshot.ActiveWorkspaceId,
			OpenWidgetIDs:     append([]string(nil), req.Snapshot.OpenWidgetIds...),
		},
		pools: make(map[string][]candidate.Candidate, len(req.Pools)),
	}

	for _, p := range req.Pools {
		src := toScope(p.Scope)
		key := src.String()
		for _, c := range p.Candidates {
			in.pools[key] = append(in.pools[key], candidate.Candidate{
				ID:       c.Id,
				Label:    c.Label,
				Sublabel: c.Sublabel,
				Kind:     candidate.Kind(c.Kind),
				Source:   src,
				Ref:      candidate.EntityRef{ScopeID: key, EntityID: c.EntityId},
			})
		}
	}
	return in
}

func toScope(s dto.ScopeDto) candidate.Scope {
	return candidate.Scope{Kind: candidate.ScopeKind(s.Kind), ID: s.Id}
}

func fromScope(s candidate.Scope) dto.ScopeDto {
	return dto.ScopeDto{Kind: string(s.Kind), Id: s.ID}
}
