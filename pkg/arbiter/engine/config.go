package engine

import (
	"context"
	"time"

	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/clarifier"
	"ai-command-arbiter/pkg/arbiter/continuity"
	"ai-command-arbiter/pkg/arbiter/focus"
	"ai-command-arbiter/pkg/arbiter/gate"
	"ai-command-arbiter/pkg/arbiter/replay"
	"ai-command-arbiter/pkg/arbiter/scope"
	"ai-command-arbiter/pkg/arbiter/session"
)

// Host is everything the engine needs from the embedding application.
type Host interface {
	GetCandidatePool(ctx context.Context, s candidate.Scope) ([]candidate.Candidate, error)
	GetActiveSnapshot(ctx context.Context) (candidate.Snapshot, error)
	ExecuteCandidate(ctx context.Context, c candidate.Candidate, s candidate.Scope) (ExecResult, error)
}

// ExecResult reports side effects of an execution. OpenedScope is set when
// the action opened something the user can scope to next.
type ExecResult struct {
	OpenedScope candidate.Scope
}

// Telemetry is write-only and fire-and-forget.
type Telemetry interface {
	Emit(ctx context.Context, name string, fields map[string]interface{})
}

type TelemetryFunc func(ctx context.Context, name string, fields map[string]interface{})

func (f TelemetryFunc) Emit(ctx context.Context, name string, fields map[string]interface{}) {
	f(ctx, name, fields)
}

type nopTelemetry struct{}

func (nopTelemetry) Emit(context.Context, string, map[string]interface{}) {}

type Config struct {
	Scope                scope.Config
	Mode                 gate.Mode
	LLMTimeout           time.Duration
	MinConfidence        float64
	EvidenceAllowlist    []string
	ReplayTTLTurns       int
	FocusPendingTTLTurns int
	MaxClarifierOptions  int
	RingSize             int
	MaxPoolSize          int
}

func DefaultConfig() Config {
	return Config{
		Scope:                scope.DefaultConfig(),
		Mode:                 gate.ModeDefault,
		LLMTimeout:           4 * time.Second,
		MinConfidence:        0.6,
		EvidenceAllowlist:    arbitration.DefaultEvidenceAllowlist,
		ReplayTTLTurns:       replay.DefaultTTLTurns,
		FocusPendingTTLTurns: focus.DefaultPendingTTLTurns,
		MaxClarifierOptions:  clarifier.DefaultMaxOptions,
		RingSize:             continuity.DefaultSize,
		MaxPoolSize:          50,
	}
}

// SessionConfig is the session shape matching this engine configuration.
func (c Config) SessionConfig() session.Config {
	return session.Config{RingSize: c.RingSize, FocusPendingTTLTurns: c.FocusPendingTTLTurns}
}
