// Package session holds the per-conversation state the engine reads and
// writes. A Session is owned by exactly one writer at a time; hosts get a
// copy through View.
package session

import (
	"time"

	"github.com/google/uuid"

	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/continuity"
	"ai-command-arbiter/pkg/arbiter/focus"
	"ai-command-arbiter/pkg/arbiter/replay"
)

type Config struct {
	RingSize             int
	FocusPendingTTLTurns int
}

type Session struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	TurnCount   int               `json:"turn_count"`
	Epoch       int               `json:"epoch"`
	Continuity  *continuity.State `json:"continuity"`
	Focus       *focus.Latch      `json:"focus"`
	PendingTypo *replay.Pending   `json:"pending_typo,omitempty"`
	Memo        arbitration.Memo  `json:"memo"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func New(userID string, cfg Config) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Continuity: continuity.New(cfg.RingSize),
		Focus:      focus.NewLatch(cfg.FocusPendingTTLTurns),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NextTurn advances the monotonic turn counter and returns the new value.
func (s *Session) NextTurn() int {
	s.TurnCount++
	s.UpdatedAt = time.Now()
	return s.TurnCount
}

// TakePending removes and returns the pending scope-typo entry.
func (s *Session) TakePending() *replay.Pending {
	p := s.PendingTypo
	s.PendingTypo = nil
	return p
}

// Boundary clears conversational memory. The turn counter keeps counting so
// late responses from before the boundary are still recognisably stale.
func (s *Session) Boundary() {
	s.Epoch++
	s.Continuity.Reset()
	s.Focus.Reset()
	s.PendingTypo = nil
	s.Memo.Clear()
	s.UpdatedAt = time.Now()
}

// View is a read-only copy of a session for hosts and the API.
type View struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	TurnCount      int              `json:"turn_count"`
	Epoch          int              `json:"epoch"`
	Continuity     continuity.State `json:"continuity"`
	Focus          focus.Latch      `json:"focus"`
	PendingReplay  *replay.Pending  `json:"pending_replay,omitempty"`
	LastArbitrated arbitration.Memo `json:"last_arbitrated"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (s *Session) View() View {
	v := View{
		ID:             s.ID,
		UserID:         s.UserID,
		TurnCount:      s.TurnCount,
		Epoch:          s.Epoch,
		LastArbitrated: s.Memo,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.Continuity != nil {
		v.Continuity = cloneContinuity(*s.Continuity)
	}
	if s.Focus != nil {
		v.Focus = *s.Focus
	}
	if s.PendingTypo != nil {
		p := *s.PendingTypo
		p.SuggestedScopes = append(p.SuggestedScopes[:0:0], p.SuggestedScopes...)
		v.PendingReplay = &p
	}
	return v
}

func cloneContinuity(c continuity.State) continuity.State {
	out := c
	out.ActiveOptionIDs = append([]string(nil), c.ActiveOptionIDs...)
	out.RecentActionTrace = append([]continuity.Action(nil), c.RecentActionTrace...)
	out.RecentAccepted.IDs = c.RecentAccepted.Values()
	out.RecentRejected.IDs = c.RecentRejected.Values()
	if c.LastResolvedAction != nil {
		a := *c.LastResolvedAction
		out.LastResolvedAction = &a
	}
	return out
}
