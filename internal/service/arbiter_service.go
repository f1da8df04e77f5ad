package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ai-command-arbiter/internal/dto"
	"ai-command-arbiter/internal/entity"
	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/internal/repository/specification"
	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/engine"
	"ai-command-arbiter/pkg/arbiter/session"
	"ai-command-arbiter/pkg/events"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrTurnLogUnavailable   = errors.New("turn log storage is not configured")
	ErrTurnLogNotFound      = errors.New("turn log not found")
	ErrTelemetryUnavailable = errors.New("telemetry log is not configured")
)

const (
	telemetryScanLimit       = 10000
	defaultTelemetryPageSize = 50
)

type IArbiterService interface {
	CreateSession(ctx context.Context, userId string) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, userId, sessionId string) (*dto.SessionResponse, error)
	SubmitTurn(ctx context.Context, req *dto.SubmitTurnRequest) (*dto.TurnResponse, error)
	Boundary(ctx context.Context, userId, sessionId string) (*dto.SessionResponse, error)
	ScopeOpened(ctx context.Context, req *dto.ScopeOpenedRequest) (*dto.SessionResponse, error)
	GetTurnLogs(ctx context.Context, userId, sessionId string, limit, offset int) (*dto.TurnLogPageResponse, error)
	GetTurnLog(ctx context.Context, userId string, id uuid.UUID) (*dto.TurnLogResponse, error)
	GetTelemetry(ctx context.Context, userId, sessionId string, limit int) ([]*dto.TelemetryLogResponse, error)
}

type arbiterService struct {
	engine    *engine.Engine
	cfg       engine.Config
	sessions  contract.SessionRepository
	turnLogs  contract.TurnLogRepository
	telemetry logger.LogReader
	locks     *keyedMutex
	logger    logger.ILogger
}

// NewArbiterService builds the engine over a request-scoped host. turnLogs and
// telemetry may be nil when Postgres or the telemetry file are not configured.
func NewArbiterService(
	boundary arbitration.Boundary,
	tel engine.Telemetry,
	sessions contract.SessionRepository,
	turnLogs contract.TurnLogRepository,
	telemetryReader logger.LogReader,
	cfg engine.Config,
	log logger.ILogger,
) IArbiterService {
	return &arbiterService{
		engine:    engine.New(requestHost{}, boundary, tel, cfg, log),
		cfg:       cfg,
		sessions:  sessions,
		turnLogs:  turnLogs,
		telemetry: telemetryReader,
		locks:     newKeyedMutex(),
		logger:    log,
	}
}

func (s *arbiterService) CreateSession(ctx context.Context, userId string) (*dto.SessionResponse, error) {
	sess := session.New(userId, s.cfg.SessionConfig())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("SESSION", "Session created", map[string]interface{}{
		"session_id": sess.ID,
		"user_id":    userId,
	})
	return &dto.SessionResponse{View: sess.View()}, nil
}

func (s *arbiterService) GetSession(ctx context.Context, userId, sessionId string) (*dto.SessionResponse, error) {
	unlock := s.locks.Lock(sessionId)
	defer unlock()

	sess, err := s.load(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	return &dto.SessionResponse{View: sess.View()}, nil
}

func (s *arbiterService) SubmitTurn(ctx context.Context, req *dto.SubmitTurnRequest) (*dto.TurnResponse, error) {
	unlock := s.locks.Lock(req.SessionId)
	defer unlock()

	sess, err := s.load(ctx, req.UserId, req.SessionId)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ResolveTurn(withTurnInput(ctx, toTurnInput(req)), sess, req.Utterance)
	if err != nil {
		return nil, fmt.Errorf("resolve turn: %w", err)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return toTurnResponse(res), nil
}

// Boundary cancels a model call still running for the session before it waits
// for the session lock; the running turn then finishes as a discard.
func (s *arbiterService) Boundary(ctx context.Context, userId, sessionId string) (*dto.SessionResponse, error) {
	s.engine.CancelInFlight(sessionId)

	unlock := s.locks.Lock(sessionId)
	defer unlock()

	sess, err := s.load(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	s.engine.OnSessionBoundary(ctx, sess)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &dto.SessionResponse{View: sess.View()}, nil
}

func (s *arbiterService) ScopeOpened(ctx context.Context, req *dto.ScopeOpenedRequest) (*dto.SessionResponse, error) {
	unlock := s.locks.Lock(req.SessionId)
	defer unlock()

	sess, err := s.load(ctx, req.UserId, req.SessionId)
	if err != nil {
		return nil, err
	}

	if err := s.engine.OnScopeOpened(ctx, sess, toScope(req.Scope)); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &dto.SessionResponse{View: sess.View()}, nil
}

func (s *arbiterService) GetTurnLogs(ctx context.Context, userId, sessionId string, limit, offset int) (*dto.TurnLogPageResponse, error) {
	if s.turnLogs == nil {
		return nil, ErrTurnLogUnavailable
	}

	filters := []specification.Specification{
		specification.BySessionID{SessionID: sessionId},
		specification.ByUserID{UserID: userId},
	}

	total, err := s.turnLogs.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	logs, err := s.turnLogs.FindAll(ctx, append(filters,
		specification.OrderBy{Field: "turn", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)...)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TurnLogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, toTurnLogResponse(l))
	}
	return &dto.TurnLogPageResponse{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *arbiterService) GetTurnLog(ctx context.Context, userId string, id uuid.UUID) (*dto.TurnLogResponse, error) {
	if s.turnLogs == nil {
		return nil, ErrTurnLogUnavailable
	}

	l, err := s.turnLogs.FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrTurnLogNotFound
	}
	return toTurnLogResponse(l), nil
}

func toTurnLogResponse(l *entity.TurnLog) *dto.TurnLogResponse {
	return &dto.TurnLogResponse{
		Id:          l.Id,
		SessionId:   l.SessionId,
		Turn:        l.Turn,
		Action:      l.Action,
		CandidateId: l.CandidateId,
		Scope:       l.Scope,
		Reason:      l.Reason,
		ErrorKind:   l.ErrorKind,
		LLMCalls:    l.LLMCalls,
		Utterance:   l.Utterance,
		Replayed:    l.Replayed,
		CreatedAt:   l.CreatedAt,
	}
}

// GetTelemetry reads the session's events back from the isolated telemetry
// log, newest first.
func (s *arbiterService) GetTelemetry(ctx context.Context, userId, sessionId string, limit int) ([]*dto.TelemetryLogResponse, error) {
	if s.telemetry == nil {
		return nil, ErrTelemetryUnavailable
	}
	if _, err := s.load(ctx, userId, sessionId); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTelemetryPageSize
	}

	entries, err := s.telemetry.GetLogs("", "", telemetryScanLimit, 0)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.TelemetryLogResponse, 0, limit)
	for _, e := range entries {
		if !strings.HasPrefix(e.Module, events.ArbiterPrefix) || e.Details["session_id"] != sessionId {
			continue
		}
		res = append(res, &dto.TelemetryLogResponse{
			Id:        e.Id,
			Level:     e.Level,
			Event:     strings.TrimPrefix(e.Module, events.ArbiterPrefix),
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		})
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

// load returns the session only to its owner; anyone else sees not found.
func (s *arbiterService) load(ctx context.Context, userId, sessionId string) (*session.Session, error) {
	sess, ok, err := s.sessions.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !ok || sess.UserID != userId {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func toTurnResponse(res engine.Result) *dto.TurnResponse {
	out := &dto.TurnResponse{
		Action:      string(res.Action),
		CandidateId: res.CandidateID,
		Scope:       fromScope(res.Scope),
		Binding:     string(res.Binding),
		Confidence:  string(res.Confidence),
		Reason:      res.Reason,
		ErrorKind:   string(res.ErrorKind),
		Replayed:    res.Replayed,
		Turn:        res.Turn,
	}

	if c := res.Candidate; c != nil {
		out.Candidate = &dto.CandidateDto{
			Id:       c.ID,
			Label:    c.Label,
			Sublabel: c.Sublabel,
			Kind:     string(c.Kind),
			EntityId: c.Ref.EntityID,
		}
	}

	if m := res.Clarifier; m != nil {
		cl := &dto.ClarifierDto{
			Id:          m.ID,
			Type:        string(m.Type),
			Prompt:      m.Prompt,
			OptionSetId: m.OptionSetID,
			Options:     make([]dto.ClarifierOptionDto, 0, len(m.Options)),
		}
		for _, o := range m.Options {
			cl.Options = append(cl.Options, dto.ClarifierOptionDto{
				CandidateId: o.CandidateID,
				Label:       o.Label,
				Sublabel:    o.Sublabel,
				Kind:        string(o.Kind),
				Scope:       string(o.Scope),
				Suggested:   o.Suggested,
			})
		}
		out.Clarifier = cl
	}
	return out
}

// keyedMutex serialises turns per session id. Entries are dropped once no one
// holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
