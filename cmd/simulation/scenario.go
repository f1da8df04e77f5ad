package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/engine"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted conversation replayed against an in-process engine.
type Scenario struct {
	Name     string           `yaml:"name"`
	Strict   bool             `yaml:"strict"`
	Snapshot ScenarioSnapshot `yaml:"snapshot"`
	Pools    []ScenarioPool   `yaml:"pools"`
	LLM      []ScenarioAnswer `yaml:"llm"`
	Steps    []Step           `yaml:"steps"`
}

type ScenarioSnapshot struct {
	ActiveWidgetID    string   `yaml:"active_widget_id"`
	ActivePanelID     string   `yaml:"active_panel_id"`
	ActiveDashboardID string   `yaml:"active_dashboard_id"`
	ActiveWorkspaceID string   `yaml:"active_workspace_id"`
	OpenWidgetIDs     []string `yaml:"open_widget_ids"`
}

func (s ScenarioSnapshot) toSnapshot() candidate.Snapshot {
	return candidate.Snapshot{
		ActiveWidgetID:    s.ActiveWidgetID,
		ActivePanelID:     s.ActivePanelID,
		ActiveDashboardID: s.ActiveDashboardID,
		ActiveWorkspaceID: s.ActiveWorkspaceID,
		OpenWidgetIDs:     s.OpenWidgetIDs,
	}
}

// ScenarioAnswer is one canned model reply.
type ScenarioAnswer struct {
	Decision     string  `yaml:"decision"`
	CandidateID  string  `yaml:"candidate_id"`
	Confidence   float64 `yaml:"confidence"`
	EvidenceType string  `yaml:"evidence_type"`
}

func (a ScenarioAnswer) toResponse() arbitration.Response {
	return arbitration.Response{
		Decision:     arbitration.DecisionKind(a.Decision),
		CandidateID:  a.CandidateID,
		Confidence:   a.Confidence,
		EvidenceType: a.EvidenceType,
	}
}

type ScenarioScope struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
}

func (s ScenarioScope) toScope() candidate.Scope {
	return candidate.Scope{Kind: candidate.ScopeKind(s.Kind), ID: s.ID}
}

type ScenarioCandidate struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Sublabel string `yaml:"sublabel"`
	Kind     string `yaml:"kind"`
	EntityID string `yaml:"entity_id"`
}

type ScenarioPool struct {
	Scope      ScenarioScope       `yaml:"scope"`
	Candidates []ScenarioCandidate `yaml:"candidates"`
}

// Step is one of: a user utterance, a session boundary, or a scope the host
// reports as opened.
type Step struct {
	Say      string         `yaml:"say"`
	Boundary bool           `yaml:"boundary"`
	Open     *ScenarioScope `yaml:"open"`
	Expect   *Expectation   `yaml:"expect"`
}

type Expectation struct {
	Action      string `yaml:"action"`
	CandidateID string `yaml:"candidate_id"`
	Reason      string `yaml:"reason"`
	ErrorKind   string `yaml:"error_kind"`
}

// Mismatches lists every expected field that res does not carry.
func (e Expectation) Mismatches(res engine.Result) []string {
	var out []string
	check := func(field, want, got string) {
		if want != "" && want != got {
			out = append(out, fmt.Sprintf("%s: want %q, got %q", field, want, got))
		}
	}
	check("action", e.Action, string(res.Action))
	check("candidate_id", e.CandidateID, res.CandidateID)
	check("reason", e.Reason, res.Reason)
	check("error_kind", e.ErrorKind, string(res.ErrorKind))
	return out
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, p := range s.Pools {
		if !p.Scope.toScope().Kind.Valid() {
			return nil, fmt.Errorf("pool %d: unknown scope kind %q", i, p.Scope.Kind)
		}
	}
	for i, st := range s.Steps {
		n := 0
		if st.Say != "" {
			n++
		}
		if st.Boundary {
			n++
		}
		if st.Open != nil {
			n++
		}
		if n != 1 {
			return nil, fmt.Errorf("step %d: exactly one of say, boundary, open is required", i)
		}
	}
	return &s, nil
}

// scenarioHost serves the scenario's pools and records what was executed.
type scenarioHost struct {
	mu       sync.Mutex
	snap     candidate.Snapshot
	pools    map[string][]candidate.Candidate
	executed []string
}

var _ engine.Host = (*scenarioHost)(nil)

func newScenarioHost(s *Scenario) *scenarioHost {
	h := &scenarioHost{snap: s.Snapshot.toSnapshot(), pools: make(map[string][]candidate.Candidate)}
	for _, p := range s.Pools {
		src := p.Scope.toScope()
		key := src.String()
		for _, c := range p.Candidates {
			h.pools[key] = append(h.pools[key], candidate.Candidate{
				ID:       c.ID,
				Label:    c.Label,
				Sublabel: c.Sublabel,
				Kind:     candidate.Kind(c.Kind),
				Source:   src,
				Ref:      candidate.EntityRef{ScopeID: key, EntityID: c.EntityID},
			})
		}
	}
	return h
}

func (h *scenarioHost) GetCandidatePool(_ context.Context, s candidate.Scope) ([]candidate.Candidate, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pools[s.String()], nil
}

func (h *scenarioHost) GetActiveSnapshot(context.Context) (candidate.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap, nil
}

func (h *scenarioHost) ExecuteCandidate(_ context.Context, c candidate.Candidate, _ candidate.Scope) (engine.ExecResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executed = append(h.executed, c.ID)
	return engine.ExecResult{}, nil
}

// scriptedBoundary hands out the scenario's model answers in order and
// abstains once they run out.
type scriptedBoundary struct {
	mu        sync.Mutex
	responses []arbitration.Response
	calls     int
}

func newScriptedBoundary(answers []ScenarioAnswer) *scriptedBoundary {
	b := &scriptedBoundary{}
	for _, a := range answers {
		b.responses = append(b.responses, a.toResponse())
	}
	return b
}

func (b *scriptedBoundary) Call(context.Context, arbitration.Request) (arbitration.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls > len(b.responses) {
		return arbitration.Response{Decision: arbitration.DecisionNeedMoreInfo}, nil
	}
	return b.responses[b.calls-1], nil
}
