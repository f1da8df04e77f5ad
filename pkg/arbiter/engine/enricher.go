package engine

import (
	"context"
	"strings"

	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/continuity"
	"ai-command-arbiter/pkg/arbiter/session"
)

const recentMarker = "recently used"

// hostEnricher answers request_context from what the engine already has.
// Hosts that implement arbitration.Enricher themselves take over entirely.
type hostEnricher struct {
	host     Host
	accepted continuity.Ring
	maxPool  int
}

func (e *Engine) enricherFor(sess *session.Session) arbitration.Enricher {
	if custom, ok := e.host.(arbitration.Enricher); ok {
		return custom
	}
	return hostEnricher{host: e.host, accepted: sess.Continuity.RecentAccepted, maxPool: e.cfg.MaxPoolSize}
}

func (h hostEnricher) Enrich(ctx context.Context, pool candidate.Pool, evidenceType string) (candidate.Pool, error) {
	switch evidenceType {
	case arbitration.EvidenceItemList:
		raw, err := h.host.GetCandidatePool(ctx, pool.Source)
		if err != nil {
			return pool, err
		}
		return candidate.NewPool(pool.Source, raw).Truncate(h.maxPool), nil

	case arbitration.EvidenceRecent:
		out := candidate.Pool{Source: pool.Source, Candidates: make([]candidate.Candidate, 0, pool.Len())}
		for _, c := range pool.Candidates {
			if h.accepted.Contains(c.ID) {
				c.Sublabel = strings.TrimSpace(c.Sublabel + " (" + recentMarker + ")")
			}
			out.Candidates = append(out.Candidates, c)
		}
		return out, nil

	default:
		// no extra sublabels beyond what the host already sent
		return pool, nil
	}
}
