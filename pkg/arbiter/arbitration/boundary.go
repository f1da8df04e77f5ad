package arbitration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/llm"
)

// LLMBoundary implements Boundary on top of any llm.LLMProvider.
type LLMBoundary struct {
	provider llm.LLMProvider
	limiter  *rate.Limiter
	logger   logger.ILogger
}

// NewLLMBoundary wraps provider with a token-bucket limiter. perSecond <= 0
// disables limiting.
func NewLLMBoundary(provider llm.LLMProvider, perSecond float64, burst int, log logger.ILogger) *LLMBoundary {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &LLMBoundary{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   log,
	}
}

type wireResponse struct {
	Decision     string  `json:"decision"`
	CandidateID  string  `json:"candidate_id"`
	Confidence   float64 `json:"confidence"`
	EvidenceType string  `json:"evidence_type"`
}

func (b *LLMBoundary) Call(ctx context.Context, req Request) (Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}

	raw, err := b.provider.Generate(ctx, buildPrompt(req),
		llm.WithTemperature(0.0),
		llm.WithJSON(),
		llm.WithMaxTokens(128),
	)
	if err != nil {
		return Response{}, err
	}

	resp, err := parseResponse(raw)
	if err != nil {
		b.logger.Warn(module, "Unparseable model response", map[string]interface{}{
			"error": err.Error(),
			"raw":   truncate(raw, 200),
		})
		return Response{}, arbiterr.New(arbiterr.KindLLMAbstain, "parse_llm_response", err)
	}

	b.logger.Debug(module, "Model decision", map[string]interface{}{
		"decision":     string(resp.Decision),
		"candidate_id": resp.CandidateID,
		"confidence":   resp.Confidence,
		"attempt":      req.Attempt,
	})
	return resp, nil
}

func buildPrompt(req Request) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You pick which ONE of a fixed list of UI items the user means.\n")
	prompt.WriteString("You may ONLY answer with an id from <candidates>. Never invent ids.\n")
	prompt.WriteString("If you are not sure, say need_more_info. Guessing is worse than asking.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<scope>\n")
	prompt.WriteString(req.Scope)
	prompt.WriteString("\n</scope>\n\n")

	prompt.WriteString("<candidates>\n")
	for _, c := range req.Candidates {
		prompt.WriteString(fmt.Sprintf("- id=%q label=%q", c.ID, c.Label))
		if c.Sublabel != "" {
			prompt.WriteString(fmt.Sprintf(" detail=%q", c.Sublabel))
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("</candidates>\n\n")

	if len(req.Rejected) > 0 {
		prompt.WriteString("<rejected>\n")
		prompt.WriteString("The user already said these are NOT what they want:\n")
		for _, c := range req.Rejected {
			prompt.WriteString(fmt.Sprintf("- id=%q label=%q\n", c.ID, c.Label))
		}
		prompt.WriteString("</rejected>\n\n")
	}

	prompt.WriteString("<user_utterance>\n")
	prompt.WriteString(req.Utterance)
	prompt.WriteString("\n</user_utterance>\n\n")

	prompt.WriteString("<decisions>\n")
	prompt.WriteString("select: the utterance clearly names one candidate. Give candidate_id and confidence 0.0-1.0.\n")
	prompt.WriteString("need_more_info: two or more candidates fit, or none does.\n")
	if len(req.AllowedEvidence) > 0 {
		prompt.WriteString("request_context: you need more detail about these same candidates. evidence_type must be one of: ")
		prompt.WriteString(strings.Join(req.AllowedEvidence, ", "))
		prompt.WriteString("\n")
	}
	prompt.WriteString("</decisions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"decision\": \"select|need_more_info|request_context\", \"candidate_id\": \"\", \"confidence\": 0.0, \"evidence_type\": \"\"}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// parseResponse extracts the first JSON object from the model output.
func parseResponse(raw string) (Response, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return Response{}, fmt.Errorf("no JSON object in response")
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	kind := DecisionKind(strings.ToLower(strings.TrimSpace(wire.Decision)))
	switch kind {
	case DecisionSelect, DecisionNeedMoreInfo, DecisionRequestContext:
	default:
		return Response{}, fmt.Errorf("unknown decision %q", wire.Decision)
	}

	return Response{
		Decision:     kind,
		CandidateID:  strings.TrimSpace(wire.CandidateID),
		Confidence:   wire.Confidence,
		EvidenceType: strings.TrimSpace(wire.EvidenceType),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
