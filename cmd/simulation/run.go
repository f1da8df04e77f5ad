package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ai-command-arbiter/internal/config"
	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/engine"
	"ai-command-arbiter/pkg/arbiter/gate"
	"ai-command-arbiter/pkg/arbiter/session"
	"ai-command-arbiter/pkg/llm/factory"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runLive    bool
	runVerbose bool
)

// Report summarises one scenario run.
type Report struct {
	Steps    int
	Failures []string
	Executed []string
	LLMCalls int
}

func (r Report) Passed() bool { return len(r.Failures) == 0 }

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Replay scripted conversations against an in-process engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				s, err := LoadScenario(path)
				if err != nil {
					return err
				}

				boundary, err := scenarioBoundary(s)
				if err != nil {
					return err
				}

				report, err := RunScenario(cmd.Context(), s, boundary, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if !report.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runLive, "live", false, "ask the configured LLM provider instead of the scripted answers")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print clarifier options for every turn")
	return cmd
}

func scenarioBoundary(s *Scenario) (arbitration.Boundary, error) {
	if !runLive {
		return newScriptedBoundary(s.LLM), nil
	}

	cfg := config.Load()
	provider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, cfg.Ai.LLMAPIKey)
	if err != nil {
		return nil, err
	}
	color.Yellow("Using live LLM provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	return arbitration.NewLLMBoundary(provider, cfg.Ai.LLMRatePerSecond, cfg.Ai.LLMBurst, logger.NewNopLogger()), nil
}

// RunScenario plays every step in order and checks the expectations. A
// mismatch is recorded in the report; only setup problems return an error.
func RunScenario(ctx context.Context, s *Scenario, boundary arbitration.Boundary, out io.Writer) (Report, error) {
	cfg := engine.DefaultConfig()
	if s.Strict {
		cfg.Mode = gate.ModeStrict
	}

	host := newScenarioHost(s)
	e := engine.New(host, boundary, nil, cfg, logger.NewNopLogger())
	sess := session.New("simulation", cfg.SessionConfig())

	title := color.New(color.FgCyan, color.Bold)
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	dim := color.New(color.Faint)

	title.Fprintf(out, "=== %s ===\n", s.Name)

	var report Report
	for i, st := range s.Steps {
		report.Steps++
		switch {
		case st.Boundary:
			e.OnSessionBoundary(ctx, sess)
			dim.Fprintf(out, "[%02d] -- session boundary (epoch %d)\n", i+1, sess.Epoch)
			continue

		case st.Open != nil:
			if err := e.OnScopeOpened(ctx, sess, st.Open.toScope()); err != nil {
				return report, fmt.Errorf("step %d: %w", i+1, err)
			}
			dim.Fprintf(out, "[%02d] -- opened %s\n", i+1, st.Open.toScope())
			continue
		}

		res, err := e.ResolveTurn(ctx, sess, st.Say)
		if err != nil {
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}
		report.LLMCalls += res.LLMCalls

		fmt.Fprintf(out, "[%02d] USER: %s\n", i+1, st.Say)
		fmt.Fprintf(out, "     %s\n", describe(res))
		if runVerbose && res.Clarifier != nil {
			for n, o := range res.Clarifier.Options {
				dim.Fprintf(out, "       %d. %s (%s)\n", n+1, o.Label, o.CandidateID)
			}
		}

		if st.Expect == nil {
			continue
		}
		if miss := st.Expect.Mismatches(res); len(miss) > 0 {
			msg := fmt.Sprintf("step %d %q: %s", i+1, st.Say, strings.Join(miss, "; "))
			report.Failures = append(report.Failures, msg)
			fail.Fprintf(out, "     ✗ %s\n", strings.Join(miss, "; "))
		} else {
			pass.Fprintln(out, "     ✓ as expected")
		}
	}

	host.mu.Lock()
	report.Executed = append(report.Executed, host.executed...)
	host.mu.Unlock()

	summary := pass
	if !report.Passed() {
		summary = fail
	}
	summary.Fprintf(out, "%d steps, %d failures, %d model calls\n\n", report.Steps, len(report.Failures), report.LLMCalls)
	return report, nil
}

func describe(res engine.Result) string {
	switch res.Action {
	case engine.ActionExecute:
		label := res.CandidateID
		if res.Candidate != nil {
			label = res.Candidate.Label
		}
		return fmt.Sprintf("EXECUTE %s in %s [%s, %s]", label, res.Scope, res.Reason, res.Confidence)
	case engine.ActionClarify:
		prompt := ""
		if res.Clarifier != nil {
			prompt = res.Clarifier.Prompt
		}
		if res.ErrorKind != "" {
			return fmt.Sprintf("CLARIFY %q [%s, %s]", prompt, res.Reason, res.ErrorKind)
		}
		return fmt.Sprintf("CLARIFY %q [%s]", prompt, res.Reason)
	default:
		return fmt.Sprintf("%s [%s]", strings.ToUpper(string(res.Action)), res.Reason)
	}
}
