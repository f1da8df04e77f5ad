package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ai-command-arbiter/pkg/events"
	pktNats "ai-command-arbiter/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	tailURL     string
	tailSession string
	tailEvent   string
)

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow arbiter telemetry forwarded to NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := pktNats.NewSubscriber(tailURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			subject := pktNats.Subject(events.ArbiterPrefix + ">")
			if tailEvent != "" {
				subject = pktNats.Subject(events.ArbiterPrefix + tailEvent)
			}

			out := cmd.OutOrStdout()
			err = sub.Subscribe(ctx, subject, "", func(_ context.Context, e events.Event) error {
				if tailSession != "" && e.Payload()["session_id"] != tailSession {
					return nil
				}
				printEvent(out, e)
				return nil
			})
			if err != nil {
				return err
			}

			color.Cyan("Tailing %s on %s (Ctrl+C to stop)", subject, tailURL)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&tailURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	cmd.Flags().StringVar(&tailSession, "session", "", "only show events for this session id")
	cmd.Flags().StringVar(&tailEvent, "event", "", "only show one event name, e.g. turn_resolved")
	return cmd
}

func printEvent(out io.Writer, e events.Event) {
	c := color.New(color.FgWhite)
	switch e.EventType() {
	case events.ArbiterPrefix + events.TurnResolved:
		c = color.New(color.FgGreen)
	case events.ArbiterPrefix + events.SessionBoundary:
		c = color.New(color.FgYellow)
	case events.ArbiterPrefix + events.ArbitrationRun:
		c = color.New(color.FgMagenta)
	}

	data, err := json.Marshal(e.Payload())
	if err != nil {
		data = []byte(fmt.Sprintf("%v", e.Payload()))
	}
	c.Fprintf(out, "%s %-32s %s\n", e.Timestamp().Format("15:04:05.000"), e.EventType(), data)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
