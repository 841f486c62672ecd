package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/ui"
)

func defaultNATSURL() string {
	if s := os.Getenv("TRACKNOW_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

var busCmd = &cobra.Command{
	Use:     "bus",
	Short:   "Inspect the message bus",
	GroupID: "system",
}

var busTailCmd = &cobra.Command{
	Use:   "tail [subject]",
	Short: "Print bus messages as they are published (default: all tracknow subjects)",
	Args:  cobra.MaximumNArgs(1),
	// Talks to NATS directly; no HTTP client needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: set --nats, TRACKNOW_NATS_URL, or a remote with --nats")
		}
		subject := events.TopicAll
		if len(args) == 1 {
			subject = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("nats: disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				slog.Info("nats: reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(subject)
		if err != nil {
			return err
		}
		defer cancel()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printBusMessage(out, time.Now(), msg)
			}
		}
	},
}

// printBusMessage writes one bus message as "<time> <subject> <json>", or
// as a JSON object when --json is set.
func printBusMessage(w io.Writer, at time.Time, msg events.Message) {
	if jsonOutput {
		_ = json.NewEncoder(w).Encode(struct {
			Subject string          `json:"subject"`
			Time    time.Time       `json:"time"`
			Data    json.RawMessage `json:"data"`
		}{msg.Topic, at, json.RawMessage(msg.Data)})
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(at.Format("15:04:05")), ui.RenderAccent(msg.Topic), msg.Data)
}

func init() {
	busTailCmd.Flags().String("nats", defaultNATSURL(), "NATS server URL")
	busCmd.AddCommand(busTailCmd)
}
