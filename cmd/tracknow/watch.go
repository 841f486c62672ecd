package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tracknow/internal/client"
	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch <session-id>",
	Short:   "Join a session and print its real-time events",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		conn, err := apiClient.DialRealtime(ctx)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer conn.Close()

		if err := conn.Send("join", map[string]string{"sessionId": args[0], "actorName": name}); err != nil {
			return fmt.Errorf("joining %s: %w", args[0], err)
		}

		frames := make(chan *client.Frame)
		errc := make(chan error, 1)
		go func() {
			for {
				f, err := conn.Recv()
				if err != nil {
					errc <- err
					return
				}
				select {
				case frames <- f:
				case <-ctx.Done():
					return
				}
			}
		}()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-errc:
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("connection closed: %w", err)
			case f := <-frames:
				if jsonOutput {
					_ = json.NewEncoder(out).Encode(f)
					continue
				}
				printFrame(out, time.Now(), f)
			}
		}
	},
}

// printFrame renders one real-time frame as a single line.
func printFrame(w io.Writer, at time.Time, f *client.Frame) {
	stamp := ui.RenderMuted(at.Format("15:04:05"))
	switch f.Event {
	case "connected":
		var d struct {
			ActorID string `json:"actorId"`
		}
		_ = json.Unmarshal(f.Data, &d)
		fmt.Fprintf(w, "%s connected as %s\n", stamp, d.ActorID)
	case "rosterSnapshot":
		var members []model.Member
		_ = json.Unmarshal(f.Data, &members)
		fmt.Fprintf(w, "%s roster: %d members\n", stamp, len(members))
		for _, m := range members {
			fmt.Fprintf(w, "         %s (%s)\n", m.Name, m.ActorID)
		}
	case "memberJoined", "memberLeft":
		var d struct {
			ActorID string `json:"actorId"`
			Name    string `json:"name"`
		}
		_ = json.Unmarshal(f.Data, &d)
		verb := "joined"
		if f.Event == "memberLeft" {
			verb = "left"
		}
		fmt.Fprintf(w, "%s %s %s\n", stamp, ui.RenderAccent(displayName(d.Name, d.ActorID)), verb)
	case "locationUpdate":
		var d struct {
			ActorID  string         `json:"actorId"`
			Name     string         `json:"name"`
			Location model.Location `json:"location"`
		}
		_ = json.Unmarshal(f.Data, &d)
		fmt.Fprintf(w, "%s %s at %g, %g\n", stamp, ui.RenderAccent(displayName(d.Name, d.ActorID)), d.Location.Lat, d.Location.Lng)
	case "chatMessage":
		var d struct {
			ActorID string `json:"actorId"`
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(f.Data, &d)
		fmt.Fprintf(w, "%s <%s> %s\n", stamp, displayName(d.Name, d.ActorID), d.Message)
	case "geofenceAlert":
		var a model.Alert
		_ = json.Unmarshal(f.Data, &a)
		fmt.Fprintf(w, "%s %s %s [%s] %s\n", stamp, ui.RenderAction(string(a.Type)), a.ActorID, a.FenceName, a.Message)
	default:
		fmt.Fprintf(w, "%s %s %s\n", stamp, f.Event, f.Data)
	}
}

func displayName(name, actorID string) string {
	if name != "" {
		return name
	}
	return actorID
}

func init() {
	watchCmd.Flags().String("name", "observer", "display name announced to the session")
}
