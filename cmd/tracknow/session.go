package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tracknow/internal/client"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "List sessions with members or fences",
	GroupID: "sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := apiClient.ListSessions(context.Background())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), sessions)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
			return nil
		}
		printSessionTable(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var rosterCmd = &cobra.Command{
	Use:     "roster <session-id>",
	Short:   "Show the members of a session",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := apiClient.GetRoster(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting roster: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		printRoster(cmd.OutOrStdout(), r)
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:     "locations <session-id>",
	Short:   "Show recent location history of a session",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actorID, _ := cmd.Flags().GetString("actor")
		limit, _ := cmd.Flags().GetInt("limit")

		samples, err := apiClient.ListLocations(context.Background(), &client.ListLocationsRequest{
			SessionID: args[0],
			ActorID:   actorID,
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("listing locations: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), samples)
		}
		printLocations(cmd.OutOrStdout(), samples)
		return nil
	},
}

func init() {
	locationsCmd.Flags().String("actor", "", "only samples from this actor")
	locationsCmd.Flags().Int("limit", 50, "maximum number of samples")
}
