package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tracknow/internal/client"
	"github.com/alfredjeanlab/tracknow/internal/model"
)

var fenceCmd = &cobra.Command{
	Use:     "fence",
	Short:   "Manage geofences",
	GroupID: "fences",
}

var fenceCreateCmd = &cobra.Command{
	Use:   "create <session-id> <name>",
	Short: "Create a circular geofence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := fenceRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		req.SessionID = &args[0]
		req.Name = &args[1]

		f, err := apiClient.CreateFence(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating fence: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), f)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created fence %s\n", f.ID)
		printFence(cmd.OutOrStdout(), f)
		return nil
	},
}

var fenceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a geofence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := apiClient.GetFence(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting fence: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), f)
		}
		printFence(cmd.OutOrStdout(), f)
		return nil
	},
}

var fenceUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a geofence; unset flags keep their value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := fenceRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			req.Name = &name
		}

		f, err := apiClient.UpdateFence(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating fence: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), f)
		}
		printFence(cmd.OutOrStdout(), f)
		return nil
	},
}

var fenceDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete geofences",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := apiClient.DeleteFence(context.Background(), id); err != nil {
				return fmt.Errorf("deleting fence %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var fenceListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the active geofences of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fences, err := apiClient.ListSessionFences(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("listing fences: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), fences)
		}
		printFenceTable(cmd.OutOrStdout(), fences)
		return nil
	},
}

// fenceRequestFromFlags builds a FenceRequest carrying only the flags the
// user set, so updates leave everything else untouched.
func fenceRequestFromFlags(cmd *cobra.Command) (*client.FenceRequest, error) {
	req := &client.FenceRequest{}
	flags := cmd.Flags()

	floatFlag := func(name string) *float64 {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetFloat64(name)
		return &v
	}
	req.Lat = floatFlag("lat")
	req.Lng = floatFlag("lng")
	req.Radius = floatFlag("radius")

	if flags.Changed("inactive") {
		inactive, _ := flags.GetBool("inactive")
		active := !inactive
		req.Active = &active
	}

	if flags.Changed("rule") || flags.Changed("rules-json") {
		rules, err := parseRuleFlags(flags)
		if err != nil {
			return nil, err
		}
		req.Rules = &rules
	}
	return req, nil
}

type flagGetter interface {
	GetStringArray(name string) ([]string, error)
	GetString(name string) (string, error)
}

func parseRuleFlags(flags flagGetter) ([]model.Rule, error) {
	if raw, _ := flags.GetString("rules-json"); raw != "" {
		var rules []model.Rule
		if err := json.Unmarshal([]byte(raw), &rules); err != nil {
			return nil, fmt.Errorf("invalid --rules-json: %w", err)
		}
		return rules, nil
	}
	defs, _ := flags.GetStringArray("rule")
	rules := make([]model.Rule, 0, len(defs))
	for _, def := range defs {
		r, err := parseRule(def)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// parseRule parses CONDITION:ACTION:message, e.g. "ENTER:ALERT:entered the zone".
// Condition and action are case-insensitive; the message may contain colons.
func parseRule(def string) (model.Rule, error) {
	parts := strings.SplitN(def, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return model.Rule{}, fmt.Errorf("invalid rule %q: expected CONDITION:ACTION:message", def)
	}
	r := model.Rule{
		Condition: model.Condition(strings.ToUpper(parts[0])),
		Action:    model.Action(strings.ToUpper(parts[1])),
		Message:   parts[2],
	}
	if !r.Condition.IsValid() {
		return model.Rule{}, fmt.Errorf("invalid rule %q: unknown condition %q", def, parts[0])
	}
	if !r.Action.IsValid() {
		return model.Rule{}, fmt.Errorf("invalid rule %q: unknown action %q", def, parts[1])
	}
	return r, nil
}

func addFenceFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "center latitude")
	cmd.Flags().Float64("lng", 0, "center longitude")
	cmd.Flags().Float64("radius", 0, "radius in coordinate degrees")
	cmd.Flags().StringArray("rule", nil, "rule as CONDITION:ACTION:message (repeatable)")
	cmd.Flags().String("rules-json", "", "rules as a JSON array (overrides --rule)")
	cmd.Flags().Bool("inactive", false, "mark the fence inactive")
}

func init() {
	addFenceFlags(fenceCreateCmd)
	for _, name := range []string{"lat", "lng", "radius"} {
		_ = fenceCreateCmd.MarkFlagRequired(name)
	}
	addFenceFlags(fenceUpdateCmd)
	fenceUpdateCmd.Flags().String("name", "", "new fence name")

	fenceCmd.AddCommand(fenceCreateCmd)
	fenceCmd.AddCommand(fenceShowCmd)
	fenceCmd.AddCommand(fenceUpdateCmd)
	fenceCmd.AddCommand(fenceDeleteCmd)
	fenceCmd.AddCommand(fenceListCmd)
}
