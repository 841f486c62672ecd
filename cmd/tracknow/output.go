package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/tracknow/internal/client"
	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printFence(w io.Writer, f *model.Fence) {
	fmt.Fprintf(w, "ID:          %s\n", f.ID)
	fmt.Fprintf(w, "Session:     %s\n", f.SessionID)
	fmt.Fprintf(w, "Name:        %s\n", f.Name)
	fmt.Fprintf(w, "Type:        %s\n", f.Type)
	fmt.Fprintf(w, "Center:      %g, %g\n", f.Lat, f.Lng)
	fmt.Fprintf(w, "Radius:      %g\n", f.Radius)
	fmt.Fprintf(w, "Active:      %t\n", f.Active)
	for i, r := range f.Rules {
		label := "Rules:"
		if i > 0 {
			label = ""
		}
		fmt.Fprintf(w, "%-13s%s -> %s %q\n", label, r.Condition, ui.RenderAction(string(r.Action)), r.Message)
	}
	if !f.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", f.CreatedAt.Format(timeLayout))
	}
	if !f.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", f.UpdatedAt.Format(timeLayout))
	}
}

func printFenceTable(w io.Writer, fences []*model.Fence) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCENTER\tRADIUS\tRULES")
	for _, f := range fences {
		name := f.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%g,%g\t%g\t%s\n", f.ID, name, f.Lat, f.Lng, f.Radius, ruleSummary(f.Rules))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d fences\n", len(fences))
}

// ruleSummary renders rules compactly, e.g. "ENTER:ALERT,EXIT:LOG".
func ruleSummary(rules []model.Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = string(r.Condition) + ":" + string(r.Action)
	}
	return strings.Join(parts, ",")
}

func printSessionTable(w io.Writer, sessions []client.SessionSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMEMBERS\tFENCES")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.SessionID, s.Members, s.Fences)
	}
	tw.Flush()
}

func printRoster(w io.Writer, r *client.Roster) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTOR\tNAME\tSTATUS\tLAST SEEN")
	for _, m := range r.Members {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ActorID, m.Name, m.Status, m.LastSeen.Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d members in %s\n", len(r.Members), r.SessionID)
}

func printLocations(w io.Writer, samples []*model.LocationSample) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTOR\tLAT\tLNG")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\n", s.Timestamp.Format(timeLayout), s.ActorID, s.Lat, s.Lng)
	}
	tw.Flush()
}
