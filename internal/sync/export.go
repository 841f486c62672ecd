package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Source supplies the fences to export.
type Source interface {
	ListActiveFences(ctx context.Context) ([]*model.Fence, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	FenceCount   int       `json:"fence_count"`
	SessionCount int       `json:"session_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every active fence from src as JSONL to w, grouped by
// session and then ordered by ID so consecutive snapshots diff cleanly.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) error {
	fences, err := src.ListActiveFences(ctx)
	if err != nil {
		return fmt.Errorf("list fences: %w", err)
	}

	sort.Slice(fences, func(i, j int) bool {
		if fences[i].SessionID != fences[j].SessionID {
			return fences[i].SessionID < fences[j].SessionID
		}
		return fences[i].ID < fences[j].ID
	})

	sessions := make(map[string]struct{})
	for _, f := range fences {
		sessions[f.SessionID] = struct{}{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		FenceCount:   len(fences),
		SessionCount: len(sessions),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, f := range fences {
		if err := enc.Encode(record{Type: "fence", Data: f}); err != nil {
			return fmt.Errorf("encode fence %s: %w", f.ID, err)
		}
	}
	return nil
}
