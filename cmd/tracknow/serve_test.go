package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alfredjeanlab/tracknow/internal/config"
)

func TestSyncDestinations_FileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fences.jsonl")
	cfg := &config.Config{SyncFile: path}

	dests := syncDestinations(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if len(dests) != 1 {
		t.Fatalf("expected 1 destination, got %d", len(dests))
	}
	if got := dests[0].(interface{ String() string }).String(); got != "file:"+path {
		t.Errorf("destination = %q", got)
	}
}

func TestSyncDestinations_None(t *testing.T) {
	if dests := syncDestinations(context.Background(), &config.Config{}, slog.New(slog.DiscardHandler)); len(dests) != 0 {
		t.Fatalf("expected no destinations, got %d", len(dests))
	}
}
