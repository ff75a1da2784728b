package importer

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestProgressOnlyMovesForward(t *testing.T) {
	p := NewProgress(nil)
	p.SetTotal(10)
	p.Advance(4)
	p.Advance(2)
	if got := p.Snapshot().Current; got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	p.Advance(50)
	if got := p.Snapshot().Current; got != 10 {
		t.Fatalf("expected clamp to total, got %d", got)
	}
}

func TestProgressLogMarkersAndMirror(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	p := NewProgress(logger, "run_id", "r-1")

	var streamed []LogEntry
	p.OnEntry(func(e LogEntry) { streamed = append(streamed, e) })

	p.Infof("found %d clients", 3)
	p.RowWarnf(7, "client %q not found", "Kofi")
	p.Errorf("inserting orders failed")

	snap := p.Snapshot()
	if len(snap.Log) != 3 || len(streamed) != 3 {
		t.Fatalf("expected 3 entries, got %d logged %d streamed", len(snap.Log), len(streamed))
	}
	if snap.Warnings != 1 || snap.Errors != 1 {
		t.Fatalf("unexpected counts warnings=%d errors=%d", snap.Warnings, snap.Errors)
	}
	if snap.Log[0].IsError() || !snap.Log[2].IsError() {
		t.Fatalf("error marker misread: %+v", snap.Log)
	}
	if !strings.HasPrefix(snap.Log[1].Message, "warning: row 7: ") {
		t.Fatalf("unexpected row warning %q", snap.Log[1].Message)
	}

	out := buf.String()
	for _, want := range []string{`"run_id":"r-1"`, `"row":7`, `"level":"ERROR"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in mirrored log:\n%s", want, out)
		}
	}
}

func TestProgressCancel(t *testing.T) {
	p := NewProgress(nil)
	if p.CancelRequested() {
		t.Fatalf("fresh progress must not be cancelled")
	}
	p.Cancel()
	if !p.CancelRequested() || !p.Snapshot().CancelRequested {
		t.Fatalf("cancel flag not visible")
	}
}
