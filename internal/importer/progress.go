package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type LogEntry struct {
	At      time.Time `json:"at"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// IsError reports whether the entry carries the error marker.
func (e LogEntry) IsError() bool {
	return strings.Contains(strings.ToLower(e.Message), "error")
}

type ProgressSnapshot struct {
	Total           int        `json:"total"`
	Current         int        `json:"current"`
	Operation       string     `json:"operation"`
	Log             []LogEntry `json:"log"`
	Warnings        int        `json:"warnings"`
	Errors          int        `json:"errors"`
	CancelRequested bool       `json:"cancelRequested"`
}

// Progress tracks one run for operators: a row counter that only moves
// forward, the current operation label, and an append-only log. It is safe
// for concurrent readers while the pipeline writes.
type Progress struct {
	mu        sync.Mutex
	total     int
	current   int
	operation string
	entries   []LogEntry
	warnings  int
	errors    int
	listeners []func(LogEntry)

	cancel atomic.Bool
	logger *slog.Logger
	attrs  []any
	now    func() time.Time
}

// NewProgress mirrors every entry to logger with attrs attached. A nil
// logger disables the mirror.
func NewProgress(logger *slog.Logger, attrs ...any) *Progress {
	return &Progress{logger: logger, attrs: attrs, now: time.Now}
}

// OnEntry registers fn for every entry appended after the call. Listeners run
// on the writer's goroutine, outside the lock.
func (p *Progress) OnEntry(fn func(LogEntry)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *Progress) SetTotal(n int) {
	p.mu.Lock()
	p.total = n
	p.mu.Unlock()
}

func (p *Progress) SetOperation(op string) {
	p.mu.Lock()
	p.operation = op
	p.mu.Unlock()
}

// Advance moves the counter to row. Moving backwards is ignored.
func (p *Progress) Advance(row int) {
	p.mu.Lock()
	if row > p.total && p.total > 0 {
		row = p.total
	}
	if row > p.current {
		p.current = row
	}
	p.mu.Unlock()
}

func (p *Progress) Infof(format string, args ...any) {
	p.append(LevelInfo, 0, fmt.Sprintf(format, args...))
}

func (p *Progress) Warnf(format string, args ...any) {
	p.append(LevelWarn, 0, "warning: "+fmt.Sprintf(format, args...))
}

// RowWarnf logs a warning about a source row.
func (p *Progress) RowWarnf(row int, format string, args ...any) {
	p.append(LevelWarn, row, fmt.Sprintf("warning: row %d: ", row)+fmt.Sprintf(format, args...))
}

func (p *Progress) Errorf(format string, args ...any) {
	p.append(LevelError, 0, "error: "+fmt.Sprintf(format, args...))
}

// Cancel asks the pipeline to stop at the next batch boundary.
func (p *Progress) Cancel() { p.cancel.Store(true) }

func (p *Progress) CancelRequested() bool { return p.cancel.Load() }

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	log := make([]LogEntry, len(p.entries))
	copy(log, p.entries)
	return ProgressSnapshot{
		Total:           p.total,
		Current:         p.current,
		Operation:       p.operation,
		Log:             log,
		Warnings:        p.warnings,
		Errors:          p.errors,
		CancelRequested: p.cancel.Load(),
	}
}

func (p *Progress) append(level Level, row int, message string) {
	entry := LogEntry{At: p.now().UTC(), Level: level, Message: message}

	p.mu.Lock()
	p.entries = append(p.entries, entry)
	if level == LevelWarn {
		p.warnings++
	}
	if entry.IsError() {
		p.errors++
	}
	listeners := p.listeners
	p.mu.Unlock()

	if p.logger != nil {
		attrs := append([]any{}, p.attrs...)
		if row > 0 {
			attrs = append(attrs, "row", row)
		}
		p.logger.Log(context.Background(), slogLevel(level), message, attrs...)
	}
	for _, fn := range listeners {
		fn(entry)
	}
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
