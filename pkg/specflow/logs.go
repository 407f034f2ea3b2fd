package specflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Clarification status labels derived from the one-letter code field.
// Anything unrecognized, including a missing code, stays Open.
const (
	StatusResolved  = "Resolved"
	StatusDeferred  = "Deferred"
	StatusEscalated = "Escalated"
	StatusOpen      = "Open"
)

var clarificationStatusLabel = map[string]string{
	"r": StatusResolved,
	"d": StatusDeferred,
	"e": StatusEscalated,
}

// splitLogLine splits a pipe-delimited log line into at most n trimmed
// fields, padding with empty strings when the line is short.
func splitLogLine(line string, n int) []string {
	parts := strings.Split(line, "|")
	fields := make([]string, n)
	for i := 0; i < n && i < len(parts); i++ {
		fields[i] = strings.TrimSpace(parts[i])
	}
	return fields
}

// ParseClarificationLog parses `timestamp | code | topic | notes` lines.
// Blank lines are skipped; short lines parse with empty trailing fields.
func ParseClarificationLog(content string) []ClarificationEntry {
	entries := []ClarificationEntry{}
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		fields := splitLogLine(line, 4)
		status, ok := clarificationStatusLabel[strings.ToLower(fields[1])]
		if !ok {
			status = StatusOpen
		}
		entries = append(entries, ClarificationEntry{
			Timestamp: fields[0],
			Code:      fields[1],
			Status:    status,
			Topic:     fields[2],
			Notes:     fields[3],
			Raw:       line,
		})
	}
	return entries
}

// OutstandingClarifications counts entries whose status is not Resolved.
func OutstandingClarifications(entries []ClarificationEntry) int {
	outstanding := 0
	for _, entry := range entries {
		if entry.Status != StatusResolved {
			outstanding++
		}
	}
	return outstanding
}

// ParsePromptLog parses `timestamp | event | detail` lines.
func ParsePromptLog(content string) []PromptLogEntry {
	entries := []PromptLogEntry{}
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		fields := splitLogLine(line, 3)
		entries = append(entries, PromptLogEntry{
			Timestamp: fields[0],
			Event:     fields[1],
			Detail:    fields[2],
			Raw:       line,
		})
	}
	return entries
}

var (
	swarmInitPattern     = regexp.MustCompile(`(?i)capture[_-]?swarm`)
	statusInitialPattern = regexp.MustCompile(`(?i)status[_-]?prompt[_-]?initial|status[_-]?initial`)
	keepShippingPattern  = regexp.MustCompile(`(?i)keep[_-]?shipping`)
	statusFinalPattern   = regexp.MustCompile(`(?i)status[_-]?final|close[_-]?status`)
)

// DerivePromptStatus computes the four workflow milestones from the set of
// prompt log event names. Each milestone is true iff at least one event
// matches its pattern; no entries means no milestones.
func DerivePromptStatus(entries []PromptLogEntry) PromptStatus {
	hasEvent := func(pattern *regexp.Regexp) bool {
		for _, entry := range entries {
			if pattern.MatchString(entry.Event) {
				return true
			}
		}
		return false
	}
	return PromptStatus{
		SwarmInit:     hasEvent(swarmInitPattern),
		StatusInitial: hasEvent(statusInitialPattern),
		KeepShipping:  hasEvent(keepShippingPattern),
		StatusFinal:   hasEvent(statusFinalPattern),
	}
}

// logTimestamp matches the millisecond UTC format the capture tool writes.
const logTimestamp = "2006-01-02T15:04:05.000Z07:00"

// Logger appends prompt log entries for one flow slug in the same
// pipe-delimited format ParsePromptLog reads back. It is the write side of
// the prompt log; clarifications and snapshots are written elsewhere.
type Logger struct {
	slug string
	path string

	mu   sync.Mutex
	file *os.File
}

// NewLogger opens (creating if needed) the prompt log for a slug inside the
// given log directory. The file is opened append-only and owner-readable,
// since prompt details can quote user input.
func NewLogger(dir, slug string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompt log directory: %w", err)
	}
	path := filepath.Join(dir, slug+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open prompt log %s: %w", path, err)
	}
	return &Logger{slug: slug, path: path, file: file}, nil
}

// Slug returns the flow slug this logger writes for.
func (l *Logger) Slug() string {
	return l.slug
}

// sanitizeDetail keeps a detail on one line and out of the field separators.
func sanitizeDetail(detail string) string {
	detail = strings.ReplaceAll(detail, "\r", " ")
	detail = strings.ReplaceAll(detail, "\n", " ")
	return strings.ReplaceAll(detail, "|", "/")
}

// Log appends one `timestamp | event | detail` line.
func (l *Logger) Log(event, detail string) error {
	line := fmt.Sprintf("%s | %s | %s\n",
		time.Now().UTC().Format(logTimestamp), event, sanitizeDetail(detail))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("prompt log %s is closed", l.path)
	}
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("write prompt log %s: %w", l.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
