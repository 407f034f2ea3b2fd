package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// injectionPrefix heads every assembled prompt injection block.
const injectionPrefix = "Memories which may be helpful:\n"

const (
	maxInjectionBytes = 1200
	maxLoggedBytes    = 2000
)

const injectionLogName = "memory_injection.log"

// isNoise reports whether assembled injection text carries no usable
// memories.
func isNoise(text string) bool {
	lowered := strings.ToLower(text)
	return strings.TrimSpace(text) == "" ||
		strings.Contains(lowered, "no matches") ||
		strings.Contains(lowered, "no results") ||
		strings.Contains(lowered, "0 records")
}

// Injection searches the store and formats the top matching lessons as a
// prompt block for an agent session. Returns "" when the query is blank or
// nothing useful matched; that is not an error.
func (s *Store) Injection(ctx context.Context, query string, limit int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	page, err := s.Query(ctx, QueryOptions{Search: query, Page: 1, Size: limit})
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(page.Items))
	for _, rec := range page.Items {
		lesson := strings.TrimSpace(rec.Lesson)
		if lesson == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", rec.Repo, lesson))
	}

	body := strings.Join(lines, "\n")
	if isNoise(body) {
		return "", nil
	}
	if len(body) > maxInjectionBytes {
		body = body[:maxInjectionBytes] + "..."
	}
	return injectionPrefix + body, nil
}

// LogInjection appends one entry to the injection audit log kept alongside
// the partition files. Pass an empty injected string when nothing was
// injected. Write failures surface so the caller can decide to ignore them.
func (s *Store) LogInjection(ctx context.Context, query, injected string) error {
	entry := &strings.Builder{}
	fmt.Fprintf(entry, "[%s] query: %s\n", time.Now().UTC().Format(time.RFC3339), query)
	if injected == "" {
		entry.WriteString("injected: <none>\n")
	} else {
		snippet := strings.TrimSpace(injected)
		if len(snippet) > maxLoggedBytes {
			snippet = snippet[:maxLoggedBytes] + "..."
		}
		entry.WriteString("injected:\n")
		entry.WriteString(snippet)
		entry.WriteString("\n")
	}
	entry.WriteString("\n")

	path := filepath.Join(s.root, injectionLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open injection log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry.String()); err != nil {
		return fmt.Errorf("write injection log: %w", err)
	}
	return nil
}
