package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const partitionExt = ".jsonl"

// ErrRootNotFound reports that the partition root directory does not exist.
// It distinguishes "store not initialized" from "store empty".
var ErrRootNotFound = errors.New("memory root directory not found")

// epochTimestamp is the default timestamp for lines that omit one.
var epochTimestamp = time.Unix(0, 0).UTC().Format(time.RFC3339)

// readPartition parses one line-delimited JSON file. The line index counts
// non-blank lines only, malformed lines included, so identities derived from
// positions stay stable as long as the file itself is unmodified. A line
// that fails to parse is skipped without aborting the rest of the file.
func (s *Store) readPartition(path string) ([]internalRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %w", path, err)
	}

	records := make([]internalRecord, 0)
	index := int64(0)
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineIndex := index
		index++

		var raw RawRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			s.logger.Warn("skipping malformed record line",
				"file", path, "line", lineIndex, "error", err)
			continue
		}

		repo, ok := raw["repo"].(string)
		if !ok {
			repo = strings.TrimSuffix(filepath.Base(path), partitionExt)
		}
		timestamp, ok := raw["timestamp"].(string)
		if !ok {
			timestamp = epochTimestamp
		}

		records = append(records, internalRecord{
			id:        computeID(raw, path, lineIndex),
			repo:      repo,
			timestamp: timestamp,
			raw:       raw,
			file:      path,
			lineIndex: int(lineIndex),
		})
	}
	return records, nil
}

// loadAll reads every partition file under the root. Partition files that
// fail entirely (e.g. removed between ReadDir and ReadFile) are skipped;
// a missing root is a configuration error.
func (s *Store) loadAll() ([]internalRecord, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
		}
		return nil, fmt.Errorf("read memory root: %w", err)
	}

	var all []internalRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), partitionExt) {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		records, err := s.readPartition(path)
		if err != nil {
			s.logger.Warn("skipping unreadable partition", "file", path, "error", err)
			continue
		}
		all = append(all, records...)
	}
	return all, nil
}

// rewritePartition replaces a partition file's contents with the given
// records in original line order, one JSON object per line, each carrying
// its persisted id. The full replacement is built in memory before any
// byte touches the target file, so a failed write never leaves a torn line.
func rewritePartition(path string, records []internalRecord) error {
	sorted := make([]internalRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].lineIndex < sorted[j].lineIndex
	})

	lines := make([]string, 0, len(sorted))
	for _, rec := range sorted {
		rec.raw["id"] = rec.id
		encoded, err := json.Marshal(rec.raw)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.id, err)
		}
		lines = append(lines, string(encoded))
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rewrite partition %s: %w", path, err)
	}
	return nil
}

// appendLine appends a single encoded record to a partition file, creating
// the file when absent.
func appendLine(path string, raw RawRecord) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("append to partition %s: %w", path, err)
	}
	return nil
}
