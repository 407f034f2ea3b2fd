package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentswarm/flowmem/pkg/metrics"
	"github.com/agentswarm/flowmem/pkg/trace"
)

// ErrRepoRequired reports a create call with a blank partition key.
var ErrRepoRequired = errors.New("repo is required to create a memory")

// isoMillis matches the millisecond-precision UTC timestamps written by the
// capture tooling, so new lines sort against existing ones.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const (
	defaultPage = 1
	defaultSize = 10
)

// Store is the memory record store. Every operation re-reads the partition
// files it needs; there is no cached index. Mutations take a per-partition
// lock for the duration of the load-then-rewrite cycle so two writers on the
// same partition cannot clobber each other within this process.
type Store struct {
	root    string
	logger  *slog.Logger
	metrics metrics.Collector
	tracer  trace.Exporter

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recovered parse errors and skipped
// files. A nil logger is safe and discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector for operation counters.
func WithMetrics(collector metrics.Collector) Option {
	return func(s *Store) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

// WithTracer sets the exporter that receives per-mutation trace records.
func WithTracer(exporter trace.Exporter) Option {
	return func(s *Store) {
		s.tracer = exporter
	}
}

// NewStore creates a store rooted at the given partition directory. The
// directory is not created; a missing root surfaces as ErrRootNotFound on
// first use so a misconfigured deployment is visible immediately.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:    root,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.NewDefault(),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the partition root directory.
func (s *Store) Root() string {
	return s.root
}

// partitionLock returns the mutex guarding one partition file.
func (s *Store) partitionLock(path string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime is lenient: anything unparseable sorts as the zero time.
func parseTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRepoRequired):
		return "validation"
	case errors.Is(err, ErrRootNotFound):
		return "config"
	default:
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return "io"
		}
		return "unknown"
	}
}

// finishOp records operation metrics. Called via defer from every exported
// operation.
func (s *Store) finishOp(ctx context.Context, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		s.metrics.RecordError(ctx, op, errorType(err))
	}
	s.metrics.RecordOperation(ctx, op, status, time.Since(start).Milliseconds())
}

// exportTrace emits one trace record for a mutation. Export failures are
// logged, never surfaced: tracing must not fail a write that succeeded.
func (s *Store) exportTrace(ctx context.Context, op string, start time.Time, spans []trace.SpanRecord, err error) {
	if s.tracer == nil {
		return
	}
	record := &trace.TraceRecord{
		Timestamp:   start,
		OperationID: uuid.NewString(),
		Operation:   op,
		DurationMs:  time.Since(start).Milliseconds(),
		Status:      "success",
		Spans:       spans,
	}
	if err != nil {
		record.Status = "error"
		record.ErrorType = errorType(err)
	}
	if exportErr := s.tracer.Export(ctx, record); exportErr != nil {
		s.logger.Warn("trace export failed", "operation", op, "error", exportErr)
	}
}

type scoredView struct {
	rec internalRecord
	pub Record
}

// Query lists records matching the options, newest first, paginated.
// An out-of-range page returns an empty item list with correct metadata.
func (s *Store) Query(ctx context.Context, opts QueryOptions) (result *PageResult, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "query", start, err) }(time.Now())

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	searchTerm := strings.ToLower(strings.TrimSpace(opts.Search))
	wantTags := make([]string, 0, len(opts.Tags))
	for _, tag := range opts.Tags {
		wantTags = append(wantTags, strings.ToLower(tag))
	}

	filtered := make([]scoredView, 0, len(all))
	for _, rec := range all {
		if opts.Repo != "" && rec.repo != opts.Repo {
			continue
		}
		pub := toPublic(rec)
		if opts.EventType != "" && pub.EventType != opts.EventType {
			continue
		}
		if opts.ExcludeArchived && pub.State == StateArchived {
			continue
		}
		if len(wantTags) > 0 && !hasAllTags(pub.Tags, wantTags) {
			continue
		}
		if searchTerm != "" && !strings.Contains(searchHaystack(pub), searchTerm) {
			continue
		}
		filtered = append(filtered, scoredView{rec: rec, pub: pub})
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return parseTime(filtered[i].rec.timestamp).After(parseTime(filtered[j].rec.timestamp))
	})
	applyColumnSort(filtered, opts.SortColumn, opts.SortDirection)

	page := opts.Page
	if page < 1 {
		page = defaultPage
	}
	size := opts.Size
	if size < 1 {
		size = defaultSize
	}

	total := len(filtered)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	items := make([]Record, 0, end-start)
	for _, entry := range filtered[start:end] {
		items = append(items, entry.pub)
	}

	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}

	return &PageResult{Items: items, Total: total, Page: page, Size: size, Pages: pages}, nil
}

func hasAllTags(tags []string, want []string) bool {
	lower := make(map[string]bool, len(tags))
	for _, tag := range tags {
		lower[strings.ToLower(tag)] = true
	}
	for _, tag := range want {
		if !lower[tag] {
			return false
		}
	}
	return true
}

func searchHaystack(rec Record) string {
	parts := []string{
		rec.Context,
		rec.Lesson,
		rec.Repo,
		rec.EventType,
		rec.Command,
		strings.Join(rec.Tags, " "),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// applyColumnSort re-sorts an already filtered set by an explicit column.
// Direction defaults to descending, matching the console's list view.
func applyColumnSort(views []scoredView, column, direction string) {
	asc := direction == "asc"
	var less func(a, b scoredView) bool
	switch column {
	case SortByLesson:
		less = func(a, b scoredView) bool { return a.pub.Lesson < b.pub.Lesson }
	case SortByRepo:
		less = func(a, b scoredView) bool { return a.pub.Repo < b.pub.Repo }
	case SortByCreatedAt:
		less = func(a, b scoredView) bool {
			return parseTime(a.pub.Timestamp).Before(parseTime(b.pub.Timestamp))
		}
	default:
		return
	}
	sort.SliceStable(views, func(i, j int) bool {
		if asc {
			return less(views[i], views[j])
		}
		return less(views[j], views[i])
	})
}

// Get returns the record with the given id, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (rec *Record, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "get", start, err) }(time.Now())

	if id == "" {
		return nil, nil
	}
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, candidate := range all {
		if candidate.id == id {
			pub := toPublic(candidate)
			return &pub, nil
		}
	}
	return nil, nil
}

// ListAll returns every record in the store, unfiltered and unpaged.
func (s *Store) ListAll(ctx context.Context) (records []Record, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "list_all", start, err) }(time.Now())

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	records = make([]Record, 0, len(all))
	for _, rec := range all {
		records = append(records, toPublic(rec))
	}
	return records, nil
}

// Create appends a new record to the partition named by repo, creating the
// partition file when absent. The derived identifier is embedded in the
// persisted line so a later reload re-reads it instead of re-hashing.
func (s *Store) Create(ctx context.Context, repo string, payload RawRecord) (rec *Record, err error) {
	start := time.Now()
	defer func() { s.finishOp(ctx, "create", start, err) }()

	repo = strings.TrimSpace(repo)
	if repo == "" {
		return nil, ErrRepoRequired
	}
	if _, statErr := os.Stat(s.root); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
			return nil, err
		}
		err = fmt.Errorf("stat memory root: %w", statErr)
		return nil, err
	}

	now := time.Now().UTC().Format(isoMillis)
	raw := RawRecord{
		"repo":       repo,
		"timestamp":  now,
		"created_at": now,
		"state":      normalizeState(payload["state"]),
	}
	for _, key := range []string{"event_type", "context", "lesson"} {
		if v, ok := payload[key]; ok {
			raw[key] = v
		}
	}
	if _, ok := raw["event_type"]; !ok {
		raw["event_type"] = "pattern"
	}
	if _, ok := raw["context"]; !ok {
		raw["context"] = ""
	}
	if _, ok := raw["lesson"]; !ok {
		raw["lesson"] = ""
	}
	if v, ok := payload["confidence"]; ok {
		raw["confidence"] = v
	} else {
		raw["confidence"] = nil
	}
	if v, ok := payload["tags"]; ok {
		raw["tags"] = v
	} else {
		raw["tags"] = []any{}
	}
	metadata := map[string]any{}
	if m, ok := payload["metadata"].(map[string]any); ok {
		for k, v := range m {
			metadata[k] = v
		}
	}
	metadata["created_at"] = now
	raw["metadata"] = metadata
	if v, ok := payload["command"]; ok {
		raw["command"] = v
	}
	if v, ok := payload["success_rate"]; ok {
		raw["success_rate"] = v
	}

	path := filepath.Join(s.root, repo+partitionExt)
	id := computeID(raw, path, newRecordLineIndex)
	raw["id"] = id

	lock := s.partitionLock(path)
	lock.Lock()
	appendStart := time.Now()
	err = appendLine(path, raw)
	lock.Unlock()

	spans := []trace.SpanRecord{{
		Name:       "append",
		DurationMs: time.Since(appendStart).Milliseconds(),
		OK:         err == nil,
	}}
	s.exportTrace(ctx, "create", start, spans, err)
	if err != nil {
		return nil, err
	}

	pub := toPublic(internalRecord{
		id:        id,
		repo:      repo,
		timestamp: now,
		raw:       raw,
		file:      path,
		lineIndex: -1,
	})
	return &pub, nil
}

// findOwner locates a record by id across all partitions.
func (s *Store) findOwner(id string) (*internalRecord, error) {
	if id == "" {
		return nil, nil
	}
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].id == id {
			return &all[i], nil
		}
	}
	return nil, nil
}

// mergeUpdate applies a partial update onto an existing raw payload: a
// shallow merge at the top level with metadata merged one level deep, a
// created_at marker preserved or backfilled from the original timestamp,
// and a fresh updated_at stamp.
func mergeUpdate(orig, updates RawRecord, now string) RawRecord {
	merged := make(RawRecord, len(orig)+len(updates)+2)
	for k, v := range orig {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}

	if v, ok := orig["created_at"]; ok {
		merged["created_at"] = v
	} else if v, ok := orig["timestamp"]; ok {
		merged["created_at"] = v
	}

	metadata := map[string]any{}
	if m, ok := orig["metadata"].(map[string]any); ok {
		for k, v := range m {
			metadata[k] = v
		}
	}
	if m, ok := updates["metadata"].(map[string]any); ok {
		for k, v := range m {
			metadata[k] = v
		}
	}
	if _, ok := metadata["created_at"]; !ok {
		if origMeta, ok := orig["metadata"].(map[string]any); ok && origMeta["created_at"] != nil {
			metadata["created_at"] = origMeta["created_at"]
		} else if v, ok := orig["timestamp"]; ok {
			metadata["created_at"] = v
		}
	}
	merged["metadata"] = metadata
	merged["updated_at"] = now
	return merged
}

// Update merges partial fields onto the record with the given id and
// rewrites its owning partition. Returns nil (not an error) for an unknown
// id; callers surface that as not-found.
func (s *Store) Update(ctx context.Context, id string, updates RawRecord) (rec *Record, err error) {
	start := time.Now()
	defer func() { s.finishOp(ctx, "update", start, err) }()

	target, err := s.findOwner(id)
	if err != nil || target == nil {
		return nil, err
	}

	lock := s.partitionLock(target.file)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so a concurrent writer's lines survive.
	fileRecords, err := s.readPartition(target.file)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range fileRecords {
		if fileRecords[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(isoMillis)
	fileRecords[idx].raw = mergeUpdate(fileRecords[idx].raw, updates, now)

	rewriteStart := time.Now()
	err = rewritePartition(target.file, fileRecords)
	spans := []trace.SpanRecord{{
		Name:       "rewrite",
		DurationMs: time.Since(rewriteStart).Milliseconds(),
		OK:         err == nil,
	}}
	s.exportTrace(ctx, "update", start, spans, err)
	if err != nil {
		return nil, err
	}

	pub := toPublic(fileRecords[idx])
	return &pub, nil
}

// Delete removes the record with the given id and rewrites its partition
// with the remaining lines in original order. Deleting the last record
// leaves an empty partition file in place. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) (result DeleteResult, err error) {
	start := time.Now()
	defer func() { s.finishOp(ctx, "delete", start, err) }()

	target, err := s.findOwner(id)
	if err != nil || target == nil {
		return DeleteResult{}, err
	}

	lock := s.partitionLock(target.file)
	lock.Lock()
	defer lock.Unlock()

	fileRecords, err := s.readPartition(target.file)
	if err != nil {
		return DeleteResult{}, err
	}
	remaining := make([]internalRecord, 0, len(fileRecords))
	for _, rec := range fileRecords {
		if rec.id != id {
			remaining = append(remaining, rec)
		}
	}
	if len(remaining) == len(fileRecords) {
		return DeleteResult{}, nil
	}

	rewriteStart := time.Now()
	err = rewritePartition(target.file, remaining)
	spans := []trace.SpanRecord{{
		Name:       "rewrite",
		DurationMs: time.Since(rewriteStart).Milliseconds(),
		OK:         err == nil,
	}}
	s.exportTrace(ctx, "delete", start, spans, err)
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Success: true, Removed: len(fileRecords) - len(remaining)}, nil
}

// SetState flips the lifecycle state of several records at once, as the
// console's pause/archive actions do. Unknown ids are skipped; the returned
// count is the number actually updated. Unrecognized states coerce to active.
func (s *Store) SetState(ctx context.Context, ids []string, state string) (updated int, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "set_state", start, err) }(time.Now())

	if state != StateActive && state != StatePaused && state != StateArchived {
		state = StateActive
	}
	for _, id := range ids {
		rec, updateErr := s.Update(ctx, id, RawRecord{"state": state})
		if updateErr != nil {
			return updated, updateErr
		}
		if rec != nil {
			updated++
		}
	}
	return updated, nil
}
