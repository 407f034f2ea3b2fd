// Package flowmem is the storage and query engine behind the spec flow
// console: a file-backed memory record store plus the assembler that joins
// per-flow capture artifacts. The HTTP layer in front of it is a thin
// consumer of this package's contract.
package flowmem

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/agentswarm/flowmem/pkg/memory"
	"github.com/agentswarm/flowmem/pkg/metrics"
	"github.com/agentswarm/flowmem/pkg/specflow"
	"github.com/agentswarm/flowmem/pkg/trace"
)

// Flowmem is the main entry point, wiring the memory store and the spec
// flow assembler to shared logging, metrics, and tracing.
type Flowmem struct {
	config    Config
	store     *memory.Store
	assembler *specflow.Assembler
	metrics   metrics.Collector
	tracer    trace.Exporter
}

// New creates a Flowmem instance from an explicit configuration. Nothing is
// read from the environment here; use ConfigFromEnv for that.
func New(cfg Config) (*Flowmem, error) {
	if cfg.LogsDir == "" {
		return nil, fmt.Errorf("flowmem: LogsDir is required")
	}
	if cfg.SpecHome == "" {
		return nil, fmt.Errorf("flowmem: SpecHome is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	collector := metrics.NewDefault()
	tracer, err := trace.NewFileExporter(cfg.TracePath)
	if err != nil {
		return nil, fmt.Errorf("flowmem: init trace exporter: %w", err)
	}

	store := memory.NewStore(cfg.LogsDir,
		memory.WithLogger(logger),
		memory.WithMetrics(collector),
		memory.WithTracer(tracer),
	)
	assembler := specflow.NewAssembler(cfg.SpecHome,
		specflow.WithAssemblerLogger(logger),
	)

	return &Flowmem{
		config:    cfg,
		store:     store,
		assembler: assembler,
		metrics:   collector,
		tracer:    tracer,
	}, nil
}

// Close releases the trace exporter. The store and assembler hold no open
// files between calls.
func (f *Flowmem) Close() error {
	return f.tracer.Close()
}

// Store returns the underlying memory record store.
func (f *Flowmem) Store() *memory.Store {
	return f.store
}

// Assembler returns the underlying spec flow assembler.
func (f *Flowmem) Assembler() *specflow.Assembler {
	return f.assembler
}

// Metrics returns the configured metrics collector.
func (f *Flowmem) Metrics() metrics.Collector {
	return f.metrics
}

// ListMemories lists records matching the filter options, paginated.
func (f *Flowmem) ListMemories(ctx context.Context, opts memory.QueryOptions) (*memory.PageResult, error) {
	return f.store.Query(ctx, opts)
}

// GetMemory returns one record by id, or nil when unknown.
func (f *Flowmem) GetMemory(ctx context.Context, id string) (*memory.Record, error) {
	return f.store.Get(ctx, id)
}

// CreateMemory appends a record to the named repository partition.
func (f *Flowmem) CreateMemory(ctx context.Context, repo string, payload memory.RawRecord) (*memory.Record, error) {
	return f.store.Create(ctx, repo, payload)
}

// UpdateMemory merges partial fields onto a record; nil when unknown.
func (f *Flowmem) UpdateMemory(ctx context.Context, id string, updates memory.RawRecord) (*memory.Record, error) {
	return f.store.Update(ctx, id, updates)
}

// DeleteMemory removes a record; unknown ids report success=false.
func (f *Flowmem) DeleteMemory(ctx context.Context, id string) (memory.DeleteResult, error) {
	return f.store.Delete(ctx, id)
}

// SetMemoryState bulk-updates lifecycle state, returning the count updated.
func (f *Flowmem) SetMemoryState(ctx context.Context, ids []string, state string) (int, error) {
	return f.store.SetState(ctx, ids, state)
}

// ListAllMemories returns every record, unfiltered.
func (f *Flowmem) ListAllMemories(ctx context.Context) ([]memory.Record, error) {
	return f.store.ListAll(ctx)
}

// ListRepoSummaries aggregates per-repository counts and timestamp bounds.
func (f *Flowmem) ListRepoSummaries(ctx context.Context) ([]memory.RepoSummary, error) {
	return f.store.RepoSummaries(ctx)
}

// ListTagSummaries aggregates global per-tag usage counts.
func (f *Flowmem) ListTagSummaries(ctx context.Context) ([]memory.TagSummary, error) {
	return f.store.TagSummaries(ctx)
}

// MemoryStats rolls summaries up into one dashboard aggregate.
func (f *Flowmem) MemoryStats(ctx context.Context) (*memory.Stats, error) {
	return f.store.Stats(ctx)
}

// ListRelatedMemories scores every other record against the target.
func (f *Flowmem) ListRelatedMemories(ctx context.Context, id string, limit int) ([]memory.Record, error) {
	return f.store.Related(ctx, id, limit)
}

// ListSpecFlows assembles every flow with a parseable snapshot, newest
// capture first.
func (f *Flowmem) ListSpecFlows(ctx context.Context) ([]specflow.Flow, error) {
	return f.assembler.Flows()
}

// GetSpecArtifact resolves one flow artifact file, or nil when absent.
func (f *Flowmem) GetSpecArtifact(slug string, kind specflow.ArtifactKind) *specflow.ArtifactInfo {
	return f.assembler.Artifact(slug, kind)
}
