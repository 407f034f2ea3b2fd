package flowmem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentswarm/flowmem/pkg/memory"
	"github.com/agentswarm/flowmem/pkg/specflow"
)

func newTestFlowmem(t *testing.T) (*Flowmem, Config) {
	t.Helper()
	cfg := Config{
		LogsDir:  t.TempDir(),
		SpecHome: t.TempDir(),
	}
	fm, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })
	return fm, cfg
}

func TestNew_RequiresDirectories(t *testing.T) {
	_, err := New(Config{SpecHome: "x"})
	require.Error(t, err)

	_, err = New(Config{LogsDir: "x"})
	require.Error(t, err)
}

func TestMemoryLifecycle(t *testing.T) {
	fm, _ := newTestFlowmem(t)
	ctx := context.Background()

	created, err := fm.CreateMemory(ctx, "demo", memory.RawRecord{
		"lesson": "pin versions",
		"tags":   []string{"ci"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "demo", created.Repo)

	got, err := fm.GetMemory(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "pin versions", got.Lesson)

	updated, err := fm.UpdateMemory(ctx, created.ID, memory.RawRecord{"context": "release day"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, "release day", updated.Context)
	require.Equal(t, "pin versions", updated.Lesson)

	page, err := fm.ListMemories(ctx, memory.QueryOptions{Repo: "demo"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	all, err := fm.ListAllMemories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	result, err := fm.DeleteMemory(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Removed)

	gone, err := fm.GetMemory(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestCreateMemory_BlankRepo(t *testing.T) {
	fm, _ := newTestFlowmem(t)

	_, err := fm.CreateMemory(context.Background(), "  ", memory.RawRecord{"lesson": "x"})
	require.Error(t, err)
	require.Equal(t, ErrTypeValidation, ClassifyError(err))
}

func TestSetMemoryState(t *testing.T) {
	fm, _ := newTestFlowmem(t)
	ctx := context.Background()

	a, err := fm.CreateMemory(ctx, "demo", memory.RawRecord{"lesson": "a"})
	require.NoError(t, err)
	b, err := fm.CreateMemory(ctx, "demo", memory.RawRecord{"lesson": "b"})
	require.NoError(t, err)

	updated, err := fm.SetMemoryState(ctx, []string{a.ID, b.ID, "missing"}, memory.StatePaused)
	require.NoError(t, err)
	require.Equal(t, 2, updated)

	got, err := fm.GetMemory(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, memory.StatePaused, got.State)
}

func TestSummariesAndStats(t *testing.T) {
	fm, _ := newTestFlowmem(t)
	ctx := context.Background()

	_, err := fm.CreateMemory(ctx, "alpha", memory.RawRecord{"lesson": "a", "tags": []string{"ci"}})
	require.NoError(t, err)
	_, err = fm.CreateMemory(ctx, "beta", memory.RawRecord{"lesson": "b", "tags": []string{"ci", "deploy"}})
	require.NoError(t, err)

	repos, err := fm.ListRepoSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)

	tags, err := fm.ListTagSummaries(ctx)
	require.NoError(t, err)
	require.Equal(t, "ci", tags[0].Tag)
	require.Equal(t, 2, tags[0].Count)

	stats, err := fm.MemoryStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalMemories)
	require.Equal(t, 2, stats.TotalRepos)
}

func TestListRelatedMemories(t *testing.T) {
	fm, _ := newTestFlowmem(t)
	ctx := context.Background()

	target, err := fm.CreateMemory(ctx, "demo", memory.RawRecord{"lesson": "x", "tags": []string{"a"}})
	require.NoError(t, err)
	_, err = fm.CreateMemory(ctx, "demo", memory.RawRecord{"lesson": "y", "tags": []string{"a", "b"}})
	require.NoError(t, err)

	related, err := fm.ListRelatedMemories(ctx, target.ID, 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	require.Equal(t, "y", related[0].Lesson)
}

func TestSpecFlowEndToEnd(t *testing.T) {
	fm, cfg := newTestFlowmem(t)

	snapshotDir := filepath.Join(cfg.SpecHome, "snapshots")
	require.NoError(t, os.MkdirAll(snapshotDir, 0o755))
	snapshot := `{"feature":"Demo Flow","captured_at":"2025-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(snapshotDir, "demo.json"), []byte(snapshot), 0o644))

	logger, err := specflow.NewLogger(filepath.Join(cfg.SpecHome, "logs"), "demo")
	require.NoError(t, err)
	require.NoError(t, logger.Log("capture_swarm", "session started"))
	require.NoError(t, logger.Close())

	flows, err := fm.ListSpecFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.Equal(t, "Demo Flow", flows[0].Feature)
	require.True(t, flows[0].PromptLog.Status.SwarmInit)

	info := fm.GetSpecArtifact("demo", specflow.KindSnapshot)
	require.NotNil(t, info)
	require.Equal(t, "application/json", info.MIME)

	require.Nil(t, fm.GetSpecArtifact("demo", specflow.KindReport))
}
