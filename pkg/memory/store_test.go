package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writePartitionFile writes raw lines into a partition file under root.
func writePartitionFile(t *testing.T, root, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(root, name)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return NewStore(root), root
}

func TestLoad_MalformedLineTolerance(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"one"}`,
		`{not valid json`,
		`{"lesson":"two"}`,
		`{"lesson":"three"}`,
	)

	records, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Repo != "demo" {
			t.Errorf("expected repo 'demo' from file name, got %q", rec.Repo)
		}
	}
}

func TestLoad_IdentityStability(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"same","context":"same"}`,
		`{"lesson":"same","context":"same"}`,
	)

	first, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Error("ids drifted across loads of an unmodified file")
	}
	if first[0].ID == first[1].ID {
		t.Error("identical payloads on different lines share an id")
	}
}

func TestLoad_MissingRootIsConfigError(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := store.ListAll(context.Background())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected root-not-found error, got: %v", err)
	}
}

func TestLoad_DefaultTimestamp(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl", `{"lesson":"no ts"}`)

	records, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if records[0].Timestamp != "1970-01-01T00:00:00Z" {
		t.Errorf("expected epoch default, got %q", records[0].Timestamp)
	}
}

func TestQuery_ConjunctiveFilters(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "alpha.jsonl",
		`{"lesson":"alpha one","tags":["a","b"],"event_type":"pattern","timestamp":"2025-01-02T00:00:00Z"}`,
		`{"lesson":"alpha two","tags":["a"],"event_type":"habit","timestamp":"2025-01-03T00:00:00Z"}`,
	)
	writePartitionFile(t, root, "beta.jsonl",
		`{"lesson":"beta one","tags":["A","B"],"event_type":"pattern","timestamp":"2025-01-04T00:00:00Z"}`,
	)
	ctx := context.Background()

	page, err := store.Query(ctx, QueryOptions{Repo: "alpha"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("repo filter: expected 2, got %d", page.Total)
	}

	page, err = store.Query(ctx, QueryOptions{Tags: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// Tag matching is case-insensitive, so beta's A/B qualify too.
	if page.Total != 2 {
		t.Errorf("tag conjunction: expected 2, got %d", page.Total)
	}
	for _, rec := range page.Items {
		if rec.Lesson == "alpha two" {
			t.Error("record with only tag 'a' must not match tags=[a b]")
		}
	}

	page, err = store.Query(ctx, QueryOptions{EventType: "habit"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 1 || page.Items[0].Lesson != "alpha two" {
		t.Errorf("event type filter: got %+v", page.Items)
	}

	page, err = store.Query(ctx, QueryOptions{Repo: "alpha", Tags: []string{"b"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 1 || page.Items[0].Lesson != "alpha one" {
		t.Errorf("combined filters: got %+v", page.Items)
	}
}

func TestQuery_SearchHaystack(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"rollback quickly","context":"deploy failed","tags":["ops"]}`,
		`{"lesson":"write tests","command":"go test ./...","tags":["testing"]}`,
	)
	ctx := context.Background()

	cases := map[string]int{
		"ROLLBACK": 1, // lesson, case-insensitive
		"deploy":   1, // context
		"go test":  1, // command
		"testing":  1, // tag
		"demo":     2, // repo
		"zzz":      0,
	}
	for term, want := range cases {
		page, err := store.Query(ctx, QueryOptions{Search: term})
		if err != nil {
			t.Fatalf("Query(%q) failed: %v", term, err)
		}
		if page.Total != want {
			t.Errorf("search %q: expected %d, got %d", term, want, page.Total)
		}
	}
}

func TestQuery_PaginationInvariant(t *testing.T) {
	store, root := setupTestStore(t)
	lines := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		lines = append(lines, `{"lesson":"l","timestamp":"2025-01-0`+string(rune('1'+i))+`T00:00:00Z"}`)
	}
	writePartitionFile(t, root, "demo.jsonl", lines...)
	ctx := context.Background()

	seen := 0
	for page := 1; page <= 4; page++ {
		result, err := store.Query(ctx, QueryOptions{Page: page, Size: 3})
		if err != nil {
			t.Fatalf("Query page %d failed: %v", page, err)
		}
		if len(result.Items) > 3 {
			t.Errorf("page %d exceeds size: %d items", page, len(result.Items))
		}
		if result.Total != 7 || result.Pages != 3 {
			t.Errorf("page %d metadata: total=%d pages=%d", page, result.Total, result.Pages)
		}
		seen += len(result.Items)
	}
	if seen != 7 {
		t.Errorf("sum of items across pages = %d, want 7", seen)
	}

	// Out-of-range page keeps metadata but yields no items.
	result, err := store.Query(ctx, QueryOptions{Page: 99, Size: 3})
	if err != nil {
		t.Fatalf("out-of-range Query failed: %v", err)
	}
	if len(result.Items) != 0 || result.Total != 7 {
		t.Errorf("out-of-range page: items=%d total=%d", len(result.Items), result.Total)
	}
}

func TestQuery_NewestFirst(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"old","timestamp":"2024-01-01T00:00:00Z"}`,
		`{"lesson":"new","timestamp":"2025-06-01T00:00:00Z"}`,
		`{"lesson":"mid","timestamp":"2024-12-01T00:00:00Z"}`,
	)

	page, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	var got []string
	for _, rec := range page.Items {
		got = append(got, rec.Lesson)
	}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestQuery_ColumnSortAndArchivedFilter(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"bbb","state":"archived","timestamp":"2025-01-01T00:00:00Z"}`,
		`{"lesson":"aaa","timestamp":"2025-01-02T00:00:00Z"}`,
		`{"lesson":"ccc","timestamp":"2025-01-03T00:00:00Z"}`,
	)
	ctx := context.Background()

	page, err := store.Query(ctx, QueryOptions{SortColumn: SortByLesson, SortDirection: "asc"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Items[0].Lesson != "aaa" || page.Items[2].Lesson != "ccc" {
		t.Errorf("ascending lesson sort: got %q..%q", page.Items[0].Lesson, page.Items[2].Lesson)
	}

	page, err = store.Query(ctx, QueryOptions{ExcludeArchived: true})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected archived record excluded, total=%d", page.Total)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	store, root := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "repoA", RawRecord{"lesson": "L"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a derived id")
	}
	if created.Lesson != "L" || created.Repo != "repoA" || created.State != StateActive {
		t.Errorf("created record mismatch: %+v", created)
	}

	// The persisted line must carry the id so reload re-reads it instead of
	// re-hashing.
	content, err := os.ReadFile(filepath.Join(root, "repoA.jsonl"))
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &raw); err != nil {
		t.Fatalf("parse persisted line: %v", err)
	}
	if raw["id"] != created.ID {
		t.Errorf("persisted id %v != returned id %s", raw["id"], created.ID)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("created record not found after reload")
	}
	if got.Lesson != "L" || got.Repo != "repoA" || got.State != StateActive {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestCreate_BlankRepoIsValidationError(t *testing.T) {
	store, _ := setupTestStore(t)
	if _, err := store.Create(context.Background(), "  ", RawRecord{"lesson": "x"}); err == nil {
		t.Fatal("expected validation error for blank repo")
	}
}

func TestGet_UnknownIDIsNil(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl", `{"lesson":"x"}`)

	rec, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for unknown id, got %+v", rec)
	}
}

func TestUpdate_MergeSemantics(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"keep","context":"keep too","tags":["old"],"timestamp":"2025-01-01T00:00:00Z","metadata":{"origin":"import"},"custom_field":"survives"}`,
	)
	ctx := context.Background()

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	id := all[0].ID

	updated, err := store.Update(ctx, id, RawRecord{
		"tags":     []any{"new"},
		"metadata": map[string]any{"reviewed": true},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated == nil {
		t.Fatal("Update returned nil for a known id")
	}
	if updated.Lesson != "keep" || updated.Context != "keep too" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "new" {
		t.Errorf("tags not replaced: %v", updated.Tags)
	}
	if updated.Metadata["origin"] != "import" {
		t.Error("existing metadata key lost on partial metadata update")
	}
	if updated.Metadata["reviewed"] != true {
		t.Error("new metadata key missing")
	}

	// Reload and inspect the rewritten line directly.
	content, err := os.ReadFile(filepath.Join(root, "demo.jsonl"))
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &raw); err != nil {
		t.Fatalf("parse rewritten line: %v", err)
	}
	if raw["custom_field"] != "survives" {
		t.Error("unknown field dropped by rewrite")
	}
	if raw["created_at"] != "2025-01-01T00:00:00Z" {
		t.Errorf("created_at not backfilled from timestamp: %v", raw["created_at"])
	}
	if raw["updated_at"] == nil || raw["updated_at"] == "" {
		t.Error("updated_at not stamped")
	}
	if raw["id"] != id {
		t.Errorf("id changed across update: %v != %s", raw["id"], id)
	}
}

func TestUpdate_UnknownIDIsNil(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl", `{"lesson":"x"}`)

	rec, err := store.Update(context.Background(), "nope", RawRecord{"lesson": "y"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for unknown id, got %+v", rec)
	}
}

func TestUpdate_OnlyTouchesOwningPartition(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "alpha.jsonl", `{"lesson":"alpha"}`)
	otherPath := writePartitionFile(t, root, "beta.jsonl", `{"lesson":"beta"}`)
	before, err := os.ReadFile(otherPath)
	if err != nil {
		t.Fatalf("read beta: %v", err)
	}
	ctx := context.Background()

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	var alphaID string
	for _, rec := range all {
		if rec.Repo == "alpha" {
			alphaID = rec.ID
		}
	}

	if _, err := store.Update(ctx, alphaID, RawRecord{"lesson": "changed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, err := os.ReadFile(otherPath)
	if err != nil {
		t.Fatalf("read beta: %v", err)
	}
	if string(before) != string(after) {
		t.Error("update rewrote a partition it does not own")
	}
}

func TestDelete_Idempotence(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"one"}`,
		`{"lesson":"two"}`,
	)
	ctx := context.Background()

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	id := all[0].ID

	first, err := store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if !first.Success || first.Removed != 1 {
		t.Errorf("first delete: got %+v, want success with 1 removed", first)
	}

	second, err := store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if second.Success || second.Removed != 0 {
		t.Errorf("second delete: got %+v, want {false 0}", second)
	}

	remaining, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Lesson != "two" {
		t.Errorf("remaining records wrong: %+v", remaining)
	}
}

func TestDelete_LastRecordKeepsFile(t *testing.T) {
	store, root := setupTestStore(t)
	path := writePartitionFile(t, root, "demo.jsonl", `{"lesson":"only"}`)
	ctx := context.Background()

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if _, err := store.Delete(ctx, all[0].ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("partition file removed, expected it kept: %v", err)
	}
	remaining, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected empty store, got %d records", len(remaining))
	}
}

func TestSetState_Bulk(t *testing.T) {
	store, root := setupTestStore(t)
	writePartitionFile(t, root, "demo.jsonl",
		`{"lesson":"one"}`,
		`{"lesson":"two"}`,
	)
	ctx := context.Background()

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	ids := []string{all[0].ID, all[1].ID, "unknown"}

	updated, err := store.SetState(ctx, ids, StatePaused)
	if err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("expected 2 updated, got %d", updated)
	}

	after, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	for _, rec := range after {
		if rec.State != StatePaused {
			t.Errorf("record %s state = %q, want paused", rec.ID, rec.State)
		}
	}

	// Unrecognized states coerce to active.
	if _, err := store.SetState(ctx, []string{all[0].ID}, "bogus"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	rec, err := store.Get(ctx, all[0].ID)
	if err != nil || rec == nil {
		t.Fatalf("Get after SetState failed: %v", err)
	}
	if rec.State != StateActive {
		t.Errorf("bogus state should coerce to active, got %q", rec.State)
	}
}
