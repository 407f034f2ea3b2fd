package specflow

import (
	"path/filepath"
	"testing"
)

func TestArtifact_ResolvesEachKind(t *testing.T) {
	home := t.TempDir()
	writeFlowFile(t, home, snapshotDirName, "demo.json", `{}`)
	writeFlowFile(t, home, clarificationDirName, "demo.log", "")
	writeFlowFile(t, home, promptLogDirName, "demo.log", "")
	writeFlowFile(t, home, reportDirName, "demo.md", "# r\n")
	assembler := NewAssembler(home)

	cases := []struct {
		kind ArtifactKind
		path string
		mime string
		name string
	}{
		{KindSnapshot, filepath.Join(home, snapshotDirName, "demo.json"), "application/json", "demo.json"},
		{KindClarifications, filepath.Join(home, clarificationDirName, "demo.log"), "text/plain", "demo.log"},
		{KindPromptLog, filepath.Join(home, promptLogDirName, "demo.log"), "text/plain", "demo.log"},
		{KindReport, filepath.Join(home, reportDirName, "demo.md"), "text/markdown", "demo.md"},
	}
	for _, tc := range cases {
		info := assembler.Artifact("demo", tc.kind)
		if info == nil {
			t.Errorf("kind %q: expected artifact info", tc.kind)
			continue
		}
		if info.Path != tc.path || info.MIME != tc.mime || info.DownloadName != tc.name {
			t.Errorf("kind %q: got %+v", tc.kind, info)
		}
	}
}

func TestArtifact_AbsentFile(t *testing.T) {
	assembler := NewAssembler(t.TempDir())
	if info := assembler.Artifact("demo", KindSnapshot); info != nil {
		t.Errorf("expected nil for missing artifact, got %+v", info)
	}
}

func TestArtifact_UnknownKind(t *testing.T) {
	home := t.TempDir()
	writeFlowFile(t, home, snapshotDirName, "demo.json", `{}`)
	if info := NewAssembler(home).Artifact("demo", ArtifactKind("bogus")); info != nil {
		t.Errorf("expected nil for unknown kind, got %+v", info)
	}
}

func TestArtifact_RejectsTraversalSlugs(t *testing.T) {
	home := t.TempDir()
	writeFlowFile(t, home, snapshotDirName, "demo.json", `{}`)
	assembler := NewAssembler(home)

	for _, slug := range []string{"", "..", "../demo", "a/../b", "nested/demo"} {
		if info := assembler.Artifact(slug, KindSnapshot); info != nil {
			t.Errorf("slug %q: expected nil, got %+v", slug, info)
		}
	}
}
