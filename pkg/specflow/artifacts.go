package specflow

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Subdirectories of the spec home holding each artifact kind.
const (
	snapshotDirName      = "snapshots"
	clarificationDirName = "clarifications"
	promptLogDirName     = "logs"
	reportDirName        = "reports"
)

type artifactMeta struct {
	dir  string
	ext  string
	mime string
}

var artifactKinds = map[ArtifactKind]artifactMeta{
	KindSnapshot:       {dir: snapshotDirName, ext: ".json", mime: "application/json"},
	KindClarifications: {dir: clarificationDirName, ext: ".log", mime: "text/plain"},
	KindPromptLog:      {dir: promptLogDirName, ext: ".log", mime: "text/plain"},
	KindReport:         {dir: reportDirName, ext: ".md", mime: "text/markdown"},
}

// validSlug rejects slugs that would escape the artifact directories.
func validSlug(slug string) bool {
	return slug != "" && slug == filepath.Base(slug) && !strings.Contains(slug, "..")
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// artifactPath resolves the absolute path an artifact would live at,
// without checking existence.
func (a *Assembler) artifactPath(slug string, kind ArtifactKind) (string, artifactMeta, bool) {
	meta, ok := artifactKinds[kind]
	if !ok || !validSlug(slug) {
		return "", artifactMeta{}, false
	}
	return filepath.Join(a.home, meta.dir, slug+meta.ext), meta, true
}

// Artifact resolves one flow artifact to its path, MIME type, and download
// name. Returns nil (not an error) when the artifact does not exist or the
// kind is unknown.
func (a *Assembler) Artifact(slug string, kind ArtifactKind) *ArtifactInfo {
	path, meta, ok := a.artifactPath(slug, kind)
	if !ok || !pathExists(path) {
		return nil
	}
	return &ArtifactInfo{
		Path:         path,
		MIME:         meta.mime,
		DownloadName: slug + meta.ext,
	}
}
