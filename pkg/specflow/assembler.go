package specflow

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Assembler joins the four artifact files of each flow into assembled Flow
// entities. Assembly is stateless: every call re-reads the snapshot
// directory and whatever side files exist at that moment.
type Assembler struct {
	home   string
	logger *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the logger for skipped snapshots and unreadable
// side files. Nil is safe and discards everything.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler rooted at the spec tool home directory.
func NewAssembler(home string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		home:   home,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Home returns the spec tool home directory.
func (a *Assembler) Home() string {
	return a.home
}

var flowTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseFlowTime treats anything unparseable as time zero, which sorts last
// under the newest-first ordering.
func parseFlowTime(value string) time.Time {
	for _, layout := range flowTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// readOptionalFile returns "" for a file that does not exist; other read
// errors are logged and treated as absent, since a side file must never
// break enumeration of the snapshot it belongs to.
func (a *Assembler) readOptionalFile(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("skipping unreadable flow artifact", "file", path, "error", err)
		}
		return ""
	}
	return string(content)
}

// relPath converts an absolute artifact path to one relative to the spec
// home, the form the console exposes.
func (a *Assembler) relPath(path string) string {
	rel, err := filepath.Rel(a.home, path)
	if err != nil {
		return path
	}
	return rel
}

// Flows enumerates every flow with a parseable snapshot, sorted by capture
// time descending. Snapshots that fail to parse are skipped and logged; a
// missing snapshot directory yields an empty result, not an error.
func (a *Assembler) Flows() ([]Flow, error) {
	snapshotDir := filepath.Join(a.home, snapshotDirName)
	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Flow{}, nil
		}
		a.logger.Warn("unable to read snapshot directory", "dir", snapshotDir, "error", err)
		return []Flow{}, nil
	}

	flows := []Flow{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(snapshotDir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("skipping unreadable snapshot", "file", path, "error", err)
			continue
		}
		var snapshot map[string]any
		if err := json.Unmarshal(content, &snapshot); err != nil {
			a.logger.Warn("skipping malformed snapshot", "file", path, "error", err)
			continue
		}

		slug := strings.TrimSuffix(name, ".json")
		flows = append(flows, a.assemble(slug, path, snapshot))
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return parseFlowTime(flows[i].CapturedAt).After(parseFlowTime(flows[j].CapturedAt))
	})
	return flows, nil
}

// assemble builds one Flow from its parsed snapshot plus side files.
func (a *Assembler) assemble(slug, snapshotPath string, snapshot map[string]any) Flow {
	feature := optionalString(snapshot["feature"])
	if feature == "" {
		feature = slug
	}

	clarificationsPath := filepath.Join(a.home, clarificationDirName, slug+".log")
	promptLogPath := filepath.Join(a.home, promptLogDirName, slug+".log")
	reportPath := filepath.Join(a.home, reportDirName, slug+".md")

	clarificationEntries := []ClarificationEntry{}
	if content := a.readOptionalFile(clarificationsPath); content != "" {
		clarificationEntries = ParseClarificationLog(content)
	}
	promptEntries := []PromptLogEntry{}
	if content := a.readOptionalFile(promptLogPath); content != "" {
		promptEntries = ParsePromptLog(content)
	}

	artifacts := ArtifactPaths{Snapshot: a.relPath(snapshotPath)}
	if pathExists(clarificationsPath) {
		artifacts.Clarifications = a.relPath(clarificationsPath)
	}
	if pathExists(promptLogPath) {
		artifacts.PromptLog = a.relPath(promptLogPath)
	}
	if pathExists(reportPath) {
		artifacts.Report = a.relPath(reportPath)
	}

	return Flow{
		Slug:                      slug,
		Feature:                   feature,
		TaskID:                    optionalString(snapshot["task_id"]),
		Repo:                      repoList(snapshot["repo"]),
		Paths:                     stringList(snapshot["paths"]),
		CapturedAt:                optionalString(snapshot["captured_at"]),
		Intent:                    optionalString(snapshot["intent"]),
		Context:                   optionalString(snapshot["context"]),
		MetaSummary:               optionalString(snapshot["meta_summary"]),
		SwarmTags:                 optionalString(snapshot["swarm_tags"]),
		UserStories:               stringList(snapshot["user_stories"]),
		AcceptanceCriteria:        stringList(snapshot["acceptance_criteria"]),
		NonFunctionalRequirements: stringList(snapshot["non_functional_requirements"]),
		Deliverables:              stringList(snapshot["deliverables"]),
		Dependencies:              stringList(snapshot["dependencies"]),
		Sequence:                  stringList(snapshot["sequence"]),
		Validation:                stringList(snapshot["validation"]),
		FutureProofing:            stringList(snapshot["future_proofing"]),
		OpenQuestions:             stringList(snapshot["open_questions"]),
		ArtifactLinks:             parseArtifactLinks(snapshot["artifact_links"]),
		ProgressUpdates:           parseProgressUpdates(snapshot["progress_updates"]),
		CommandReviews:            parseCommandReviews(snapshot["command_reviews"]),
		UXConcerns:                parseUXConcerns(snapshot["ux_concerns"]),
		ActionItems:               parseActionItems(snapshot["action_items"]),
		AlignmentReviews:          parseAlignmentReviews(snapshot["alignment_reviews"]),
		PromptLog: PromptLog{
			Entries: promptEntries,
			Status:  DerivePromptStatus(promptEntries),
		},
		Clarifications: Clarifications{
			Entries:     clarificationEntries,
			Outstanding: OutstandingClarifications(clarificationEntries),
		},
		Artifacts: artifacts,
	}
}
