// Package specflow assembles spec flow entities from the capture tool's
// on-disk artifacts: one JSON snapshot per flow plus optional clarification
// log, prompt log, and report files sharing the flow's slug. The package
// only reads; flows are produced by the external capture tooling.
package specflow

// ArtifactKind names one of the four file types composing a flow.
type ArtifactKind string

const (
	KindSnapshot       ArtifactKind = "snapshot"
	KindClarifications ArtifactKind = "clarifications"
	KindPromptLog      ArtifactKind = "promptLog"
	KindReport         ArtifactKind = "report"
)

// ClarificationEntry is one parsed line of a clarification log.
type ClarificationEntry struct {
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Status    string `json:"status"`
	Topic     string `json:"topic"`
	Notes     string `json:"notes"`
	Raw       string `json:"raw"`
}

// PromptLogEntry is one parsed line of a prompt log.
type PromptLogEntry struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Detail    string `json:"detail"`
	Raw       string `json:"raw"`
}

// PromptStatus holds the four milestones derived from prompt log events.
type PromptStatus struct {
	SwarmInit     bool `json:"swarmInit"`
	StatusInitial bool `json:"statusInitial"`
	KeepShipping  bool `json:"keepShipping"`
	StatusFinal   bool `json:"statusFinal"`
}

// PromptLog bundles a flow's prompt log entries with derived milestones.
type PromptLog struct {
	Entries []PromptLogEntry `json:"entries"`
	Status  PromptStatus     `json:"status"`
}

// Clarifications bundles a flow's clarification entries with the count of
// entries not yet resolved.
type Clarifications struct {
	Entries     []ClarificationEntry `json:"entries"`
	Outstanding int                  `json:"outstanding"`
}

// ArtifactLink references an external artifact recorded in a snapshot.
type ArtifactLink struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
	Status  string `json:"status,omitempty"`
	Intent  string `json:"intent,omitempty"`
	AddedAt string `json:"addedAt,omitempty"`
}

// ProgressUpdate is one captured progress snapshot within a flow.
type ProgressUpdate struct {
	ID                    string   `json:"id"`
	Timestamp             string   `json:"timestamp,omitempty"`
	UserQuote             string   `json:"userQuote,omitempty"`
	OverarchingIntent     string   `json:"overarchingIntent,omitempty"`
	SubgoalIntent         string   `json:"subgoalIntent,omitempty"`
	IntentConnection      string   `json:"intentConnection,omitempty"`
	TechnicalNuance       string   `json:"technicalNuance,omitempty"`
	UXNow                 string   `json:"uxNow,omitempty"`
	ValidationEntry       string   `json:"validationEntry,omitempty"`
	ValidationSteps       string   `json:"validationSteps,omitempty"`
	ValidationNotice      string   `json:"validationNotice,omitempty"`
	ValidationRequirement string   `json:"validationRequirement,omitempty"`
	RequirementsNote      string   `json:"requirementsNote,omitempty"`
	TasksCompleted        []string `json:"tasksCompleted"`
	IntentStatuses        []string `json:"intentStatuses"`
	NewUserStories        []string `json:"newUserStories"`
	RenderText            string   `json:"renderText,omitempty"`
}

// CommandReview is the recorded assessment of one executed command.
type CommandReview struct {
	Command    string `json:"command"`
	Intent     string `json:"intent,omitempty"`
	Validation string `json:"validation,omitempty"`
	Status     string `json:"status,omitempty"`
	Notes      string `json:"notes,omitempty"`
	NextAction string `json:"nextAction,omitempty"`
}

// UXConcern is a recorded user-experience concern.
type UXConcern struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// ActionItem is a tracked follow-up within a flow.
type ActionItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// AlignmentReview records an intent-alignment check against progress.
type AlignmentReview struct {
	ID                string   `json:"id"`
	Title             string   `json:"title,omitempty"`
	Status            string   `json:"status,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
	ProgressReference string   `json:"progressReference,omitempty"`
	CreatedAt         string   `json:"createdAt,omitempty"`
	Evidence          []string `json:"evidence"`
}

// ArtifactPaths maps artifact kinds to paths relative to the spec home.
// An empty string means the artifact file does not exist.
type ArtifactPaths struct {
	Snapshot       string `json:"snapshot"`
	Clarifications string `json:"clarifications"`
	PromptLog      string `json:"promptLog"`
	Report         string `json:"report"`
}

// Flow is one assembled spec flow. Its slug is the snapshot file's base
// name; all other artifacts are optional.
type Flow struct {
	Slug                      string           `json:"slug"`
	Feature                   string           `json:"feature"`
	TaskID                    string           `json:"taskId,omitempty"`
	Repo                      []string         `json:"repo"`
	Paths                     []string         `json:"paths"`
	CapturedAt                string           `json:"capturedAt,omitempty"`
	Intent                    string           `json:"intent,omitempty"`
	Context                   string           `json:"context,omitempty"`
	MetaSummary               string           `json:"metaSummary,omitempty"`
	SwarmTags                 string           `json:"swarmTags,omitempty"`
	UserStories               []string         `json:"userStories"`
	AcceptanceCriteria        []string         `json:"acceptanceCriteria"`
	NonFunctionalRequirements []string         `json:"nonFunctionalRequirements"`
	Deliverables              []string         `json:"deliverables"`
	Dependencies              []string         `json:"dependencies"`
	Sequence                  []string         `json:"sequence"`
	Validation                []string         `json:"validation"`
	FutureProofing            []string         `json:"futureProofing"`
	OpenQuestions             []string         `json:"openQuestions"`
	ArtifactLinks             []ArtifactLink   `json:"artifactLinks"`
	ProgressUpdates           []ProgressUpdate `json:"progressUpdates"`
	CommandReviews            []CommandReview  `json:"commandReviews"`
	UXConcerns                []UXConcern      `json:"uxConcerns"`
	ActionItems               []ActionItem     `json:"actionItems"`
	AlignmentReviews          []AlignmentReview `json:"alignmentReviews"`
	PromptLog                 PromptLog        `json:"promptLog"`
	Clarifications            Clarifications   `json:"clarifications"`
	Artifacts                 ArtifactPaths    `json:"artifacts"`
}

// ArtifactInfo describes a resolved, existing artifact file.
type ArtifactInfo struct {
	Path         string `json:"path"`
	MIME         string `json:"mime"`
	DownloadName string `json:"downloadName"`
}
