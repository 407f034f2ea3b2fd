// Package memory implements a file-backed record store for agent memory
// entries. Records are persisted as line-delimited JSON, one file per
// repository, and every read re-scans the files so results are always
// current as of the call.
package memory

// Lifecycle states for a memory record.
const (
	StateActive   = "active"
	StatePaused   = "paused"
	StateArchived = "archived"
)

// RawRecord is the loosely-typed shape of a persisted line. Only a handful
// of keys are meaningful to the store; everything else is carried through
// rewrites verbatim so newer writers can add fields without breaking us.
type RawRecord map[string]any

// Record is the canonical, normalized view of a stored memory.
type Record struct {
	ID          string         `json:"id"`
	Repo        string         `json:"repo"`
	Timestamp   string         `json:"timestamp"`
	Context     string         `json:"context"`
	Lesson      string         `json:"lesson"`
	EventType   string         `json:"event_type"`
	Tags        []string       `json:"tags"`
	Confidence  *float64       `json:"confidence"`
	Metadata    map[string]any `json:"metadata"`
	State       string         `json:"state"`
	Command     string         `json:"command,omitempty"`
	SuccessRate string         `json:"success_rate,omitempty"`
}

// internalRecord pairs a raw line with its provenance (owning file and
// zero-based position among the file's non-blank lines).
type internalRecord struct {
	id        string
	repo      string
	timestamp string
	raw       RawRecord
	file      string
	lineIndex int
}

// Sort columns accepted by QueryOptions.SortColumn.
const (
	SortByLesson    = "memory"
	SortByRepo      = "repo"
	SortByCreatedAt = "created_at"
)

// QueryOptions filters and paginates a listing. All filters are conjunctive.
type QueryOptions struct {
	// Search matches case-insensitively against the concatenation of
	// context, lesson, repo, event type, command and tags.
	Search string

	// Repo restricts results to one partition (exact match).
	Repo string

	// Tags must all be present (case-insensitively) in a record's tag set.
	Tags []string

	// EventType is an exact, case-sensitive match.
	EventType string

	// Page is 1-based; Size is the page length. Both default when <= 0.
	Page int
	Size int

	// SortColumn optionally re-sorts the filtered set (SortBy* constants).
	// The default order is timestamp descending.
	SortColumn    string
	SortDirection string // "asc" or "desc"

	// ExcludeArchived drops archived records before pagination.
	ExcludeArchived bool
}

// PageResult is one page of a filtered listing.
type PageResult struct {
	Items []Record `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Size  int      `json:"size"`
	Pages int      `json:"pages"`
}

// DeleteResult reports the outcome of a Delete.
type DeleteResult struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}
