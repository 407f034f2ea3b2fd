package flowmem

import (
	"github.com/agentswarm/flowmem/pkg/memory"
	"github.com/agentswarm/flowmem/pkg/specflow"
)

// Type re-exports for caller convenience

// Record is re-exported from the memory package
type Record = memory.Record

// RawRecord is re-exported from the memory package
type RawRecord = memory.RawRecord

// QueryOptions is re-exported from the memory package
type QueryOptions = memory.QueryOptions

// PageResult is re-exported from the memory package
type PageResult = memory.PageResult

// DeleteResult is re-exported from the memory package
type DeleteResult = memory.DeleteResult

// RepoSummary is re-exported from the memory package
type RepoSummary = memory.RepoSummary

// TagSummary is re-exported from the memory package
type TagSummary = memory.TagSummary

// Lifecycle state constants re-exported from the memory package
const (
	StateActive   = memory.StateActive
	StatePaused   = memory.StatePaused
	StateArchived = memory.StateArchived
)

// Flow is re-exported from the specflow package
type Flow = specflow.Flow

// ArtifactKind is re-exported from the specflow package
type ArtifactKind = specflow.ArtifactKind

// ArtifactInfo is re-exported from the specflow package
type ArtifactInfo = specflow.ArtifactInfo

// Artifact kind constants re-exported from the specflow package
const (
	KindSnapshot       = specflow.KindSnapshot
	KindClarifications = specflow.KindClarifications
	KindPromptLog      = specflow.KindPromptLog
	KindReport         = specflow.KindReport
)
