package flowmem

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/agentswarm/flowmem/pkg/memory"
)

// Error type constants for classification
const (
	ErrTypeValidation = "validation"
	ErrTypeConfig     = "config"
	ErrTypeIO         = "io"
	ErrTypeParse      = "parse"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and API responses.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	// Known sentinels first
	if errors.Is(err, memory.ErrRepoRequired) {
		return ErrTypeValidation
	}
	if errors.Is(err, memory.ErrRootNotFound) {
		return ErrTypeConfig
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrTypeIO
	}

	errStrLower := strings.ToLower(err.Error())

	// Check for filesystem errors surfaced as strings
	if strings.Contains(errStrLower, "permission denied") ||
		strings.Contains(errStrLower, "no such file") ||
		strings.Contains(errStrLower, "read-only file system") ||
		strings.Contains(errStrLower, "disk") {
		return ErrTypeIO
	}

	// Check for JSON/log parse errors
	if strings.Contains(errStrLower, "unmarshal") ||
		strings.Contains(errStrLower, "unexpected end of json") ||
		strings.Contains(errStrLower, "invalid character") ||
		strings.Contains(errStrLower, "parse") ||
		strings.Contains(errStrLower, "encode") {
		return ErrTypeParse
	}

	// Check for validation errors
	if strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "must be") ||
		strings.Contains(errStrLower, "cannot be empty") {
		return ErrTypeValidation
	}

	// Check for configuration errors
	if strings.Contains(errStrLower, "not found") ||
		strings.Contains(errStrLower, "not initialized") ||
		strings.Contains(errStrLower, "config") {
		return ErrTypeConfig
	}

	return ErrTypeUnknown
}
