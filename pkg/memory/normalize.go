package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// newRecordLineIndex is mixed into the identity hash for freshly created
// records so they can never collide with a real line position.
const newRecordLineIndex = math.MaxInt64

// idSeed is the canonical serialization hashed to derive a record identity.
// Field order is fixed; do not reorder.
type idSeed struct {
	File      string `json:"file"`
	LineIndex int64  `json:"lineIndex"`
	Timestamp any    `json:"timestamp"`
	Repo      any    `json:"repo"`
	Context   any    `json:"context"`
	Lesson    any    `json:"lesson"`
}

// computeID returns the explicit id when the payload carries one, otherwise
// a SHA-256 over the canonical serialization of the record's provenance and
// distinguishing fields. Two otherwise-identical payloads on different lines
// or files therefore still get distinct identities, and reloading the same
// unmodified line always re-derives the same one.
func computeID(raw RawRecord, file string, lineIndex int64) string {
	if id, ok := raw["id"].(string); ok && id != "" {
		return id
	}
	seed, err := json.Marshal(idSeed{
		File:      file,
		LineIndex: lineIndex,
		Timestamp: raw["timestamp"],
		Repo:      raw["repo"],
		Context:   raw["context"],
		Lesson:    raw["lesson"],
	})
	if err != nil {
		// Marshal of plain JSON values cannot fail; hash the provenance alone.
		seed = []byte(file + "#" + strconv.FormatInt(lineIndex, 10))
	}
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:])
}

func isTagSeparator(r rune) bool {
	return r == ',' || r == ' '
}

// normalizeTags accepts either a list of strings or a single comma/space
// delimited string and returns the trimmed, non-empty members in order.
// Normalizing an already-normalized slice yields the same slice.
func normalizeTags(value any) []string {
	tags := []string{}
	switch v := value.(type) {
	case []string:
		for _, tag := range v {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	case []any:
		for _, entry := range v {
			tag, ok := entry.(string)
			if !ok {
				continue
			}
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	case string:
		for _, tag := range strings.FieldsFunc(v, isTagSeparator) {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// normalizeConfidence returns nil for absent or unparseable values.
func normalizeConfidence(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// normalizeState coerces unknown lifecycle values to active.
func normalizeState(value any) string {
	if s, ok := value.(string); ok && (s == StatePaused || s == StateArchived) {
		return s
	}
	return StateActive
}

func stringField(raw RawRecord, key string) string {
	s, _ := raw[key].(string)
	return s
}

// toPublic builds the canonical view of an internal record. The conversion
// is recomputed on every query; nothing is cached.
func toPublic(rec internalRecord) Record {
	eventType := "pattern"
	if et, ok := rec.raw["event_type"].(string); ok {
		eventType = et
	}
	metadata, _ := rec.raw["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Record{
		ID:          rec.id,
		Repo:        rec.repo,
		Timestamp:   rec.timestamp,
		Context:     stringField(rec.raw, "context"),
		Lesson:      stringField(rec.raw, "lesson"),
		EventType:   eventType,
		Tags:        normalizeTags(rec.raw["tags"]),
		Confidence:  normalizeConfidence(rec.raw["confidence"]),
		Metadata:    metadata,
		State:       normalizeState(rec.raw["state"]),
		Command:     stringField(rec.raw, "command"),
		SuccessRate: stringField(rec.raw, "success_rate"),
	}
}
