package specflow

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// stringList coerces a snapshot field to an ordered list of trimmed,
// non-empty strings. Non-string entries are dropped silently.
func stringList(value any) []string {
	out := []string{}
	entries, ok := value.([]any)
	if !ok {
		return out
	}
	for _, entry := range entries {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// optionalString coerces a scalar field to a trimmed string; anything that
// trims to nothing (or is not a string) is absent.
func optionalString(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// field reads an entry field under both naming conventions the capture tool
// has used over time, preferring the snake_case form when both are present.
func field(entry map[string]any, snake, camel string) any {
	if v, ok := entry[snake]; ok && v != nil {
		return v
	}
	return entry[camel]
}

// repoList accepts either a single string or a list of strings.
func repoList(value any) []string {
	if s, ok := value.(string); ok {
		return []string{s}
	}
	return stringList(value)
}

func objectEntries(value any) []map[string]any {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// sortByTimestampDesc orders entries by a per-entry timestamp, newest
// first; an absent or unparseable timestamp sorts as earliest.
func sortByTimestampDesc[T any](entries []T, timestamp func(T) string) {
	sort.SliceStable(entries, func(i, j int) bool {
		return parseFlowTime(timestamp(entries[i])).After(parseFlowTime(timestamp(entries[j])))
	})
}

func parseArtifactLinks(value any) []ArtifactLink {
	links := []ArtifactLink{}
	for _, entry := range objectEntries(value) {
		path := optionalString(entry["path"])
		if path == "" {
			continue
		}
		link := ArtifactLink{
			ID:      optionalString(entry["id"]),
			Path:    path,
			Summary: optionalString(entry["summary"]),
			Status:  optionalString(entry["status"]),
			Intent:  optionalString(entry["intent"]),
			AddedAt: optionalString(field(entry, "added_at", "addedAt")),
		}
		if link.ID == "" {
			link.ID = path
		}
		links = append(links, link)
	}
	sortByTimestampDesc(links, func(l ArtifactLink) string { return l.AddedAt })
	return links
}

func parseProgressUpdates(value any) []ProgressUpdate {
	updates := []ProgressUpdate{}
	for _, entry := range objectEntries(value) {
		id := optionalString(entry["id"])
		if id == "" {
			id = optionalString(entry["timestamp"])
		}
		if id == "" {
			id = uuid.NewString()
		}
		updates = append(updates, ProgressUpdate{
			ID:                    id,
			Timestamp:             optionalString(entry["timestamp"]),
			UserQuote:             optionalString(field(entry, "user_quote", "userQuote")),
			OverarchingIntent:     optionalString(field(entry, "overarching_intent", "overarchingIntent")),
			SubgoalIntent:         optionalString(field(entry, "subgoal_intent", "subgoalIntent")),
			IntentConnection:      optionalString(field(entry, "intent_connection", "intentConnection")),
			TechnicalNuance:       optionalString(field(entry, "technical_nuance", "technicalNuance")),
			UXNow:                 optionalString(field(entry, "ux_now", "uxNow")),
			ValidationEntry:       optionalString(field(entry, "validation_entry", "validationEntry")),
			ValidationSteps:       optionalString(field(entry, "validation_steps", "validationSteps")),
			ValidationNotice:      optionalString(field(entry, "validation_notice", "validationNotice")),
			ValidationRequirement: optionalString(field(entry, "validation_requirement", "validationRequirement")),
			RequirementsNote:      optionalString(field(entry, "requirements_note", "requirementsNote")),
			TasksCompleted:        stringList(field(entry, "tasks_completed", "tasksCompleted")),
			IntentStatuses:        stringList(field(entry, "intent_statuses", "intentStatuses")),
			NewUserStories:        stringList(field(entry, "new_user_stories", "newUserStories")),
			RenderText:            optionalString(field(entry, "render_text", "renderText")),
		})
	}
	sortByTimestampDesc(updates, func(u ProgressUpdate) string { return u.Timestamp })
	return updates
}

func parseCommandReviews(value any) []CommandReview {
	reviews := []CommandReview{}
	for _, entry := range objectEntries(value) {
		command := optionalString(entry["command"])
		if command == "" {
			continue
		}
		reviews = append(reviews, CommandReview{
			Command:    command,
			Intent:     optionalString(entry["intent"]),
			Validation: optionalString(entry["validation"]),
			Status:     optionalString(entry["status"]),
			Notes:      optionalString(entry["notes"]),
			NextAction: optionalString(field(entry, "next_action", "nextAction")),
		})
	}
	return reviews
}

func parseUXConcerns(value any) []UXConcern {
	concerns := []UXConcern{}
	for _, entry := range objectEntries(value) {
		title := optionalString(entry["title"])
		if title == "" {
			continue
		}
		concerns = append(concerns, UXConcern{
			Title:  title,
			Status: optionalString(entry["status"]),
			Notes:  optionalString(entry["notes"]),
		})
	}
	return concerns
}

func parseActionItems(value any) []ActionItem {
	items := []ActionItem{}
	for _, entry := range objectEntries(value) {
		title := optionalString(entry["title"])
		id := optionalString(entry["id"])
		if id == "" {
			id = title
		}
		if id == "" || title == "" {
			continue
		}
		items = append(items, ActionItem{
			ID:     id,
			Title:  title,
			Status: optionalString(entry["status"]),
			Notes:  optionalString(entry["notes"]),
		})
	}
	return items
}

func parseAlignmentReviews(value any) []AlignmentReview {
	reviews := []AlignmentReview{}
	for _, entry := range objectEntries(value) {
		id := optionalString(entry["id"])
		if id == "" {
			id = optionalString(field(entry, "created_at", "createdAt"))
		}
		if id == "" {
			continue
		}
		reviews = append(reviews, AlignmentReview{
			ID:                id,
			Title:             optionalString(entry["title"]),
			Status:            optionalString(entry["status"]),
			Reasoning:         optionalString(entry["reasoning"]),
			ProgressReference: optionalString(field(entry, "progress_reference", "progressReference")),
			CreatedAt:         optionalString(field(entry, "created_at", "createdAt")),
			Evidence:          stringList(entry["evidence"]),
		})
	}
	sortByTimestampDesc(reviews, func(r AlignmentReview) string { return r.CreatedAt })
	return reviews
}
