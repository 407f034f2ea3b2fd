package memory

import (
	"context"
	"sort"
	"time"
)

// RepoSummary aggregates one partition's records.
type RepoSummary struct {
	Repo           string `json:"repo"`
	Total          int    `json:"total"`
	FirstTimestamp string `json:"firstTimestamp,omitempty"`
	LastTimestamp  string `json:"lastTimestamp,omitempty"`
	ActiveCount    int    `json:"activeCount"`
	PausedCount    int    `json:"pausedCount"`
	ArchivedCount  int    `json:"archivedCount"`
}

// TagSummary is the global usage count of one tag.
type TagSummary struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// RepoStats is the per-repository slice of Stats.
type RepoStats struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MemoriesCreated int    `json:"total_memories_created"`
	// MemoriesAccessed mirrors MemoriesCreated: the JSONL layout keeps no
	// access log, so created is the only available proxy.
	MemoriesAccessed int  `json:"total_memories_accessed"`
	IsActive         bool `json:"is_active"`
}

// Stats is the dashboard-level aggregate over the whole store.
type Stats struct {
	TotalMemories int         `json:"total_memories"`
	TotalRepos    int         `json:"total_repos"`
	Repos         []RepoStats `json:"repos"`
}

// RepoSummaries aggregates counts and timestamp bounds per partition,
// sorted by last timestamp descending. Timestamp bounds are string min/max,
// which is why timestamps must stay in sortable ISO-8601 form. Partitions
// with no timestamp sort last.
func (s *Store) RepoSummaries(ctx context.Context) (summaries []RepoSummary, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "repo_summaries", start, err) }(time.Now())

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	byRepo := make(map[string]*RepoSummary)
	order := []string{}
	for _, rec := range all {
		pub := toPublic(rec)
		summary, ok := byRepo[pub.Repo]
		if !ok {
			summary = &RepoSummary{Repo: pub.Repo}
			byRepo[pub.Repo] = summary
			order = append(order, pub.Repo)
		}
		summary.Total++
		if summary.FirstTimestamp == "" || summary.FirstTimestamp > pub.Timestamp {
			summary.FirstTimestamp = pub.Timestamp
		}
		if summary.LastTimestamp == "" || summary.LastTimestamp < pub.Timestamp {
			summary.LastTimestamp = pub.Timestamp
		}
		switch pub.State {
		case StateArchived:
			summary.ArchivedCount++
		case StatePaused:
			summary.PausedCount++
		default:
			summary.ActiveCount++
		}
	}

	summaries = make([]RepoSummary, 0, len(order))
	for _, repo := range order {
		summaries = append(summaries, *byRepo[repo])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return parseTime(summaries[i].LastTimestamp).After(parseTime(summaries[j].LastTimestamp))
	})
	return summaries, nil
}

// TagSummaries counts records per tag across the whole store, most used
// first. Tags are counted as stored (no case folding), matching the tag
// chips the console renders.
func (s *Store) TagSummaries(ctx context.Context) (summaries []TagSummary, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "tag_summaries", start, err) }(time.Now())

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	order := []string{}
	for _, rec := range all {
		for _, tag := range normalizeTags(rec.raw["tags"]) {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	summaries = make([]TagSummary, 0, len(order))
	for _, tag := range order {
		summaries = append(summaries, TagSummary{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Count > summaries[j].Count
	})
	return summaries, nil
}

// Stats rolls the repo summaries up into one dashboard aggregate.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	summaries, err := s.RepoSummaries(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		TotalRepos: len(summaries),
		Repos:      make([]RepoStats, 0, len(summaries)),
	}
	for _, summary := range summaries {
		stats.TotalMemories += summary.Total
		stats.Repos = append(stats.Repos, RepoStats{
			ID:               summary.Repo,
			Name:             summary.Repo,
			MemoriesCreated:  summary.Total,
			MemoriesAccessed: summary.Total,
			IsActive:         summary.ActiveCount > 0,
		})
	}
	return stats, nil
}
