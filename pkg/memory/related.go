package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
)

const defaultRelatedLimit = 5

// Relatedness weights. Tuned against substring keyword semantics; see the
// scoring notes on wordOverlap before changing any of them.
const (
	tagOverlapWeight  = 2.0
	sameRepoWeight    = 1.0
	wordOverlapWeight = 0.2
)

var nonWordPattern = regexp.MustCompile(`\W+`)

// wordOverlap counts distinct words of length > 3 from the target text that
// appear anywhere in the candidate text. Containment is deliberately
// substring-based, not token-exact: the weights above were tuned against
// that behavior, so switching to exact token matching would silently change
// every ranking.
func wordOverlap(targetText, candidateText string) int {
	seen := make(map[string]bool)
	for _, word := range nonWordPattern.Split(targetText, -1) {
		if len(word) <= 3 || seen[word] {
			continue
		}
		if strings.Contains(candidateText, word) {
			seen[word] = true
		}
	}
	return len(seen)
}

// Related scores every other record against the target and returns the top
// matches: tag overlap counts double, sharing a partition counts once, and
// keyword overlap adds a fifth per shared word. Zero-scoring records are
// excluded; ties break on recency. This is a content heuristic, not a
// vector search.
func (s *Store) Related(ctx context.Context, id string, limit int) (records []Record, err error) {
	defer func(start time.Time) { s.finishOp(ctx, "related", start, err) }(time.Now())

	if id == "" {
		return []Record{}, nil
	}
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	var target *internalRecord
	for i := range all {
		if all[i].id == id {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return []Record{}, nil
	}

	targetPub := toPublic(*target)
	targetTags := make(map[string]bool, len(targetPub.Tags))
	for _, tag := range targetPub.Tags {
		targetTags[strings.ToLower(tag)] = true
	}
	targetText := strings.ToLower(targetPub.Context + " " + targetPub.Lesson)

	type scored struct {
		pub   Record
		score float64
	}
	candidates := make([]scored, 0, len(all))
	for _, rec := range all {
		if rec.id == id {
			continue
		}
		pub := toPublic(rec)

		score := 0.0
		for _, tag := range pub.Tags {
			if targetTags[strings.ToLower(tag)] {
				score += tagOverlapWeight
			}
		}
		if pub.Repo == targetPub.Repo {
			score += sameRepoWeight
		}
		candidateText := strings.ToLower(pub.Context + " " + pub.Lesson)
		score += wordOverlapWeight * float64(wordOverlap(targetText, candidateText))

		if score > 0 {
			candidates = append(candidates, scored{pub: pub, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return parseTime(candidates[i].pub.Timestamp).After(parseTime(candidates[j].pub.Timestamp))
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	records = make([]Record, 0, len(candidates))
	for _, entry := range candidates {
		records = append(records, entry.pub)
	}
	return records, nil
}
