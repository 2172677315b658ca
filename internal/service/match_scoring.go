package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// MatchThreshold is the minimum score for two reports to be considered a match.
const MatchThreshold = 2

const (
	brandWeight    = 3
	modelWeight    = 3
	colorWeight    = 2
	locationWeight = 1
	// keywords shorter than this carry no signal ("black", "found" qualify; "near" does not)
	minKeywordLength = 5
)

// ScoredReport pairs a candidate report with its score against a submission.
type ScoredReport struct {
	Report models.Report
	Score  int
}

// ScoreReports computes the compatibility of two reports. Brand, model and colour only
// count when both sides carry the same non-empty value. Location counts whenever the
// normalised values are equal, two empty locations included, as a low-weight signal.
// Every distinct keyword of five or more characters present in both descriptions adds one.
func ScoreReports(a, b models.Report) int {
	score := 0

	if equalNonEmpty(a.Brand, b.Brand) {
		score += brandWeight
	}
	if equalNonEmpty(a.Model, b.Model) {
		score += modelWeight
	}
	if equalNonEmpty(a.Color, b.Color) {
		score += colorWeight
	}
	if normalizeField(a.Location) == normalizeField(b.Location) {
		score += locationWeight
	}

	score += keywordOverlap(a.Characteristics, b.Characteristics)

	return score
}

// rankMatches keeps candidates at or above the threshold, best score first and ties
// broken by ascending id so the primary opponent is deterministic.
func rankMatches(report models.Report, candidates []models.Report) []ScoredReport {
	matches := make([]ScoredReport, 0, len(candidates))
	for _, candidate := range candidates {
		score := ScoreReports(report, candidate)
		if score >= MatchThreshold {
			matches = append(matches, ScoredReport{Report: candidate, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Report.ID < matches[j].Report.ID
	})

	return matches
}

func normalizeField(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func equalNonEmpty(a, b string) bool {
	na := normalizeField(a)
	return na != "" && na == normalizeField(b)
}

func keywordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(normalizeField(text)) {
		if len(token) >= minKeywordLength {
			set[token] = struct{}{}
		}
	}
	return set
}

func keywordOverlap(a, b string) int {
	left := keywordSet(a)
	if len(left) == 0 {
		return 0
	}
	right := keywordSet(b)

	shared := 0
	for token := range left {
		if _, ok := right[token]; ok {
			shared++
		}
	}
	return shared
}
