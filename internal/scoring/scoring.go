// Package scoring ranks search results for a sound-effect query by how likely
// their titles and durations are to describe a clean, isolated clip.
package scoring

import (
	"sort"
	"strings"
)

const (
	positiveWeight   = 20
	negativeWeight   = -100
	qualityBonus     = 10
	isolationBonus   = 30
	idealDuration    = 20
	longDuration     = -50
	tinyDuration     = -100
	idealMinSeconds  = 1.0
	idealMaxSeconds  = 15.0
	longAfterSeconds = 60.0
	tinyBelowSeconds = 0.5
)

var (
	qualityMarkers   = []string{"original", "hq", "high quality"}
	isolationMarkers = []string{"isolated", "foley", "sfx"}
)

// Candidate is one search result that could be fetched.
type Candidate struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Locator  string  `json:"locator"`
}

// Scored pairs a candidate with its relevance score and the terms that
// produced it.
type Scored struct {
	Candidate Candidate `json:"candidate"`
	Score     int       `json:"score"`
	Reasons   []string  `json:"reasons,omitempty"`
}

// Score returns the relevance score of c. Tags are matched as substrings of
// the lowercased title; each matching positive tag adds 20 and each matching
// negative tag subtracts 100.
func Score(c Candidate, positive, negative []string) int {
	score, _ := evaluate(c, positive, negative)
	return score
}

func evaluate(c Candidate, positive, negative []string) (int, []string) {
	title := strings.ToLower(c.Title)
	score := 0
	var reasons []string

	for _, tag := range positive {
		if tag != "" && strings.Contains(title, strings.ToLower(tag)) {
			score += positiveWeight
			reasons = append(reasons, "positive="+tag)
		}
	}
	for _, tag := range negative {
		if tag != "" && strings.Contains(title, strings.ToLower(tag)) {
			score += negativeWeight
			reasons = append(reasons, "negative="+tag)
		}
	}
	if marker, ok := containsAny(title, qualityMarkers); ok {
		score += qualityBonus
		reasons = append(reasons, "quality="+marker)
	}
	if marker, ok := containsAny(title, isolationMarkers); ok {
		score += isolationBonus
		reasons = append(reasons, "isolation="+marker)
	}

	switch d := c.Duration; {
	case d >= idealMinSeconds && d <= idealMaxSeconds:
		score += idealDuration
		reasons = append(reasons, "duration=ideal")
	case d > longAfterSeconds:
		score += longDuration
		reasons = append(reasons, "duration=long")
	case d < tinyBelowSeconds:
		score += tinyDuration
		reasons = append(reasons, "duration=tiny")
	}
	return score, reasons
}

func containsAny(title string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(title, m) {
			return m, true
		}
	}
	return "", false
}

// Select returns the highest-scoring candidate. Ties keep the earliest
// candidate in input order. ok is false for an empty pool.
func Select(cands []Candidate, positive, negative []string) (Scored, bool) {
	var (
		best  Scored
		found bool
	)
	for _, c := range cands {
		score, reasons := evaluate(c, positive, negative)
		if !found || score > best.Score {
			best = Scored{Candidate: c, Score: score, Reasons: reasons}
			found = true
		}
	}
	return best, found
}

// Rank scores every candidate and orders them best first, keeping input
// order among equal scores.
func Rank(cands []Candidate, positive, negative []string) []Scored {
	ranked := make([]Scored, 0, len(cands))
	for _, c := range cands {
		score, reasons := evaluate(c, positive, negative)
		ranked = append(ranked, Scored{Candidate: c, Score: score, Reasons: reasons})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
