package metadata

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Satisfaction buckets, most negative to most positive.
const (
	CategoryVeryDissatisfied = "very_dissatisfied"
	CategoryDissatisfied     = "dissatisfied"
	CategoryNeutral          = "neutral"
	CategorySatisfied        = "satisfied"
	CategoryVerySatisfied    = "very_satisfied"
)

var categoryOrder = []string{
	CategoryVeryDissatisfied,
	CategoryDissatisfied,
	CategoryNeutral,
	CategorySatisfied,
	CategoryVerySatisfied,
}

var categoryKeywords = map[string][]string{
	CategoryVeryDissatisfied: {"terrible", "awful", "unacceptable", "furious", "waste"},
	CategoryDissatisfied:     {"disappointed", "frustrating", "slow", "unhappy", "confusing"},
	CategoryNeutral:          {"okay", "fine", "average", "adequate"},
	CategorySatisfied:        {"happy", "pleased", "helpful", "smooth", "good"},
	CategoryVerySatisfied:    {"excellent", "outstanding", "amazing", "fantastic", "exceeded", "love"},
}

// Sentiment is the scored verdict over the client's side of the interview.
type Sentiment struct {
	Compound float64 `json:"compound"`
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Category string  `json:"category"`
}

// Analyze runs VADER over the text and buckets the compound score into one
// of five satisfaction categories. Keyword counts nudge borderline scores:
// a text sitting on a bucket edge moves toward the bucket whose vocabulary
// dominates.
func Analyze(text string) Sentiment {
	analyzer := govader.NewSentimentIntensityAnalyzer()
	scores := analyzer.PolarityScores(text)

	s := Sentiment{
		Compound: scores.Compound,
		Positive: scores.Positive,
		Negative: scores.Negative,
		Neutral:  scores.Neutral,
	}
	s.Category = categorize(scores.Compound, text)
	return s
}

func categorize(compound float64, text string) string {
	base := bucketForScore(compound)

	// Borderline scores (within 0.1 of an edge) defer to keyword counts.
	counts := keywordCounts(text)
	best, bestCount := base, counts[base]
	for _, cat := range categoryOrder {
		if counts[cat] > bestCount && adjacent(cat, base) {
			best, bestCount = cat, counts[cat]
		}
	}
	return best
}

func bucketForScore(compound float64) string {
	switch {
	case compound <= -0.6:
		return CategoryVeryDissatisfied
	case compound <= -0.1:
		return CategoryDissatisfied
	case compound < 0.1:
		return CategoryNeutral
	case compound < 0.6:
		return CategorySatisfied
	default:
		return CategoryVerySatisfied
	}
}

func adjacent(a, b string) bool {
	ai, bi := -1, -1
	for i, c := range categoryOrder {
		if c == a {
			ai = i
		}
		if c == b {
			bi = i
		}
	}
	d := ai - bi
	return d == 1 || d == -1
}

func keywordCounts(text string) map[string]int {
	lower := strings.ToLower(text)
	counts := make(map[string]int, len(categoryKeywords))
	for cat, words := range categoryKeywords {
		for _, w := range words {
			counts[cat] += strings.Count(lower, w)
		}
	}
	return counts
}
