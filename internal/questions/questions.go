// Package questions implements the question list tab: filtering, sorting,
// metric classes and the per-category distribution.
package questions

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/moodle"
)

// SortOrder selects how the filtered list is ordered.
type SortOrder string

const (
	SortDefault        SortOrder = "default"
	SortDifficulty     SortOrder = "difficulty"
	SortDiscrimination SortOrder = "discrimination"
	SortType           SortOrder = "type"
)

// AllTypes is the type filter value that keeps every type.
const AllTypes = ""

// Filter holds the user's list settings. Ranges are inclusive.
type Filter struct {
	Type          string
	MinDifficulty float64
	MaxDifficulty float64
	MinAttempts   int
	MaxAttempts   int
	Sort          SortOrder
}

// MaxAttempts returns the largest attempts count of the subquestions, at
// least 1.
func MaxAttempts(qs []model.Question) int {
	m := 1
	for _, q := range model.Subquestions(qs) {
		m = max(m, q.Attempts)
	}
	return m
}

// DefaultFilter returns a filter that keeps every subquestion of qs.
func DefaultFilter(qs []model.Question) Filter {
	return Filter{
		MaxDifficulty: 100,
		MaxAttempts:   MaxAttempts(qs),
		Sort:          SortDefault,
	}
}

// FilterFromQuery reads a filter from query parameters, falling back to the
// defaults for missing or malformed values.
func FilterFromQuery(v url.Values, qs []model.Question) Filter {
	f := DefaultFilter(qs)
	f.Type = v.Get("type")
	if x, err := strconv.ParseFloat(v.Get("dmin"), 64); err == nil {
		f.MinDifficulty = x
	}
	if x, err := strconv.ParseFloat(v.Get("dmax"), 64); err == nil {
		f.MaxDifficulty = x
	}
	if x, err := strconv.Atoi(v.Get("amin")); err == nil {
		f.MinAttempts = x
	}
	if x, err := strconv.Atoi(v.Get("amax")); err == nil {
		f.MaxAttempts = x
	}
	switch s := SortOrder(v.Get("sort")); s {
	case SortDifficulty, SortDiscrimination, SortType:
		f.Sort = s
	}
	return f
}

// Types lists the distinct question types of the subquestions, sorted, with
// the random-selection pseudo types left out.
func Types(qs []model.Question) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range model.Subquestions(qs) {
		if model.IsRandomType(q.Type) || seen[q.Type] {
			continue
		}
		seen[q.Type] = true
		out = append(out, q.Type)
	}
	slices.Sort(out)
	return out
}

// Apply returns the subquestions that pass f, ordered by f.Sort.
func Apply(qs []model.Question, f Filter) []model.Question {
	var out []model.Question
	for _, q := range model.Subquestions(qs) {
		if f.Type != AllTypes && q.Type != f.Type {
			continue
		}
		if q.Difficulty < f.MinDifficulty || q.Difficulty > f.MaxDifficulty {
			continue
		}
		if q.Attempts < f.MinAttempts || q.Attempts > f.MaxAttempts {
			continue
		}
		out = append(out, q)
	}

	switch f.Sort {
	case SortDifficulty:
		slices.SortStableFunc(out, func(a, b model.Question) int {
			return cmp.Compare(b.Difficulty, a.Difficulty)
		})
	case SortDiscrimination:
		slices.SortStableFunc(out, func(a, b model.Question) int {
			return cmp.Compare(b.Discrimination, a.Discrimination)
		})
	case SortType:
		slices.SortStableFunc(out, func(a, b model.Question) int {
			return cmp.Compare(a.Type, b.Type)
		})
	}
	return out
}

// DifficultyClass buckets a facility index into easy, medium or hard.
func DifficultyClass(d float64) string {
	switch {
	case d >= 70:
		return "easy"
	case d >= 40:
		return "medium"
	default:
		return "hard"
	}
}

// Metric names accepted by MetricClass.
const (
	MetricDifficulty     = "difficulty"
	MetricDiscrimination = "discrimination"
)

// MetricClass returns the badge class of a metric value.
func MetricClass(v float64, metric string) string {
	switch metric {
	case MetricDiscrimination:
		switch {
		case v >= 30:
			return "metric-good"
		case v >= 15:
			return "metric-warning"
		}
		return "metric-bad"
	case MetricDifficulty:
		switch {
		case v >= 30 && v <= 70:
			return "metric-good"
		case v >= 20 && v <= 80:
			return "metric-warning"
		}
		return "metric-bad"
	}
	return "metric-warning"
}

// BestWrongAnswer returns the index of the most frequent answer that did not
// earn full credit, or -1 when every answer is correct.
func BestWrongAnswer(answers []model.Answer) int {
	best, bestCount := -1, 0.0
	for i, a := range answers {
		if moodle.ParseFloat(a.PartialCredit) >= 99.9 {
			continue
		}
		if c := moodle.ParseFloat(a.Count); best < 0 || c > bestCount {
			best, bestCount = i, c
		}
	}
	return best
}
