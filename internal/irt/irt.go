// Package irt builds the Person-Item Map: student abilities and item
// difficulties placed on one logit scale.
package irt

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/stats"
)

// Scale bounds of the map, in logits.
const (
	ScaleMin = -4.0
	ScaleMax = 4.0
)

const (
	histogramBins    = 20
	maxBarLength     = 0.3
	defaultSamples   = 1000
	unknownTypeX     = 0.58
	unknownTypeStep  = 0.04
	markerX          = -0.4
	fallbackStudents = 100
)

// TypeColors are the per-type marker colours.
var TypeColors = map[string]string{
	model.TypeNumerical:    "red",
	model.TypeShortAnswer:  "darkorange",
	model.TypeMultiChoice:  "green",
	model.TypeTrueFalse:    "blue",
	model.TypeMatching:     "orange",
	model.TypeMissingWords: "purple",
}

var typeX = map[string]float64{
	model.TypeNumerical:    0.22,
	model.TypeShortAnswer:  0.28,
	model.TypeMultiChoice:  0.34,
	model.TypeTrueFalse:    0.40,
	model.TypeMatching:     0.46,
	model.TypeMissingWords: 0.52,
}

var fallbackColors = []string{"teal", "coral", "darkviolet", "saddlebrown"}

// Logit converts a facility index (percent of correct answers) into a logit.
// The proportion is clipped to [0.01, 0.99]. ok is false for 0 and 100 and
// anything outside, which carry no information about difficulty.
func Logit(difficulty float64) (logit float64, ok bool) {
	if difficulty <= 0 || difficulty >= 100 {
		return 0, false
	}
	p := stats.Clip(difficulty/100, 0.01, 0.99)
	return math.Log(p / (1 - p)), true
}

// Item is a question placed on the logit scale.
type Item struct {
	Label string  `json:"label" yaml:"label"`
	Type  string  `json:"type" yaml:"type"`
	Logit float64 `json:"logit" yaml:"logit"`
}

// Items converts the subquestions with a usable facility index.
func Items(qs []model.Question) []Item {
	var items []Item
	for _, q := range model.Subquestions(qs) {
		l, ok := Logit(q.Difficulty)
		if !ok {
			continue
		}
		items = append(items, Item{Label: q.Label(), Type: q.Type, Logit: l})
	}
	return items
}

// Logits returns the logit of every item.
func Logits(items []Item) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = it.Logit
	}
	return out
}

// StudentCount estimates the number of students behind the statistics: the
// largest attempt count, or 100 when no question has attempts.
func StudentCount(qs []model.Question) int {
	var best int
	for _, q := range model.Subquestions(qs) {
		best = max(best, q.Attempts)
	}
	if best > 0 {
		return best
	}
	return fallbackStudents
}

// Sampler draws simulated abilities. Moodle exports carry no per-student
// scores, so abilities are modelled as a normal distribution around the items.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler seeds a sampler from a dataset checksum so that the same upload
// always renders the same map.
func NewSampler(checksum string) *Sampler {
	var s1, s2 uint64
	if b, err := hex.DecodeString(checksum); err == nil && len(b) >= 16 {
		s1 = binary.BigEndian.Uint64(b[:8])
		s2 = binary.BigEndian.Uint64(b[8:16])
	} else {
		for i, c := range checksum {
			s1 = s1*31 + uint64(c)
			s2 ^= uint64(c) << (uint(i) % 56)
		}
	}
	return &Sampler{rng: rand.New(rand.NewPCG(s1, s2))}
}

// Normal draws n values from N(mean, sd).
func (s *Sampler) Normal(mean, sd float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + sd*s.rng.NormFloat64()
	}
	return out
}

// AroundItems draws n abilities from a normal distribution with the mean and
// spread of the item logits, N(0, 1) when there are no items.
func (s *Sampler) AroundItems(logits []float64, n int) []float64 {
	mean, sd := 0.0, 1.0
	if len(logits) > 0 {
		mean, sd = stats.Mean(logits), stats.StdDev(logits)
	}
	return s.Normal(mean, sd, n)
}

// SimulateAbilities is AroundItems with every value clipped to the scale.
func (s *Sampler) SimulateAbilities(logits []float64, n int) []float64 {
	out := s.AroundItems(logits, n)
	for i, v := range out {
		out[i] = stats.Clip(v, ScaleMin, ScaleMax)
	}
	return out
}

// Bin is one histogram bar of the student distribution.
type Bin struct {
	Center float64 `json:"center" yaml:"center"`
	Count  int     `json:"count" yaml:"count"`
	Length float64 `json:"length" yaml:"length"`
}

// Histogram buckets abilities into 20 bins over the scale. Bar lengths are
// negative (drawn to the left of the axis) and the longest is 0.3.
func Histogram(abilities []float64) []Bin {
	width := (ScaleMax - ScaleMin) / histogramBins
	bins := make([]Bin, histogramBins)
	for i := range bins {
		bins[i].Center = ScaleMin + width*(float64(i)+0.5)
	}
	for _, a := range abilities {
		if a < ScaleMin || a > ScaleMax {
			continue
		}
		i := int((a - ScaleMin) / width)
		if i == histogramBins {
			i--
		}
		bins[i].Count++
	}
	maxCount := 1
	for _, b := range bins {
		maxCount = max(maxCount, b.Count)
	}
	for i := range bins {
		bins[i].Length = -float64(bins[i].Count) * maxBarLength / float64(maxCount)
	}
	return bins
}

// TypeGroup is the column of items of one question type.
type TypeGroup struct {
	Type      string  `json:"type" yaml:"type"`
	Color     string  `json:"color" yaml:"color"`
	X         float64 `json:"x" yaml:"x"`
	LabelLeft bool    `json:"label_left" yaml:"label_left"`
	Items     []Item  `json:"items" yaml:"items"`
}

// GroupByType splits items into per-type columns, sorted by type name.
// Random-selection pseudo types are left out.
func GroupByType(items []Item) []TypeGroup {
	byType := make(map[string][]Item)
	for _, it := range items {
		if model.IsRandomType(it.Type) {
			continue
		}
		byType[it.Type] = append(byType[it.Type], it)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	slices.Sort(types)

	groups := make([]TypeGroup, 0, len(types))
	for i, t := range types {
		x, ok := typeX[t]
		if !ok {
			x = unknownTypeX + float64(i)*unknownTypeStep
		}
		color, ok := TypeColors[t]
		if !ok {
			color = fallbackColors[i%len(fallbackColors)]
		}
		groups = append(groups, TypeGroup{
			Type:      t,
			Color:     color,
			X:         x,
			LabelLeft: i%2 == 0,
			Items:     byType[t],
		})
	}
	return groups
}

// Map is everything needed to draw a Person-Item Map.
type Map struct {
	Bins        []Bin       `json:"bins" yaml:"bins"`
	MeanAbility float64     `json:"mean_ability" yaml:"mean_ability"`
	SDAbility   float64     `json:"sd_ability" yaml:"sd_ability"`
	MarkerX     float64     `json:"marker_x" yaml:"marker_x"`
	Groups      []TypeGroup `json:"groups" yaml:"groups"`
	Items       int         `json:"items" yaml:"items"`
}

// BuildMap lays out the map for the given abilities. When abilities is nil,
// 1000 abilities are simulated from the item logits with the sampler.
func BuildMap(qs []model.Question, abilities []float64, s *Sampler) Map {
	items := Items(qs)
	if abilities == nil {
		abilities = s.AroundItems(Logits(items), defaultSamples)
	}
	return Map{
		Bins:        Histogram(abilities),
		MeanAbility: stats.Mean(abilities),
		SDAbility:   stats.StdDev(abilities),
		MarkerX:     markerX,
		Groups:      GroupByType(items),
		Items:       len(items),
	}
}

// Summary holds the IRT summary statistics of a dataset.
type Summary struct {
	TotalQuestions     int     `json:"total_questions" yaml:"total_questions"`
	DifficultyMean     float64 `json:"difficulty_mean" yaml:"difficulty_mean"`
	DifficultyStd      float64 `json:"difficulty_std" yaml:"difficulty_std"`
	LogitMean          float64 `json:"difficulty_logit_mean" yaml:"difficulty_logit_mean"`
	LogitStd           float64 `json:"difficulty_logit_std" yaml:"difficulty_logit_std"`
	DiscriminationMean float64 `json:"discrimination_mean" yaml:"discrimination_mean"`
	DiscriminationStd  float64 `json:"discrimination_std" yaml:"discrimination_std"`
	Easy               int     `json:"easy_questions" yaml:"easy_questions"`
	Medium             int     `json:"medium_questions" yaml:"medium_questions"`
	Hard               int     `json:"hard_questions" yaml:"hard_questions"`
	ValidDifficulty    int     `json:"questions_with_valid_difficulty" yaml:"questions_with_valid_difficulty"`
}

// Summarize computes the summary over subquestions. Means and counts use only
// questions with a positive facility index; the total counts all of them.
func Summarize(qs []model.Question) Summary {
	subs := model.Subquestions(qs)
	var diffs, discs, logits []float64
	for _, q := range subs {
		if q.Difficulty <= 0 {
			continue
		}
		diffs = append(diffs, q.Difficulty)
		discs = append(discs, q.Discrimination)
		p := stats.Clip(q.Difficulty/100, 0.01, 0.99)
		logits = append(logits, math.Log(p/(1-p)))
	}

	s := Summary{
		TotalQuestions:     len(subs),
		DifficultyMean:     stats.Mean(diffs),
		DifficultyStd:      stats.StdDev(diffs),
		LogitMean:          stats.Mean(logits),
		LogitStd:           stats.StdDev(logits),
		DiscriminationMean: stats.Mean(discs),
		DiscriminationStd:  stats.StdDev(discs),
		ValidDifficulty:    len(diffs),
	}
	for _, d := range diffs {
		switch {
		case d > 80:
			s.Easy++
		case d >= 40:
			s.Medium++
		default:
			s.Hard++
		}
	}
	return s
}

// TypeSpread is the difficulty distribution of one question type.
type TypeSpread struct {
	Type  string        `json:"type" yaml:"type"`
	Color string        `json:"color" yaml:"color"`
	Stats stats.Summary `json:"stats" yaml:"stats"`
}

// DifficultyByType summarises facility indices in [0, 100] per question type,
// in order of first appearance. Random-selection pseudo types are skipped;
// questions without a type form their own group.
func DifficultyByType(qs []model.Question) []TypeSpread {
	var order []string
	byType := make(map[string][]float64)
	for _, q := range model.Subquestions(qs) {
		if q.Difficulty < 0 || q.Difficulty > 100 || (q.Type != "" && model.IsRandomType(q.Type)) {
			continue
		}
		if _, ok := byType[q.Type]; !ok {
			order = append(order, q.Type)
		}
		byType[q.Type] = append(byType[q.Type], q.Difficulty)
	}

	out := make([]TypeSpread, 0, len(order))
	for _, t := range order {
		color, ok := TypeColors[t]
		if !ok {
			color = "gray"
		}
		out = append(out, TypeSpread{Type: t, Color: color, Stats: stats.Summarize(byType[t])})
	}
	return out
}
