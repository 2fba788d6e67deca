package irt

import (
	"math"
	"slices"
	"testing"

	"github.com/lappka/lappka/internal/model"
)

func TestLogit(t *testing.T) {
	tests := []struct {
		name string
		d    float64
		want float64
		ok   bool
	}{
		{"half", 50, 0, true},
		{"zero", 0, 0, false},
		{"hundred", 100, 0, false},
		{"clipped low", 0.5, math.Log(0.01 / 0.99), true},
		{"easy", 75, math.Log(3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Logit(tt.d)
			if ok != tt.ok {
				t.Fatalf("Logit(%v) ok = %v, want %v", tt.d, ok, tt.ok)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Logit(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func sampleQuestions() []model.Question {
	return []model.Question{
		{ID: "1", IsMain: true, Difficulty: 50},
		{ID: "1.1", Type: model.TypeNumerical, Difficulty: 85, Discrimination: 40, Attempts: 30},
		{ID: "1.2", Type: model.TypeMultiChoice, Difficulty: 50, Discrimination: 20, Attempts: 42, DisplayID: "1.2 (2.2)"},
		{ID: "1.3", Type: "Эссе", Difficulty: 30, Discrimination: 10, Attempts: 12},
		{ID: "1.4", Type: "Случайный", Difficulty: 60},
		{ID: "1.5", Type: model.TypeTrueFalse, Difficulty: 0},
	}
}

func TestItemsAndGroups(t *testing.T) {
	items := Items(sampleQuestions())
	if len(items) != 4 {
		t.Fatalf("expected 4 items with 0 < d < 100, got %d", len(items))
	}
	if items[1].Label != "1.2 (2.2)" {
		t.Errorf("label should use display id, got %q", items[1].Label)
	}

	groups := GroupByType(items)
	if len(groups) != 3 {
		t.Fatalf("random type must be excluded, got %d groups", len(groups))
	}
	types := []string{groups[0].Type, groups[1].Type, groups[2].Type}
	if !slices.IsSorted(types) {
		t.Errorf("groups not sorted by type: %v", types)
	}
	for i, g := range groups {
		if g.LabelLeft != (i%2 == 0) {
			t.Errorf("group %d label side = %v", i, g.LabelLeft)
		}
		switch g.Type {
		case model.TypeNumerical:
			if g.X != 0.22 || g.Color != "red" {
				t.Errorf("numerical group at %v/%s", g.X, g.Color)
			}
		case "Эссе":
			if want := unknownTypeX + float64(i)*unknownTypeStep; math.Abs(g.X-want) > 1e-9 {
				t.Errorf("unknown type x = %v, want %v", g.X, want)
			}
			if g.Color != fallbackColors[i%len(fallbackColors)] {
				t.Errorf("unknown type color = %s", g.Color)
			}
		}
	}
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{-4, -3.9, 0.1, 4, 5})
	if len(bins) != 20 {
		t.Fatalf("expected 20 bins, got %d", len(bins))
	}
	if bins[0].Count != 2 || bins[19].Count != 1 || bins[10].Count != 1 {
		t.Errorf("unexpected counts: first=%d mid=%d last=%d", bins[0].Count, bins[10].Count, bins[19].Count)
	}
	if bins[0].Length != -0.3 {
		t.Errorf("largest bar should be -0.3, got %v", bins[0].Length)
	}
	if math.Abs(bins[0].Center-(-3.8)) > 1e-9 {
		t.Errorf("first center = %v, want -3.8", bins[0].Center)
	}
}

func TestSamplerDeterministic(t *testing.T) {
	sum := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	a := NewSampler(sum).Normal(0, 1, 5)
	b := NewSampler(sum).Normal(0, 1, 5)
	if !slices.Equal(a, b) {
		t.Errorf("same checksum must give the same draws: %v vs %v", a, b)
	}

	clipped := NewSampler("x").SimulateAbilities([]float64{-10, 10}, 200)
	for _, v := range clipped {
		if v < ScaleMin || v > ScaleMax {
			t.Fatalf("ability %v outside the scale", v)
		}
	}
}

func TestBuildMap(t *testing.T) {
	m := BuildMap(sampleQuestions(), nil, NewSampler("abc"))
	total := 0
	for _, b := range m.Bins {
		total += b.Count
	}
	if total == 0 || total > defaultSamples {
		t.Errorf("histogram holds %d simulated students", total)
	}
	if m.Items != 4 || len(m.Groups) != 3 {
		t.Errorf("items=%d groups=%d", m.Items, len(m.Groups))
	}

	given := BuildMap(sampleQuestions(), []float64{1, 1, 1}, nil)
	if given.MeanAbility != 1 || given.SDAbility != 0 {
		t.Errorf("given abilities: mean=%v sd=%v", given.MeanAbility, given.SDAbility)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleQuestions())
	if s.TotalQuestions != 5 {
		t.Errorf("total = %d, want 5 subquestions", s.TotalQuestions)
	}
	if s.ValidDifficulty != 4 {
		t.Errorf("valid = %d, want 4", s.ValidDifficulty)
	}
	if s.Easy != 1 || s.Medium != 2 || s.Hard != 1 {
		t.Errorf("easy/medium/hard = %d/%d/%d", s.Easy, s.Medium, s.Hard)
	}
	if math.Abs(s.DifficultyMean-56.25) > 1e-9 {
		t.Errorf("mean difficulty = %v, want 56.25", s.DifficultyMean)
	}
}

func TestDifficultyByType(t *testing.T) {
	spread := DifficultyByType(sampleQuestions())
	if len(spread) != 4 {
		t.Fatalf("expected 4 types, got %d", len(spread))
	}
	if spread[0].Type != model.TypeNumerical || spread[0].Stats.N != 1 {
		t.Errorf("unexpected first spread %+v", spread[0])
	}
	if spread[2].Color != "gray" {
		t.Errorf("unknown type color = %q, want gray", spread[2].Color)
	}
}

func TestDifficultyByTypeUntyped(t *testing.T) {
	qs := []model.Question{
		{ID: "1", Type: model.TypeNumerical, Difficulty: 60, Attempts: 10},
		{ID: "2", Type: "", Difficulty: 40, Attempts: 10},
		{ID: "3", Type: "Случайный", Difficulty: 50, Attempts: 10},
		{ID: "4", Type: "", Difficulty: 80, Attempts: 10},
	}
	spread := DifficultyByType(qs)
	if len(spread) != 2 {
		t.Fatalf("expected 2 groups, got %+v", spread)
	}
	if spread[1].Type != "" || spread[1].Stats.N != 2 {
		t.Errorf("untyped group = %+v, want 2 questions", spread[1])
	}
	for _, s := range spread {
		if s.Type == "Случайный" {
			t.Error("random type must be skipped")
		}
	}
}

func TestStudentCount(t *testing.T) {
	if got := StudentCount(sampleQuestions()); got != 42 {
		t.Errorf("StudentCount = %d, want 42", got)
	}
	if got := StudentCount(nil); got != fallbackStudents {
		t.Errorf("StudentCount(nil) = %d, want %d", got, fallbackStudents)
	}
}
