package expert

import (
	"math"
	"strings"
	"testing"

	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
)

func TestAnalyzeAbilities(t *testing.T) {
	if AnalyzeAbilities(nil) != nil {
		t.Fatal("expected nil for no abilities")
	}
	s := AnalyzeAbilities([]float64{-2, -1, 0, 1, 2})
	if s.Total != 5 || s.Mean != 0 || s.Median != 0 {
		t.Errorf("unexpected basics %+v", s)
	}
	// sd = sqrt(2) so -2 and 2 fall outside one standard deviation.
	if s.Low != 1 || s.Medium != 3 || s.High != 1 {
		t.Errorf("low/medium/high = %d/%d/%d", s.Low, s.Medium, s.High)
	}
	if s.LowPct != 20 || s.Distribution != DistNormal {
		t.Errorf("low%% = %v, distribution = %s", s.LowPct, s.Distribution)
	}

	skewed := AnalyzeAbilities([]float64{-1, -1, -1, -1, -1, -1, 3})
	if skewed.Distribution != DistManyWeak {
		t.Errorf("right-skewed abilities = %s, want %s", skewed.Distribution, DistManyWeak)
	}
}

func TestAnalyzeQuestions(t *testing.T) {
	long := strings.Repeat("я", 200)
	qs := []model.Question{
		{ID: "1", IsMain: true},
		{ID: "1.1", Type: model.TypeNumerical, Difficulty: 80, Discrimination: 0.1, Attempts: 10, Title: long},
		{ID: "1.2", Type: model.TypeNumerical, Difficulty: 55, Discrimination: 35, Attempts: 40},
		{ID: "1.3", Type: "Случайный", Difficulty: 20, Discrimination: 30, Attempts: 0},
	}
	a := AnalyzeQuestions(qs)
	if a.Total != 3 || a.Easy != 1 || a.Medium != 1 || a.Hard != 1 {
		t.Errorf("counts: total=%d easy=%d medium=%d hard=%d", a.Total, a.Easy, a.Medium, a.Hard)
	}
	if len(a.Types) != 1 || a.Types[0].Count != 2 {
		t.Errorf("random pseudo type must not be counted: %+v", a.Types)
	}
	if len(a.LowDiscrimination) != 1 || a.LowDiscrimination[0].ID != "1.1" {
		t.Fatalf("low discrimination = %+v", a.LowDiscrimination)
	}
	if got := []rune(a.LowDiscrimination[0].Title); len(got) != 153 {
		t.Errorf("preview should be 150 runes plus ellipsis, got %d runes", len(got))
	}
	if len(a.LowAttempts) != 1 || a.LowAttempts[0].Attempts != 10 {
		t.Errorf("low attempts = %+v", a.LowAttempts)
	}
	if a.Balance != BalanceUnbalanced {
		t.Errorf("balance = %s", a.Balance)
	}
	if AnalyzeQuestions([]model.Question{{ID: "1", IsMain: true}}) != nil {
		t.Errorf("expected nil without subquestions")
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		easy, medium, hard int
		want               string
	}{
		{0, 0, 0, BalanceNoData},
		{3, 4, 3, BalanceBalanced},
		{6, 3, 1, BalanceEasy},
		{1, 3, 6, BalanceHard},
		{5, 3, 2, BalanceUnbalanced},
	}
	for _, tt := range tests {
		if got := Balance(tt.easy, tt.medium, tt.hard); got != tt.want {
			t.Errorf("Balance(%d,%d,%d) = %s, want %s", tt.easy, tt.medium, tt.hard, got, tt.want)
		}
	}
}

func TestAnalyzeMatch(t *testing.T) {
	// Logits of 50 and 75 are 0 and ln 3.
	m := AnalyzeMatch([]float64{-1, 1}, []float64{50, 75})
	wantOverlap := 1 / (math.Log(3) + 1) * 100
	if math.Abs(m.OverlapPct-wantOverlap) > 1e-9 {
		t.Errorf("overlap = %v, want %v", m.OverlapPct, wantOverlap)
	}
	if m.Quality != MatchSatisfactory {
		t.Errorf("quality = %s", m.Quality)
	}
	ids := messageIDs(m.Recommendations)
	if ids != "RecInsufficientOverlap,RecRebalance,RecNarrowQuestions" {
		t.Errorf("recommendations = %s", ids)
	}

	if AnalyzeMatch([]float64{1}, []float64{0, 100}) != nil {
		t.Errorf("expected nil when no difficulty maps to a logit")
	}
}

func messageIDs(ms []Message) string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return strings.Join(ids, ",")
}

func TestAnalyze(t *testing.T) {
	qs := []model.Question{
		{ID: "1.1", Type: model.TypeMultiChoice, Difficulty: 95, Discrimination: 0.1, Attempts: 25},
		{ID: "1.2", Type: model.TypeMultiChoice, Difficulty: 90, Discrimination: 40, Attempts: 25},
		{ID: "1.3", Type: model.TypeShortAnswer, Difficulty: 85, Discrimination: 40, Attempts: 25},
	}
	a := Analyze(qs, nil, irt.NewSampler("seed"), DefaultTargets())
	if a.Students == nil || a.Students.Total != 25 {
		t.Fatalf("expected 25 simulated students, got %+v", a.Students)
	}
	if a.Summary.Questions != 3 || a.Summary.Students != 25 {
		t.Errorf("summary = %+v", a.Summary)
	}
	ids := messageIDs(a.Recommendations)
	for _, want := range []string{RecLowDiscrimination, RecTooEasy, RecLowAttempts} {
		if !strings.Contains(ids, want) {
			t.Errorf("recommendations %s missing %s", ids, want)
		}
	}
	for _, r := range a.Recommendations {
		if r.ID == RecLowAttempts && r.Data["IDs"] != "1.1, 1.2, 1.3" {
			t.Errorf("low attempts ids = %v", r.Data["IDs"])
		}
	}

	again := Analyze(qs, nil, irt.NewSampler("seed"), DefaultTargets())
	if again.Students.Mean != a.Students.Mean {
		t.Errorf("analysis should be reproducible for one seed")
	}
}
