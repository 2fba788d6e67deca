package expert

import (
	"math"
	"testing"

	"github.com/lappka/lappka/internal/model"
)

func TestComputeKBTBNoData(t *testing.T) {
	k := ComputeKBTB([]model.Question{{ID: "1", IsMain: true}}, Targets{MinQuestions: 10})
	if k.Value != 0 || k.Interpretation != KBTBNoData || k.PenaltyCount != 1 {
		t.Errorf("unexpected empty result %+v", k)
	}
	if math.Abs(k.Target.Open-0.4) > 1e-9 || math.Abs(k.Target.Medium-0.5) > 1e-9 {
		t.Errorf("zero targets should fall back to defaults, got %+v", k.Target)
	}
}

func TestComputeKBTB(t *testing.T) {
	// Ten questions; 1.1 is the easiest and 1.2 discriminates poorly,
	// so two are set aside and eight remain.
	qs := []model.Question{
		{ID: "1.1", Type: model.TypeMultiChoice, Difficulty: 99, Discrimination: 50},
		{ID: "1.2", Type: model.TypeMultiChoice, Difficulty: 50, Discrimination: 0.1},
		{ID: "1.3", Type: model.TypeNumerical, Difficulty: 75, Discrimination: 50},
		{ID: "1.4", Type: model.TypeShortAnswer, Difficulty: 72, Discrimination: 50},
		{ID: "1.5", Type: model.TypeMultiChoice, Difficulty: 60, Discrimination: 50},
		{ID: "1.6", Type: model.TypeMultiChoice, Difficulty: 55, Discrimination: 50},
		{ID: "1.7", Type: model.TypeNumerical, Difficulty: 50, Discrimination: 50},
		{ID: "1.8", Type: model.TypeMultiChoice, Difficulty: 45, Discrimination: 50},
		{ID: "1.9", Type: model.TypeTrueFalse, Difficulty: 30, Discrimination: 50},
		{ID: "1.10", Type: model.TypeMatching, Difficulty: 20, Discrimination: 50},
	}
	k := ComputeKBTB(qs, DefaultTargets())

	if k.N != 10 || k.NRework != 2 {
		t.Fatalf("n=%d rework=%d, want 10 and 2", k.N, k.NRework)
	}
	if math.Abs(k.R-0.2) > 1e-9 {
		t.Errorf("R = %v, want 0.2", k.R)
	}
	// Remaining: 3 open of 8; 2 easy, 4 medium, 2 hard.
	if math.Abs(k.Actual.Open-0.375) > 1e-9 || math.Abs(k.Actual.Medium-0.5) > 1e-9 {
		t.Errorf("actual shares %+v", k.Actual)
	}

	dType := 0.5 * (0.025 + 0.025)
	dLevel := 0.5 * (0.05 + 0 + 0.05)
	want := 1 - 0.3*dType - 0.3*dLevel - 0.2*(1-math.Exp(-0.6))
	if math.Abs(k.Value-want) > 1e-9 {
		t.Errorf("KBTB = %v, want %v", k.Value, want)
	}
	if k.Interpretation != KBTBExcellent {
		t.Errorf("interpretation = %s, want %s", k.Interpretation, KBTBExcellent)
	}
}

func TestComputeKBTBMinQuestions(t *testing.T) {
	qs := []model.Question{
		{ID: "1.1", Difficulty: 50, Discrimination: 50},
		{ID: "1.2", Difficulty: 50, Discrimination: 50},
	}
	k := ComputeKBTB(qs, Targets{MinQuestions: 4})
	if math.Abs(k.PenaltyCount-0.1) > 1e-9 {
		t.Errorf("penalty count = %v, want 0.2 * 0.5", k.PenaltyCount)
	}
	// Ties on difficulty keep input order, so 1.1 is set aside.
	if k.NRework != 1 {
		t.Errorf("rework = %d, want 1", k.NRework)
	}
}

func TestInterpretKBTB(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0.9, KBTBExcellent},
		{0.85, KBTBExcellent},
		{0.7, KBTBGood},
		{0.5, KBTBSkewed},
		{0.49, KBTBRework},
	}
	for _, tt := range tests {
		if got := interpretKBTB(tt.v); got != tt.want {
			t.Errorf("interpretKBTB(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}
}
