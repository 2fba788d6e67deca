package stats

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMeanStdDev(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(x); !approx(got, 5) {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := StdDev(x); !approx(got, 2) {
		t.Errorf("StdDev = %v, want 2 (population)", got)
	}
	if Mean(nil) != 0 || StdDev(nil) != 0 {
		t.Errorf("empty input should yield zeros")
	}
}

func TestPercentile(t *testing.T) {
	x := []float64{40, 10, 30, 20}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{25, 17.5},
		{50, 25},
		{100, 40},
	}
	for _, tt := range tests {
		if got := Percentile(x, tt.p); !approx(got, tt.want) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if x[0] != 40 {
		t.Errorf("Percentile must not reorder its input")
	}
}

func TestSkewness(t *testing.T) {
	if got := Skewness([]float64{1, 2, 3}); !approx(got, 0) {
		t.Errorf("symmetric data skewness = %v, want 0", got)
	}
	if got := Skewness([]float64{0, 0, 0, 10}); got <= 0 {
		t.Errorf("right tail should give positive skew, got %v", got)
	}
	if got := Skewness([]float64{3, 3}); got != 0 {
		t.Errorf("constant data skewness = %v, want 0", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5})
	if s.N != 5 || s.Min != 1 || s.Max != 5 || s.Median != 3 || s.Q1 != 2 || s.Q3 != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if got := Clip(5, -4, 4); got != 4 {
		t.Errorf("Clip = %v, want 4", got)
	}
}
