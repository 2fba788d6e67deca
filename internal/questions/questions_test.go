package questions

import (
	"net/url"
	"slices"
	"testing"

	"github.com/lappka/lappka/internal/model"
)

func sample() []model.Question {
	return []model.Question{
		{ID: "1", IsMain: true, Title: "Категория 1"},
		{ID: "1.1", Type: model.TypeMultiChoice, Difficulty: 85, Discrimination: 20, Efficiency: 30, Attempts: 50},
		{ID: "1.2", Type: model.TypeNumerical, Difficulty: 45, Discrimination: 40, Efficiency: 50, Attempts: 10},
		{ID: "2.1", Type: "Случайный", Difficulty: 60, Discrimination: 35, Efficiency: 40, Attempts: 30},
		{ID: "2.2", Type: model.TypeMultiChoice, Difficulty: 15, Discrimination: 5, Efficiency: 10, Attempts: 70},
	}
}

func ids(qs []model.Question) []string {
	var out []string
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestTypes(t *testing.T) {
	got := Types(sample())
	want := []string{model.TypeMultiChoice, model.TypeNumerical}
	if !slices.Equal(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}

func TestApply(t *testing.T) {
	qs := sample()
	base := DefaultFilter(qs)
	if base.MaxAttempts != 70 {
		t.Fatalf("default max attempts = %d, want 70", base.MaxAttempts)
	}

	tests := []struct {
		name   string
		modify func(f *Filter)
		want   []string
	}{
		{"all", func(f *Filter) {}, []string{"1.1", "1.2", "2.1", "2.2"}},
		{"type", func(f *Filter) { f.Type = model.TypeMultiChoice }, []string{"1.1", "2.2"}},
		{"difficulty range", func(f *Filter) { f.MinDifficulty, f.MaxDifficulty = 40, 60 }, []string{"1.2", "2.1"}},
		{"attempts range", func(f *Filter) { f.MinAttempts, f.MaxAttempts = 30, 50 }, []string{"1.1", "2.1"}},
		{"sort difficulty", func(f *Filter) { f.Sort = SortDifficulty }, []string{"1.1", "2.1", "1.2", "2.2"}},
		{"sort discrimination", func(f *Filter) { f.Sort = SortDiscrimination }, []string{"1.2", "2.1", "1.1", "2.2"}},
		{"sort type", func(f *Filter) { f.Sort = SortType }, []string{"1.1", "2.2", "2.1", "1.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.modify(&f)
			if got := ids(Apply(qs, f)); !slices.Equal(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterFromQuery(t *testing.T) {
	v := url.Values{"type": {model.TypeNumerical}, "dmin": {"10"}, "amax": {"bad"}, "sort": {"difficulty"}}
	f := FilterFromQuery(v, sample())
	if f.Type != model.TypeNumerical || f.MinDifficulty != 10 || f.MaxDifficulty != 100 {
		t.Errorf("unexpected filter %+v", f)
	}
	if f.MaxAttempts != 70 || f.Sort != SortDifficulty {
		t.Errorf("unexpected filter %+v", f)
	}
	if f := FilterFromQuery(url.Values{"sort": {"nonsense"}}, nil); f.Sort != SortDefault || f.MaxAttempts != 1 {
		t.Errorf("unexpected default filter %+v", f)
	}
}

func TestMetricClass(t *testing.T) {
	tests := []struct {
		v      float64
		metric string
		want   string
	}{
		{50, MetricDifficulty, "metric-good"},
		{30, MetricDifficulty, "metric-good"},
		{75, MetricDifficulty, "metric-warning"},
		{19.9, MetricDifficulty, "metric-bad"},
		{90, MetricDifficulty, "metric-bad"},
		{30, MetricDiscrimination, "metric-good"},
		{15, MetricDiscrimination, "metric-warning"},
		{14, MetricDiscrimination, "metric-bad"},
		{1, "efficiency", "metric-warning"},
	}
	for _, tt := range tests {
		if got := MetricClass(tt.v, tt.metric); got != tt.want {
			t.Errorf("MetricClass(%v, %q) = %q, want %q", tt.v, tt.metric, got, tt.want)
		}
	}
}

func TestDifficultyClass(t *testing.T) {
	for d, want := range map[float64]string{70: "easy", 69.9: "medium", 40: "medium", 39: "hard"} {
		if got := DifficultyClass(d); got != want {
			t.Errorf("DifficultyClass(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestBestWrongAnswer(t *testing.T) {
	answers := []model.Answer{
		{ActualAnswer: "Париж", PartialCredit: "100,00%", Count: "40"},
		{ActualAnswer: "Лондон", PartialCredit: "0,00%", Count: "7"},
		{ActualAnswer: "Берлин", PartialCredit: "0,00%", Count: "12"},
		{ActualAnswer: "Рим", PartialCredit: "50%", Count: "12"},
	}
	if got := BestWrongAnswer(answers); got != 2 {
		t.Errorf("BestWrongAnswer() = %d, want 2", got)
	}
	if got := BestWrongAnswer(answers[:1]); got != -1 {
		t.Errorf("BestWrongAnswer(all correct) = %d, want -1", got)
	}
}

func TestDistribution(t *testing.T) {
	qs := []model.Question{
		{ID: "1", IsMain: true},
		{ID: "2", IsMain: true},
		{ID: "3", IsMain: true},
		{ID: "4", IsMain: true},
		{ID: "4.1", Type: model.TypeMultiChoice, Difficulty: 40, Discrimination: 20, Efficiency: 30},
		{ID: "4.2", Type: model.TypeNumerical, Difficulty: 60, Discrimination: 40, Efficiency: 50},
		{ID: "6", IsMain: true},
		{ID: "8.1", Type: model.TypeMultiChoice, Difficulty: 80},
	}

	got := Distribution(qs, AllTypes)
	if len(got) != 6 {
		t.Fatalf("expected 6 categories, got %d", len(got))
	}
	wantMarked := map[string]bool{"1": true, "2": true, "3": true}
	for _, c := range got {
		if c.Marked != wantMarked[c.ID] {
			t.Errorf("category %s marked = %v", c.ID, c.Marked)
		}
	}
	if c := got[3]; c.ID != "4" || c.Count != 2 || c.MeanDifficulty != 50 || c.MeanDiscrimination != 30 || c.MeanEfficiency != 40 {
		t.Errorf("category 4 = %+v", c)
	}
	// 6 is header-only but 8 does not follow it directly.
	if c := got[4]; c.ID != "6" || c.Marked || c.Count != 0 {
		t.Errorf("category 6 = %+v", c)
	}

	filtered := Distribution(qs, model.TypeNumerical)
	if len(filtered) != 6 {
		t.Fatalf("type filter must not change the axis, got %d categories", len(filtered))
	}
	if c := filtered[3]; c.Count != 1 || c.MeanDifficulty != 60 {
		t.Errorf("filtered category 4 = %+v", c)
	}
	if c := filtered[5]; c.ID != "8" || c.Count != 0 {
		t.Errorf("filtered category 8 = %+v", c)
	}
}

func TestDistributionHeaderBeforeSubquestions(t *testing.T) {
	qs := []model.Question{
		{ID: "1", IsMain: true},
		{ID: "2.1", Difficulty: 50},
	}
	got := Distribution(qs, AllTypes)
	if !got[0].Marked || got[1].Marked || got[1].Count != 1 {
		t.Errorf("Distribution() = %+v", got)
	}
}
