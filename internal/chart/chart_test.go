package chart

import (
	"strings"
	"testing"

	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/questions"
	"github.com/lappka/lappka/internal/stats"
)

func TestPersonItemMap(t *testing.T) {
	qs := []model.Question{
		{ID: "1.1", Type: model.TypeMultiChoice, Difficulty: 80},
		{ID: "1.2", Type: model.TypeNumerical, Difficulty: 30},
		{ID: "1.3", Type: model.TypeNumerical, Difficulty: 50},
	}
	m := irt.BuildMap(qs, []float64{-1, 0, 0, 1}, nil)
	svg := PersonItemMap(m, MapLabels{Title: "Map <1>", Students: "Students", Items: "Items", Axis: "Logits"})

	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an svg document: %.60s", svg)
	}
	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Errorf("expected 3 item markers, got %d", got)
	}
	if !strings.Contains(svg, "Map &lt;1&gt;") {
		t.Error("title must be escaped")
	}
	if strings.Count(svg, `class="marker"`) != 3 {
		t.Error("expected mean and two SD markers")
	}
}

func TestBoxplot(t *testing.T) {
	spreads := []irt.TypeSpread{
		{Type: model.TypeMultiChoice, Color: "green", Stats: stats.Summarize([]float64{20, 40, 60, 80})},
		{Type: model.TypeNumerical, Color: "red", Stats: stats.Summarize([]float64{50})},
	}
	svg := Boxplot(spreads, "Spread")
	if got := strings.Count(svg, "<rect"); got != 2 {
		t.Errorf("expected 2 boxes, got %d", got)
	}
	if !strings.Contains(svg, model.TypeNumerical) {
		t.Error("type label missing")
	}
	if empty := Boxplot(nil, "Spread"); !strings.HasSuffix(empty, "</svg>") {
		t.Error("empty boxplot must still be a valid svg")
	}
}

func TestCategoryCharts(t *testing.T) {
	cats := []questions.CategoryStat{
		{ID: "1", Marked: true},
		{ID: "2", Count: 3, MeanDifficulty: 60, MeanDiscrimination: 25, MeanEfficiency: 40},
		{ID: "3", Count: 1, MeanDifficulty: 80},
	}
	l := DistributionLabels{CountTitle: "Count", MetricsTitle: "Means", Difficulty: "D", Discrimination: "R", Efficiency: "E", MarkedNote: "skipped"}

	counts := CategoryCounts(cats, l)
	if got := strings.Count(counts, "<rect"); got != 2 {
		t.Errorf("expected 2 count bars, got %d", got)
	}
	if !strings.Contains(counts, "skipped") {
		t.Error("marked note missing")
	}

	metrics := CategoryMetrics(cats, l)
	// 3 bars for category 2, 1 for category 3, 3 legend swatches.
	if got := strings.Count(metrics, "<rect"); got != 7 {
		t.Errorf("expected 7 rects, got %d", got)
	}

	if strings.Contains(CategoryCounts(cats[1:], l), "skipped") {
		t.Error("note shown without marked categories")
	}
}
