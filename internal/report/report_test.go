package report

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/model"
)

func testDataset() *model.Dataset {
	return &model.Dataset{
		Filename: "quiz.csv",
		Format:   model.FormatCSV,
		SHA256:   "0123abcd",
		TestInfo: []model.InfoItem{{Key: "Название теста", Value: "Итоговый"}},
		Questions: []model.Question{
			{ID: "1", IsMain: true, Type: model.TypeRandomDefault, Title: "Категория"},
			{ID: "1.1", Type: model.TypeNumerical, Title: "Скорость света", Attempts: 30, Difficulty: 84.21, Discrimination: 45.1},
			{ID: "1.2", Type: model.TypeShortAnswer, Title: "Столица Франции", Attempts: 20, Difficulty: 40, Discrimination: 10},
			{ID: "2.1", Type: model.TypeMultiChoice, Title: "Закон Ома", Attempts: 30, Difficulty: 20, Discrimination: 35},
		},
	}
}

func TestBuild(t *testing.T) {
	rep := Build(testDataset(), expert.DefaultTargets())

	if rep.Source.Filename != "quiz.csv" || rep.Source.Format != model.FormatCSV || rep.Source.SHA256 != "0123abcd" {
		t.Errorf("source = %+v", rep.Source)
	}
	if len(rep.Questions) != 3 {
		t.Fatalf("expected 3 subquestions, got %d", len(rep.Questions))
	}
	for _, q := range rep.Questions {
		if q.IsMain {
			t.Errorf("main question %s leaked into the report", q.ID)
		}
	}
	if rep.IRT.TotalQuestions != 3 {
		t.Errorf("IRT total = %d", rep.IRT.TotalQuestions)
	}
	if len(rep.TypeSpreads) == 0 {
		t.Error("expected difficulty spreads by type")
	}
	if len(rep.Distribution) == 0 {
		t.Error("expected a category distribution")
	}
	if rep.Expert.Summary.Questions == 0 {
		t.Errorf("expert summary = %+v", rep.Expert.Summary)
	}
	if len(rep.TestInfo) != 1 {
		t.Errorf("test info = %+v", rep.TestInfo)
	}
}

func TestBuildDeterministic(t *testing.T) {
	first, err := json.Marshal(Build(testDataset(), expert.DefaultTargets()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Build(testDataset(), expert.DefaultTargets()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Error("the same file must produce the same report")
	}
}

func TestReportYAML(t *testing.T) {
	data, err := yaml.Marshal(Build(testDataset(), expert.DefaultTargets()))
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	for _, key := range []string{"source", "questions", "irt_summary", "expert"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}
