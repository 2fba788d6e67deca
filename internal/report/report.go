// Package report assembles the machine-readable analysis of a dataset.
package report

import (
	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/questions"
)

// Source describes the analysed file.
type Source struct {
	Filename string       `json:"filename" yaml:"filename"`
	Format   model.Format `json:"format" yaml:"format"`
	SHA256   string       `json:"sha256" yaml:"sha256"`
}

// Report is the combined output of every analysis module.
type Report struct {
	Source       Source                   `json:"source" yaml:"source"`
	TestInfo     []model.InfoItem         `json:"test_info,omitempty" yaml:"test_info,omitempty"`
	Questions    []model.Question         `json:"questions" yaml:"questions"`
	Distribution []questions.CategoryStat `json:"category_distribution" yaml:"category_distribution"`
	IRT          irt.Summary              `json:"irt_summary" yaml:"irt_summary"`
	TypeSpreads  []irt.TypeSpread         `json:"difficulty_by_type" yaml:"difficulty_by_type"`
	Expert       expert.Analysis          `json:"expert" yaml:"expert"`
}

// Build runs the analyses over ds. Simulated abilities are seeded from the
// dataset checksum, so a file always yields the same report.
func Build(ds *model.Dataset, targets expert.Targets) Report {
	return Report{
		Source:       Source{Filename: ds.Filename, Format: ds.Format, SHA256: ds.SHA256},
		TestInfo:     ds.TestInfo,
		Questions:    model.Subquestions(ds.Questions),
		Distribution: questions.Distribution(ds.Questions, questions.AllTypes),
		IRT:          irt.Summarize(ds.Questions),
		TypeSpreads:  irt.DifficultyByType(ds.Questions),
		Expert:       expert.Analyze(ds.Questions, nil, irt.NewSampler(ds.SHA256), targets),
	}
}
