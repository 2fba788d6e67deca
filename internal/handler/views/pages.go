package views

import (
	"github.com/lappka/lappka/internal/categorize"
	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/questions"
)

// Tab is one enabled analysis module of the dataset page.
type Tab struct {
	ID          string
	Name        string
	Description string
	Active      bool
}

// QuestionsView is the content of the question analysis tab.
type QuestionsView struct {
	Filter       questions.Filter
	Types        []string
	MaxAttempts  int
	Total        int
	Questions    []model.Question
	Distribution []questions.CategoryStat
}

// IRTView is the content of the Person-Item Map tab.
type IRTView struct {
	Map     irt.Map
	Summary irt.Summary
	Spreads []irt.TypeSpread
}

// ExpertView is the content of the expert system tab.
type ExpertView struct {
	Analysis   expert.Analysis
	LLMEnabled bool
	Variant    string
	Variants   []string
	Advice     string
}

// CategorizeView is the content of the categorisation tab. Bank and Result
// are nil until a GIFT file has been uploaded.
type CategorizeView struct {
	Bank   *model.Bank
	Result *categorize.Result
}

// DatasetPage is a dataset with the tab bar and the content of the active tab.
type DatasetPage struct {
	Dataset    *model.Dataset
	Tabs       []Tab
	Active     string
	Error      string
	Questions  *QuestionsView
	IRT        *IRTView
	Expert     *ExpertView
	Categorize *CategorizeView
}
