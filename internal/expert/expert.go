// Package expert implements the rule-based expert system: it compares the
// simulated ability distribution with item difficulties and turns the
// findings into recommendations.
//
// Classes and recommendations are message IDs with template data so the UI
// and the CLI can localize them.
package expert

import (
	"strings"

	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/stats"
)

// Ability distribution classes.
const (
	DistNormal     = "DistNormal"
	DistManyWeak   = "DistManyWeak"
	DistManyStrong = "DistManyStrong"
)

// Difficulty balance classes.
const (
	BalanceBalanced   = "BalanceBalanced"
	BalanceEasy       = "BalanceSkewedEasy"
	BalanceHard       = "BalanceSkewedHard"
	BalanceUnbalanced = "BalanceUnbalanced"
	BalanceNoData     = "BalanceNoData"
)

// Ability/difficulty match quality.
const (
	MatchExcellent    = "MatchExcellent"
	MatchGood         = "MatchGood"
	MatchSatisfactory = "MatchSatisfactory"
	MatchPoor         = "MatchPoor"
)

// Recommendation message IDs.
const (
	RecCriticalOverlap     = "RecCriticalOverlap"
	RecAddMedium           = "RecAddMedium"
	RecInsufficientOverlap = "RecInsufficientOverlap"
	RecRebalance           = "RecRebalance"
	RecNarrowStudents      = "RecNarrowStudents"
	RecNarrowQuestions     = "RecNarrowQuestions"
	RecLowAbility          = "RecLowAbility"
	RecHighAbility         = "RecHighAbility"
	RecLowDiscrimination   = "RecLowDiscrimination"
	RecTooEasy             = "RecTooEasy"
	RecTooHard             = "RecTooHard"
	RecLowAttempts         = "RecLowAttempts"
	RecPoorMatch           = "RecPoorMatch"
)

// Thresholds of the rules.
const (
	LowDiscrimination = 0.3
	MinAttempts       = 30
	titlePreviewRunes = 150
	narrowRange       = 2.0
)

// Message is a localizable finding.
type Message struct {
	ID   string         `json:"id" yaml:"id"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// StudentAnalysis describes the ability distribution.
type StudentAnalysis struct {
	Total        int     `json:"total_students" yaml:"total_students"`
	Mean         float64 `json:"mean_ability" yaml:"mean_ability"`
	SD           float64 `json:"std_ability" yaml:"std_ability"`
	Median       float64 `json:"median_ability" yaml:"median_ability"`
	Low          int     `json:"low_ability_count" yaml:"low_ability_count"`
	Medium       int     `json:"medium_ability_count" yaml:"medium_ability_count"`
	High         int     `json:"high_ability_count" yaml:"high_ability_count"`
	LowPct       float64 `json:"low_ability_percent" yaml:"low_ability_percent"`
	MediumPct    float64 `json:"medium_ability_percent" yaml:"medium_ability_percent"`
	HighPct      float64 `json:"high_ability_percent" yaml:"high_ability_percent"`
	Distribution string  `json:"distribution_type" yaml:"distribution_type"`
}

// AnalyzeAbilities splits abilities at one standard deviation around the mean
// and classifies the distribution by its skewness. It returns nil for no data.
func AnalyzeAbilities(abilities []float64) *StudentAnalysis {
	if len(abilities) == 0 {
		return nil
	}
	s := &StudentAnalysis{
		Total:  len(abilities),
		Mean:   stats.Mean(abilities),
		SD:     stats.StdDev(abilities),
		Median: stats.Median(abilities),
	}
	lo, hi := s.Mean-s.SD, s.Mean+s.SD
	for _, a := range abilities {
		switch {
		case a < lo:
			s.Low++
		case a > hi:
			s.High++
		default:
			s.Medium++
		}
	}
	n := float64(s.Total)
	s.LowPct = float64(s.Low) / n * 100
	s.MediumPct = float64(s.Medium) / n * 100
	s.HighPct = float64(s.High) / n * 100
	s.Distribution = classifyDistribution(stats.Skewness(abilities))
	return s
}

func classifyDistribution(skew float64) string {
	switch {
	case skew > -0.5 && skew < 0.5:
		return DistNormal
	case skew > 0.5:
		return DistManyWeak
	default:
		return DistManyStrong
	}
}

// TypeCount is the number of questions of one type.
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

// FlaggedQuestion is a question listed for low discrimination.
type FlaggedQuestion struct {
	ID             string  `json:"id" yaml:"id"`
	DisplayID      string  `json:"display_id" yaml:"display_id"`
	Type           string  `json:"type" yaml:"type"`
	Difficulty     float64 `json:"difficulty" yaml:"difficulty"`
	Discrimination float64 `json:"discrimination" yaml:"discrimination"`
	Title          string  `json:"title" yaml:"title"`
}

// AttemptsQuestion is a question answered by too few students.
type AttemptsQuestion struct {
	DisplayID string `json:"display_id" yaml:"display_id"`
	Attempts  int    `json:"attempts" yaml:"attempts"`
}

// QuestionAnalysis describes the difficulty distribution of the questions.
type QuestionAnalysis struct {
	Total              int                `json:"total_questions" yaml:"total_questions"`
	Easy               int                `json:"easy_questions" yaml:"easy_questions"`
	Medium             int                `json:"medium_questions" yaml:"medium_questions"`
	Hard               int                `json:"hard_questions" yaml:"hard_questions"`
	EasyPct            float64            `json:"easy_percent" yaml:"easy_percent"`
	MediumPct          float64            `json:"medium_percent" yaml:"medium_percent"`
	HardPct            float64            `json:"hard_percent" yaml:"hard_percent"`
	MeanDifficulty     float64            `json:"mean_difficulty" yaml:"mean_difficulty"`
	MeanDiscrimination float64            `json:"mean_discrimination" yaml:"mean_discrimination"`
	Types              []TypeCount        `json:"question_types" yaml:"question_types"`
	LowDiscrimination  []FlaggedQuestion  `json:"low_discrimination_questions" yaml:"low_discrimination_questions"`
	LowAttempts        []AttemptsQuestion `json:"low_attempts_questions" yaml:"low_attempts_questions"`
	Balance            string             `json:"distribution_balance" yaml:"distribution_balance"`
}

// AnalyzeQuestions classifies subquestions as easy (>= 70), medium (40..70)
// or hard (< 40) and lists questions with weak statistics. It returns nil when
// there are no subquestions.
func AnalyzeQuestions(qs []model.Question) *QuestionAnalysis {
	subs := model.Subquestions(qs)
	if len(subs) == 0 {
		return nil
	}

	a := &QuestionAnalysis{Total: len(subs)}
	var diffs, discs []float64
	typeIndex := make(map[string]int)
	for _, q := range subs {
		diffs = append(diffs, q.Difficulty)
		discs = append(discs, q.Discrimination)

		switch {
		case q.Difficulty >= 70:
			a.Easy++
		case q.Difficulty >= 40:
			a.Medium++
		default:
			a.Hard++
		}

		if !model.IsRandomType(q.Type) {
			if i, ok := typeIndex[q.Type]; ok {
				a.Types[i].Count++
			} else {
				typeIndex[q.Type] = len(a.Types)
				a.Types = append(a.Types, TypeCount{Type: q.Type, Count: 1})
			}
		}

		if q.Discrimination < LowDiscrimination {
			a.LowDiscrimination = append(a.LowDiscrimination, FlaggedQuestion{
				ID:             q.ID,
				DisplayID:      q.Label(),
				Type:           q.Type,
				Difficulty:     q.Difficulty,
				Discrimination: q.Discrimination,
				Title:          preview(q.Title),
			})
		}
		if q.Attempts > 0 && q.Attempts < MinAttempts {
			a.LowAttempts = append(a.LowAttempts, AttemptsQuestion{DisplayID: q.Label(), Attempts: q.Attempts})
		}
	}

	n := float64(a.Total)
	a.EasyPct = float64(a.Easy) / n * 100
	a.MediumPct = float64(a.Medium) / n * 100
	a.HardPct = float64(a.Hard) / n * 100
	a.MeanDifficulty = stats.Mean(diffs)
	a.MeanDiscrimination = stats.Mean(discs)
	a.Balance = Balance(a.Easy, a.Medium, a.Hard)
	return a
}

func preview(title string) string {
	r := []rune(title)
	if len(r) <= titlePreviewRunes {
		return title
	}
	return string(r[:titlePreviewRunes]) + "..."
}

// Balance classifies the share of medium questions first, then a majority of
// easy or hard ones.
func Balance(easy, medium, hard int) string {
	total := easy + medium + hard
	if total == 0 {
		return BalanceNoData
	}
	pct := func(n int) float64 { return float64(n) / float64(total) * 100 }
	switch {
	case pct(medium) >= 40:
		return BalanceBalanced
	case pct(easy) > 50:
		return BalanceEasy
	case pct(hard) > 50:
		return BalanceHard
	default:
		return BalanceUnbalanced
	}
}

// MatchAnalysis measures how much the ability range and the item logit range
// overlap.
type MatchAnalysis struct {
	OverlapPct      float64   `json:"overlap_percentage" yaml:"overlap_percentage"`
	StudentMin      float64   `json:"student_min" yaml:"student_min"`
	StudentMax      float64   `json:"student_max" yaml:"student_max"`
	QuestionMin     float64   `json:"question_min" yaml:"question_min"`
	QuestionMax     float64   `json:"question_max" yaml:"question_max"`
	OverlapStart    float64   `json:"overlap_start" yaml:"overlap_start"`
	OverlapEnd      float64   `json:"overlap_end" yaml:"overlap_end"`
	Quality         string    `json:"match_quality" yaml:"match_quality"`
	Recommendations []Message `json:"recommendations" yaml:"recommendations"`
}

// AnalyzeMatch compares abilities with the logits of the given facility
// indices. It returns nil when either side is empty.
func AnalyzeMatch(abilities, difficulties []float64) *MatchAnalysis {
	if len(abilities) == 0 || len(difficulties) == 0 {
		return nil
	}
	var logits []float64
	for _, d := range difficulties {
		if l, ok := irt.Logit(d); ok {
			logits = append(logits, l)
		}
	}
	if len(logits) == 0 {
		return nil
	}

	m := &MatchAnalysis{}
	m.StudentMin, m.StudentMax = stats.MinMax(abilities)
	m.QuestionMin, m.QuestionMax = stats.MinMax(logits)
	m.OverlapStart = max(m.StudentMin, m.QuestionMin)
	m.OverlapEnd = min(m.StudentMax, m.QuestionMax)
	overlap := max(0, m.OverlapEnd-m.OverlapStart)
	total := max(m.StudentMax, m.QuestionMax) - min(m.StudentMin, m.QuestionMin)
	if total > 0 {
		m.OverlapPct = overlap / total * 100
	}
	m.Quality = matchQuality(m.OverlapPct)
	m.Recommendations = matchRecommendations(m.OverlapPct, m.StudentMax-m.StudentMin, m.QuestionMax-m.QuestionMin)
	return m
}

func matchQuality(overlap float64) string {
	switch {
	case overlap >= 70:
		return MatchExcellent
	case overlap >= 50:
		return MatchGood
	case overlap >= 30:
		return MatchSatisfactory
	default:
		return MatchPoor
	}
}

func matchRecommendations(overlap, studentRange, questionRange float64) []Message {
	var recs []Message
	switch {
	case overlap < 30:
		recs = append(recs, Message{ID: RecCriticalOverlap}, Message{ID: RecAddMedium})
	case overlap < 50:
		recs = append(recs, Message{ID: RecInsufficientOverlap}, Message{ID: RecRebalance})
	}
	if studentRange < narrowRange {
		recs = append(recs, Message{ID: RecNarrowStudents})
	}
	if questionRange < narrowRange {
		recs = append(recs, Message{ID: RecNarrowQuestions})
	}
	return recs
}

// Summary is the headline of an analysis.
type Summary struct {
	Students   int     `json:"students" yaml:"students"`
	Questions  int     `json:"questions" yaml:"questions"`
	OverlapPct float64 `json:"overlap_percentage" yaml:"overlap_percentage"`
	Quality    string  `json:"match_quality,omitempty" yaml:"match_quality,omitempty"`
}

// Analysis is the full expert report of a dataset.
type Analysis struct {
	Students        *StudentAnalysis  `json:"student_analysis,omitempty" yaml:"student_analysis,omitempty"`
	Questions       *QuestionAnalysis `json:"question_analysis,omitempty" yaml:"question_analysis,omitempty"`
	Match           *MatchAnalysis    `json:"match_analysis,omitempty" yaml:"match_analysis,omitempty"`
	Recommendations []Message         `json:"general_recommendations" yaml:"general_recommendations"`
	Summary         Summary           `json:"summary" yaml:"summary"`
	KBTB            KBTB              `json:"kbtb" yaml:"kbtb"`
}

// Analyze runs every rule over the dataset. When abilities is nil they are
// simulated: one per student, drawn around the item logits and clipped to
// the map scale.
func Analyze(qs []model.Question, abilities []float64, s *irt.Sampler, targets Targets) Analysis {
	var difficulties []float64
	for _, q := range model.Subquestions(qs) {
		if q.Difficulty > 0 && q.Difficulty < 100 {
			difficulties = append(difficulties, q.Difficulty)
		}
	}

	if abilities == nil && len(difficulties) > 0 {
		logits := make([]float64, 0, len(difficulties))
		for _, d := range difficulties {
			l, _ := irt.Logit(d)
			logits = append(logits, l)
		}
		abilities = s.SimulateAbilities(logits, irt.StudentCount(qs))
	}

	a := Analysis{
		Students:  AnalyzeAbilities(abilities),
		Questions: AnalyzeQuestions(qs),
		Match:     AnalyzeMatch(abilities, difficulties),
		KBTB:      ComputeKBTB(qs, targets),
	}
	a.Recommendations = recommendations(a.Students, a.Questions, a.Match)
	a.Summary = summarize(a.Students, a.Questions, a.Match)
	return a
}

func recommendations(st *StudentAnalysis, qa *QuestionAnalysis, m *MatchAnalysis) []Message {
	recs := []Message{}
	if st != nil {
		if st.LowPct > 40 {
			recs = append(recs, Message{ID: RecLowAbility})
		}
		if st.HighPct > 40 {
			recs = append(recs, Message{ID: RecHighAbility})
		}
	}
	if qa != nil {
		if len(qa.LowDiscrimination) > 0 {
			ids := make([]string, len(qa.LowDiscrimination))
			for i, q := range qa.LowDiscrimination {
				ids[i] = q.DisplayID
			}
			recs = append(recs, Message{ID: RecLowDiscrimination, Data: map[string]any{
				"Count": len(ids),
				"IDs":   strings.Join(ids, ", "),
			}})
		}
		switch qa.Balance {
		case BalanceEasy:
			recs = append(recs, Message{ID: RecTooEasy})
		case BalanceHard:
			recs = append(recs, Message{ID: RecTooHard})
		}
		if len(qa.LowAttempts) > 0 {
			ids := make([]string, len(qa.LowAttempts))
			for i, q := range qa.LowAttempts {
				ids[i] = q.DisplayID
			}
			recs = append(recs, Message{ID: RecLowAttempts, Data: map[string]any{
				"IDs": strings.Join(ids, ", "),
			}})
		}
	}
	if m != nil && m.Quality == MatchPoor {
		recs = append(recs, Message{ID: RecPoorMatch})
	}
	return recs
}

func summarize(st *StudentAnalysis, qa *QuestionAnalysis, m *MatchAnalysis) Summary {
	var s Summary
	if st != nil {
		s.Students = st.Total
	}
	if qa != nil {
		s.Questions = qa.Total
	}
	if m != nil {
		s.OverlapPct = m.OverlapPct
		s.Quality = m.Quality
	}
	return s
}
