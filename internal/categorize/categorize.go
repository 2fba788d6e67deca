// Package categorize matches a GIFT question bank against quiz statistics and
// sorts the bank into difficulty/answer-form categories for re-import.
package categorize

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/stats"
)

// Category is a target category of the re-categorised bank.
type Category string

const (
	EasyOpen   Category = "1.1 Легкие/Открытые"
	EasyClosed Category = "1.2 Легкие/Закрытые"
	HardOpen   Category = "2.1 Средние+Сложные/Открытые"
	HardClosed Category = "2.2 Средние+Сложные/Закрытые"
	Rework     Category = "3 На переделку"
)

// Categories lists every category in output order.
var Categories = []Category{EasyOpen, EasyClosed, HardOpen, HardClosed, Rework}

// Reasons a question is sent to rework.
const (
	ReasonLowDiscrimination = "ReasonLowDiscrimination"
	ReasonEasiest           = "ReasonEasiest"
	ReasonLowAttempts       = "ReasonLowAttempts"
)

// NotFound is the analysed ID reported for an unmatched bank question.
const NotFound = "Не найдено"

const (
	defaultEasyThreshold = 70.0
	defaultMinSimilarity = 0.9
	lowDiscrimination    = 0.3
	minAttempts          = 30.0
	unmatchedDifficulty  = 50.0
	unmatchedDiscrim     = 0.5
)

// Options tune the categorisation. Zero values take the defaults: easy from
// a facility index of 70, matches from a similarity of 0.9.
type Options struct {
	EasyThreshold float64
	MinSimilarity float64
}

func (o Options) withDefaults() Options {
	if o.EasyThreshold == 0 {
		o.EasyThreshold = defaultEasyThreshold
	}
	if o.MinSimilarity == 0 {
		o.MinSimilarity = defaultMinSimilarity
	}
	return o
}

// Placement is a bank question with the statistics it was categorised by.
type Placement struct {
	Question       model.BankQuestion `json:"question"`
	Analysis       *model.Question    `json:"analysis,omitempty"`
	Similarity     float64            `json:"similarity,omitempty"`
	Difficulty     float64            `json:"difficulty"`
	Discrimination float64            `json:"discrimination"`
	Type           string             `json:"type"`
	Attempts       int                `json:"attempts"`
	Category       Category           `json:"category"`
	Reasons        []string           `json:"reasons,omitempty"`
}

// Matched reports whether the question was found in the statistics.
func (p Placement) Matched() bool { return p.Analysis != nil }

// Match is one row of the matching report.
type Match struct {
	BankID      string `json:"moodle_id"`
	AnalyzedID  string `json:"analyzed_id"`
	DuplicateOf string `json:"is_duplicate,omitempty"`
}

// Group is a category with its questions.
type Group struct {
	Category  Category    `json:"category"`
	Questions []Placement `json:"questions"`
}

// Result is the outcome of Categorize.
type Result struct {
	Groups            []Group    `json:"groups"`
	Easiest           []string   `json:"easiest"`
	Unmatched         []string   `json:"unmatched"`
	Duplicates        [][]string `json:"duplicates"`
	Matching          []Match    `json:"matching"`
	LowAttempts       []string   `json:"low_attempts"`
	AttemptsThreshold float64    `json:"attempts_threshold"`
}

// Group returns the questions of one category.
func (r Result) Group(c Category) []Placement {
	for _, g := range r.Groups {
		if g.Category == c {
			return g.Questions
		}
	}
	return nil
}

// Signature identifies an analysed question by its normalized title, its type
// (random-selection types count as empty) and all statistics columns.
func Signature(q model.Question) string {
	typ := strings.TrimSpace(q.Type)
	if model.IsRandomType(typ) {
		typ = ""
	}
	metrics := []float64{
		float64(q.Attempts), q.Difficulty, q.StdDev, q.GuessProb,
		q.Weight, q.EffectiveWeight, q.Discrimination, q.Efficiency,
	}
	parts := []string{Normalize(q.Title), typ}
	for _, m := range metrics {
		parts = append(parts, formatMetric(m))
	}
	return strings.Join(parts, "|")
}

// Deduplicate keeps the first question of every signature group. Groups with
// more than one ID are returned as duplicates and recorded on the kept
// question.
func Deduplicate(qs []model.Question) ([]model.Question, [][]string) {
	var order []string
	groups := make(map[string][]model.Question)
	for _, q := range qs {
		sig := Signature(q)
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], q)
	}

	out := make([]model.Question, 0, len(order))
	var dups [][]string
	for _, sig := range order {
		grp := groups[sig]
		rep := grp[0]
		var ids []string
		for _, q := range grp {
			if q.ID != "" {
				ids = append(ids, q.ID)
			}
		}
		if len(ids) > 1 {
			dups = append(dups, ids)
			rep.DuplicateIDs = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == rep.ID })
			rep.DisplayID = rep.ID
			if len(rep.DuplicateIDs) > 0 {
				rep.DisplayID += " (" + strings.Join(rep.DuplicateIDs, ", ") + ")"
			}
		}
		out = append(out, rep)
	}
	return out, dups
}

type candidate struct {
	q    *model.Question
	norm string
}

// Categorize matches every bank question to the most similar analysed
// question and assigns it a category:
//
//   - rework: discrimination below 0.3, among the 10% easiest, or matched
//     with fewer attempts than max(30, 25th percentile of attempts);
//   - 1.x: facility index at or above the easy threshold, 2.x otherwise;
//   - x.1 for open (numerical, short answer) questions, x.2 for closed.
//
// Unmatched questions count as difficulty 50, discrimination 0.5.
func Categorize(bank []model.BankQuestion, analyzed []model.Question, opts Options) Result {
	opts = opts.withDefaults()
	deduped, dups := Deduplicate(model.Subquestions(analyzed))

	cands := make([]candidate, 0, len(deduped))
	for i := range deduped {
		title := strings.TrimSpace(deduped[i].Title)
		if title == "" {
			continue
		}
		if norm := Normalize(title); norm != "" {
			cands = append(cands, candidate{q: &deduped[i], norm: norm})
		}
	}

	res := Result{Duplicates: dups}
	placements := make([]Placement, 0, len(bank))
	bankIDs := make([]string, 0, len(bank))
	for _, bq := range bank {
		p := Placement{Question: bq}
		if text := Normalize(QuestionText(bq.Text)); text != "" {
			for _, c := range cands {
				if sim := Similarity(text, c.norm); sim >= opts.MinSimilarity && sim > p.Similarity {
					p.Analysis, p.Similarity = c.q, sim
				}
			}
		}

		if p.Analysis != nil {
			p.Difficulty = p.Analysis.Difficulty
			p.Discrimination = p.Analysis.Discrimination
			p.Attempts = p.Analysis.Attempts
			p.Type = p.Analysis.Type
			if model.IsRandomType(p.Type) {
				p.Type = bq.Type
			}
		} else {
			p.Difficulty = unmatchedDifficulty
			p.Discrimination = unmatchedDiscrim
			p.Type = bq.Type
			res.Unmatched = append(res.Unmatched, bq.Name)
		}
		placements = append(placements, p)
		bankIDs = append(bankIDs, bankID(bq))
	}

	easiest := easiestNames(placements)
	res.Easiest = sortedKeys(easiest)

	var positive []float64
	for _, p := range placements {
		if p.Attempts > 0 {
			positive = append(positive, float64(p.Attempts))
		}
	}
	res.AttemptsThreshold = minAttempts
	if len(positive) > 0 {
		res.AttemptsThreshold = max(minAttempts, stats.Percentile(positive, 25))
	}

	byCategory := make(map[Category][]Placement)
	lowAttempts := make(map[string]bool)
	for _, p := range placements {
		if p.Discrimination < lowDiscrimination {
			p.Reasons = append(p.Reasons, ReasonLowDiscrimination)
		}
		if easiest[p.Question.Name] {
			p.Reasons = append(p.Reasons, ReasonEasiest)
		}
		if p.Matched() && float64(p.Attempts) < res.AttemptsThreshold {
			p.Reasons = append(p.Reasons, ReasonLowAttempts)
			lowAttempts[p.Question.Name] = true
		}

		open := model.IsOpenType(p.Type)
		switch {
		case len(p.Reasons) > 0:
			p.Category = Rework
		case p.Difficulty >= opts.EasyThreshold && open:
			p.Category = EasyOpen
		case p.Difficulty >= opts.EasyThreshold:
			p.Category = EasyClosed
		case open:
			p.Category = HardOpen
		default:
			p.Category = HardClosed
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	for _, c := range Categories {
		res.Groups = append(res.Groups, Group{Category: c, Questions: byCategory[c]})
	}
	res.LowAttempts = sortedKeys(lowAttempts)
	res.Matching = matchingReport(placements, bankIDs)

	slog.Debug("categorized bank",
		"questions", len(bank),
		"matched", len(bank)-len(res.Unmatched),
		"rework", len(byCategory[Rework]),
	)
	return res
}

func bankID(q model.BankQuestion) string {
	switch {
	case q.ID != "":
		return q.ID
	case q.NameFromComment != "":
		return q.NameFromComment
	default:
		return "?"
	}
}

// easiestNames returns the names of the top 10% (at least one) placements by
// difficulty. Ties keep bank order.
func easiestNames(ps []Placement) map[string]bool {
	sorted := slices.Clone(ps)
	slices.SortStableFunc(sorted, func(a, b Placement) int {
		return cmp.Compare(b.Difficulty, a.Difficulty)
	})
	top := max(1, len(sorted)/10)
	names := make(map[string]bool)
	for _, p := range sorted[:min(top, len(sorted))] {
		names[p.Question.Name] = true
	}
	return names
}

func matchingReport(ps []Placement, ids []string) []Match {
	byAnalyzed := make(map[string][]string)
	for i, p := range ps {
		if p.Matched() {
			byAnalyzed[p.Analysis.ID] = append(byAnalyzed[p.Analysis.ID], ids[i])
		}
	}
	out := make([]Match, 0, len(ps))
	for i, p := range ps {
		m := Match{BankID: ids[i], AnalyzedID: NotFound}
		if p.Matched() {
			m.AnalyzedID = p.Analysis.ID
			var others []string
			for _, id := range byAnalyzed[p.Analysis.ID] {
				if id != ids[i] {
					others = append(others, id)
				}
			}
			slices.Sort(others)
			m.DuplicateOf = strings.Join(others, ", ")
		}
		out = append(out, m)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
