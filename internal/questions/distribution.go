package questions

import (
	"slices"
	"strconv"
	"strings"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/stats"
)

// CategoryStat is one bar group of the category distribution chart.
type CategoryStat struct {
	ID                 string  `json:"id" yaml:"id"`
	Count              int     `json:"count" yaml:"count"`
	MeanDifficulty     float64 `json:"mean_difficulty" yaml:"mean_difficulty"`
	MeanDiscrimination float64 `json:"mean_discrimination" yaml:"mean_discrimination"`
	MeanEfficiency     float64 `json:"mean_efficiency" yaml:"mean_efficiency"`
	// Marked categories only hold header rows that pull their questions from
	// the next category. They keep their axis slot but get no bars.
	Marked bool `json:"marked,omitempty" yaml:"marked,omitempty"`
}

type categoryRows struct {
	main, total int
}

func (c categoryRows) onlyMain() bool { return c.main > 0 && c.main == c.total }

func categoryOf(id string) (cat string, main bool) {
	cat, _, sub := strings.Cut(id, ".")
	return cat, !sub
}

func categoryNum(id string) float64 {
	f, err := strconv.ParseFloat(id, 64)
	if err != nil {
		return 0
	}
	return f
}

// Distribution groups questions by the ID prefix before the dot. The axis and
// the marking use every row; the counts and means use only subquestions of
// type typ (AllTypes keeps every type).
func Distribution(qs []model.Question, typ string) []CategoryStat {
	rows := make(map[string]*categoryRows)
	var ids []string
	for _, q := range qs {
		if q.ID == "" {
			continue
		}
		cat, main := categoryOf(q.ID)
		r, ok := rows[cat]
		if !ok {
			r = &categoryRows{}
			rows[cat] = r
			ids = append(ids, cat)
		}
		r.total++
		if main {
			r.main++
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		x, y := categoryNum(a), categoryNum(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	})

	marked := markedCategories(ids, rows)

	type metrics struct{ diff, disc, eff []float64 }
	data := make(map[string]*metrics)
	for _, q := range qs {
		cat, main := categoryOf(q.ID)
		if q.ID == "" || main || (typ != AllTypes && q.Type != typ) {
			continue
		}
		m, ok := data[cat]
		if !ok {
			m = &metrics{}
			data[cat] = m
		}
		m.diff = append(m.diff, q.Difficulty)
		m.disc = append(m.disc, q.Discrimination)
		m.eff = append(m.eff, q.Efficiency)
	}

	out := make([]CategoryStat, 0, len(ids))
	for _, id := range ids {
		cs := CategoryStat{ID: id, Marked: marked[id]}
		if m, ok := data[id]; ok && !cs.Marked {
			cs.Count = len(m.diff)
			cs.MeanDifficulty = stats.Mean(m.diff)
			cs.MeanDiscrimination = stats.Mean(m.disc)
			cs.MeanEfficiency = stats.Mean(m.eff)
		}
		out = append(out, cs)
	}
	return out
}

// markedCategories finds header-only categories that form a run of two or
// more consecutive numbers, or that directly precede a category with
// subquestions.
func markedCategories(ids []string, rows map[string]*categoryRows) map[string]bool {
	marked := make(map[string]bool)
	consecutive := func(i int) bool {
		_, errA := strconv.ParseFloat(ids[i], 64)
		_, errB := strconv.ParseFloat(ids[i+1], 64)
		return errA == nil && errB == nil && categoryNum(ids[i+1]) == categoryNum(ids[i])+1
	}

	for i := 0; i < len(ids)-1; {
		if _, err := strconv.ParseFloat(ids[i], 64); err != nil || !rows[ids[i]].onlyMain() {
			i++
			continue
		}
		end := i
		for end+1 < len(ids) && consecutive(end) && rows[ids[end+1]].onlyMain() {
			end++
		}
		if end > i {
			for k := i; k <= end; k++ {
				marked[ids[k]] = true
			}
			i = end + 1
			continue
		}
		if next := rows[ids[i+1]]; consecutive(i) && next.main < next.total {
			marked[ids[i]] = true
		}
		i++
	}
	return marked
}
