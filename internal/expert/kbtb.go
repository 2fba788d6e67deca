package expert

import (
	"math"
	"slices"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/stats"
)

// KBTB interpretation bands.
const (
	KBTBExcellent = "KBTBExcellent"
	KBTBGood      = "KBTBGood"
	KBTBSkewed    = "KBTBSkewed"
	KBTBRework    = "KBTBRework"
	KBTBNoData    = "KBTBNoData"
)

const (
	weightType   = 0.3
	weightLevel  = 0.3
	weightRework = 0.2
	weightCount  = 0.2
)

// Targets is the desired composition of a question bank, in percent.
// Open/Closed split by answer form, Low/Medium/High by facility index
// (easy >= 70, medium 40..70, hard < 40). A zero field takes its default.
// MinQuestions of 0 disables the size penalty.
type Targets struct {
	Open         float64 `json:"open" yaml:"open"`
	Closed       float64 `json:"closed" yaml:"closed"`
	Low          float64 `json:"low" yaml:"low"`
	Medium       float64 `json:"medium" yaml:"medium"`
	High         float64 `json:"high" yaml:"high"`
	MinQuestions int     `json:"min_questions" yaml:"min_questions"`
}

// DefaultTargets is 40/60 open/closed and 30/50/20 easy/medium/hard.
func DefaultTargets() Targets {
	return Targets{Open: 40, Closed: 60, Low: 30, Medium: 50, High: 20}
}

// Shares are fractions in [0, 1].
type Shares struct {
	Open   float64 `json:"open" yaml:"open"`
	Closed float64 `json:"closed" yaml:"closed"`
	Low    float64 `json:"low" yaml:"low"`
	Medium float64 `json:"medium" yaml:"medium"`
	High   float64 `json:"high" yaml:"high"`
}

func (t Targets) normalized() Shares {
	def := DefaultTargets()
	or := func(v, d float64) float64 {
		if v == 0 {
			return d
		}
		return v
	}
	s := Shares{
		Open:   or(t.Open, def.Open) / 100,
		Closed: or(t.Closed, def.Closed) / 100,
		Low:    or(t.Low, def.Low) / 100,
		Medium: or(t.Medium, def.Medium) / 100,
		High:   or(t.High, def.High) / 100,
	}
	if sum := s.Open + s.Closed; sum > 0 {
		s.Open, s.Closed = s.Open/sum, s.Closed/sum
	} else {
		s.Open, s.Closed = 0.4, 0.6
	}
	if sum := s.Low + s.Medium + s.High; sum > 0 {
		s.Low, s.Medium, s.High = s.Low/sum, s.Medium/sum, s.High/sum
	} else {
		s.Low, s.Medium, s.High = 0.3, 0.5, 0.2
	}
	return s
}

// KBTB is the test bank balance coefficient with its components.
type KBTB struct {
	Value          float64 `json:"kbtb" yaml:"kbtb"`
	Interpretation string  `json:"interpretation" yaml:"interpretation"`
	PenaltyType    float64 `json:"penalty_type" yaml:"penalty_type"`
	PenaltyLevel   float64 `json:"penalty_level" yaml:"penalty_level"`
	PenaltyRework  float64 `json:"penalty_rework" yaml:"penalty_rework"`
	PenaltyCount   float64 `json:"penalty_count" yaml:"penalty_count"`
	Actual         Shares  `json:"actual" yaml:"actual"`
	Target         Shares  `json:"target" yaml:"target"`
	R              float64 `json:"r" yaml:"r"`
	N              int     `json:"n" yaml:"n"`
	NRework        int     `json:"n_rework" yaml:"n_rework"`
}

// ComputeKBTB scores how far a bank is from the target composition:
//
//	KBTB = 1 - 0.3*Dtype - 0.3*Dlevel - 0.2*(1 - e^(-3R)) - 0.2*Pcount
//
// R is the share of questions needing rework (discrimination below 0.3 or
// among the top 10% easiest). D values are total variation distances between
// actual and target shares of the remaining questions. Pcount is 1 - n/min
// when the bank is smaller than MinQuestions. The result is clamped to [0, 1].
func ComputeKBTB(qs []model.Question, targets Targets) KBTB {
	target := targets.normalized()
	subs := model.Subquestions(qs)
	n := len(subs)
	if n == 0 {
		k := KBTB{Interpretation: KBTBNoData, Target: target}
		if targets.MinQuestions > 0 {
			k.PenaltyCount = 1
		}
		return k
	}

	rework := make(map[int]bool)
	for i, q := range subs {
		if q.Discrimination < LowDiscrimination {
			rework[i] = true
		}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case subs[a].Difficulty > subs[b].Difficulty:
			return -1
		case subs[a].Difficulty < subs[b].Difficulty:
			return 1
		}
		return a - b
	})
	top := max(1, int(math.Ceil(0.1*float64(n))))
	for _, i := range order[:min(top, n)] {
		rework[i] = true
	}

	r := float64(len(rework)) / float64(n)
	var kept []model.Question
	for i, q := range subs {
		if !rework[i] {
			kept = append(kept, q)
		}
	}

	var actual Shares
	if len(kept) == 0 {
		actual = Shares{Open: 0.5, Closed: 0.5, Low: target.Low, Medium: target.Medium, High: target.High}
	} else {
		var open, low, medium, high int
		for _, q := range kept {
			if model.IsOpenType(q.Type) {
				open++
			}
			switch {
			case q.Difficulty >= 70:
				low++
			case q.Difficulty >= 40:
				medium++
			default:
				high++
			}
		}
		nn := float64(len(kept))
		actual.Open = float64(open) / nn
		actual.Closed = 1 - actual.Open
		actual.Low = float64(low) / nn
		actual.Medium = float64(medium) / nn
		actual.High = float64(high) / nn
	}

	dType := 0.5 * (math.Abs(actual.Open-target.Open) + math.Abs(actual.Closed-target.Closed))
	dLevel := 0.5 * (math.Abs(actual.Low-target.Low) + math.Abs(actual.Medium-target.Medium) + math.Abs(actual.High-target.High))
	pRework := 1 - math.Exp(-3*r)
	var pCount float64
	if targets.MinQuestions > 0 && n < targets.MinQuestions {
		pCount = 1 - float64(n)/float64(targets.MinQuestions)
	}

	k := KBTB{
		PenaltyType:   weightType * dType,
		PenaltyLevel:  weightLevel * dLevel,
		PenaltyRework: weightRework * pRework,
		PenaltyCount:  weightCount * pCount,
		Actual:        actual,
		Target:        target,
		R:             r,
		N:             n,
		NRework:       len(rework),
	}
	k.Value = stats.Clip(1-k.PenaltyType-k.PenaltyLevel-k.PenaltyRework-k.PenaltyCount, 0, 1)
	k.Interpretation = interpretKBTB(k.Value)
	return k
}

func interpretKBTB(v float64) string {
	switch {
	case v >= 0.85:
		return KBTBExcellent
	case v >= 0.70:
		return KBTBGood
	case v >= 0.50:
		return KBTBSkewed
	default:
		return KBTBRework
	}
}
