package moodle

import (
	"strings"

	"github.com/lappka/lappka/internal/model"
)

// Signature identifies a question by its title and every statistics column.
// Moodle repeats the same question under several slots when a quiz draws it
// more than once; those rows share a signature.
func Signature(q model.Question) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(q.Title)),
		normMetric(q.Type),
		normFloat(float64(q.Attempts)),
		normFloat(q.Difficulty),
		normFloat(q.StdDev),
		normFloat(q.GuessProb),
		normFloat(q.Weight),
		normFloat(q.EffectiveWeight),
		normFloat(q.Discrimination),
		normFloat(q.Efficiency),
	}
	return strings.Join(parts, "|")
}

// Deduplicate collapses subquestions with equal signatures into the first
// occurrence, recording the other IDs in DuplicateIDs and DisplayID.
// Main questions are kept and placed first.
func Deduplicate(qs []model.Question) []model.Question {
	var mains, subs []model.Question
	for _, q := range qs {
		if q.IsMain {
			mains = append(mains, q)
		} else {
			subs = append(subs, q)
		}
	}
	if len(subs) == 0 {
		return qs
	}

	var order []string
	groups := make(map[string][]model.Question)
	for _, q := range subs {
		sig := Signature(q)
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], q)
	}

	out := make([]model.Question, 0, len(mains)+len(order))
	out = append(out, mains...)
	for _, sig := range order {
		grp := groups[sig]
		rep := grp[0]
		rep.DuplicateIDs = nil
		for _, d := range grp[1:] {
			rep.DuplicateIDs = append(rep.DuplicateIDs, d.ID)
		}
		rep.DisplayID = rep.ID
		if len(rep.DuplicateIDs) > 0 {
			rep.DisplayID += " (" + strings.Join(rep.DuplicateIDs, ", ") + ")"
		}
		out = append(out, rep)
	}
	return out
}
