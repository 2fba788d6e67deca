package categorize

import (
	"fmt"
	"strings"
)

func formatMetric(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func switchCategory(lines []string, path string) []string {
	return append(lines,
		"// question: 0  name: Switch category to $course$/top/"+path,
		"$CATEGORY: $course$/top/"+path,
		"",
		"",
	)
}

// isCategorySwitch reports lines that would recreate the source categories
// on import.
func isCategorySwitch(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "$CATEGORY:") ||
		(strings.HasPrefix(s, "// question:") && strings.Contains(s, "Switch category to"))
}

// GenerateGIFT writes the categorised bank as GIFT: a switch to the base
// category, then every non-empty category as a subcategory of it with its
// questions copied verbatim, minus their original category switches.
func GenerateGIFT(baseCategory string, r Result) string {
	lines := switchCategory(nil, baseCategory)
	for _, g := range r.Groups {
		if len(g.Questions) == 0 {
			continue
		}
		lines = switchCategory(lines, baseCategory+"/"+string(g.Category))
		for _, p := range g.Questions {
			if p.Question.RawText == "" {
				continue
			}
			var raw []string
			for _, line := range strings.Split(p.Question.RawText, "\n") {
				if !isCategorySwitch(line) {
					raw = append(raw, line)
				}
			}
			if len(raw) == 0 {
				continue
			}
			lines = append(lines, raw...)
			lines = append(lines, "", "")
		}
	}
	return strings.Join(lines, "\n")
}
