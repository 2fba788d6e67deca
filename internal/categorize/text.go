package categorize

import (
	"regexp"
	"strings"
)

var cellRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`),
	regexp.MustCompile(`(?is)<th[^>]*>(.*?)</th>`),
	regexp.MustCompile(`(?is)<caption[^>]*>(.*?)</caption>`),
}

var (
	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	htmlBlock  = regexp.MustCompile(`(?is)\[html\].*?\[/html\]`)
	htmlMarker = regexp.MustCompile(`(?i)\[/?html\]`)
	nonWordRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

var escapes = strings.NewReplacer(
	`\:`, ":",
	`\;`, ";",
	`\=`, "=",
	`\n`, " ",
	"&nbsp;", " ",
)

// CleanHTML reduces GIFT or Moodle markup to plain text. Table cells and
// captions keep their content, every other tag is dropped together with
// [html]...[/html] blocks.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	s = escapes.Replace(s)
	for _, re := range cellRes {
		s = re.ReplaceAllString(s, " ${1} ")
	}
	s = brRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, "")
	s = htmlBlock.ReplaceAllString(s, "")
	s = htmlMarker.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize prepares text for fuzzy comparison: markup removed, lower-cased,
// single-spaced, only letters, digits, underscores and spaces left.
func Normalize(s string) string {
	s = CleanHTML(s)
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimSpace(nonWordRe.ReplaceAllString(s, ""))
}

// QuestionText returns the question stem of a GIFT question: the text after
// the second "::" up to the first "{".
func QuestionText(gift string) string {
	parts := strings.Split(gift, "::")
	if len(parts) < 3 {
		return ""
	}
	rest := strings.Join(parts[2:], "::")
	if i := strings.Index(rest, "{"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// TextSimilarity compares two texts after normalization. Empty texts never
// match.
func TextSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	return Similarity(na, nb)
}
