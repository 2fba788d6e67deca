package moodle

import (
	"regexp"
	"strings"

	"github.com/lappka/lappka/internal/model"
)

// DefaultBaseCategory is used when a GIFT file has no $CATEGORY line.
const DefaultBaseCategory = "Вопросы"

var (
	giftCommentID   = regexp.MustCompile(`question:\s*(\d+)`)
	giftCommentName = regexp.MustCompile(`name:\s*(.+)`)
	giftName        = regexp.MustCompile(`^::(.+?)::`)

	giftNumeric     = regexp.MustCompile(`\{#.*?\}`)
	giftShortPct    = regexp.MustCompile(`\{%.*?%`)
	giftShortNum    = regexp.MustCompile(`\{#.*?:`)
	giftMissingWord = regexp.MustCompile(`\{.*?=.*?=.*?\}`)
)

// ParseGIFT reads a Moodle GIFT export. It returns the base category (the last
// segment of the first $CATEGORY path) and the questions in file order.
//
// The type comes from the first line after the ::name:: line, blank or not;
// a question with no following line is multiple choice. RawText keeps the
// comment and category lines that precede a question so it can be written
// back verbatim.
func ParseGIFT(content string) (string, []model.BankQuestion) {
	content = strings.TrimPrefix(content, "\uFEFF")
	lines := strings.Split(content, "\n")

	var (
		questions    []model.BankQuestion
		baseCategory string
		category     string
		current      *model.BankQuestion
		typed        bool
		text         []string
		raw          []string
		nextID       string
		nextName     string
		pending      []string
	)

	finish := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(text, "\n")
		current.RawText = strings.Join(raw, "\n")
		if !typed {
			current.Type = model.TypeMultiChoice
		}
		questions = append(questions, *current)
	}

	for _, original := range lines {
		original = strings.TrimSuffix(original, "\r")
		line := strings.TrimSpace(original)

		switch {
		case strings.HasPrefix(line, "$CATEGORY:"):
			path := strings.TrimSpace(strings.TrimPrefix(line, "$CATEGORY:"))
			if baseCategory == "" {
				parts := strings.Split(strings.TrimRight(path, "/"), "/")
				baseCategory = parts[len(parts)-1]
			}
			category = path
			pending = append(pending, original)

		case strings.HasPrefix(line, "// question:"):
			nextID, nextName = "", ""
			if m := giftCommentID.FindStringSubmatch(line); m != nil {
				nextID = m[1]
			}
			if m := giftCommentName.FindStringSubmatch(line); m != nil {
				nextName = strings.TrimSpace(m[1])
			}
			pending = append(pending, original)

		case strings.HasPrefix(line, "::") && strings.Contains(line[2:], "::"):
			m := giftName.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			finish()
			current = &model.BankQuestion{
				ID:              nextID,
				Name:            m[1],
				NameFromComment: nextName,
				Category:        category,
			}
			typed = false
			raw = append(pending, original)
			pending = nil
			text = []string{original}
			nextID, nextName = "", ""

		case current != nil:
			text = append(text, original)
			raw = append(raw, original)
			if !typed {
				current.Type = DetectType(line)
				typed = true
			}

		case line == "":
			if len(pending) > 0 {
				pending = append(pending, original)
			}
		}
	}
	finish()

	if baseCategory == "" {
		baseCategory = DefaultBaseCategory
	}
	return baseCategory, questions
}

// DetectType guesses the Moodle question type from a line of GIFT answer syntax.
func DetectType(line string) string {
	switch {
	case giftNumeric.MatchString(line):
		return model.TypeNumerical
	case giftShortPct.MatchString(line), giftShortNum.MatchString(line):
		return model.TypeShortAnswer
	case strings.Contains(line, "{TRUE}"), strings.Contains(line, "{FALSE}"):
		return model.TypeTrueFalse
	case strings.Contains(line, "->"):
		return model.TypeMatching
	case strings.Contains(line, "{") && (strings.Contains(line, "=") || strings.Contains(line, "~")):
		return model.TypeMultiChoice
	case giftMissingWord.MatchString(line):
		return model.TypeMissingWords
	}
	return model.TypeMultiChoice
}
