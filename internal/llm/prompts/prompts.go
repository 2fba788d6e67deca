package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed advice_*.txt
var FS embed.FS

var tagRegex = regexp.MustCompile(`(?i)</?\s*(system-instructions|quiz-statistics|rule-findings|low-discrimination-questions)\b[^>]*>`)

// Variant selects how much the commentary goes into detail.
type Variant string

const (
	// VariantBrief asks for a few actionable bullet points.
	VariantBrief Variant = "brief"
	// VariantDetailed asks for a structured review with per-question advice.
	VariantDetailed Variant = "detailed"
)

var validVariants = map[Variant]bool{
	VariantBrief:    true,
	VariantDetailed: true,
}

const maxItemRunes = 300

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// AdviceData holds template data for the commentary prompt. Text fields are
// already localized.
type AdviceData struct {
	Language           string
	Questions          int
	Students           int
	MeanDifficulty     float64
	MeanDiscrimination float64
	EasyPct            float64
	MediumPct          float64
	HardPct            float64
	Balance            string
	OverlapPct         float64
	Quality            string
	KBTB               float64
	KBTBInterpretation string
	Recommendations    []string
	Flagged            []string
}

// Load parses the advice_<variant>.txt templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for _, v := range []Variant{VariantBrief, VariantDetailed} {
			name := "advice_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildAdvicePrompt renders the system prompt of the given variant.
func BuildAdvicePrompt(variant Variant, data AdviceData) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data.Recommendations = sanitizeAll(data.Recommendations)
	data.Flagged = sanitizeAll(data.Flagged)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = sanitize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sanitize removes the prompt's own section tags from uploaded text, folds it
// onto one line and truncates it.
func sanitize(s string) string {
	s = tagRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxItemRunes {
		s = string([]rune(s)[:maxItemRunes]) + "..."
	}
	return s
}
