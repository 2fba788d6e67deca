package moodle

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lappka/lappka/internal/model"
)

// ErrNoQuestionTable is returned when an HTML export has no statistics table.
var ErrNoQuestionTable = errors.New("question statistics table not found")

const questionTextSelector = "div.box.py-3.questiontext.boxaligncenter.generalbox.boxwidthnormal.mdl-align"

const testInfoHeading = "Информация о тесте"

// Header labels of the statistics table, in column order.
var statsHeaders = []string{"№", "Тип вопроса", "Название вопроса"}

// Header labels that mark a response-frequency table.
var answerHeaders = []string{
	"Модель ответа", "Фактический ответ", "Частичный кредит", "Частичная оценка",
	"Количество", "Количество ответов", "Частота", "Часть вопроса",
}

var multiSpace = regexp.MustCompile(`\s+`)

// ParseHTML parses a Moodle "quiz statistics" HTML export.
//
// Subquestions (IDs with a dot) get their full text and answer table from the
// question-text blocks that follow the statistics table, matched by order.
// Rows without a dot are returned with IsMain set.
func ParseHTML(data []byte) ([]model.Question, []model.InfoItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	table := findStatsTable(doc)
	if table == nil {
		return nil, nil, ErrNoQuestionTable
	}

	order := documentOrder(doc)
	blocks := doc.Find(questionTextSelector)
	tables := doc.Find("table")

	var questions []model.Question
	subIndex := 0
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 11 {
			return
		}
		q := questionFromCells(cells)
		if !strings.Contains(q.ID, ".") {
			q.IsMain = true
			questions = append(questions, q)
			return
		}
		if subIndex < blocks.Length() {
			block := blocks.Eq(subIndex)
			if text := cleanQuestionText(block); text != "" {
				q.Title = text
			}
			q.Answers = answersAfterBlock(block, tables, order)
		}
		questions = append(questions, q)
		subIndex++
	})

	questions = Deduplicate(questions)
	slog.Debug("parsed html export", "questions", len(model.Subquestions(questions)))

	return questions, testInfo(doc), nil
}

func findStatsTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		headers := headerTexts(t)
		for _, h := range statsHeaders {
			if !slices.Contains(headers, h) {
				return true
			}
		}
		found = t
		return false
	})
	return found
}

func headerTexts(t *goquery.Selection) []string {
	var out []string
	t.Find("th").Each(func(_ int, th *goquery.Selection) {
		out = append(out, strippedText(th, ""))
	})
	return out
}

func questionFromCells(cells *goquery.Selection) model.Question {
	cell := func(i int) string { return strippedText(cells.Eq(i), "") }
	return model.Question{
		ID:              cell(0),
		Type:            cell(1),
		Title:           cell(2),
		Attempts:        ParseInt(CleanNumber(cell(3))),
		Difficulty:      ParseFloat(CleanPercent(cell(4))),
		StdDev:          ParseFloat(CleanPercent(cell(5))),
		GuessProb:       ParseFloat(CleanPercent(cell(6))),
		Weight:          ParseFloat(CleanPercent(cell(7))),
		EffectiveWeight: ParseFloat(CleanPercent(cell(8))),
		Discrimination:  ParseFloat(CleanPercent(cell(9))),
		Efficiency:      ParseFloat(CleanPercent(cell(10))),
	}
}

// strippedText joins the trimmed, non-empty text nodes under s with sep.
func strippedText(s *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// textFixes are applied in sequence; later pairs see the output of earlier ones.
var textFixes = [][2]string{
	{" :", ":"},
	{": ", ":"},
	{":.", ":"},
	{"( ", "("},
	{" )", ")"},
	{"[ ", "["},
	{" ]", "]"},
}

func cleanQuestionText(block *goquery.Selection) string {
	text := strings.Join(strings.Fields(strippedText(block, " ")), " ")
	for _, f := range textFixes {
		text = strings.ReplaceAll(text, f[0], f[1])
	}
	text = strings.Join(strings.Fields(text), " ")
	return multiSpace.ReplaceAllString(text, " ")
}

// documentOrder numbers every node in pre-order so "comes after" can be checked.
func documentOrder(doc *goquery.Document) map[*html.Node]int {
	order := make(map[*html.Node]int)
	i := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return order
}

func isDescendant(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// answersAfterBlock returns the rows of the first response table that follows
// the question block and is not embedded in the question text itself.
func answersAfterBlock(block *goquery.Selection, tables *goquery.Selection, order map[*html.Node]int) []model.Answer {
	if block.Length() == 0 {
		return nil
	}
	blockNode := block.Nodes[0]
	start := order[blockNode]

	var answers []model.Answer
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		n := t.Nodes[0]
		if order[n] <= start || isDescendant(n, blockNode) {
			return true
		}
		headers := headerTexts(t)
		if len(headers) == 0 {
			return true
		}
		for _, h := range answerHeaders {
			if slices.Contains(headers, h) {
				answers = answersFromTable(t, headers)
				return false
			}
		}
		return true
	})
	return answers
}

func answersFromTable(t *goquery.Selection, headers []string) []model.Answer {
	var answers []model.Answer
	t.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < len(headers) {
			return
		}
		var a model.Answer
		for j, h := range headers {
			setAnswerField(&a, h, strippedText(cells.Eq(j), ""))
		}
		answers = append(answers, a)
	})
	return answers
}

// setAnswerField stores a cell under its normalized field, cleaning numbers.
func setAnswerField(a *model.Answer, header, value string) {
	switch header {
	case "Часть вопроса":
		a.Part = value
	case "Модель ответа":
		a.ModelAnswer = value
	case "Фактический ответ":
		a.ActualAnswer = value
	case "Частичный кредит", "Частичная оценка":
		a.PartialCredit = CleanPercent(value)
	case "Количество", "Количество ответов":
		a.Count = CleanNumber(value)
	case "Частота":
		a.Frequency = CleanPercent(value)
	default:
		if a.Extra == nil {
			a.Extra = make(map[string]string)
		}
		a.Extra[header] = value
	}
}

func testInfo(doc *goquery.Document) []model.InfoItem {
	var heading *goquery.Selection
	doc.Find("h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.TrimSpace(h.Text()) == testInfoHeading {
			heading = h
			return false
		}
		return true
	})
	if heading == nil {
		return nil
	}

	order := documentOrder(doc)
	start := order[heading.Nodes[0]]
	var info []model.InfoItem
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if order[t.Nodes[0]] <= start {
			return true
		}
		t.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				info = append(info, model.InfoItem{
					Key:   strippedText(cells.Eq(0), ""),
					Value: strippedText(cells.Eq(1), ""),
				})
			}
		})
		return false
	})
	return info
}
