package moodle

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/lappka/lappka/internal/model"
)

var subquestionID = regexp.MustCompile(`^\d+(\.\d+)+$`)

// column describes how a statistics column is located in the CSV header:
// an exact (normalized) label first, then a set of tokens that must all occur.
type column struct {
	label  string
	tokens []string
}

var (
	colType       = column{"тип вопроса", []string{"тип", "вопрос"}}
	colTitle      = column{"название вопроса", []string{"назв", "вопрос"}}
	colAttempts   = column{"попытки", []string{"попыт"}}
	colEasiness   = column{"индекс легкости", []string{"индекс", "легк"}}
	colDiscr      = column{"индекс дискриминации", []string{"индекс", "дискр"}}
	colEfficiency = column{"эффективность дискриминации", []string{"эффект", "дискр"}}
	colWeight     = column{"предполагаемый вес", []string{"предполагаем", "вес"}}
	colEffWeight  = column{"эффективный вес", []string{"эффективн", "вес"}}
	colStdDev     = column{"стандартное отклонение", []string{"стандартн", "отклон"}}
	colGuess      = column{"вероятность угадывания", []string{"угадыв"}}
)

// ReadCSV decodes a headerless CSV export into rows of equal width.
// Files that are not valid UTF-8 are decoded as Windows-1251.
func ReadCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode cp1251: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

// ParseCSV parses a Moodle statistics CSV export: the question rows that
// follow the header row and the answer blocks that follow them. Answer blocks
// are attached to subquestions in order.
func ParseCSV(data []byte) ([]model.Question, error) {
	rows, err := ReadCSV(data)
	if err != nil {
		return nil, err
	}
	questions := parseCSVQuestions(rows)
	if questions == nil {
		return nil, ErrNoQuestionTable
	}
	blocks := parseCSVAnswers(rows)
	for i := range questions {
		if i < len(blocks) {
			questions[i].Answers = blocks[i]
		}
	}
	return questions, nil
}

func normHeader(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.NewReplacer(`"`, "", "'", "").Replace(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func findHeaderRow(rows [][]string) int {
	for i, row := range rows {
		joined := strings.Join(row, "")
		norm := strings.ToLower(strings.Join(row, " "))
		if strings.Contains(joined, "№") &&
			strings.Contains(norm, "тип вопроса") &&
			strings.Contains(norm, "название вопроса") {
			return i
		}
	}
	return -1
}

func resolveColumn(headers []string, c column) int {
	for i, h := range headers {
		if normHeader(h) == c.label {
			return i
		}
	}
	for i, h := range headers {
		n := normHeader(h)
		ok := true
		for _, t := range c.tokens {
			if !strings.Contains(n, t) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func parseCSVQuestions(rows [][]string) []model.Question {
	hdr := findHeaderRow(rows)
	if hdr < 0 {
		return nil
	}
	headers := rows[hdr]

	numCol := 0
	for i, h := range headers {
		if n := normHeader(h); n == "№" || n == "no" || n == "n" {
			numCol = i
			break
		}
	}
	idx := map[string]int{}
	for _, c := range []column{colType, colTitle, colAttempts, colEasiness, colDiscr,
		colEfficiency, colWeight, colEffWeight, colStdDev, colGuess} {
		idx[c.label] = resolveColumn(headers, c)
	}
	get := func(row []string, c column) string {
		i, ok := idx[c.label]
		if !ok || i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	questions := []model.Question{}
	for _, row := range rows[hdr+1:] {
		first := row[numCol]
		if first == "Модель ответа" || rowContains(row, "Модель ответа") || rowContains(row, "Часть вопроса") {
			break
		}
		id := strings.TrimSpace(first)
		if id == "" || !subquestionID.MatchString(id) {
			continue
		}
		questions = append(questions, model.Question{
			ID:              id,
			Type:            get(row, colType),
			Title:           get(row, colTitle),
			Attempts:        ParseInt(get(row, colAttempts)),
			Difficulty:      ParseFloat(CleanPercent(get(row, colEasiness))),
			Discrimination:  ParseFloat(CleanPercent(get(row, colDiscr))),
			Efficiency:      ParseFloat(CleanPercent(get(row, colEfficiency))),
			Weight:          ParseFloat(CleanPercent(get(row, colWeight))),
			EffectiveWeight: ParseFloat(CleanPercent(get(row, colEffWeight))),
			StdDev:          ParseFloat(CleanPercent(get(row, colStdDev))),
			GuessProb:       ParseFloat(CleanPercent(get(row, colGuess))),
		})
	}
	return questions
}

func rowContains(row []string, s string) bool {
	for _, c := range row {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}

type answerLayout struct {
	part, model, actual, credit, count, freq int
}

func (l answerLayout) at(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return row[pos]
}

func indexOf(row []string, labels ...string) int {
	for _, l := range labels {
		if i := slices.Index(row, l); i >= 0 {
			return i
		}
	}
	return -1
}

// parseCSVAnswers splits the answer section into blocks, one per header row
// carrying "Частота" together with "Модель ответа" or "Часть вопроса".
func parseCSVAnswers(rows [][]string) [][]model.Answer {
	var blocks [][]model.Answer
	var current []model.Answer
	var layout *answerLayout

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
	}

	for _, row := range rows {
		hasFreq := slices.Contains(row, "Частота")
		if hasFreq && (slices.Contains(row, "Модель ответа") || slices.Contains(row, "Часть вопроса")) {
			flush()
			layout = &answerLayout{
				part:   indexOf(row, "Часть вопроса"),
				model:  indexOf(row, "Модель ответа"),
				actual: indexOf(row, "Фактический ответ"),
				credit: indexOf(row, "Частичный кредит", "Частичная оценка"),
				count:  indexOf(row, "Количество ответов", "Количество"),
				freq:   indexOf(row, "Частота"),
			}
			continue
		}
		if layout == nil || (layout.model < 0 && layout.count < 0 && layout.freq < 0) {
			continue
		}
		modelAnswer := layout.at(row, layout.model)
		part := layout.at(row, layout.part)
		if modelAnswer == "" && part == "" {
			continue
		}
		current = append(current, model.Answer{
			Part:          part,
			ModelAnswer:   modelAnswer,
			ActualAnswer:  layout.at(row, layout.actual),
			PartialCredit: layout.at(row, layout.credit),
			Count:         layout.at(row, layout.count),
			Frequency:     layout.at(row, layout.freq),
		})
	}
	flush()
	return blocks
}
