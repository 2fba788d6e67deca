package moodle

import (
	"errors"
	"strings"
	"testing"
)

func row(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		b.WriteString("<td>" + c + "</td>")
	}
	b.WriteString("</tr>")
	return b.String()
}

const block = `<div class="box py-3 questiontext boxaligncenter generalbox boxwidthnormal mdl-align">`

func sampleHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	b.WriteString(`<h3>Информация о тесте</h3><table>`)
	b.WriteString(row("Название теста", "Контрольная работа"))
	b.WriteString(row("Количество попыток", "42"))
	b.WriteString(`</table>`)

	b.WriteString(`<table><tr><th>№</th><th>Тип вопроса</th><th>Название вопроса</th><th>Попытки</th>`)
	b.WriteString(`<th>Индекс легкости</th><th>Стандартное отклонение</th><th>Вероятность угадывания</th>`)
	b.WriteString(`<th>Предполагаемый вес</th><th>Эффективный вес</th><th>Индекс дискриминации</th><th>Эффективность дискриминации</th></tr>`)
	b.WriteString(row("1", "Случайный", "Категория 1", "", "", "", "", "", "", "", ""))
	b.WriteString(row("1.1", "Числовой ответ", "Q1", "30", "84,21%", "36,5%", "", "10,00%", "9,5%", "45,10%", "50,00%"))
	b.WriteString(row("1.2", "Множественный выбор", "Q2", "12", "50,00%", "20%", "25%", "10,00%", "9,5%", "20,00%", "30,00%"))
	b.WriteString(row("1.3", "Множественный выбор", "Q2", "12", "50,00%", "20%", "25%", "10,00%", "9,5%", "20,00%", "30,00%"))
	b.WriteString(`</table>`)

	b.WriteString(block + `<p>Сколько будет ( 2 + 2 ) :</p></div>`)
	b.WriteString(`<table><tr><th>Модель ответа</th><th>Частичный кредит</th><th>Количество</th><th>Частота</th></tr>`)
	b.WriteString(row("4", "100,00%", "25", "83,33%"))
	b.WriteString(row("5", "0,00%", "5", "16,67%"))
	b.WriteString(`</table>`)

	b.WriteString(block + `<p>Столица Франции?</p><table><tr><th>Частота</th></tr><tr><td>embedded</td></tr></table></div>`)
	b.WriteString(`<table><tr><th>Модель ответа</th><th>Частичный кредит</th><th>Количество</th><th>Частота</th></tr>`)
	b.WriteString(row("Париж", "100,00%", "6", "50,00%"))
	b.WriteString(`</table>`)

	b.WriteString(block + `<p>Столица Франции?</p><table><tr><th>Частота</th></tr><tr><td>embedded</td></tr></table></div>`)
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestParseHTML(t *testing.T) {
	qs, info, err := ParseHTML([]byte(sampleHTML()))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}

	if len(qs) != 3 {
		t.Fatalf("expected 3 questions (1 main + 2 unique), got %d", len(qs))
	}
	if !qs[0].IsMain || qs[0].ID != "1" {
		t.Errorf("expected main question 1 first, got %+v", qs[0])
	}

	q1 := qs[1]
	if q1.ID != "1.1" {
		t.Fatalf("expected 1.1, got %q", q1.ID)
	}
	if q1.Title != "Сколько будет (2 + 2):" {
		t.Errorf("title = %q", q1.Title)
	}
	if q1.Attempts != 30 {
		t.Errorf("attempts = %d, want 30", q1.Attempts)
	}
	if q1.Difficulty != 84.21 {
		t.Errorf("difficulty = %v, want 84.21", q1.Difficulty)
	}
	if q1.GuessProb != 0 {
		t.Errorf("empty guess cell should parse as 0, got %v", q1.GuessProb)
	}
	if q1.Discrimination != 45.1 || q1.Efficiency != 50 {
		t.Errorf("discrimination/efficiency = %v/%v", q1.Discrimination, q1.Efficiency)
	}
	if len(q1.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(q1.Answers))
	}
	if a := q1.Answers[0]; a.ModelAnswer != "4" || a.PartialCredit != "100.00" || a.Count != "25" || a.Frequency != "83.33" {
		t.Errorf("unexpected first answer %+v", a)
	}

	q2 := qs[2]
	if q2.ID != "1.2" || q2.DisplayID != "1.2 (1.3)" {
		t.Errorf("expected 1.2 with duplicate 1.3, got id=%q display=%q", q2.ID, q2.DisplayID)
	}
	if len(q2.Answers) != 1 || q2.Answers[0].ModelAnswer != "Париж" {
		t.Errorf("embedded table must be skipped, got answers %+v", q2.Answers)
	}

	if len(info) != 2 || info[0].Key != "Название теста" || info[1].Value != "42" {
		t.Errorf("unexpected test info %+v", info)
	}
}

func TestParseHTMLNoTable(t *testing.T) {
	_, _, err := ParseHTML([]byte(`<html><body><table><tr><th>x</th></tr></table></body></html>`))
	if !errors.Is(err, ErrNoQuestionTable) {
		t.Errorf("expected ErrNoQuestionTable, got %v", err)
	}
}

func TestCleanPercent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "0"},
		{"  ", "0"},
		{"84,21%", "84.21"},
		{" 12.5 % ", "12.5 "},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanPercent(tt.in); got != tt.want {
				t.Errorf("CleanPercent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"84,21%", 84.21},
		{"1 234", 1234},
		{"-", 0},
		{"", 0},
		{"0.5", 0.5},
	}
	for _, tt := range tests {
		if got := ParseFloat(tt.in); got != tt.want {
			t.Errorf("ParseFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := ParseInt("12,7"); got != 12 {
		t.Errorf("ParseInt(12,7) = %d, want 12", got)
	}
}
