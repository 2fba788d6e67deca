package moodle

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/lappka/lappka/internal/model"
)

const sampleCSV = `Статистика теста,,,,,
№,Тип вопроса,Название вопроса,Попытки,Индекс легкости,"Индекс  дискриминации"
1,Случайный,Категория,,,
1.1,Числовой ответ,Q1,30,"84,21%","45,10%"
1.2,Короткий ответ,Q2,20,"40,00%","10,00%"
2.1a,Короткий ответ,broken,1,1,1
,,,,,
Модель ответа,Частичный кредит,Количество,Частота,,
4,"100,00%",25,"83,33%",,
5,"0,00%",5,"16,67%",,
,,,,,
Часть вопроса,Модель ответа,Частичный кредит,Количество,Частота,
,Париж,"100,00%",6,"50,00%",
`

func checkSampleCSV(t *testing.T, qs []model.Question) {
	t.Helper()
	if len(qs) != 2 {
		t.Fatalf("expected 2 subquestions, got %d", len(qs))
	}
	if qs[0].ID != "1.1" || qs[0].Type != "Числовой ответ" || qs[0].Attempts != 30 {
		t.Errorf("unexpected first question %+v", qs[0])
	}
	if qs[0].Difficulty != 84.21 || qs[0].Discrimination != 45.1 {
		t.Errorf("metrics = %v/%v", qs[0].Difficulty, qs[0].Discrimination)
	}
	if qs[0].Efficiency != 0 || qs[0].StdDev != 0 {
		t.Errorf("missing columns should be 0, got %v/%v", qs[0].Efficiency, qs[0].StdDev)
	}
	if len(qs[0].Answers) != 2 || qs[0].Answers[1].ModelAnswer != "5" || qs[0].Answers[1].Count != "5" {
		t.Errorf("unexpected answers for 1.1: %+v", qs[0].Answers)
	}
	if len(qs[1].Answers) != 1 || qs[1].Answers[0].ModelAnswer != "Париж" || qs[1].Answers[0].Frequency != "50,00%" {
		t.Errorf("unexpected answers for 1.2: %+v", qs[1].Answers)
	}
}

func TestParseCSV(t *testing.T) {
	qs, err := ParseCSV([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	checkSampleCSV(t, qs)
}

func TestParseCSVByteOrderMark(t *testing.T) {
	qs, err := ParseCSV([]byte("\uFEFF" + sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	checkSampleCSV(t, qs)
}

func TestParseCSVRepeatedHeaders(t *testing.T) {
	const data = `№,Тип вопроса,Название вопроса,Индекс легкости,Индекс легкости,Попытки,Индекс дискриминации
1.1,Множественный выбор,Q1,"70,00%","10,00%",25,"35,00%"
`
	qs, err := ParseCSV([]byte(data))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	q := qs[0]
	if q.Difficulty != 70 {
		t.Errorf("difficulty = %v, want the first of the repeated columns", q.Difficulty)
	}
	if q.Attempts != 25 || q.Discrimination != 35 || q.Type != model.TypeMultiChoice {
		t.Errorf("unexpected question %+v", q)
	}
}

func TestParseCSVWindows1251(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String(sampleCSV)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	qs, err := ParseCSV([]byte(encoded))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	checkSampleCSV(t, qs)
}

func TestParseCSVNoHeader(t *testing.T) {
	_, err := ParseCSV([]byte("a,b,c\n1,2,3\n"))
	if !errors.Is(err, ErrNoQuestionTable) {
		t.Errorf("expected ErrNoQuestionTable, got %v", err)
	}
}

func TestResolveColumnTokenFallback(t *testing.T) {
	headers := []string{"№", "Тип вопроса", "Название вопроса", "Кол-во попыток", "Эффективность дискр."}
	tests := []struct {
		col  column
		want int
	}{
		{colType, 1},
		{colTitle, 2},
		{colAttempts, 3},
		{colEfficiency, 4},
		{colGuess, -1},
	}
	for _, tt := range tests {
		t.Run(tt.col.label, func(t *testing.T) {
			if got := resolveColumn(headers, tt.col); got != tt.want {
				t.Errorf("resolveColumn(%q) = %d, want %d", tt.col.label, got, tt.want)
			}
		})
	}
}
