package categorize

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/moodle"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "abcd", 1},
		{"abcd", "bcde", 0.75},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"кошка", "кошки", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityPopularRunes(t *testing.T) {
	// Long texts drop very frequent runes as match seeds, so the ratio of a
	// string against itself must still be 1.
	long := strings.Repeat("ab c", 80)
	if got := Similarity(long, long); got != 1 {
		t.Errorf("Similarity(long, long) = %v, want 1", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[html]<p>Чему&nbsp;равна <b>скорость</b>?</p>", "чему равна скорость"},
		{`Ответ\: 5\n кг`, "ответ 5 кг"},
		{"<table><caption>Табл</caption><tr><td>a</td><td>b</td></tr></table>", "табл a b"},
		{"x<br/>y", "x y"},
		{"before [html]hidden[/html] after", "before after"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuestionText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"::Q1::Чему равно 2+2? {#4}", "Чему равно 2+2?"},
		{"::Q1::no braces", "no braces"},
		{"::Q1::a::b {=x}", "a::b"},
		{"no name", ""},
	}
	for _, tt := range tests {
		if got := QuestionText(tt.in); got != tt.want {
			t.Errorf("QuestionText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	qs := []model.Question{
		{ID: "1.1", Type: "Случайный", Title: "<p>Вопрос А</p>", Difficulty: 60},
		{ID: "2.1", Type: "", Title: "вопрос а!", Difficulty: 60},
		{ID: "3.1", Type: model.TypeNumerical, Title: "Вопрос Б", Difficulty: 60},
	}
	out, dups := Deduplicate(qs)
	if len(out) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(out))
	}
	if out[0].DisplayID != "1.1 (2.1)" {
		t.Errorf("display id = %q", out[0].DisplayID)
	}
	if len(dups) != 1 || !slices.Equal(dups[0], []string{"1.1", "2.1"}) {
		t.Errorf("duplicates = %v", dups)
	}
}

const bankGIFT = `// question: 0  name: Switch category to $course$/top/Тест
$CATEGORY: $course$/top/Тест

// question: 11  name: Скорость
::Скорость::Чему равна скорость света?{#300000}

// question: 12  name: Столица
::Столица::Столица Франции?{=Париж ~Лондон}

// question: 13  name: Река
::Река::Самая длинная река?{=Нил ~Волга}

// question: 14  name: Гора
::Гора::Самая высокая гора?{=Эверест ~Эльбрус}

// question: 15  name: Новый
::Новый::Вопрос, которого нет в статистике{=да ~нет}
`

func analyzedSample() []model.Question {
	return []model.Question{
		{ID: "1", IsMain: true, Title: "Категория"},
		{ID: "1.1", Type: model.TypeShortAnswer, Title: "Чему равна скорость света?", Difficulty: 90, Discrimination: 40, Attempts: 40},
		{ID: "1.2", Type: model.TypeMultiChoice, Title: "Столица Франции?", Difficulty: 75, Discrimination: 35, Attempts: 40},
		{ID: "1.3", Type: model.TypeMultiChoice, Title: "Самая длинная река?", Difficulty: 45, Discrimination: 0.1, Attempts: 40},
		{ID: "1.4", Type: "Случайный", Title: "Самая высокая гора?", Difficulty: 35, Discrimination: 30, Attempts: 40},
	}
}

func TestCategorize(t *testing.T) {
	base, bank := moodle.ParseGIFT(bankGIFT)
	if base != "Тест" || len(bank) != 5 {
		t.Fatalf("unexpected bank %q with %d questions", base, len(bank))
	}

	r := Categorize(bank, analyzedSample(), Options{})

	if !slices.Equal(r.Unmatched, []string{"Новый"}) {
		t.Errorf("unmatched = %v", r.Unmatched)
	}
	if !slices.Equal(r.Easiest, []string{"Скорость"}) {
		t.Errorf("easiest = %v", r.Easiest)
	}
	if r.AttemptsThreshold != 40 {
		t.Errorf("attempts threshold = %v, want 40", r.AttemptsThreshold)
	}

	names := func(c Category) []string {
		var out []string
		for _, p := range r.Group(c) {
			out = append(out, p.Question.Name)
		}
		return out
	}
	if got := names(EasyClosed); !slices.Equal(got, []string{"Столица"}) {
		t.Errorf("easy closed = %v", got)
	}
	if got := names(HardClosed); !slices.Equal(got, []string{"Гора", "Новый"}) {
		t.Errorf("hard closed = %v", got)
	}
	if got := names(Rework); !slices.Equal(got, []string{"Скорость", "Река"}) {
		t.Errorf("rework = %v", got)
	}

	for _, p := range r.Group(Rework) {
		switch p.Question.Name {
		case "Скорость":
			if !slices.Equal(p.Reasons, []string{ReasonEasiest}) {
				t.Errorf("Скорость reasons = %v", p.Reasons)
			}
		case "Река":
			if !slices.Equal(p.Reasons, []string{ReasonLowDiscrimination}) {
				t.Errorf("Река reasons = %v", p.Reasons)
			}
		}
	}
	for _, p := range r.Group(HardClosed) {
		if p.Question.Name == "Гора" && p.Type != model.TypeMultiChoice {
			t.Errorf("random analysed type should fall back to the bank type, got %q", p.Type)
		}
	}

	if len(r.Matching) != 5 || r.Matching[0].BankID != "11" || r.Matching[0].AnalyzedID != "1.1" {
		t.Errorf("matching[0] = %+v", r.Matching[0])
	}
	if r.Matching[4].AnalyzedID != NotFound {
		t.Errorf("matching[4] = %+v", r.Matching[4])
	}
}

func TestCategorizeLowAttempts(t *testing.T) {
	bank := []model.BankQuestion{
		{ID: "1", Name: "A", Text: "::A::Первый вопрос{=a}", Type: model.TypeMultiChoice},
		{ID: "2", Name: "B", Text: "::B::Второй вопрос{=a}", Type: model.TypeMultiChoice},
		{ID: "3", Name: "C", Text: "::C::Третий вопрос{=a}", Type: model.TypeMultiChoice},
		{ID: "4", Name: "D", Text: "::D::Четвертый вопрос{=a}", Type: model.TypeMultiChoice},
	}
	analyzed := []model.Question{
		{ID: "1.1", Title: "Первый вопрос", Type: model.TypeMultiChoice, Difficulty: 90, Discrimination: 50, Attempts: 100},
		{ID: "1.2", Title: "Второй вопрос", Type: model.TypeMultiChoice, Difficulty: 50, Discrimination: 50, Attempts: 100},
		{ID: "1.3", Title: "Третий вопрос", Type: model.TypeMultiChoice, Difficulty: 50, Discrimination: 50, Attempts: 100},
		{ID: "1.4", Title: "Четвертый вопрос", Type: model.TypeMultiChoice, Difficulty: 50, Discrimination: 50, Attempts: 20},
	}
	r := Categorize(bank, analyzed, Options{})
	// 25th percentile of [100 100 100 20] is 80.
	if r.AttemptsThreshold != 80 {
		t.Errorf("threshold = %v, want 80", r.AttemptsThreshold)
	}
	if !slices.Equal(r.LowAttempts, []string{"D"}) {
		t.Errorf("low attempts = %v", r.LowAttempts)
	}
}

func TestCategorizeDuplicateMatches(t *testing.T) {
	bank := []model.BankQuestion{
		{ID: "7", Name: "X", Text: "::X::Одинаковый текст{=a}"},
		{ID: "5", Name: "Y", Text: "::Y::Одинаковый текст{=a}"},
	}
	analyzed := []model.Question{
		{ID: "1.1", Title: "Одинаковый текст", Difficulty: 50, Discrimination: 50, Attempts: 40},
	}
	r := Categorize(bank, analyzed, Options{})
	if r.Matching[0].DuplicateOf != "5" || r.Matching[1].DuplicateOf != "7" {
		t.Errorf("matching = %+v", r.Matching)
	}
}

func TestGenerateGIFT(t *testing.T) {
	base, bank := moodle.ParseGIFT(bankGIFT)
	r := Categorize(bank, analyzedSample(), Options{})
	out := GenerateGIFT(base, r)

	lines := strings.Split(out, "\n")
	if lines[0] != "// question: 0  name: Switch category to $course$/top/Тест" || lines[1] != "$CATEGORY: $course$/top/Тест" {
		t.Errorf("unexpected header %q", lines[:2])
	}
	if strings.Count(out, "$CATEGORY:") != 4 {
		t.Errorf("expected base + 3 non-empty categories, got:\n%s", out)
	}
	if !strings.Contains(out, "$CATEGORY: $course$/top/Тест/3 На переделку") {
		t.Errorf("rework category missing")
	}
	if strings.Contains(out, "1.1 Легкие/Открытые") {
		t.Errorf("empty category must be skipped")
	}
	if strings.Count(out, "// question: 11  name: Скорость") != 1 {
		t.Errorf("question comment should be kept once")
	}
	if i, j := strings.Index(out, "Столица"), strings.Index(out, "Новый"); i > j {
		t.Errorf("categories out of order")
	}
}
