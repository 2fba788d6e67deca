package moodle

import (
	"errors"
	"strings"
	"testing"

	"github.com/lappka/lappka/internal/model"
)

const sampleGIFT = `// question: 0  name: Switch category to $course$/top/Физика/Механика
$CATEGORY: $course$/top/Физика/Механика


// question: 101  name: Скорость
::Скорость::[html]<p>Чему равна скорость?</p>{#
	=10:0
}

// question: 102  name: Столица
::Столица::[html]Столица Франции?
{
	=Париж
	~Лондон
}

::Земля::Земля круглая {TRUE}
`

func TestParseGIFT(t *testing.T) {
	base, qs := ParseGIFT(sampleGIFT)
	if base != "Механика" {
		t.Errorf("base category = %q, want Механика", base)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}

	q := qs[0]
	if q.ID != "101" || q.Name != "Скорость" || q.NameFromComment != "Скорость" {
		t.Errorf("unexpected first question header %+v", q)
	}
	if q.Category != "$course$/top/Физика/Механика" {
		t.Errorf("category = %q", q.Category)
	}
	if !strings.HasPrefix(q.RawText, "// question: 0") {
		t.Errorf("raw text should keep the preceding comments, got %q", q.RawText)
	}
	if !strings.HasPrefix(q.Text, "::Скорость::") {
		t.Errorf("text should start at the name line, got %q", q.Text)
	}

	if qs[1].ID != "102" || qs[1].Type != model.TypeMultiChoice {
		t.Errorf("unexpected second question %+v", qs[1])
	}
	if qs[2].ID != "" || qs[2].Type != model.TypeMultiChoice {
		t.Errorf("single-line question: id=%q type=%q", qs[2].ID, qs[2].Type)
	}
}

func TestParseGIFTTypes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"single line then blank", "::Q1::[html]Сколько будет 2+2? {#4}\n\n", model.TypeMultiChoice},
		{"single line at end of file", "::Q1::Земля круглая {TRUE}", model.TypeMultiChoice},
		{"numeric answer block", "::Q1::Сколько будет 2+2?\n{#4}\n", model.TypeNumerical},
		{"true/false answer block", "::Q1::Земля круглая\n{TRUE}\n", model.TypeTrueFalse},
		{"matching answer block", "::Q1::Сопоставьте\n{=cat -> кошка =dog -> собака}\n", model.TypeMatching},
		{"blank line before answers", "::Q1::Сколько будет 2+2?\n\n{#4}\n", model.TypeMultiChoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, qs := ParseGIFT(tt.content)
			if len(qs) != 1 {
				t.Fatalf("expected 1 question, got %d", len(qs))
			}
			if qs[0].Type != tt.want {
				t.Errorf("type = %q, want %q", qs[0].Type, tt.want)
			}
		})
	}
}

func TestParseGIFTBaseCategory(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"trailing slash", "$CATEGORY: $course$/top/Физика/\n::Q::text\n{=a}\n", "Физика"},
		{"byte order mark", "\uFEFF$CATEGORY: $course$/top/Оптика\n::Q::text\n{=a}\n", "Оптика"},
		{"only the first path counts", "$CATEGORY: $course$/top/А\n$CATEGORY: $course$/top/Б\n::Q::text\n{=a}\n", "А"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, qs := ParseGIFT(tt.content)
			if base != tt.want {
				t.Errorf("base = %q, want %q", base, tt.want)
			}
			if len(qs) != 1 {
				t.Errorf("expected 1 question, got %d", len(qs))
			}
		})
	}
}

func TestParseGIFTDefaultCategory(t *testing.T) {
	base, qs := ParseGIFT("::Q::text {=a ~b}\n")
	if base != DefaultBaseCategory {
		t.Errorf("base = %q, want %q", base, DefaultBaseCategory)
	}
	if len(qs) != 1 || qs[0].Type != model.TypeMultiChoice {
		t.Errorf("unexpected questions %+v", qs)
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"{#3.14:0.01}", model.TypeNumerical},
		{"{#3.14:0.01", model.TypeShortAnswer},
		{"{%100%Paris}", model.TypeShortAnswer},
		{"{TRUE}", model.TypeTrueFalse},
		{"=cat -> кошка", model.TypeMatching},
		{"{=a ~b}", model.TypeMultiChoice},
		{"plain text", model.TypeMultiChoice},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := DetectType(tt.line); got != tt.want {
				t.Errorf("DetectType(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestLoadDispatch(t *testing.T) {
	tests := []struct {
		name string
		want model.Format
	}{
		{"stats.html", model.FormatHTML},
		{"stats.HTM", model.FormatHTML},
		{"bank.gift", model.FormatGIFT},
		{"bank.txt", model.FormatGIFT},
		{"stats.csv", model.FormatCSV},
		{"noext", model.FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := LoadDataset("bank.gift", []byte(sampleGIFT)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("LoadDataset(gift) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := LoadBank("stats.csv", []byte(sampleCSV)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("LoadBank(csv) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := LoadBank("empty.gift", []byte("// nothing\n")); !errors.Is(err, ErrEmptyBank) {
		t.Errorf("LoadBank(empty) error = %v, want ErrEmptyBank", err)
	}

	ds, err := LoadDataset("dir/stats.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Filename != "stats.csv" || ds.Format != model.FormatCSV || len(ds.SHA256) != 64 {
		t.Errorf("unexpected dataset header %+v", ds)
	}

	bank, err := LoadBank("bank.gift", []byte(sampleGIFT))
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if bank.BaseCategory != "Механика" || len(bank.Questions) != 3 {
		t.Errorf("unexpected bank %q with %d questions", bank.BaseCategory, len(bank.Questions))
	}
}

func TestDeduplicate(t *testing.T) {
	qs := []model.Question{
		{ID: "1.1", Title: "A", Difficulty: 50},
		{ID: "1", IsMain: true},
		{ID: "2.1", Title: " a ", Difficulty: 50.001},
		{ID: "3.1", Title: "B", Difficulty: 50},
		{ID: "4.1", Title: "A", Difficulty: 50},
	}
	got := Deduplicate(qs)
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(got))
	}
	if !got[0].IsMain {
		t.Errorf("main question should come first")
	}
	if got[1].ID != "1.1" || got[1].DisplayID != "1.1 (2.1, 4.1)" {
		t.Errorf("unexpected representative %+v", got[1])
	}
	if got[2].ID != "3.1" || got[2].DisplayID != "3.1" || got[2].Label() != "3.1" {
		t.Errorf("unexpected unique question %+v", got[2])
	}
}
