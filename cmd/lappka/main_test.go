package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/report"
	"github.com/lappka/lappka/internal/store"
)

const sampleCSV = `Статистика теста,,,,,
№,Тип вопроса,Название вопроса,Попытки,Индекс легкости,"Индекс  дискриминации"
1,Случайный,Категория,,,
1.1,Числовой ответ,Скорость света,30,"84,21%","45,10%"
1.2,Короткий ответ,Столица Франции,20,"40,00%","10,00%"
`

const sampleGIFT = `$CATEGORY: $course$/top/Физика/Механика

// question: 101  name: Скорость
::Скорость::Скорость света{#300000}

// question: 102  name: Столица
::Столица::Столица Франции{=Париж ~Лондон}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, args ...string) {
	t.Helper()
	cmd := rootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("lappka %s: %v", strings.Join(args, " "), err)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "quiz.csv", sampleCSV)
	out := filepath.Join(dir, "report.json")

	run(t, "analyze", in, "-o", out)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Source struct {
			Filename string `json:"filename"`
			Format   string `json:"format"`
		} `json:"source"`
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Source.Filename != "quiz.csv" || rep.Source.Format != string(model.FormatCSV) {
		t.Errorf("source = %+v", rep.Source)
	}
	if len(rep.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(rep.Questions))
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("report should end with a newline")
	}
}

func TestAnalyzeYAML(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "quiz.csv", sampleCSV)
	out := filepath.Join(dir, "report.yaml")

	run(t, "analyze", in, "--format", "yaml", "-o", out)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep map[string]any
	if err := yaml.Unmarshal(data, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if _, ok := rep["irt_summary"]; !ok {
		t.Errorf("missing irt_summary in %v", rep)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bank.gift", sampleGIFT)

	cmd := rootCmd()
	cmd.SetArgs([]string{"analyze", bad, "-o", filepath.Join(dir, "out.json")})
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unsupported file")
	}

	if _, err := encodeReport(report.Report{}, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCategorizeCommand(t *testing.T) {
	dir := t.TempDir()
	stats := writeFile(t, dir, "quiz.csv", sampleCSV)
	gift := writeFile(t, dir, "bank.gift", sampleGIFT)
	out := filepath.Join(dir, "bank_categorized.gift")

	run(t, "categorize", "--stats", stats, "--gift", gift, "-o", out)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "// question: 0  name: Switch category to $course$/top/Механика") {
		t.Errorf("unexpected header:\n%s", text)
	}
	for _, want := range []string{"::Скорость::", "::Столица::"} {
		if !strings.Contains(text, want) {
			t.Errorf("output lacks %q:\n%s", want, text)
		}
	}
}

func TestSeedAdmin(t *testing.T) {
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer db.Close()

	if err := seedAdmin(db, ""); err == nil || !strings.Contains(err.Error(), "LAPPKA_ADMIN_PASSWORD") {
		t.Errorf("expected missing password error, got %v", err)
	}

	if err := seedAdmin(db, "secret"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	u, err := db.GetUserByUsername("admin")
	if err != nil || u == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != model.UserRoleAdmin || !u.Active {
		t.Errorf("admin = %+v", u)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")); err != nil {
		t.Errorf("password hash mismatch: %v", err)
	}

	// A populated database is left alone, even without a password.
	if err := seedAdmin(db, ""); err != nil {
		t.Errorf("second seedAdmin: %v", err)
	}
	if n, _ := db.UserCount(); n != 1 {
		t.Errorf("UserCount = %d", n)
	}
}

func TestLoadModules(t *testing.T) {
	tbl, err := loadModules("")
	if err != nil {
		t.Fatalf("loadModules: %v", err)
	}
	if len(tbl.Enabled()) == 0 {
		t.Error("default table should enable modules")
	}
	if _, err := loadModules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing table")
	}
}
