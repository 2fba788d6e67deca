package i18n

import (
	"context"
	"encoding/json"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "LAppka" {
		t.Errorf("T(AppTitle) = %q, want 'LAppka'", got)
	}
	if got := T(ctx, "BalanceSkewedEasy"); got != "Skewed towards easy questions" {
		t.Errorf("T(BalanceSkewedEasy) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "Logout"); got != "Выйти" {
		t.Errorf("T(Logout) = %q, want 'Выйти'", got)
	}
	if got := T(ctx, "KBTB"); got != "КБТБ" {
		t.Errorf("T(KBTB) = %q, want 'КБТБ'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "LowDiscriminationQuestions", 1); got != "1 question with low discrimination" {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "LowDiscriminationQuestions", 5); got != "5 questions with low discrimination" {
		t.Errorf("Tp(5) = %q", got)
	}

	ctx = initLang(t, "ru")
	tests := []struct {
		n    int
		want string
	}{
		{1, "1 вопрос с низкой дискриминацией"},
		{3, "3 вопроса с низкой дискриминацией"},
		{5, "5 вопросов с низкой дискриминацией"},
		{21, "21 вопрос с низкой дискриминацией"},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "LowDiscriminationQuestions", tt.n); got != tt.want {
			t.Errorf("Tp(ru, %d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "RecLowAttempts", map[string]any{"IDs": "1.1, 2.3"})
	if got != "Too few attempts for reliable statistics: 1.1, 2.3." {
		t.Errorf("Td(RecLowAttempts) = %q", got)
	}

	tr := Translator(ctx)
	if got := tr("ShownQuestions", map[string]any{"Shown": 2, "Total": 7}); got != "Showing 2 of 7 questions." {
		t.Errorf("Translator = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestFallbackWithoutLocalizer(t *testing.T) {
	initLang(t, "ru")

	if got := T(context.Background(), "Logout"); got != "Выйти" {
		t.Errorf("context without localizer should use the configured language, got %q", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	keys := func(name string) map[string]bool {
		t.Helper()
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		out := make(map[string]bool, len(m))
		for k := range m {
			out[k] = true
		}
		return out
	}
	en, ru := keys("en.json"), keys("ru.json")
	for k := range en {
		if !ru[k] {
			t.Errorf("ru.json lacks %s", k)
		}
	}
	for k := range ru {
		if !en[k] {
			t.Errorf("en.json lacks %s", k)
		}
	}
}
