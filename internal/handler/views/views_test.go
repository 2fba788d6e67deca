package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/store"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer("en"))
	ctx = model.ContextWithBasePath(ctx, "/lappka")
	return model.ContextWithCSRFToken(ctx, "tok")
}

func TestLoginPage(t *testing.T) {
	var buf bytes.Buffer
	if err := LoginPage("Bad <login>").Render(testContext(t), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`action="/lappka/login"`,
		`name="csrf_token" value="tok"`,
		"Bad &lt;login&gt;",
		"<main>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("login page lacks %q", want)
		}
	}
}

func TestIndexPage(t *testing.T) {
	ctx := testContext(t)

	var empty bytes.Buffer
	if err := IndexPage(nil, 0, "").Render(ctx, &empty); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(empty.String(), "<table>") {
		t.Error("empty index should not render a table")
	}

	datasets := []store.DatasetSummary{
		{ID: "a1", Filename: "quiz.csv", Format: model.FormatCSV, QuestionCount: 2, UploadedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{ID: "b2", Filename: "exam.html", Format: model.FormatHTML, QuestionCount: 7, UploadedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	if err := IndexPage(datasets, len(datasets), "").Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"2 datasets stored.",
		`href="/lappka/datasets/a1"`,
		`action="/lappka/datasets/b2/delete"`,
		"2024-05-01 10:30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("index page lacks %q", want)
		}
	}
}

func TestPasswordPage(t *testing.T) {
	var buf bytes.Buffer
	if err := PasswordPage("", true).Render(testContext(t), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Password changed.") || !strings.Contains(out, `action="/lappka/password"`) {
		t.Errorf("unexpected password page:\n%s", out)
	}
}
