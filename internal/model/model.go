package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleTeacher can upload exports and view every analysis tab.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Moodle question type labels as they appear in Russian-locale exports.
const (
	TypeNumerical     = "Числовой ответ"
	TypeShortAnswer   = "Короткий ответ"
	TypeMultiChoice   = "Множественный выбор"
	TypeTrueFalse     = "Верно/Неверно"
	TypeMatching      = "На соответствие"
	TypeMissingWords  = "Выбор пропущенных слов"
	TypeRandomDefault = "Случайный"
)

// IsRandomType reports whether t is the "random question" pseudo type, which
// describes how a question was drawn from a category rather than what it is.
func IsRandomType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "случайный", "случайный вопрос", "random":
		return true
	}
	return false
}

// IsOpenType reports whether the question type requires a free-form answer.
func IsOpenType(t string) bool {
	return t == TypeNumerical || t == TypeShortAnswer
}

// Format identifies the kind of uploaded file.
type Format string

const (
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
	FormatGIFT Format = "gift"
)

// Answer is one row of a question's response-frequency table.
type Answer struct {
	Part          string            `json:"part,omitempty" yaml:"part,omitempty"`
	ModelAnswer   string            `json:"model_answer,omitempty" yaml:"model_answer,omitempty"`
	ActualAnswer  string            `json:"actual_answer,omitempty" yaml:"actual_answer,omitempty"`
	PartialCredit string            `json:"partial_credit,omitempty" yaml:"partial_credit,omitempty"`
	Count         string            `json:"count,omitempty" yaml:"count,omitempty"`
	Frequency     string            `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Extra         map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Question is a row of the Moodle quiz statistics table.
//
// Metric fields hold the parsed values; the facility index (Difficulty) and the
// discrimination indices are percentages as Moodle prints them.
type Question struct {
	ID              string   `json:"id" yaml:"id"`
	Type            string   `json:"type" yaml:"type"`
	Title           string   `json:"title" yaml:"title"`
	Attempts        int      `json:"attempts" yaml:"attempts"`
	Difficulty      float64  `json:"difficulty" yaml:"difficulty"`
	Discrimination  float64  `json:"discrimination" yaml:"discrimination"`
	Efficiency      float64  `json:"efficiency" yaml:"efficiency"`
	Weight          float64  `json:"weight" yaml:"weight"`
	EffectiveWeight float64  `json:"effective_weight" yaml:"effective_weight"`
	StdDev          float64  `json:"std_dev" yaml:"std_dev"`
	GuessProb       float64  `json:"guess_prob" yaml:"guess_prob"`
	IsMain          bool     `json:"is_main,omitempty" yaml:"is_main,omitempty"`
	DuplicateIDs    []string `json:"duplicate_ids,omitempty" yaml:"duplicate_ids,omitempty"`
	DisplayID       string   `json:"display_id,omitempty" yaml:"display_id,omitempty"`
	Answers         []Answer `json:"answers,omitempty" yaml:"answers,omitempty"`
}

// Label returns the identifier to show for a question: the display ID that
// lists duplicates when present, the plain ID otherwise.
func (q Question) Label() string {
	if q.DisplayID != "" {
		return q.DisplayID
	}
	return q.ID
}

// Subquestions drops the category header rows (IDs without a dot).
func Subquestions(qs []Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if !q.IsMain {
			out = append(out, q)
		}
	}
	return out
}

// InfoItem is a key/value row of the "test information" table.
type InfoItem struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Dataset is a parsed statistics export.
type Dataset struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Format     Format     `json:"format"`
	SHA256     string     `json:"sha256"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Questions  []Question `json:"questions"`
	TestInfo   []InfoItem `json:"test_info,omitempty"`
}

// BankQuestion is a question read from a GIFT question bank.
type BankQuestion struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	NameFromComment string `json:"name_from_comment,omitempty"`
	Category        string `json:"category,omitempty"`
	Text            string `json:"text"`
	Type            string `json:"type"`
	RawText         string `json:"raw_text"`
}

// Bank is a parsed GIFT file.
type Bank struct {
	ID           string         `json:"id"`
	DatasetID    string         `json:"dataset_id"`
	Filename     string         `json:"filename"`
	SHA256       string         `json:"sha256"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	BaseCategory string         `json:"base_category"`
	Questions    []BankQuestion `json:"questions"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/lappka")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	MaxUploadMB   int
	AdviceVariant string
	Lang          string
}
