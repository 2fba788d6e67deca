package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveLang(t *testing.T, target string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var got string
	h := Middleware("ru")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Logout") + "|" + Lang(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestMiddlewareLanguage(t *testing.T) {
	initLang(t, "ru")

	tests := []struct {
		name   string
		target string
		cookie *http.Cookie
		want   string
	}{
		{"default", "/", nil, "Выйти|ru"},
		{"query", "/?lang=en", nil, "Sign out|en"},
		{"regional query", "/?lang=en-GB", nil, "Sign out|en"},
		{"cookie", "/", &http.Cookie{Name: LangCookie, Value: "en"}, "Sign out|en"},
		{"unsupported query", "/?lang=de", nil, "Выйти|ru"},
		{"unsupported cookie", "/", &http.Cookie{Name: LangCookie, Value: "fr"}, "Выйти|ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			_, got := serveLang(t, tt.target, cookies...)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddlewareRemembersChoice(t *testing.T) {
	initLang(t, "ru")

	rec, _ := serveLang(t, "/?lang=en")
	var saved *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == LangCookie {
			saved = c
		}
	}
	if saved == nil || saved.Value != "en" {
		t.Fatalf("expected lang cookie, got %v", rec.Result().Cookies())
	}

	rec, _ = serveLang(t, "/")
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set without a query parameter")
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "en")

	if got := Supported("ru-RU"); got != "ru" {
		t.Errorf("Supported(ru-RU) = %q", got)
	}
	if got := Supported("not a tag!"); got != "" {
		t.Errorf("Supported(invalid) = %q", got)
	}
	if len(Languages()) != 2 {
		t.Errorf("Languages = %v", Languages())
	}
}
