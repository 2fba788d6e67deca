package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

// LangCookie remembers a language picked with the ?lang= query parameter.
const LangCookie = "lang"

type langKey struct{}

// Middleware injects a localizer into every request context. The language is
// taken from ?lang= or the LangCookie when the bundle supports it, otherwise
// from lang.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc, current := fallback, lang
			if l := requestLang(w, r); l != "" {
				loc, current = NewLocalizer(l, lang), l
			}
			ctx := WithLocalizer(r.Context(), loc)
			ctx = context.WithValue(ctx, langKey{}, current)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLang(w http.ResponseWriter, r *http.Request) string {
	if q := r.URL.Query().Get("lang"); q != "" {
		if l := Supported(q); l != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     LangCookie,
				Value:    l,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			return l
		}
	}
	if c, err := r.Cookie(LangCookie); err == nil {
		return Supported(c.Value)
	}
	return ""
}

// Supported returns the bundle language matching lang by its base language,
// or "" if there is none.
func Supported(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil || bundle == nil {
		return ""
	}
	base, _ := tag.Base()
	for _, t := range bundle.LanguageTags() {
		if b, _ := t.Base(); b == base {
			return t.String()
		}
	}
	return ""
}

// Lang returns the language of the request, or the configured default.
func Lang(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok {
		return l
	}
	return defaultLang
}

// Languages lists the bundle languages.
func Languages() []string {
	if bundle == nil {
		return nil
	}
	var out []string
	for _, t := range bundle.LanguageTags() {
		out = append(out, t.String())
	}
	return out
}
