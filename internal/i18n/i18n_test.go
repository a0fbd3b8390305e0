package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
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

	got := T(ctx, "ErrNotFound")
	if got != "Not found." {
		t.Errorf("T(ErrNotFound) = %q, want 'Not found.'", got)
	}

	got = T(ctx, "KeysSaved")
	if got != "API keys saved." {
		t.Errorf("T(KeysSaved) = %q, want 'API keys saved.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "ErrNotFound")
	if got != "Не найдено." {
		t.Errorf("T(ErrNotFound) = %q, want 'Не найдено.'", got)
	}

	got = T(ctx, "KeysSaved")
	if got != "Ключи API сохранены." {
		t.Errorf("T(KeysSaved) = %q, want 'Ключи API сохранены.'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "EvaluationsFound", 1)
	if got1 != "1 evaluation found." {
		t.Errorf("Tp(EvaluationsFound, 1) = %q, want '1 evaluation found.'", got1)
	}

	got5 := Tp(ctx, "EvaluationsFound", 5)
	if got5 != "5 evaluations found." {
		t.Errorf("Tp(EvaluationsFound, 5) = %q, want '5 evaluations found.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ErrFileTooLarge", map[string]any{"Limit": 1024})
	if got != "File is larger than the 1024 byte upload limit." {
		t.Errorf("Td(ErrFileTooLarge, Limit=1024) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitRejectsUnknownLanguage(t *testing.T) {
	if err := Init("de"); err == nil {
		t.Error("Init(de) should fail: no locale file ships for it")
	}
	if err := Init("not a tag"); err == nil {
		t.Error("Init with a malformed tag should fail")
	}
}

func TestMatch(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "ru"},
		{"en-US,en;q=0.9", "en"},
		{"fr-FR,fr;q=0.9", "ru"},
		{"de;q=0.8,en;q=0.5", "en"},
		{"garbage;;q=", "ru"},
	}
	for _, tt := range tests {
		if got := Match(tt.header).String(); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestFallbackUsesDefaultLanguage(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := T(context.Background(), "ErrNotFound"); got != "Не найдено." {
		t.Errorf("T without localizer = %q, want the Russian default", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "Не найдено." {
		t.Errorf("with Accept-Language ru: got %q", got)
	}
	if cl := rec.Header().Get("Content-Language"); cl != "ru" {
		t.Errorf("Content-Language = %q, want ru", cl)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "Not found." {
		t.Errorf("without Accept-Language: got %q", got)
	}
	if cl := rec.Header().Get("Content-Language"); cl != "en" {
		t.Errorf("Content-Language = %q, want en", cl)
	}
}
