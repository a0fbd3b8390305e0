package i18n

import "net/http"

// Middleware injects a localizer into every request context. The request's
// Accept-Language header is matched against the shipped locales; requests
// with no supported preference get the default language passed to Init.
// The chosen language is reported in Content-Language.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := Match(r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Language", tag.String())
			ctx := WithLocalizer(r.Context(), NewLocalizer(tag.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
