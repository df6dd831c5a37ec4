package i18n

import (
	"net/http"
	"strings"
)

// Middleware resolves the request locale and stores it in the context.
// A supported ?lang= query parameter wins over Accept-Language, which lets
// export links pin a language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := strings.ToLower(r.URL.Query().Get("lang"))
		if !Supported(locale) {
			locale = ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		}

		w.Header().Set("Content-Language", locale)
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
