package middleware

import (
	"net/http"
	"strings"
)

// ValidateQuery rejects query parameters carrying path traversal or control
// characters before they reach address parsing.
func ValidateQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, values := range r.URL.Query() {
			for _, value := range values {
				if strings.Contains(value, "../") || strings.Contains(value, "..\\") || strings.ContainsAny(value, "\x00\r\n") {
					WriteError(w, http.StatusBadRequest, "invalid_query", "invalid input in query parameters")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
