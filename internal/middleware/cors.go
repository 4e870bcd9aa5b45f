package middleware

import (
	"net/http"
	"strings"
)

// CORS allows the listed origins ("*" allows any) to call the gateway.
// Preflight requests are answered directly.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			anyOrigin = true
			continue
		}
		if origin != "" {
			allow[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allow[origin]
				if ok || anyOrigin {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Set("Access-Control-Allow-Headers", "Content-Type, X-Locale, X-Request-ID")
					h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
					h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
