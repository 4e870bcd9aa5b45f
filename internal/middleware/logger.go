package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"novelstudio/internal/infra"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Logger writes one access log line per request. Server errors log at error
// level and client errors at warn.
func Logger(fallback *infra.Logger) func(http.Handler) http.Handler {
	fallback = infra.OrDiscard(fallback)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			l := LoggerFromContext(r.Context())
			if l.GetLevel() == zerolog.Disabled {
				l = fallback
			}
			var event *zerolog.Event
			switch {
			case rw.status >= 500:
				event = l.Error()
			case rw.status >= 400:
				event = l.Warn()
			default:
				event = l.Info()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Int("bytes", rw.bytes).
				Dur("duration", time.Since(start)).
				Str("locale", LocaleFromContext(r.Context())).
				Msg("http: request")
		})
	}
}
