package middleware

import (
	"context"
	"net/http"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"novelstudio/internal/infra"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	maxRequestIDLen = 128
)

// RequestID tags every request with an id (reusing a well-formed incoming
// X-Request-ID) and stores a request-scoped logger carrying it.
func RequestID(logger *infra.Logger) func(http.Handler) http.Handler {
	base := infra.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			reqLogger := base.With().Str("request_id", rid).Logger()
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			ctx = reqLogger.WithContext(ctx)
			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext returns the request-scoped logger, or a disabled one.
func LoggerFromContext(ctx context.Context) *infra.Logger {
	return zerolog.Ctx(ctx)
}

func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLen {
		return false
	}
	for _, r := range rid {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == ' ' {
			return false
		}
	}
	return true
}
