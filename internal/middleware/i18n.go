package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// LocaleNormalizer maps a locale or Accept-Language value onto a supported
// language code.
type LocaleNormalizer func(locale string) string

// chineseCountries receive Chinese notices when the request has no
// explicit language preference.
var chineseCountries = map[string]struct{}{
	"CN": {}, "TW": {}, "HK": {}, "MO": {}, "SG": {},
}

// I18N stores the notice locale and the client country in the request
// context. Precedence: X-Locale, Accept-Language, country, defaultLocale.
func I18N(defaultLocale string, normalize LocaleNormalizer, lookup CountryLookup) func(http.Handler) http.Handler {
	if normalize == nil {
		normalize = func(string) string { return "en" }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country, normalize)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback, country string, normalize LocaleNormalizer) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return normalize(v)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		return normalize(v)
	}
	if country != "" {
		if _, ok := chineseCountries[country]; ok {
			return normalize("zh")
		}
		return normalize("en")
	}
	return normalize(fallback)
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort upper-case ISO country code from
// proxy headers, the locale region, then the IP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion extracts the region subtag of the first language range,
// e.g. "zh-TW" gives "TW". Script subtags such as "Hans" are skipped.
func localeRegion(accept string) string {
	first, _, _ := strings.Cut(accept, ",")
	token, _, _ := strings.Cut(first, ";")
	parts := strings.FieldsFunc(strings.TrimSpace(token), func(r rune) bool { return r == '-' || r == '_' })
	for _, part := range parts[min(1, len(parts)):] {
		if len(part) == 2 {
			return strings.ToUpper(part)
		}
	}
	return ""
}
