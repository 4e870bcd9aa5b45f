package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"novelstudio/internal/notice"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLocale(t *testing.T) {
	normalize := notice.NewCatalog().Normalize
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "zh-CN")
				r.Header.Set("Accept-Language", "en-US")
			},
			country: "US",
			want:    "zh",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			country: "CN",
			want:    "en",
		},
		{
			name: "accept-language weighted preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "fr;q=0.4,zh-TW;q=0.9")
			},
			want: "zh",
		},
		{
			name:    "chinese-speaking country",
			country: "TW",
			want:    "zh",
		},
		{
			name:     "other country falls back to en",
			country:  "US",
			fallback: "zh",
			want:     "en",
		},
		{
			name:     "configured fallback",
			fallback: "zh",
			want:     "zh",
		},
		{
			name: "default to en",
			want: "en",
		},
		{
			name: "unsupported language falls back to en",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "de-DE")
			},
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback, tc.country, normalize)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "cn")
			},
			want: "US",
		},
		{
			name: "locale region fallback",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "zh-HK")
			},
			want: "HK",
		},
		{
			name: "script subtag skipped",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh-Hans-SG,zh;q=0.9")
			},
			want: "SG",
		},
		{
			name: "language without region",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh;q=0.8")
			},
			want: "",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "cn", nil
			},
			want: "CN",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NStoresLocaleAndCountry(t *testing.T) {
	var gotLocale, gotCountry string
	handler := I18N("en", notice.NewCatalog().Normalize, func(string) (string, error) { return "cn", nil })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLocale = LocaleFromContext(r.Context())
			gotCountry = CountryFromContext(r.Context())
		}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if gotLocale != "zh" || gotCountry != "CN" {
		t.Fatalf("locale=%q country=%q", gotLocale, gotCountry)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, "en")
	}
	ctx = context.WithValue(ctx, LocaleKey, "zh")
	if got := LocaleFromContext(ctx); got != "zh" {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, "zh")
	}
}
