package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver has no database.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const defaultCacheSize = 4096

// countryReader is the part of *geoip2.Reader the resolver needs.
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Resolver maps client IPs to ISO country codes, used to pick a notice
// language when the request carries no locale hints. Lookups are cached.
type Resolver struct {
	reader countryReader

	mu       sync.Mutex
	cache    map[string]string
	maxCache int
}

// Open loads the MaxMind database at path. An empty path yields a nil
// resolver, which reports ErrUnavailable.
func Open(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return newResolver(reader, defaultCacheSize), nil
}

func newResolver(reader countryReader, maxCache int) *Resolver {
	return &Resolver{reader: reader, cache: make(map[string]string), maxCache: maxCache}
}

// CountryCode returns the upper-case ISO code for ip, or "" when the
// database has no country for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	key := parsed.String()

	r.mu.Lock()
	code, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return code, nil
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}

	r.mu.Lock()
	if len(r.cache) >= r.maxCache {
		r.cache = make(map[string]string)
	}
	r.cache[key] = code
	r.mu.Unlock()
	return code, nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
