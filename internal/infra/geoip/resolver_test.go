package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	codes map[string]string
	calls int
	err   error
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.codes[ip.String()]
	return rec, nil
}

func (f *fakeReader) Close() error { return nil }

func TestResolverCountryCode(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"203.0.113.7": "cn"}}
	r := newResolver(reader, 2)

	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("203.0.113.7")
		if err != nil || code != "CN" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("calls = %d, want cached lookups", reader.calls)
	}

	code, err := r.CountryCode("198.51.100.1")
	if err != nil || code != "" {
		t.Fatalf("unknown ip: %q, %v", code, err)
	}
}

func TestResolverErrors(t *testing.T) {
	var nilResolver *Resolver
	if _, err := nilResolver.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	r := newResolver(&fakeReader{err: errors.New("corrupt")}, 4)
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatalf("expected invalid ip error")
	}
	if _, err := r.CountryCode("1.1.1.1"); err == nil {
		t.Fatalf("expected lookup error")
	}
	if res, err := Open(" "); res != nil || err != nil {
		t.Fatalf("Open(blank) = %v, %v", res, err)
	}
}
