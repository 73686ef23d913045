package validator

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	"mailtrust/internal/records"
)

var ErrInvalidDomain = errors.New("invalid domain")

// NormalizeDomain accepts what users paste into a form ("https://www.Example.com/path")
// and returns the lower-case ASCII domain to scan.
func NormalizeDomain(input string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(input))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")

	if d == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}

	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		return "", fmt.Errorf("%w '%s': %v", ErrInvalidDomain, input, err)
	}
	if !records.IsHostname(ascii) || !validTLD(ascii) {
		return "", fmt.Errorf("%w '%s'", ErrInvalidDomain, input)
	}
	return ascii, nil
}

// validTLD requires an alphabetic top-level label of two or more characters,
// or a punycode one.
func validTLD(domain string) bool {
	tld := domain[strings.LastIndex(domain, ".")+1:]
	if strings.HasPrefix(tld, "xn--") {
		return len(tld) > 4
	}
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
