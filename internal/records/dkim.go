package records

import "strings"

// DKIM is a parsed DKIM key record published at
// <selector>._domainkey.<domain>. Only the tag syntax is checked; the public
// key itself is never decoded.
type DKIM struct {
	// KeyType is the k= value, "rsa" when absent.
	KeyType string
	Testing bool

	// Revoked is true for an empty p= tag.
	Revoked bool
}

// ParseDKIM parses a DKIM TXT value. RFC 6376 makes v= optional, but when it
// is present it must be first and equal to DKIM1.
func ParseDKIM(s string) Parsed[DKIM] {
	r := DKIM{KeyType: "rsa"}

	tags, byName, err := tagList(normalizeTXT(s))
	if err != nil {
		return Malformed(r, "%v", err)
	}
	if len(tags) == 0 {
		return Malformed(r, "empty record")
	}

	if v, ok := byName["v"]; ok {
		if tags[0].Name != "v" {
			return Malformed(r, "v= must be the first tag")
		}
		if v != "DKIM1" {
			return Malformed(r, "unsupported version %q", v)
		}
	}

	p, ok := byName["p"]
	if !ok {
		return Malformed(r, "missing required p= tag")
	}
	r.Revoked = strings.TrimSpace(p) == ""

	if k, ok := byName["k"]; ok {
		r.KeyType = strings.ToLower(k)
	}
	for _, f := range strings.Split(byName["t"], ":") {
		if strings.EqualFold(strings.TrimSpace(f), "y") {
			r.Testing = true
		}
	}
	return Ok(r)
}
