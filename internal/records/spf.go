package records

import (
	"net/netip"
	"strconv"
	"strings"
)

// SPF is a parsed Sender Policy Framework record, e.g.
//
//	v=spf1 +mx a:colo.example.com/28 include:_spf.google.com ~all
type SPF struct {
	// Directives are kept in record order.
	Directives []Directive

	// Redirect is the "redirect=" modifier, "" when absent.
	Redirect string

	// Terms is every term after the version in record order, as written.
	Terms []string
}

// Directive is one qualifier+mechanism term.
type Directive struct {
	// Qualifier is "+", "-", "~" or "?". An omitted qualifier is "+".
	Qualifier string

	// Mechanism is one of all, include, a, mx, ptr, ip4, ip6, exists.
	Mechanism string

	// Arg is the text after ':' (domain-spec or address) including any CIDR
	// suffix, "" when absent.
	Arg string
}

func (d Directive) String() string {
	s := d.Mechanism
	if d.Qualifier != "+" {
		s = d.Qualifier + s
	}
	if d.Arg != "" {
		if strings.HasPrefix(d.Arg, "/") {
			return s + d.Arg
		}
		return s + ":" + d.Arg
	}
	return s
}

// AllQualifier returns the qualifier of the "all" directive, or "" when the
// record has none.
func (r SPF) AllQualifier() string {
	for _, d := range r.Directives {
		if d.Mechanism == "all" {
			return d.Qualifier
		}
	}
	return ""
}

var spfMechanisms = map[string]bool{
	"all": true, "include": true, "a": true, "mx": true,
	"ptr": true, "ip4": true, "ip6": true, "exists": true,
}

// IsSPF reports whether a TXT value announces itself as an SPF record.
func IsSPF(s string) bool {
	s = strings.ToLower(normalizeTXT(s))
	return s == "v=spf1" || strings.HasPrefix(s, "v=spf1 ")
}

// ParseSPF parses an SPF TXT value.
func ParseSPF(s string) Parsed[SPF] {
	var r SPF
	seenExp := false

	fields := strings.Fields(normalizeTXT(s))
	if len(fields) == 0 || !strings.EqualFold(fields[0], "v=spf1") {
		return Malformed(r, "record does not start with v=spf1")
	}

	for _, term := range fields[1:] {
		r.Terms = append(r.Terms, term)

		if name, value, ok := modifier(term); ok {
			switch name {
			case "redirect":
				if r.Redirect != "" {
					return Malformed(r, "duplicate redirect modifier")
				}
				if value == "" {
					return Malformed(r, "redirect modifier needs a domain")
				}
				r.Redirect = strings.ToLower(value)
			case "exp":
				if seenExp {
					return Malformed(r, "duplicate exp modifier")
				}
				if value == "" {
					return Malformed(r, "exp modifier needs a domain")
				}
				seenExp = true
			}
			// Unknown modifiers are ignored per RFC 7208 section 6.
			continue
		}

		d, err := parseDirective(term)
		if err != "" {
			return Malformed(r, "%s", err)
		}
		r.Directives = append(r.Directives, d)
	}

	return Ok(r)
}

// modifier recognises "name=value" terms. A '=' that appears after ':' or '/'
// belongs to a mechanism argument instead (e.g. exists:%{i}=x).
func modifier(term string) (string, string, bool) {
	eq := strings.IndexByte(term, '=')
	if eq <= 0 {
		return "", "", false
	}
	name := term[:eq]
	if strings.ContainsAny(name, ":/") {
		return "", "", false
	}
	if c := name[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return "", "", false
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.') {
			return "", "", false
		}
	}
	return strings.ToLower(name), term[eq+1:], true
}

func parseDirective(term string) (Directive, string) {
	d := Directive{Qualifier: "+"}

	switch term[0] {
	case '+', '-', '~', '?':
		d.Qualifier = term[:1]
		term = term[1:]
	default:
		if c := term[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return d, "invalid qualifier " + strconv.Quote(term[:1])
		}
	}

	end := strings.IndexAny(term, ":/")
	name, arg := term, ""
	if end >= 0 {
		name, arg = term[:end], term[end:]
	}
	d.Mechanism = strings.ToLower(name)
	if !spfMechanisms[d.Mechanism] {
		return d, "unknown mechanism " + strconv.Quote(name)
	}

	hasDomain := strings.HasPrefix(arg, ":")
	if hasDomain {
		arg = arg[1:]
	}
	d.Arg = arg

	switch d.Mechanism {
	case "all":
		if arg != "" {
			return d, "all takes no argument"
		}
	case "include", "exists":
		if !hasDomain || arg == "" {
			return d, d.Mechanism + " needs a domain"
		}
	case "ptr":
		if !hasDomain && arg != "" {
			return d, "ptr takes no CIDR length"
		}
	case "a", "mx":
		spec, cidr, _ := strings.Cut(arg, "/")
		if hasDomain && spec == "" {
			return d, d.Mechanism + " has an empty domain"
		}
		if strings.Contains(arg, "/") && !validDualCIDR("/"+cidr) {
			return d, "invalid CIDR length in " + strconv.Quote(term)
		}
	case "ip4", "ip6":
		if !hasDomain || arg == "" {
			return d, d.Mechanism + " needs an address"
		}
		if msg := validIPArg(d.Mechanism, arg); msg != "" {
			return d, msg
		}
	}
	return d, ""
}

// validDualCIDR accepts "/n", "//m" and "/n//m" suffixes of a and mx.
func validDualCIDR(s string) bool {
	v4, v6, dual := strings.Cut(s, "//")
	if v4 != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(v4, "/"))
		if err != nil || !strings.HasPrefix(v4, "/") || n < 0 || n > 32 {
			return false
		}
	}
	if dual {
		n, err := strconv.Atoi(v6)
		if err != nil || n < 0 || n > 128 {
			return false
		}
	}
	return true
}

func validIPArg(mech, arg string) string {
	addr, bits, hasBits := strings.Cut(arg, "/")
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return "invalid address " + strconv.Quote(addr)
	}
	max := 32
	if mech == "ip4" && !ip.Is4() {
		return "ip4 given a non-IPv4 address"
	}
	if mech == "ip6" {
		if !ip.Is6() || ip.Is4In6() {
			return "ip6 given a non-IPv6 address"
		}
		max = 128
	}
	if hasBits {
		n, err := strconv.Atoi(bits)
		if err != nil || n < 0 || n > max {
			return "invalid CIDR length /" + bits
		}
	}
	return ""
}
