package records

import (
	"strings"

	"github.com/emersion/go-msgauth/dmarc"

	"mailtrust/internal/models"
)

// DMARC is a parsed DMARC policy record.
type DMARC struct {
	// Policy is models.PolicyUnknown when p= is missing or not one of the
	// three RFC 7489 values.
	Policy models.Policy

	// SubdomainPolicy is the raw sp= value, "" when absent.
	SubdomainPolicy string

	// Percent is the pct= value, 100 when absent.
	Percent int

	// AggregateReports lists the rua= URIs.
	AggregateReports []string
}

// IsDMARC reports whether a TXT value announces itself as a DMARC record: its
// first tag is v= and the value opens with DMARC1. The rest of the record may
// be broken; ParseDMARC decides that.
func IsDMARC(s string) bool {
	first, _, _ := strings.Cut(normalizeTXT(s), ";")
	name, value, ok := strings.Cut(first, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "v") {
		return false
	}
	fields := strings.Fields(value)
	return len(fields) > 0 && strings.EqualFold(fields[0], "DMARC1")
}

// ParseDMARC parses a DMARC TXT value. The tag list is read leniently first so
// the policy survives for reporting, then the record is validated strictly.
func ParseDMARC(s string) Parsed[DMARC] {
	r := DMARC{Policy: models.PolicyUnknown, Percent: 100}
	s = normalizeTXT(s)

	tags, byName, err := tagList(s)
	if p, ok := byName["p"]; ok {
		r.Policy = policyOf(p)
	}
	r.SubdomainPolicy = strings.ToLower(byName["sp"])
	if rua := byName["rua"]; rua != "" {
		for _, u := range strings.Split(rua, ",") {
			r.AggregateReports = append(r.AggregateReports, strings.TrimSpace(u))
		}
	}
	if err != nil {
		return Malformed(r, "%v", err)
	}

	if len(tags) == 0 || tags[0].Name != "v" {
		return Malformed(r, "v= must be the first tag")
	}
	if !strings.EqualFold(tags[0].Value, "DMARC1") {
		return Malformed(r, "version tag %q must be followed by ';'", "v="+tags[0].Value)
	}
	if _, ok := byName["p"]; !ok {
		return Malformed(r, "missing required p= tag")
	}
	if r.Policy == models.PolicyUnknown {
		return Malformed(r, "unsupported policy %q", byName["p"])
	}

	rec, err := dmarc.Parse(canonicalDMARC(tags))
	if err != nil {
		return Malformed(r, "%v", err)
	}
	if rec.Percent != nil {
		r.Percent = *rec.Percent
	}
	return Ok(r)
}

// canonicalDMARC rebuilds the record with the case-insensitive values
// lower-cased, since the strict validator compares them literally.
func canonicalDMARC(tags []Tag) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		v := t.Value
		switch t.Name {
		case "v":
			if strings.EqualFold(v, "DMARC1") {
				v = "DMARC1"
			}
		case "p", "sp", "adkim", "aspf", "fo", "rf":
			v = strings.ToLower(v)
		}
		parts = append(parts, t.Name+"="+v)
	}
	return strings.Join(parts, "; ")
}

func policyOf(v string) models.Policy {
	switch models.Policy(strings.ToLower(strings.TrimSpace(v))) {
	case models.PolicyNone:
		return models.PolicyNone
	case models.PolicyQuarantine:
		return models.PolicyQuarantine
	case models.PolicyReject:
		return models.PolicyReject
	}
	return models.PolicyUnknown
}
