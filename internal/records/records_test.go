package records

import (
	"errors"
	"reflect"
	"testing"

	"mailtrust/internal/models"
)

func TestParseSPF(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantTerms []string
	}{
		{
			name:      "Google include with softfail",
			input:     "v=spf1 include:_spf.google.com ~all",
			wantValid: true,
			wantTerms: []string{"include:_spf.google.com", "~all"},
		},
		{
			name:      "Every mechanism kind",
			input:     "v=spf1 +a mx/24 a:mail.example.com/28//64 ip4:192.0.2.0/24 ip6:2001:db8::/32 ptr exists:%{i}.spf.example.com -all",
			wantValid: true,
			wantTerms: []string{"+a", "mx/24", "a:mail.example.com/28//64", "ip4:192.0.2.0/24", "ip6:2001:db8::/32", "ptr", "exists:%{i}.spf.example.com", "-all"},
		},
		{
			name:      "Redirect only",
			input:     "v=spf1 redirect=_spf.example.net",
			wantValid: true,
			wantTerms: []string{"redirect=_spf.example.net"},
		},
		{
			name:      "Quoted with extra whitespace",
			input:     "\"v=spf1   mx   ?all\"",
			wantValid: true,
			wantTerms: []string{"mx", "?all"},
		},
		{
			name:      "Bare version",
			input:     "v=spf1",
			wantValid: true,
		},
		{
			name:      "Unknown qualifier",
			input:     "v=spf1 !all",
			wantValid: false,
			wantTerms: []string{"!all"},
		},
		{
			name:      "Unknown mechanism",
			input:     "v=spf1 include:_spf.google.com foo:bar ~all",
			wantValid: false,
			wantTerms: []string{"include:_spf.google.com", "foo:bar"},
		},
		{
			name:      "ip4 with IPv6 address",
			input:     "v=spf1 ip4:2001:db8::1 -all",
			wantValid: false,
			wantTerms: []string{"ip4:2001:db8::1"},
		},
		{
			name:      "ip4 CIDR out of range",
			input:     "v=spf1 ip4:192.0.2.0/33 -all",
			wantValid: false,
			wantTerms: []string{"ip4:192.0.2.0/33"},
		},
		{
			name:      "include without domain",
			input:     "v=spf1 include: -all",
			wantValid: false,
			wantTerms: []string{"include:"},
		},
		{
			name:      "Duplicate redirect",
			input:     "v=spf1 redirect=a.example redirect=b.example",
			wantValid: false,
			wantTerms: []string{"redirect=a.example", "redirect=b.example"},
		},
		{
			name:      "Wrong version",
			input:     "v=spf2 -all",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSPF(tt.input)
			if got.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (reason %q)", got.Valid(), tt.wantValid, got.Reason())
			}
			if !tt.wantValid && !errors.Is(got.Err, ErrMalformed) {
				t.Errorf("error %v does not wrap ErrMalformed", got.Err)
			}
			if !reflect.DeepEqual(got.Record.Terms, tt.wantTerms) {
				t.Errorf("Terms = %q, want %q", got.Record.Terms, tt.wantTerms)
			}
		})
	}
}

func TestSPFDirectives(t *testing.T) {
	got := ParseSPF("v=spf1 mx include:_spf.example.com -all")
	if !got.Valid() {
		t.Fatalf("unexpected malformed record: %s", got.Reason())
	}
	if n := len(got.Record.Directives); n != 3 {
		t.Fatalf("expected 3 directives, got %d", n)
	}
	if q := got.Record.AllQualifier(); q != "-" {
		t.Errorf("AllQualifier() = %q, want \"-\"", q)
	}
	if s := got.Record.Directives[1].String(); s != "include:_spf.example.com" {
		t.Errorf("String() = %q", s)
	}
}

func TestIsSPF(t *testing.T) {
	cases := map[string]bool{
		"v=spf1 -all":                  true,
		"V=SPF1 mx -all":               true,
		"v=spf1":                       true,
		"v=spf10 -all":                 false,
		"google-site-verification=abc": false,
		"":                             false,
	}
	for in, want := range cases {
		if got := IsSPF(in); got != want {
			t.Errorf("IsSPF(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDMARC(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantValid  bool
		wantPolicy models.Policy
	}{
		{"Reject", "v=DMARC1; p=reject; rua=mailto:d@example.com", true, models.PolicyReject},
		{"Quarantine", "v=DMARC1; p=quarantine", true, models.PolicyQuarantine},
		{"None with pct", "v=DMARC1; p=none; pct=50;", true, models.PolicyNone},
		{"Upper-case policy", "v=DMARC1; p=REJECT", true, models.PolicyReject},
		{"Missing policy", "v=DMARC1; rua=mailto:d@example.com", false, models.PolicyUnknown},
		{"Bogus policy", "v=DMARC1; p=block", false, models.PolicyUnknown},
		{"Version not first", "p=reject; v=DMARC1", false, models.PolicyReject},
		{"Tag without value", "v=DMARC1; p=none; garbage", false, models.PolicyNone},
		{"Missing separator after version", "v=DMARC1 p=reject", false, models.PolicyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDMARC(tt.input)
			if got.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (reason %q)", got.Valid(), tt.wantValid, got.Reason())
			}
			if got.Record.Policy != tt.wantPolicy {
				t.Errorf("Policy = %q, want %q", got.Record.Policy, tt.wantPolicy)
			}
		})
	}
}

func TestDMARCReportURIs(t *testing.T) {
	got := ParseDMARC("v=DMARC1; p=none; rua=mailto:a@example.com, mailto:b@example.com")
	want := []string{"mailto:a@example.com", "mailto:b@example.com"}
	if !reflect.DeepEqual(got.Record.AggregateReports, want) {
		t.Errorf("AggregateReports = %q, want %q", got.Record.AggregateReports, want)
	}
	if got.Record.Percent != 100 {
		t.Errorf("Percent = %d, want default 100", got.Record.Percent)
	}
}

func TestIsDMARC(t *testing.T) {
	cases := map[string]bool{
		"v=DMARC1; p=none":   true,
		"v=DMARC1 ; p=none":  true,
		"v=dmarc1;p=none":    true,
		"v=DMARC1":           true,
		"v=DMARC1 p=reject":  true,
		" v = DMARC1":        true,
		"v=DMARC10; p=none":  false,
		"p=reject; v=DMARC1": false,
		"v=spf1 -all":        false,
	}
	for in, want := range cases {
		if got := IsDMARC(in); got != want {
			t.Errorf("IsDMARC(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDKIM(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantValid   bool
		wantRevoked bool
	}{
		{"Versioned RSA key", "v=DKIM1; k=rsa; p=MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQC", true, false},
		{"No version tag", "k=rsa; p=MIGfMA0GCSq", true, false},
		{"Revoked key", "v=DKIM1; p=", true, true},
		{"Missing key", "v=DKIM1; k=rsa", false, false},
		{"Wrong version", "v=DKIM2; p=abc", false, false},
		{"Version not first", "p=abc; v=DKIM1", false, false},
		{"Not a tag list", "hello world", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDKIM(tt.input)
			if got.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (reason %q)", got.Valid(), tt.wantValid, got.Reason())
			}
			if got.Record.Revoked != tt.wantRevoked {
				t.Errorf("Revoked = %v, want %v", got.Record.Revoked, tt.wantRevoked)
			}
		})
	}
}

func TestIsHostname(t *testing.T) {
	cases := map[string]bool{
		"mx1.example.com":         true,
		"mx1.example.com.":        true,
		"aspmx.l.google.com":      true,
		".":                       false,
		"":                        false,
		"localhost":               false,
		"-bad.example.com":        false,
		"under_score.example.com": false,
	}
	for in, want := range cases {
		if got := IsHostname(in); got != want {
			t.Errorf("IsHostname(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestReason(t *testing.T) {
	got := ParseSPF("v=spf1 bogus")
	if got.Reason() != `unknown mechanism "bogus"` {
		t.Errorf("Reason() = %q", got.Reason())
	}
	if r := ParseSPF("v=spf1 -all").Reason(); r != "" {
		t.Errorf("valid record has reason %q", r)
	}
}
