package main

import (
	"context"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
	"mailtrust/internal/validator"
)

func TestReadDomains(t *testing.T) {
	in := "example.com\n\n  # staging\n  mail.example.org  \n#comment\nexample.net"

	got, err := readDomains(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readDomains: %v", err)
	}
	want := []string{"example.com", "mail.example.org", "example.net"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReadOptional(t *testing.T) {
	if s, err := readOptional(""); err != nil || s != "" {
		t.Errorf("empty path: %q, %v", s, err)
	}
	if _, err := readOptional(t.TempDir() + "/missing.eml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestScanAllKeepsOrderAndIsolatesFailures(t *testing.T) {
	resolver := lookup.MockResolver{
		TXT: map[string][]string{
			"example.com":        {"v=spf1 -all"},
			"_dmarc.example.com": {"v=DMARC1; p=reject"},
		},
		MX: map[string][]*net.MX{
			"example.com": {{Host: "mx.example.com.", Pref: 10}},
		},
	}
	analyzer, err := content.NewAnalyzer(content.DefaultRules())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	scanner := validator.NewScanner(resolver, analyzer, validator.Options{})

	results := scanAll(context.Background(), scanner, time.Second, []string{"not a domain", "Example.com", "example.org"}, "", "")
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	if results[0].Error == "" || results[0].Report != nil {
		t.Errorf("invalid domain should fail: %+v", results[0])
	}
	if results[1].Report == nil || results[1].Domain != "example.com" {
		t.Fatalf("example.com should succeed: %+v", results[1])
	}
	if results[1].Report.Scores.SendingSetup.Score != 10 {
		t.Errorf("SendingSetup = %d, want 10", results[1].Report.Scores.SendingSetup.Score)
	}
	// example.org answers NXDOMAIN everywhere, which is still a completed scan.
	if results[2].Report == nil {
		t.Errorf("example.org should succeed: %+v", results[2])
	}
}

func TestScanOneTimeout(t *testing.T) {
	resolver := lookup.MockResolver{Delay: time.Second}
	analyzer, err := content.NewAnalyzer(content.DefaultRules())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	scanner := validator.NewScanner(resolver, analyzer, validator.Options{})

	r := scanOne(context.Background(), scanner, 10*time.Millisecond, "example.com", "", "")
	if r.Error == "" || r.Report != nil {
		t.Fatalf("expected a timeout error, got %+v", r)
	}
	if r.Domain != "example.com" {
		t.Errorf("Domain = %q", r.Domain)
	}
}
