package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jamiealquiza/envy"

	"mailtrust/internal/config"
	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
	"mailtrust/internal/models"
	"mailtrust/internal/validator"
)

const maxParallelScans = 4

// result pairs a domain with its report or the reason the scan failed.
type result struct {
	Domain string              `json:"domain"`
	Report *models.TrustReport `json:"report,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func main() {
	headersFile := flag.String("headers", "", "file holding sample email headers")
	bodyFile := flag.String("body", "", "file holding a sample email body")
	// MAILTRUST_SCAN_HEADERS and MAILTRUST_SCAN_BODY fill in unset flags.
	envy.Parse("MAILTRUST_SCAN")
	flag.Parse()

	cfg := config.Load()

	headers, err := readOptional(*headersFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	body, err := readOptional(*bodyFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	domains := flag.Args()
	if len(domains) == 0 {
		domains, err = readDomains(os.Stdin)
		if err != nil {
			log.Fatalf("❌ Failed to read domains from stdin: %v", err)
		}
	}
	if len(domains) == 0 {
		fmt.Fprintln(os.Stderr, "usage: scan [-headers file] [-body file] domain... (or domains on stdin)")
		os.Exit(2)
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	results := scanAll(context.Background(), scanner, cfg.Server.RequestTimeout, domains, headers, body)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, r := range results {
		if r.Error != "" {
			failed = true
		}
		if err := enc.Encode(r); err != nil {
			log.Fatalf("❌ Error encoding result for %s: %v", r.Domain, err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func newScanner(cfg config.Config) (*validator.Scanner, error) {
	nameservers, err := lookup.NewNameservers(cfg.DNS.Nameservers)
	if err != nil {
		return nil, fmt.Errorf("invalid nameserver configuration: %w", err)
	}
	resolver, err := lookup.NewResolver(lookup.ResolverConfig{
		Timeout:     cfg.DNS.Timeout,
		Lifetime:    cfg.DNS.Lifetime,
		Retries:     cfg.DNS.Retries,
		Nameservers: nameservers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build DNS resolver: %w", err)
	}
	analyzer, err := content.NewAnalyzer(cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("invalid content rules: %w", err)
	}
	return validator.NewScanner(resolver, analyzer, validator.Options{
		Selectors:      cfg.DNS.DKIMSelectors,
		MaxSuggestions: cfg.Scan.MaxSuggestions,
	}), nil
}

// scanAll scans every domain, a few at a time, and returns the results in
// input order. A failed scan never stops the others.
func scanAll(ctx context.Context, scanner *validator.Scanner, timeout time.Duration, domains []string, headers, body string) []result {
	results := make([]result, len(domains))

	sem := make(chan struct{}, maxParallelScans)
	var wg sync.WaitGroup
	for i, domain := range domains {
		i, domain := i, domain
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = scanOne(ctx, scanner, timeout, domain, headers, body)
		}()
	}
	wg.Wait()

	return results
}

func scanOne(ctx context.Context, scanner *validator.Scanner, timeout time.Duration, domain, headers, body string) result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := scanner.ScanDomain(ctx, models.ScanRequest{
		Domain:       domain,
		EmailHeaders: headers,
		EmailBody:    body,
	})
	if err != nil {
		log.Printf("❌ scan of %q failed: %v", domain, err)
		return result{Domain: domain, Error: err.Error()}
	}
	return result{Domain: report.Domain, Report: &report}
}

// readDomains returns one domain per non-blank line. Lines starting with #
// are comments.
func readDomains(r io.Reader) ([]string, error) {
	var domains []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, sc.Err()
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return string(raw), nil
}
