package validator

import (
	"context"
	"fmt"
	"log"
	"time"

	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
	"mailtrust/internal/models"
)

type Options struct {
	// Selectors probed for DKIM; empty means lookup.DefaultDKIMSelectors.
	Selectors []string

	// MaxSuggestions caps top_suggestions; zero means DefaultMaxSuggestions.
	MaxSuggestions int
}

// Scanner runs the full pipeline for one domain at a time. It holds no
// per-request state and may be shared between goroutines.
type Scanner struct {
	resolver lookup.Resolver
	analyzer *content.Analyzer
	opts     Options
}

func NewScanner(resolver lookup.Resolver, analyzer *content.Analyzer, opts Options) *Scanner {
	return &Scanner{resolver: resolver, analyzer: analyzer, opts: opts}
}

// ScanDomain resolves, scores and ranks. Invalid input fails with
// ErrInvalidDomain before any query is sent. A dead resolver or an ended ctx
// fails the whole scan; there is never a partial report.
func (s *Scanner) ScanDomain(ctx context.Context, req models.ScanRequest) (models.TrustReport, error) {
	domain, err := NormalizeDomain(req.Domain)
	if err != nil {
		return models.TrustReport{}, err
	}

	start := time.Now()
	res, err := lookup.ResolveAll(ctx, s.resolver, domain, s.opts.Selectors)
	if err != nil {
		return models.TrustReport{}, fmt.Errorf("scan %s: %w", domain, err)
	}

	sample := s.analyzer.Analyze(req.EmailHeaders, req.EmailBody)
	scores := CalculateTrustScore(res, sample)
	total := scores.Total()

	report := models.TrustReport{
		Domain:          domain,
		TrustScore:      total,
		TrustPercentage: float64(total),
		Scores:          scores,
		DNSResults:      res,
		TopSuggestions:  TopSuggestions(GenerateSuggestions(res, scores), s.opts.MaxSuggestions),
		Summary:         Summary(total),
	}

	log.Printf("[DEBUG] Scanned %s in %v: trust score %d, %d suggestion(s)", domain, time.Since(start), total, len(report.TopSuggestions))
	return report, nil
}
