package lookup

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mailtrust/internal/models"
	"mailtrust/internal/records"
)

// DefaultDKIMSelectors are probed when the configuration names none.
var DefaultDKIMSelectors = []string{"default", "google", "selector1", "selector2", "k1", "dkim"}

// Every Check function returns a complete finding plus the raw lookup error.
// The finding is usable whatever the error; the error only tells the caller
// whether a nameserver answered.

// CheckSPF looks for the SPF record among the domain's TXT entries.
func CheckSPF(ctx context.Context, r Resolver, domain string) (models.SpfFinding, error) {
	finding := models.SpfFinding{Mechanisms: []string{}}

	txts, err := r.LookupTXT(ctx, domain)
	if err != nil {
		return finding, err
	}

	var spf []string
	for _, txt := range txts {
		if records.IsSPF(txt) {
			spf = append(spf, txt)
		}
	}
	if len(spf) == 0 {
		return finding, nil
	}

	record := spf[0]
	finding.Exists = true
	finding.Record = &record

	parsed := records.ParseSPF(record)
	if parsed.Record.Terms != nil {
		finding.Mechanisms = parsed.Record.Terms
	}
	finding.AllQualifier = parsed.Record.AllQualifier()
	finding.Redirect = parsed.Record.Redirect

	switch {
	case len(spf) > 1:
		// RFC 7208 section 4.5: more than one record is a permanent error.
		finding.Error = "multiple SPF records published"
	case !parsed.Valid():
		finding.Error = parsed.Reason()
	default:
		finding.Valid = true
	}
	return finding, nil
}

// CheckDMARC looks for the policy record at _dmarc.<domain>.
func CheckDMARC(ctx context.Context, r Resolver, domain string) (models.DmarcFinding, error) {
	finding := models.DmarcFinding{Policy: models.PolicyUnknown}

	txts, err := r.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return finding, err
	}

	var dmarc []string
	for _, txt := range txts {
		if records.IsDMARC(txt) {
			dmarc = append(dmarc, txt)
		}
	}
	if len(dmarc) == 0 {
		return finding, nil
	}

	record := dmarc[0]
	finding.Exists = true
	finding.Record = &record

	parsed := records.ParseDMARC(record)
	finding.Policy = parsed.Record.Policy
	finding.SubdomainPolicy = parsed.Record.SubdomainPolicy
	finding.Percent = parsed.Record.Percent
	finding.ReportURIs = parsed.Record.AggregateReports

	switch {
	case len(dmarc) > 1:
		finding.Error = "multiple DMARC records published"
	case !parsed.Valid():
		finding.Error = parsed.Reason()
	default:
		finding.Valid = true
	}
	return finding, nil
}

// CheckDKIM probes every selector concurrently. A missing selector is not an
// error. The returned error is nil as soon as one probe got a DNS response,
// otherwise it joins every probe's failure.
func CheckDKIM(ctx context.Context, r Resolver, domain string, selectors []string) (models.DkimFinding, error) {
	if len(selectors) == 0 {
		selectors = DefaultDKIMSelectors
	}

	found := make([][]models.DkimRecord, len(selectors))
	errs := make([]error, len(selectors))

	var wg sync.WaitGroup
	for i, sel := range selectors {
		i, sel := i, sel
		wg.Add(1)
		go func() {
			defer wg.Done()
			found[i], errs[i] = checkSelector(ctx, r, domain, sel)
		}()
	}
	wg.Wait()

	finding := models.DkimFinding{Records: []models.DkimRecord{}}
	for _, recs := range found {
		finding.Records = append(finding.Records, recs...)
	}
	finding.Exists = len(finding.Records) > 0
	finding.Valid = finding.Exists

	if err := ctx.Err(); err != nil {
		return finding, err
	}
	for _, err := range errs {
		if Answered(err) {
			return finding, nil
		}
	}
	return finding, errors.Join(errs...)
}

func checkSelector(ctx context.Context, r Resolver, domain, selector string) ([]models.DkimRecord, error) {
	txts, err := r.LookupTXT(ctx, selector+"._domainkey."+domain)
	if err != nil {
		return nil, err
	}

	var out []models.DkimRecord
	for _, txt := range txts {
		parsed := records.ParseDKIM(txt)
		if !parsed.Valid() {
			continue
		}
		out = append(out, models.DkimRecord{
			Selector: selector,
			Record:   txt,
			KeyType:  parsed.Record.KeyType,
			Testing:  parsed.Record.Testing,
			Revoked:  parsed.Record.Revoked,
		})
	}
	return out, nil
}

// CheckMX returns the mail exchangers sorted by preference, lowest first.
func CheckMX(ctx context.Context, r Resolver, domain string) (models.MxFinding, error) {
	finding := models.MxFinding{Records: []models.MxRecord{}}

	mxRecords, err := r.LookupMX(ctx, domain)
	if err != nil {
		return finding, err
	}

	sort.SliceStable(mxRecords, func(i, j int) bool { return mxRecords[i].Pref < mxRecords[j].Pref })

	for _, mx := range mxRecords {
		server := strings.ToLower(strings.TrimSuffix(mx.Host, "."))
		finding.Records = append(finding.Records, models.MxRecord{
			Priority: int(mx.Pref),
			Server:   server,
		})
		if records.IsHostname(server) {
			finding.Valid = true
		}
	}
	finding.Count = len(finding.Records)
	finding.Exists = finding.Count > 0
	return finding, nil
}

// ResolveAll gathers the four findings concurrently. Ordinary misses never
// fail the call. It fails when ctx ends (no partial result) or when not a
// single lookup got a DNS response, which means the resolver itself is down.
func ResolveAll(ctx context.Context, r Resolver, domain string, selectors []string) (models.DnsResultSet, error) {
	var res models.DnsResultSet
	var spfErr, dmarcErr, dkimErr, mxErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.SPF, spfErr = CheckSPF(gctx, r, domain)
		return ctxOnly(spfErr)
	})
	g.Go(func() error {
		res.DMARC, dmarcErr = CheckDMARC(gctx, r, domain)
		return ctxOnly(dmarcErr)
	})
	g.Go(func() error {
		res.DKIM, dkimErr = CheckDKIM(gctx, r, domain, selectors)
		return ctxOnly(dkimErr)
	})
	g.Go(func() error {
		res.MX, mxErr = CheckMX(gctx, r, domain)
		return ctxOnly(mxErr)
	})

	if err := g.Wait(); err != nil {
		return models.DnsResultSet{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.DnsResultSet{}, err
	}

	if !Answered(spfErr) && !Answered(dmarcErr) && !Answered(dkimErr) && !Answered(mxErr) {
		return models.DnsResultSet{}, &UnavailableError{Errs: []error{spfErr, dmarcErr, dkimErr, mxErr}}
	}
	return res, nil
}

// ctxOnly lets cancellation abort the group while ordinary lookup failures
// stay local to their finding.
func ctxOnly(err error) error {
	if err != nil && isContextErr(err) {
		return err
	}
	return nil
}

// UnavailableError reports that no lookup of a scan reached a nameserver.
type UnavailableError struct {
	Errs []error
}

func (e *UnavailableError) Error() string {
	return "dns: resolver unavailable: " + errors.Join(e.Errs...).Error()
}

func (e *UnavailableError) Unwrap() []error {
	return e.Errs
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrResolverUnavailable
}
