package content

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/emersion/go-msgauth/authres"
)

const (
	RiskAuthNotConfirmed  = "authentication not confirmed in sample headers"
	RiskBulkNoUnsubscribe = "bulk-marketing content without an unsubscribe option"
	RiskFormatting        = "spam trigger: excessive exclamation marks or capitals"

	DetailNoContent = "no content provided for analysis"
	DetailClean     = "no content risk factors detected"
)

// Result lists what the sample analysis found. Every risk factor costs the
// content score the same fixed deduction.
type Result struct {
	Details     []string
	RiskFactors []string
}

var methodResult = regexp.MustCompile(`(?i)\b(spf|dkim|dmarc)\s*=\s*([a-z]+)`)

// Analyze checks the optional header block and body. Header checks only run
// when headers were given, body checks only when there is body text.
func (a *Analyzer) Analyze(headers, body string) Result {
	if strings.TrimSpace(headers) == "" && strings.TrimSpace(body) == "" {
		return Result{Details: []string{DetailNoContent}}
	}

	var res Result
	s := decode(headers, body)

	if strings.TrimSpace(headers) != "" {
		details, risk := checkAuthResults(s.authResults)
		res.Details = append(res.Details, details...)
		if risk != "" {
			res.RiskFactors = append(res.RiskFactors, risk)
		}
	}

	if strings.TrimSpace(s.text) != "" {
		res.RiskFactors = append(res.RiskFactors, a.triggerCategories(s.text)...)
		if risk := a.checkFormatting(s.text); risk != "" {
			res.RiskFactors = append(res.RiskFactors, risk)
		}
		if a.isBulk(s.text) && !a.hasUnsubscribe(s) {
			res.RiskFactors = append(res.RiskFactors, RiskBulkNoUnsubscribe)
		}
	}

	if len(res.RiskFactors) == 0 {
		res.Details = append(res.Details, DetailClean)
	}
	return res
}

var authMethods = []string{"spf", "dkim", "dmarc"}

// checkAuthResults reads spf/dkim/dmarc outcomes from Authentication-Results
// values. A method passes if any value reports pass for it. Explicit failures
// are reported in the details; the sample is flagged only when no method
// passed at all.
func checkAuthResults(values []string) ([]string, string) {
	outcomes := map[string][]string{}
	for _, v := range values {
		for method, result := range parseAuthResults(v) {
			outcomes[method] = append(outcomes[method], result...)
		}
	}

	var details, failed []string
	passed := 0
	for _, m := range authMethods {
		if slices.Contains(outcomes[m], string(authres.ResultPass)) {
			passed++
			details = append(details, strings.ToUpper(m)+" authentication passed in sample headers")
			continue
		}
		for _, r := range outcomes[m] {
			if isFailure(r) {
				failed = append(failed, m+"="+r)
				details = append(details, fmt.Sprintf("%s authentication failed in sample headers (%s=%s)", strings.ToUpper(m), m, r))
				break
			}
		}
	}

	switch {
	case passed > 0:
		return details, ""
	case len(failed) > 0:
		return details, fmt.Sprintf("%s (%s)", RiskAuthNotConfirmed, strings.Join(failed, ", "))
	}
	return details, RiskAuthNotConfirmed
}

// parseAuthResults merges the RFC 8601 parser's results with a plain
// method=result scan. Pasted samples often lack the authserv-id, which the
// parser needs.
func parseAuthResults(v string) map[string][]string {
	out := map[string][]string{}

	if _, results, err := authres.Parse(v); err == nil {
		for _, r := range results {
			switch r := r.(type) {
			case *authres.SPFResult:
				out["spf"] = append(out["spf"], string(r.Value))
			case *authres.DKIMResult:
				out["dkim"] = append(out["dkim"], string(r.Value))
			case *authres.DMARCResult:
				out["dmarc"] = append(out["dmarc"], string(r.Value))
			}
		}
	}

	for _, m := range methodResult.FindAllStringSubmatch(v, -1) {
		method := strings.ToLower(m[1])
		out[method] = append(out[method], strings.ToLower(m[2]))
	}
	return out
}

func isFailure(result string) bool {
	switch authres.ResultValue(result) {
	case authres.ResultFail, authres.ResultSoftFail, authres.ResultPermError, authres.ResultTempError:
		return true
	}
	return false
}

// triggerCategories returns one risk factor per category with at least one
// phrase in the text.
func (a *Analyzer) triggerCategories(text string) []string {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))

	var risks []string
	for _, c := range a.rules.Categories {
		var hits []string
		for _, p := range c.Phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.Contains(lower, p) {
				hits = append(hits, `"`+p+`"`)
			}
		}
		if len(hits) > 0 {
			risks = append(risks, fmt.Sprintf("spam trigger: %s phrases (%s)", c.Name, strings.Join(hits, ", ")))
		}
	}
	return risks
}

func (a *Analyzer) checkFormatting(text string) string {
	words := len(strings.Fields(text))
	if words == 0 {
		return ""
	}

	var bangs, letters, upper int
	for _, r := range text {
		switch {
		case r == '!':
			bangs++
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}

	if a.rules.ExclamationRatio > 0 && bangs >= 3 && float64(bangs)/float64(words) > a.rules.ExclamationRatio {
		return RiskFormatting
	}
	// Short texts such as a single acronym are not shouting.
	if a.rules.CapsRatio > 0 && letters >= 20 && float64(upper)/float64(letters) > a.rules.CapsRatio {
		return RiskFormatting
	}
	return ""
}

func (a *Analyzer) isBulk(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range a.rules.BulkPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (a *Analyzer) hasUnsubscribe(s sample) bool {
	if s.listUnsubscribe || a.matchesUnsubscribe(s.text) {
		return true
	}
	for _, l := range s.links {
		if a.matchesUnsubscribe(l.href) || a.matchesUnsubscribe(l.text) {
			return true
		}
	}
	return false
}
