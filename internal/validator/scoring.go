package validator

import (
	"fmt"
	"math"
	"strings"

	"mailtrust/internal/content"
	"mailtrust/internal/models"
	"mailtrust/internal/records"
)

const (
	WeightSPF       = 15
	WeightDKIM      = 10
	WeightDMARCBase = 5

	// DMARC policy bonus, on top of WeightDMARCBase.
	BonusReject     = 10
	BonusQuarantine = 7
	BonusNone       = 2

	// Sending setup by MX count.
	WeightSingleMX    = 10
	WeightRedundantMX = 20

	ContentDeduction = 5
)

// healthByValid maps how many of SPF, DKIM and DMARC are valid to the domain
// health score.
var healthByValid = [...]int{0, 6, 13, 20}

func policyBonus(p models.Policy) int {
	switch p {
	case models.PolicyReject:
		return BonusReject
	case models.PolicyQuarantine:
		return BonusQuarantine
	case models.PolicyNone:
		return BonusNone
	}
	return 0
}

// CalculateTrustScore scores a resolved record set and an already analysed
// sample. It does no I/O.
func CalculateTrustScore(res models.DnsResultSet, sample content.Result) models.Scores {
	return models.Scores{
		Authentication: scoreAuthentication(res),
		DomainHealth:   scoreDomainHealth(res),
		SendingSetup:   scoreSendingSetup(res),
		ContentRisk:    scoreContentRisk(sample),
	}
}

func scoreAuthentication(res models.DnsResultSet) models.ScoreCategory {
	score := 0
	var details []string

	// ── SPF ──
	switch {
	case res.SPF.Valid:
		score += WeightSPF
		details = append(details, fmt.Sprintf("SPF record valid (+%d)", WeightSPF))
		switch {
		case res.SPF.AllQualifier == "+":
			details = append(details, "SPF ends with +all and authorises every sender")
		case res.SPF.AllQualifier == "?":
			details = append(details, "SPF ends with ?all and asserts nothing about other senders")
		case res.SPF.AllQualifier == "" && res.SPF.Redirect != "":
			details = append(details, "SPF policy delegated to "+res.SPF.Redirect)
		}
	case res.SPF.Exists:
		details = append(details, "SPF record present but invalid: "+res.SPF.Error)
	default:
		details = append(details, "no SPF record found")
	}

	// ── DKIM ──
	if res.DKIM.Valid {
		score += WeightDKIM
		details = append(details, fmt.Sprintf("DKIM record found for selector(s) %s (+%d)", dkimSelectors(res.DKIM), WeightDKIM))
		for _, r := range res.DKIM.Records {
			if r.Revoked {
				details = append(details, fmt.Sprintf("DKIM key for selector %s is revoked (empty p=)", r.Selector))
			} else if r.Testing {
				details = append(details, fmt.Sprintf("DKIM selector %s is in testing mode (t=y)", r.Selector))
			}
		}
	} else {
		details = append(details, "no DKIM record found for the probed selectors")
	}

	// ── DMARC ──
	switch {
	case res.DMARC.Valid:
		bonus := policyBonus(res.DMARC.Policy)
		score += WeightDMARCBase + bonus
		details = append(details, fmt.Sprintf("DMARC record valid (+%d)", WeightDMARCBase))
		details = append(details, fmt.Sprintf("DMARC policy %s (+%d)", res.DMARC.Policy, bonus))
		if sp := res.DMARC.SubdomainPolicy; sp != "" && sp != string(res.DMARC.Policy) {
			details = append(details, "DMARC subdomain policy "+sp)
		}
		if pct := res.DMARC.Percent; pct > 0 && pct < 100 {
			details = append(details, fmt.Sprintf("DMARC policy applied to %d%% of failing mail", pct))
		}
	case res.DMARC.Exists:
		details = append(details, "DMARC record present but invalid: "+res.DMARC.Error)
	default:
		details = append(details, "no DMARC record found")
	}

	return category(score, models.MaxAuthentication, details, nil)
}

func dkimSelectors(f models.DkimFinding) string {
	seen := map[string]bool{}
	var out []string
	for _, r := range f.Records {
		if !seen[r.Selector] {
			seen[r.Selector] = true
			out = append(out, r.Selector)
		}
	}
	return strings.Join(out, ", ")
}

func scoreDomainHealth(res models.DnsResultSet) models.ScoreCategory {
	var valid []string
	if res.SPF.Valid {
		valid = append(valid, "SPF")
	}
	if res.DKIM.Valid {
		valid = append(valid, "DKIM")
	}
	if res.DMARC.Valid {
		valid = append(valid, "DMARC")
	}

	var detail string
	if len(valid) == 0 {
		detail = "none of SPF, DKIM and DMARC is valid"
	} else {
		detail = fmt.Sprintf("%d of 3 authentication mechanisms valid: %s", len(valid), strings.Join(valid, ", "))
	}
	return category(healthByValid[len(valid)], models.MaxDomainHealth, []string{detail}, nil)
}

// usableMX counts the exchangers that name a real host, leaving out null MX
// entries.
func usableMX(f models.MxFinding) int {
	n := 0
	for _, r := range f.Records {
		if records.IsHostname(r.Server) {
			n++
		}
	}
	return n
}

func scoreSendingSetup(res models.DnsResultSet) models.ScoreCategory {
	switch n := usableMX(res.MX); {
	case res.MX.Count == 0:
		return category(0, models.MaxSendingSetup, []string{"no MX records"}, nil)
	case n == 0:
		return category(0, models.MaxSendingSetup, []string{"no MX record points to a mail server (null MX)"}, nil)
	case n == 1:
		return category(WeightSingleMX, models.MaxSendingSetup, []string{"1 MX record configured, no redundancy"}, nil)
	default:
		return category(WeightRedundantMX, models.MaxSendingSetup, []string{fmt.Sprintf("%d MX records configured", n)}, nil)
	}
}

func scoreContentRisk(sample content.Result) models.ScoreCategory {
	score := models.MaxContentRisk - ContentDeduction*len(sample.RiskFactors)
	return category(score, models.MaxContentRisk, sample.Details, sample.RiskFactors)
}

// category clamps the score into [0, maxScore] and fills in the percentage.
func category(score, maxScore int, details, risks []string) models.ScoreCategory {
	score = min(max(score, 0), maxScore)
	if details == nil {
		details = []string{}
	}
	return models.ScoreCategory{
		Score:       score,
		MaxScore:    maxScore,
		Percentage:  math.Round(float64(score)*1000/float64(maxScore)) / 10,
		Details:     details,
		RiskFactors: risks,
	}
}
