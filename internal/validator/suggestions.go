package validator

import (
	"fmt"
	"sort"
	"strings"

	"mailtrust/internal/models"
)

const DefaultMaxSuggestions = 5

const (
	CategoryDMARC   = "DMARC"
	CategorySPF     = "SPF"
	CategoryDKIM    = "DKIM"
	CategoryMX      = "MX"
	CategoryContent = "Content"
)

var priorityRank = map[models.Priority]int{
	models.PriorityHigh:   0,
	models.PriorityMedium: 1,
	models.PriorityLow:    2,
}

// Ties within a priority are broken in this order.
var categoryRank = map[string]int{
	CategoryDMARC:   0,
	CategorySPF:     1,
	CategoryDKIM:    2,
	CategoryMX:      3,
	CategoryContent: 4,
}

type rule struct {
	when  func(res models.DnsResultSet, scores models.Scores) bool
	build func(res models.DnsResultSet, scores models.Scores) models.Suggestion
}

func recordText(r *string) string {
	if r == nil {
		return "(none)"
	}
	return *r
}

var rules = []rule{
	// ── SPF ──
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return !res.SPF.Exists },
		build: func(models.DnsResultSet, models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityHigh,
				Category: CategorySPF,
				Issue:    "No SPF record found",
				Action:   "Add an SPF record",
				Details:  `SPF (Sender Policy Framework) lists the servers allowed to send mail for the domain. Publish a TXT record such as "v=spf1 include:_spf.google.com ~all".`,
				Impact:   "High: receivers cannot tell legitimate mail from spoofed mail",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.SPF.Exists && !res.SPF.Valid },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityMedium,
				Category: CategorySPF,
				Issue:    "SPF record is malformed: " + res.SPF.Error,
				Action:   "Fix SPF syntax",
				Details:  fmt.Sprintf("Current SPF: %s. Publish exactly one record, use valid mechanisms and end it with -all or ~all.", recordText(res.SPF.Record)),
				Impact:   "Medium: a broken record is treated as a permanent error",
			}
		},
	},

	// ── DKIM ──
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return !res.DKIM.Exists },
		build: func(models.DnsResultSet, models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityHigh,
				Category: CategoryDKIM,
				Issue:    "No DKIM record found",
				Action:   "Set up DKIM signing",
				Details:  "DKIM adds a signature to outgoing mail. Enable it with your mail provider and publish the public key under <selector>._domainkey.",
				Impact:   "High: unsigned mail is trusted less by every major provider",
			}
		},
	},

	// ── DMARC ──
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return !res.DMARC.Exists },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityHigh,
				Category: CategoryDMARC,
				Issue:    "No DMARC record found",
				Action:   "Publish a DMARC record",
				Details:  `DMARC tells receivers what to do with mail failing SPF and DKIM. Add a TXT record at _dmarc like "v=DMARC1; p=quarantine; rua=mailto:dmarc@yourdomain".`,
				Impact:   "High: DMARC is required by major mailbox providers for bulk senders",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.DMARC.Exists && !res.DMARC.Valid },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityMedium,
				Category: CategoryDMARC,
				Issue:    "DMARC record is malformed: " + res.DMARC.Error,
				Action:   "Fix DMARC syntax",
				Details:  fmt.Sprintf("Current DMARC: %s. The record must start with v=DMARC1 followed by a p= tag.", recordText(res.DMARC.Record)),
				Impact:   "Medium: receivers ignore a DMARC record they cannot parse",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.DMARC.Valid && res.DMARC.Policy == models.PolicyNone },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityMedium,
				Category: CategoryDMARC,
				Issue:    `DMARC policy is "none"`,
				Action:   "Strengthen policy from none",
				Details:  fmt.Sprintf("Current DMARC: %s. Move p=none to p=quarantine once aggregate reports look clean.", recordText(res.DMARC.Record)),
				Impact:   "Medium: a monitoring-only policy gives no protection against spoofing",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.DMARC.Valid && res.DMARC.Policy == models.PolicyQuarantine },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityLow,
				Category: CategoryDMARC,
				Issue:    `DMARC policy is "quarantine"`,
				Action:   "Strengthen policy to reject",
				Details:  fmt.Sprintf("Current DMARC: %s. Switch to p=reject to have failing mail refused outright.", recordText(res.DMARC.Record)),
				Impact:   "Low: spoofed mail still reaches spam folders",
			}
		},
	},

	// ── MX ──
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.MX.Count == 0 },
		build: func(models.DnsResultSet, models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityHigh,
				Category: CategoryMX,
				Issue:    "No MX records found",
				Action:   "Configure MX records",
				Details:  "MX records tell other servers where to deliver mail for the domain. Many receivers also distrust senders that cannot receive replies or bounces.",
				Impact:   "High: the domain cannot receive mail",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return res.MX.Exists && !res.MX.Valid },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityMedium,
				Category: CategoryMX,
				Issue:    "No MX record points to a valid host name",
				Action:   "Point MX records at real mail servers",
				Details:  fmt.Sprintf("Current MX: %s. A null MX (\".\") declares that the domain accepts no mail.", mxText(res.MX)),
				Impact:   "Medium: bounces and replies cannot be delivered",
			}
		},
	},
	{
		when:  func(res models.DnsResultSet, _ models.Scores) bool { return usableMX(res.MX) == 1 },
		build: func(res models.DnsResultSet, _ models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityLow,
				Category: CategoryMX,
				Issue:    "Only one MX record configured",
				Action:   "Add a secondary MX for redundancy",
				Details:  fmt.Sprintf("Current MX: %s. Add a backup server with a higher preference number.", mxText(res.MX)),
				Impact:   "Low: improves reliability when the primary server is down",
			}
		},
	},

	// ── Content ──
	{
		when:  func(_ models.DnsResultSet, s models.Scores) bool { return s.ContentRisk.Score < s.ContentRisk.MaxScore },
		build: func(_ models.DnsResultSet, s models.Scores) models.Suggestion {
			return models.Suggestion{
				Priority: models.PriorityMedium,
				Category: CategoryContent,
				Issue:    "Content risk factors detected in the sample",
				Action:   "Review flagged content risk factors",
				Details:  fmt.Sprintf("Issues found: %s. Avoid trigger phrases, keep an unsubscribe link in bulk mail and make sure the sample passes authentication.", strings.Join(s.ContentRisk.RiskFactors, "; ")),
				Impact:   "Medium: content filters weigh these signals on every message",
			}
		},
	},
}

func mxText(f models.MxFinding) string {
	parts := make([]string, 0, len(f.Records))
	for _, r := range f.Records {
		server := r.Server
		if server == "" {
			server = "."
		}
		parts = append(parts, fmt.Sprintf("%d %s", r.Priority, server))
	}
	return strings.Join(parts, ", ")
}

// GenerateSuggestions evaluates every rule and returns the fired ones sorted
// by priority, then by category.
func GenerateSuggestions(res models.DnsResultSet, scores models.Scores) []models.Suggestion {
	out := []models.Suggestion{}
	for _, r := range rules {
		if r.when(res, scores) {
			out = append(out, r.build(res, scores))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank[out[i].Priority], priorityRank[out[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return categoryRank[out[i].Category] < categoryRank[out[j].Category]
	})
	return out
}

// TopSuggestions truncates an already sorted list. A limit of zero or less
// means DefaultMaxSuggestions.
func TopSuggestions(all []models.Suggestion, limit int) []models.Suggestion {
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}
	if len(all) > limit {
		return all[:limit]
	}
	return all
}

// Summary turns the trust score into one of four bands.
func Summary(trustScore int) string {
	var band string
	switch {
	case trustScore >= 90:
		band = "Excellent: authentication and sending setup are in great shape"
	case trustScore >= 70:
		band = "Good setup with room for improvement"
	case trustScore >= 40:
		band = "Needs attention: several providers may distrust this domain"
	default:
		band = "Poor: high risk of spam placement"
	}
	return fmt.Sprintf("%s. Trust score: %d/%d.", band, trustScore, models.MaxTrustScore)
}
