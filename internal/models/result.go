package models

// Policy is a DMARC p= value. PolicyUnknown covers absent and unparseable
// records.
type Policy string

// Priority orders suggestions, high first.
type Priority string

const (
	PolicyNone       Policy = "none"
	PolicyQuarantine Policy = "quarantine"
	PolicyReject     Policy = "reject"
	PolicyUnknown    Policy = "unknown"

	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Fixed category ceilings. They add up to 100 so the trust score needs no
// rescaling.
const (
	MaxAuthentication = 40
	MaxDomainHealth   = 20
	MaxSendingSetup   = 20
	MaxContentRisk    = 20
	MaxTrustScore     = MaxAuthentication + MaxDomainHealth + MaxSendingSetup + MaxContentRisk
)

// SpfFinding describes the domain's SPF TXT record. Record is nil when none
// is published; Error says why a present record is invalid.
type SpfFinding struct {
	Exists     bool     `json:"exists"`
	Record     *string  `json:"record"`
	Valid      bool     `json:"valid"`
	Mechanisms []string `json:"mechanisms"`
	Error      string   `json:"error,omitempty"`

	// AllQualifier is the qualifier of the trailing "all" ("-", "~", "?",
	// "+"), "" when the record has none.
	AllQualifier string `json:"all_qualifier,omitempty"`
	Redirect     string `json:"redirect,omitempty"`
}

// DmarcFinding describes the record at _dmarc.<domain>.
type DmarcFinding struct {
	Exists bool    `json:"exists"`
	Record *string `json:"record"`
	Policy Policy  `json:"policy"`
	Valid  bool    `json:"valid"`
	Error  string  `json:"error,omitempty"`

	SubdomainPolicy string   `json:"subdomain_policy,omitempty"`
	Percent         int      `json:"percent,omitempty"`
	ReportURIs      []string `json:"report_uris,omitempty"`
}

// DkimRecord is one key found under <selector>._domainkey.<domain>.
type DkimRecord struct {
	Selector string `json:"selector"`
	Record   string `json:"record"`
	KeyType  string `json:"key_type,omitempty"`
	Testing  bool   `json:"testing,omitempty"`
	Revoked  bool   `json:"revoked,omitempty"`
}

type DkimFinding struct {
	Exists  bool         `json:"exists"`
	Records []DkimRecord `json:"records"`
	Valid   bool         `json:"valid"`
}

// MxRecord is one exchanger. Server is "" for a null MX.
type MxRecord struct {
	Priority int    `json:"priority"`
	Server   string `json:"server"`
}

// MxFinding lists the exchangers by preference. Valid means at least one
// points at a real host name.
type MxFinding struct {
	Exists  bool       `json:"exists"`
	Records []MxRecord `json:"records"`
	Count   int        `json:"count"`
	Valid   bool       `json:"valid"`
}

// DnsResultSet is everything the resolver learned about one domain.
// It is built once per scan and never mutated afterwards.
type DnsResultSet struct {
	SPF   SpfFinding   `json:"spf"`
	DMARC DmarcFinding `json:"dmarc"`
	DKIM  DkimFinding  `json:"dkim"`
	MX    MxFinding    `json:"mx"`
}

// ScoreCategory is one of the four scored areas. Percentage is
// score/max_score rounded to one decimal.
type ScoreCategory struct {
	Score       int      `json:"score"`
	MaxScore    int      `json:"max_score"`
	Percentage  float64  `json:"percentage"`
	Details     []string `json:"details"`
	RiskFactors []string `json:"risk_factors,omitempty"`
}

// Scores holds the four categories; their maxima add up to MaxTrustScore.
type Scores struct {
	Authentication ScoreCategory `json:"authentication"`
	DomainHealth   ScoreCategory `json:"domain_health"`
	SendingSetup   ScoreCategory `json:"sending_setup"`
	ContentRisk    ScoreCategory `json:"content_risk"`
}

// Total is the sum of the four category scores.
func (s Scores) Total() int {
	return s.Authentication.Score + s.DomainHealth.Score + s.SendingSetup.Score + s.ContentRisk.Score
}

// Suggestion is one remediation step.
type Suggestion struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Issue    string   `json:"issue"`
	Action   string   `json:"action"`
	Details  string   `json:"details"`
	Impact   string   `json:"impact"`
}

// TrustReport is the result of one scan, returned as-is by the API.
type TrustReport struct {
	Domain          string       `json:"domain"`
	TrustScore      int          `json:"trust_score"`
	TrustPercentage float64      `json:"trust_percentage"`
	Scores          Scores       `json:"scores"`
	DNSResults      DnsResultSet `json:"dns_results"`
	TopSuggestions  []Suggestion `json:"top_suggestions"`
	Summary         string       `json:"summary"`
}

// ScanRequest is the inbound payload for a single scan.
type ScanRequest struct {
	Domain       string `json:"domain"`
	EmailHeaders string `json:"email_headers,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`
}
