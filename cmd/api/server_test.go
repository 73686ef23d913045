package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mailtrust/internal/config"
	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
	"mailtrust/internal/models"
	"mailtrust/internal/ratelimit"
	"mailtrust/internal/validator"
)

func testDomain() lookup.MockResolver {
	return lookup.MockResolver{
		TXT: map[string][]string{
			"example.com":                    {"v=spf1 include:_spf.google.com ~all"},
			"_dmarc.example.com":             {"v=DMARC1; p=quarantine"},
			"default._domainkey.example.com": {"v=DKIM1; k=rsa; p=MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQC"},
		},
		MX: map[string][]*net.MX{
			"example.com": {{Host: "mx1.example.com.", Pref: 1}, {Host: "mx2.example.com.", Pref: 5}},
		},
	}
}

type testOpts struct {
	resolver lookup.Resolver
	limit    int
	apiKey   string
	origins  []string
	timeout  time.Duration
}

func newTestRouter(t *testing.T, o testOpts) http.Handler {
	t.Helper()

	if o.resolver == nil {
		o.resolver = testDomain()
	}
	if o.origins == nil {
		o.origins = []string{"*"}
	}
	if o.timeout == 0 {
		o.timeout = 5 * time.Second
	}

	analyzer, err := content.NewAnalyzer(content.DefaultRules())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	s := &server{
		scanner:        validator.NewScanner(o.resolver, analyzer, validator.Options{}),
		requestTimeout: o.timeout,
	}

	var cfg config.Config
	cfg.Server.CORSOrigins = o.origins
	cfg.Server.APIKey = o.apiKey

	return s.routes(cfg, ratelimit.NewMemory(o.limit, time.Minute))
}

func postScan(h http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/scan-domain", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScanEndpoint(t *testing.T) {
	h := newTestRouter(t, testOpts{})

	rec := postScan(h, `{"domain": "www.example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var report models.TrustReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Domain != "example.com" {
		t.Errorf("Domain = %q", report.Domain)
	}
	if report.Scores.Authentication.Score != 37 || report.TrustScore != report.Scores.Total() {
		t.Errorf("unexpected scores: auth %d, trust %d", report.Scores.Authentication.Score, report.TrustScore)
	}
	if report.DNSResults.MX.Count != 2 {
		t.Errorf("MX count = %d", report.DNSResults.MX.Count)
	}
}

func TestScanEndpointErrors(t *testing.T) {
	down := map[string]error{
		"txt example.com":        lookup.ErrUnreachable,
		"txt _dmarc.example.com": lookup.ErrUnreachable,
		"mx example.com":         lookup.ErrUnreachable,
	}
	for _, sel := range lookup.DefaultDKIMSelectors {
		down["txt "+sel+"._domainkey.example.com"] = lookup.ErrTimeout
	}
	slow := testDomain()
	slow.Delay = time.Second

	tests := []struct {
		name     string
		opts     testOpts
		body     string
		expected int
	}{
		{"Invalid JSON", testOpts{}, `{"domain":`, http.StatusBadRequest},
		{"Missing Domain", testOpts{}, `{}`, http.StatusBadRequest},
		{"Invalid Domain", testOpts{}, `{"domain": "not a domain"}`, http.StatusBadRequest},
		{"Resolver Down", testOpts{resolver: lookup.MockResolver{Fail: down}}, `{"domain": "example.com"}`, http.StatusServiceUnavailable},
		{"Timeout", testOpts{resolver: slow, timeout: 20 * time.Millisecond}, `{"domain": "example.com"}`, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postScan(newTestRouter(t, tt.opts), tt.body)
			if rec.Code != tt.expected {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.expected, rec.Body.String())
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] == "" || body["request_id"] == "" {
				t.Errorf("error body incomplete: %v", body)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, testOpts{limit: 1})

	if rec := postScan(h, `{"domain": "example.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}
	rec := postScan(h, `{"domain": "example.com"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestAPIKey(t *testing.T) {
	h := newTestRouter(t, testOpts{apiKey: "s3cret"})

	if rec := postScan(h, `{"domain": "example.com"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rec.Code)
	}
	if rec := postScan(h, `{"domain": "example.com"}`, "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d, want 401", rec.Code)
	}
	if rec := postScan(h, `{"domain": "example.com"}`, "Authorization", "Bearer s3cret"); rec.Code != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestRouter(t, testOpts{origins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/scan-domain", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin should get no Allow-Origin, got %q", got)
	}
}

func TestHealthAndInfo(t *testing.T) {
	h := newTestRouter(t, testOpts{})

	for _, path := range []string{"/health", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestRouter(t, testOpts{})

	rec := postScan(h, `{"domain": "example.com"}`, "X-Request-ID", "abc-123")
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}

	rec = postScan(h, `{"domain": "example.com"}`)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request ID")
	}
}

func TestScanRejectsGet(t *testing.T) {
	h := newTestRouter(t, testOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan-domain", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
