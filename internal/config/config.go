package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
)

const (
	configPathEnv     = "MAILTRUST_CONFIG"
	listenAddrEnv     = "LISTEN_ADDR"
	dnsTimeoutEnv     = "DNS_TIMEOUT"
	dnsLifetimeEnv    = "DNS_LIFETIME"
	dnsRetriesEnv     = "DNS_RETRIES"
	dnsNameserversEnv = "DNS_NAMESERVERS"
	dkimSelectorsEnv  = "DKIM_SELECTORS"
	corsOriginsEnv    = "CORS_ORIGINS"
	requestTimeoutEnv = "REQUEST_TIMEOUT"
	maxSuggestionsEnv = "MAX_SUGGESTIONS"
	redisAddrEnv      = "REDIS_ADDR"
	rateLimitEnv      = "RATE_LIMIT_PER_MINUTE"
	apiKeyEnv         = "API_SECRET_KEY"
)

// Config is loaded once at start and passed around by value.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DNS       DNSConfig       `yaml:"dns"`
	Scan      ScanConfig      `yaml:"scan"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Content   content.Rules   `yaml:"content"`
}

type ServerConfig struct {
	ListenAddr     string        `yaml:"listenAddr"`
	CORSOrigins    []string      `yaml:"corsOrigins"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// APIKey, when set, is required as a Bearer token on the scan endpoint.
	APIKey string `yaml:"apiKey"`
}

// DNSConfig bounds every lookup. Timeout covers one exchange, Lifetime one
// lookup across retries and nameservers.
type DNSConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Lifetime      time.Duration `yaml:"lifetime"`
	Retries       int           `yaml:"retries"`
	Nameservers   []string      `yaml:"nameservers"`
	DKIMSelectors []string      `yaml:"dkimSelectors"`
}

type ScanConfig struct {
	MaxSuggestions int `yaml:"maxSuggestions"`
}

// RateLimitConfig switches to the shared Redis limiter when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr string `yaml:"redisAddr"`
	PerMinute int    `yaml:"perMinute"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv(corsOriginsEnv); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(requestTimeoutEnv); v != "" {
		setDuration(&c.Server.RequestTimeout, requestTimeoutEnv, v)
	}
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Server.APIKey = v
	}

	if v := os.Getenv(dnsTimeoutEnv); v != "" {
		setDuration(&c.DNS.Timeout, dnsTimeoutEnv, v)
	}
	if v := os.Getenv(dnsLifetimeEnv); v != "" {
		setDuration(&c.DNS.Lifetime, dnsLifetimeEnv, v)
	}
	if v := os.Getenv(dnsRetriesEnv); v != "" {
		setInt(&c.DNS.Retries, dnsRetriesEnv, v)
	}
	if v := os.Getenv(dnsNameserversEnv); v != "" {
		c.DNS.Nameservers = splitList(v)
	}
	if v := os.Getenv(dkimSelectorsEnv); v != "" {
		c.DNS.DKIMSelectors = splitList(v)
	}

	if v := os.Getenv(maxSuggestionsEnv); v != "" {
		setInt(&c.Scan.MaxSuggestions, maxSuggestionsEnv, v)
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.RateLimit.RedisAddr = v
	}
	if v := os.Getenv(rateLimitEnv); v != "" {
		setInt(&c.RateLimit.PerMinute, rateLimitEnv, v)
	}
}

// setDuration accepts Go durations ("1500ms") and bare numbers of seconds.
func setDuration(dst *time.Duration, name, v string) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
		return
	}
	log.Printf("⚠️  %s=%q is not a valid duration, keeping %v", name, v, *dst)
}

func setInt(dst *int, name, v string) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("⚠️  %s=%q is not a valid number, keeping %d", name, v, *dst)
		return
	}
	*dst = n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Server.ListenAddr != "" {
		base.Server.ListenAddr = override.Server.ListenAddr
	}
	if len(override.Server.CORSOrigins) > 0 {
		base.Server.CORSOrigins = override.Server.CORSOrigins
	}
	if override.Server.RequestTimeout > 0 {
		base.Server.RequestTimeout = override.Server.RequestTimeout
	}
	if override.Server.APIKey != "" {
		base.Server.APIKey = override.Server.APIKey
	}

	if override.DNS.Timeout > 0 {
		base.DNS.Timeout = override.DNS.Timeout
	}
	if override.DNS.Lifetime > 0 {
		base.DNS.Lifetime = override.DNS.Lifetime
	}
	if override.DNS.Retries > 0 {
		base.DNS.Retries = override.DNS.Retries
	}
	if len(override.DNS.Nameservers) > 0 {
		base.DNS.Nameservers = override.DNS.Nameservers
	}
	if len(override.DNS.DKIMSelectors) > 0 {
		base.DNS.DKIMSelectors = override.DNS.DKIMSelectors
	}

	if override.Scan.MaxSuggestions > 0 {
		base.Scan.MaxSuggestions = override.Scan.MaxSuggestions
	}

	if override.RateLimit.RedisAddr != "" {
		base.RateLimit.RedisAddr = override.RateLimit.RedisAddr
	}
	if override.RateLimit.PerMinute > 0 {
		base.RateLimit.PerMinute = override.RateLimit.PerMinute
	}

	if len(override.Content.Categories) > 0 {
		base.Content.Categories = override.Content.Categories
	}
	if override.Content.ExclamationRatio > 0 {
		base.Content.ExclamationRatio = override.Content.ExclamationRatio
	}
	if override.Content.CapsRatio > 0 {
		base.Content.CapsRatio = override.Content.CapsRatio
	}
	if len(override.Content.BulkPhrases) > 0 {
		base.Content.BulkPhrases = override.Content.BulkPhrases
	}
	if len(override.Content.UnsubscribePatterns) > 0 {
		base.Content.UnsubscribePatterns = override.Content.UnsubscribePatterns
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			CORSOrigins:    []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		DNS: DNSConfig{
			Timeout:       5 * time.Second,
			Lifetime:      5 * time.Second,
			Retries:       1,
			DKIMSelectors: append([]string(nil), lookup.DefaultDKIMSelectors...),
		},
		Scan:      ScanConfig{MaxSuggestions: 5},
		RateLimit: RateLimitConfig{PerMinute: 60},
		Content:   content.DefaultRules(),
	}
}
