package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// Resolver is the subset of DNS the checks need.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// ResolverConfig mirrors the DNS section of the process configuration.
type ResolverConfig struct {
	// Timeout bounds a single exchange with one nameserver.
	Timeout time.Duration

	// Lifetime bounds one lookup across every retry and nameserver.
	Lifetime time.Duration

	// Retries is how many extra passes over the nameserver list are made.
	Retries int

	Nameservers *Nameservers
}

// DNSResolver talks to recursive nameservers directly with miekg/dns, which
// exposes the rcode so NXDOMAIN, SERVFAIL and transport failures can be told
// apart.
type DNSResolver struct {
	config ResolverConfig
	udp    *mdns.Client
	tcp    *mdns.Client
}

var _ Resolver = (*DNSResolver)(nil)

func NewResolver(config ResolverConfig) (*DNSResolver, error) {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Lifetime <= 0 {
		config.Lifetime = config.Timeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.Nameservers == nil {
		ns, err := NewNameservers(nil)
		if err != nil {
			return nil, err
		}
		config.Nameservers = ns
	}

	return &DNSResolver{
		config: config,
		udp:    &mdns.Client{Net: "udp", Timeout: config.Timeout},
		tcp:    &mdns.Client{Net: "tcp", Timeout: config.Timeout},
	}, nil
}

func (r *DNSResolver) Config() ResolverConfig {
	return r.config
}

// query runs one lookup. Within the lifetime it walks the nameservers
// (starting from the rotation point) up to Retries+1 times, stopping at the
// first authoritative outcome: an answer or NXDOMAIN.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	lctx, cancel := context.WithTimeout(ctx, r.config.Lifetime)
	defer cancel()

	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), qtype)
	m.RecursionDesired = true
	m.SetEdns0(4096, false)

	var answeredErr, transportErr error
	servers := r.config.Nameservers.Order()

	for attempt := 0; attempt <= r.config.Retries; attempt++ {
		for _, server := range servers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if lctx.Err() != nil {
				return nil, r.finalErr(answeredErr, transportErr, ErrTimeout)
			}

			resp, _, err := r.udp.ExchangeContext(lctx, m, server)
			if err == nil && resp.Truncated {
				resp, _, err = r.tcp.ExchangeContext(lctx, m, server)
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				transportErr = classifyTransport(err)
				continue
			}

			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return resp, nil
			case mdns.RcodeNameError:
				return nil, ErrNotFound
			case mdns.RcodeServerFailure:
				answeredErr = ErrServFail
			case mdns.RcodeRefused:
				answeredErr = ErrRefused
			default:
				answeredErr = fmt.Errorf("%w: unexpected rcode %s", ErrServFail, mdns.RcodeToString[resp.Rcode])
			}
		}
	}

	return nil, r.finalErr(answeredErr, transportErr, ErrUnreachable)
}

// finalErr prefers an error that carried a response over a transport error,
// so one dead nameserver does not mask a SERVFAIL from a live one.
func (r *DNSResolver) finalErr(answered, transport, fallback error) error {
	if answered != nil {
		return answered
	}
	if transport != nil {
		return transport
	}
	return fallback
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// LookupTXT returns TXT values with their character-strings joined, per
// RFC 7208 section 3.3.
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resp, err := r.query(ctx, name, mdns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

func (r *DNSResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	resp, err := r.query(ctx, name, mdns.TypeMX)
	if err != nil {
		return nil, err
	}

	var records []*net.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*mdns.MX); ok {
			records = append(records, &net.MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}
