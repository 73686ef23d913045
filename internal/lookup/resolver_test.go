package lookup

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
)

func testZone(w mdns.ResponseWriter, req *mdns.Msg) {
	m := new(mdns.Msg)
	m.SetReply(req)
	q := req.Question[0]
	hdr := mdns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: mdns.ClassINET, Ttl: 60}

	switch {
	case q.Name == "example.com." && q.Qtype == mdns.TypeTXT:
		m.Answer = append(m.Answer, &mdns.TXT{Hdr: hdr, Txt: []string{"v=spf1 include:_spf.google.com", " ~all"}})
	case q.Name == "example.com." && q.Qtype == mdns.TypeMX:
		m.Answer = append(m.Answer,
			&mdns.MX{Hdr: hdr, Preference: 20, Mx: "mx2.example.com."},
			&mdns.MX{Hdr: hdr, Preference: 10, Mx: "mx1.example.com."},
		)
	case q.Name == "nodata.example.com.":
		// NOERROR with an empty answer section.
	case q.Name == "broken.example.com.":
		m.SetRcode(req, mdns.RcodeServerFailure)
	case q.Name == "refused.example.com.":
		m.SetRcode(req, mdns.RcodeRefused)
	default:
		m.SetRcode(req, mdns.RcodeNameError)
	}
	_ = w.WriteMsg(m)
}

func startTestServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &mdns.Server{
		PacketConn:        pc,
		Handler:           mdns.HandlerFunc(testZone),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func newTestResolver(t *testing.T, servers ...string) *DNSResolver {
	t.Helper()

	ns, err := NewNameservers(servers)
	if err != nil {
		t.Fatalf("NewNameservers: %v", err)
	}
	r, err := NewResolver(ResolverConfig{
		Timeout:     300 * time.Millisecond,
		Lifetime:    time.Second,
		Nameservers: ns,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestDNSResolverTXTJoinsStrings(t *testing.T) {
	r := newTestResolver(t, startTestServer(t))

	txts, err := r.LookupTXT(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("LookupTXT: %v", err)
	}
	if len(txts) != 1 || txts[0] != "v=spf1 include:_spf.google.com ~all" {
		t.Errorf("unexpected TXT %q", txts)
	}
}

func TestDNSResolverMX(t *testing.T) {
	r := newTestResolver(t, startTestServer(t))

	mx, err := r.LookupMX(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("LookupMX: %v", err)
	}
	if len(mx) != 2 {
		t.Fatalf("expected 2 MX, got %d", len(mx))
	}
}

func TestDNSResolverRcodes(t *testing.T) {
	r := newTestResolver(t, startTestServer(t))

	tests := []struct {
		name string
		want error
	}{
		{"missing.example.com", ErrNotFound},
		{"nodata.example.com", ErrNotFound},
		{"broken.example.com", ErrServFail},
		{"refused.example.com", ErrRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.LookupTXT(context.Background(), tt.name)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if !Answered(err) {
				t.Errorf("%v should count as answered", err)
			}
		})
	}
}

func TestDNSResolverDeadServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := pc.LocalAddr().String()
	pc.Close()

	r := newTestResolver(t, dead)
	_, err = r.LookupTXT(context.Background(), "example.com")
	if err == nil || Answered(err) {
		t.Errorf("expected a transport failure, got %v", err)
	}
}

func TestDNSResolverFailsOverToLiveServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := pc.LocalAddr().String()
	pc.Close()

	r := newTestResolver(t, dead, startTestServer(t))
	if _, err := r.LookupTXT(context.Background(), "example.com"); err != nil {
		t.Errorf("expected the live server to answer, got %v", err)
	}
}

func TestDNSResolverHonoursCancellation(t *testing.T) {
	r := newTestResolver(t, startTestServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.LookupTXT(ctx, "example.com")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewResolverDefaults(t *testing.T) {
	r, err := NewResolver(ResolverConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cfg := r.Config()
	if cfg.Timeout != 5*time.Second || cfg.Lifetime != 5*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Nameservers.List()) == 0 {
		t.Error("expected nameservers to be set")
	}
}
