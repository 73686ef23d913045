package lookup

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	mdns "github.com/miekg/dns"
)

var fallbackNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Nameservers rotates the starting server between queries so load spreads
// across every configured resolver instead of always hitting the first one.
type Nameservers struct {
	servers []string
	counter uint64
}

// NewNameservers validates the list. An empty list falls back to
// /etc/resolv.conf and then to public resolvers.
func NewNameservers(list []string) (*Nameservers, error) {
	var parsed []string

	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), "53")
		}
		host, _, _ := net.SplitHostPort(s)
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("invalid nameserver '%s': not an IP address", s)
		}
		parsed = append(parsed, s)
	}

	if len(parsed) == 0 {
		parsed = systemNameservers()
	}

	return &Nameservers{servers: parsed}, nil
}

func systemNameservers() []string {
	conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return fallbackNameservers
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

// Order returns every server for one query. Each call starts one server
// further along and wraps around.
func (n *Nameservers) Order() []string {
	if n == nil || len(n.servers) == 0 {
		return nil
	}
	c := atomic.AddUint64(&n.counter, 1) - 1
	out := make([]string, len(n.servers))
	for i := range n.servers {
		out[i] = n.servers[(c+uint64(i))%uint64(len(n.servers))]
	}
	return out
}

func (n *Nameservers) List() []string {
	return append([]string(nil), n.servers...)
}
