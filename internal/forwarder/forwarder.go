// Package forwarder sends non-TLD queries to the host's configured upstream
// resolvers. It never caches and never recurses past a single upstream
// exchange; ZeroNSD is not a recursive resolver.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

const defaultTimeout = 5 * time.Second

// ErrNoUpstreams is returned when no upstream resolver configuration could
// be loaded and none was supplied explicitly.
var ErrNoUpstreams = errors.New("forwarder: no upstream nameservers configured")

// Forwarder queries upstream resolvers sequentially, returning the first
// non-ServFail answer. Built once from the host's resolver configuration at
// startup (not hot-reloaded, per spec).
type Forwarder struct {
	servers []string
	port    string
	client  *dns.Client
	timeout time.Duration
}

// FromClientConfig builds a Forwarder from a resolv.conf-style file (as
// miekg/dns's own dns.ClientConfigFromFile parses it), the idiom
// folbricht-routedns and the rest of the miekg/dns ecosystem use to pick up
// host resolver configuration.
func FromClientConfig(path string) (*Forwarder, error) {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resolver config %q: %w", path, err)
	}
	if len(cfg.Servers) == 0 {
		return nil, ErrNoUpstreams
	}
	return New(cfg.Servers, cfg.Port), nil
}

// New builds a Forwarder from an explicit server list (addresses, no
// port), each queried on port (defaulting to "53").
func New(servers []string, port string) *Forwarder {
	if port == "" {
		port = "53"
	}
	return &Forwarder{
		servers: servers,
		port:    port,
		client:  &dns.Client{Timeout: defaultTimeout},
		timeout: defaultTimeout,
	}
}

// Forward sends req to each upstream in order, per-server timeout applied,
// and returns the first non-ServFail answer. The caller is responsible for
// never calling this for a name under the served TLD; no upstream call
// should ever be made for such names.
func (f *Forwarder) Forward(ctx context.Context, req *dns.Msg) (*dns.Msg, error) {
	if len(f.servers) == 0 {
		return nil, ErrNoUpstreams
	}

	var lastErr error
	for _, server := range f.servers {
		qctx, cancel := context.WithTimeout(ctx, f.timeout)
		resp, _, err := f.client.ExchangeContext(qctx, req, server+":"+f.port)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode == dns.RcodeServerFailure {
			lastErr = fmt.Errorf("upstream %s returned SERVFAIL", server)
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = ErrNoUpstreams
	}
	return nil, lastErr
}
