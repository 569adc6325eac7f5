// Package server is the DNS request dispatcher (C6): it listens over
// UDP/TCP, and optionally DNS-over-TLS, and for each query either answers
// from the zone authority or forwards it upstream.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zerotier/zeronsd/internal/zone"
)

// Upstream is the subset of the forwarder the dispatcher needs.
type Upstream interface {
	Forward(ctx context.Context, req *dns.Msg) (*dns.Msg, error)
}

// maxPlainUDPSize is the default maximum payload advertised for clients
// that send no EDNS0 OPT at all.
const maxPlainUDPSize = 512

// defaultForwardTimeout bounds the whole Upstream.Forward call, independent
// of whatever per-server timeout the forwarder applies internally.
const defaultForwardTimeout = 5 * time.Second

// Server dispatches DNS queries: names under the served zone are answered
// from authority, everything else goes to upstream. Satisfies
// dns.Handler.
type Server struct {
	authority *zone.Authority
	upstream  Upstream
	log       zerolog.Logger
	metrics   *Metrics
}

// New constructs a Server.
func New(authority *zone.Authority, upstream Upstream, log zerolog.Logger, metrics *Metrics) *Server {
	return &Server{
		authority: authority,
		upstream:  upstream,
		log:       log.With().Str("component", "dispatcher").Logger(),
		metrics:   metrics,
	}
}

// ServeDNS implements dns.Handler: NotImp for non-IN classes, answer from
// the authority whenever it isn't Refused, otherwise forward upstream
// subject to a timeout, answering ServFail on forwarder failure.
func (s *Server) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) != 1 {
		s.reply(w, req, rcodeOnly(req, dns.RcodeFormatError))
		return
	}
	q := req.Question[0]

	if q.Qclass != dns.ClassINET {
		s.metrics.incNotImp()
		s.reply(w, req, rcodeOnly(req, dns.RcodeNotImplemented))
		return
	}

	result := s.authority.Lookup(q.Name, dnsTypeToRRType(q.Qtype))
	switch result.Code {
	case zone.CodeRefused:
		s.forward(w, req)
	case zone.CodeRecords:
		ans := s.baseAnswer(req)
		ans.Answer = recordsToRRs(result.Records)
		s.metrics.incAnswered()
		s.reply(w, req, ans)
	case zone.CodeNoData:
		s.metrics.incAnswered()
		s.reply(w, req, s.baseAnswer(req))
	case zone.CodeNXDomain:
		ans := s.baseAnswer(req)
		ans.Rcode = dns.RcodeNameError
		s.metrics.incAnswered()
		s.reply(w, req, ans)
	default:
		s.log.Error().Int("code", int(result.Code)).Msg("unreachable lookup code; answering servfail")
		s.reply(w, req, rcodeOnly(req, dns.RcodeServerFailure))
	}
}

// forward bounds the whole Upstream.Forward call at defaultForwardTimeout,
// independent of whatever per-server timeout the forwarder applies
// internally across however many upstreams it tries.
func (s *Server) forward(w dns.ResponseWriter, req *dns.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultForwardTimeout)
	defer cancel()

	resp, err := s.upstream.Forward(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("qname", qnameOf(req)).Msg("forwarding upstream failed")
		s.metrics.incServfail()
		s.reply(w, req, rcodeOnly(req, dns.RcodeServerFailure))
		return
	}
	resp.Id = req.Id
	s.metrics.incForwarded()
	s.reply(w, req, resp)
}

func qnameOf(req *dns.Msg) string {
	if len(req.Question) == 0 {
		return ""
	}
	return req.Question[0].Name
}

func rcodeOnly(req *dns.Msg, rcode int) *dns.Msg {
	ans := new(dns.Msg)
	ans.SetRcode(req, rcode)
	return ans
}

// baseAnswer builds an authoritative reply skeleton and echoes EDNS0 if the
// query sent one, advertising our own maximum UDP payload without claiming
// DNSSEC support.
func (s *Server) baseAnswer(req *dns.Msg) *dns.Msg {
	ans := new(dns.Msg)
	ans.SetReply(req)
	ans.Authoritative = true
	ans.RecursionAvailable = false
	ans.Compress = true
	if opt := req.IsEdns0(); opt != nil {
		ans.SetEdns0(dns.DefaultMsgSize, false)
	}
	return ans
}

// reply writes ans to w, truncating (TC=1, minimal body) if it would
// exceed the negotiated UDP payload size.
func (s *Server) reply(w dns.ResponseWriter, req *dns.Msg, ans *dns.Msg) {
	if isUDP(w) {
		maxSize := maxPlainUDPSize
		if opt := req.IsEdns0(); opt != nil {
			maxSize = int(opt.UDPSize())
		}
		if buf, err := ans.Pack(); err == nil && len(buf) > maxSize {
			trimmed := new(dns.Msg)
			trimmed.SetReply(req)
			trimmed.Authoritative = ans.Authoritative
			trimmed.Compress = true
			trimmed.Truncated = true
			ans = trimmed
		}
	}
	if err := w.WriteMsg(ans); err != nil {
		s.log.Error().Err(err).Msg("writing DNS response failed")
	}
}

func isUDP(w dns.ResponseWriter) bool {
	addr := w.RemoteAddr()
	return addr != nil && addr.Network() == "udp"
}

// ListenAndServe binds UDP and TCP on port 53 for every address, plus
// DNS-over-TLS on port 853 for each when tlsConfig is non-nil, and runs
// until ctx is canceled. Each listener runs in its own goroutine,
// coordinated by an errgroup; on cancellation every listener is given a
// bounded grace period to finish in-flight queries before it is shut down.
func (s *Server) ListenAndServe(ctx context.Context, addrs []string, tlsConfig *tls.Config) error {
	if len(addrs) == 0 {
		return fmt.Errorf("server: no listen addresses supplied")
	}

	var servers []*dns.Server
	for _, addr := range addrs {
		servers = append(servers,
			&dns.Server{Addr: net.JoinHostPort(addr, "53"), Net: "udp", Handler: s},
			&dns.Server{Addr: net.JoinHostPort(addr, "53"), Net: "tcp", Handler: s},
		)
		if tlsConfig != nil {
			servers = append(servers, &dns.Server{
				Addr:      net.JoinHostPort(addr, "853"),
				Net:       "tcp-tls",
				TLSConfig: tlsConfig,
				Handler:   s,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			s.log.Info().Str("addr", srv.Addr).Str("net", srv.Net).Msg("listening")
			if err := srv.ListenAndServe(); err != nil {
				return fmt.Errorf("listening on %s/%s: %w", srv.Addr, srv.Net, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultForwardTimeout)
		defer cancel()
		for _, srv := range servers {
			_ = srv.ShutdownContext(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
