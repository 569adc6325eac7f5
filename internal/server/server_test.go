package server

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"github.com/zerotier/zeronsd/internal/zone"
)

// recorder is a minimal dns.ResponseWriter fake for capturing what
// ServeDNS writes back.
type recorder struct {
	got     *dns.Msg
	network string
}

func (r *recorder) LocalAddr() net.Addr  { return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 53} }
func (r *recorder) RemoteAddr() net.Addr {
	network := r.network
	if network == "" {
		network = "udp"
	}
	return fakeAddr(network)
}
func (r *recorder) WriteMsg(m *dns.Msg) error { r.got = m; return nil }
func (r *recorder) Write(b []byte) (int, error) { return len(b), nil }
func (r *recorder) Close() error                { return nil }
func (r *recorder) TsigStatus() error           { return nil }
func (r *recorder) TsigTimersOnly(bool)         {}
func (r *recorder) Hijack()                     {}

type fakeAddr string

func (a fakeAddr) Network() string { return string(a) }
func (a fakeAddr) String() string  { return "127.0.0.1:12345" }

type stubUpstream struct {
	resp *dns.Msg
	err  error
}

func (s *stubUpstream) Forward(context.Context, *dns.Msg) (*dns.Msg, error) {
	return s.resp, s.err
}

func testAuthority(t *testing.T) *zone.Authority {
	t.Helper()
	net := zone.Network{
		ID:       "8056c2e21c000001",
		TLD:      "home.arpa",
		Prefixes: []netip.Prefix{netip.MustParsePrefix("10.1.0.0/16")},
	}
	a := zone.NewAuthority(net)
	a.Install(zone.Build(net, []zone.Member{
		{ID: "abcdef0123", Name: "laptop", AssignedIPs: []netip.Addr{netip.MustParseAddr("10.1.2.3")}},
	}, nil, nil))
	return a
}

func query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func TestServeDNS_AnswersFromAuthority(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{}, zerolog.Nop(), nil)
	w := &recorder{}
	s.ServeDNS(w, query("laptop.home.arpa.", dns.TypeA))

	if w.got == nil {
		t.Fatal("no response written")
	}
	if w.got.Rcode != dns.RcodeSuccess {
		t.Errorf("Rcode = %v, want success", w.got.Rcode)
	}
	if len(w.got.Answer) != 1 {
		t.Fatalf("got %d answers, want 1", len(w.got.Answer))
	}
}

func TestServeDNS_NXDomain(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{}, zerolog.Nop(), nil)
	w := &recorder{}
	s.ServeDNS(w, query("nope.home.arpa.", dns.TypeA))

	if w.got.Rcode != dns.RcodeNameError {
		t.Errorf("Rcode = %v, want NXDOMAIN", w.got.Rcode)
	}
}

func TestServeDNS_NoData(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{}, zerolog.Nop(), nil)
	w := &recorder{}
	s.ServeDNS(w, query("laptop.home.arpa.", dns.TypeAAAA))

	if w.got.Rcode != dns.RcodeSuccess {
		t.Errorf("Rcode = %v, want success (NODATA)", w.got.Rcode)
	}
	if len(w.got.Answer) != 0 {
		t.Errorf("got %d answers, want 0", len(w.got.Answer))
	}
}

func TestServeDNS_ForwardsOutsideZone(t *testing.T) {
	upstreamAnswer := new(dns.Msg)
	rr, _ := dns.NewRR("example.com. 60 IN A 1.2.3.4")
	upstreamAnswer.Answer = append(upstreamAnswer.Answer, rr)

	s := New(testAuthority(t), &stubUpstream{resp: upstreamAnswer}, zerolog.Nop(), nil)
	w := &recorder{}
	s.ServeDNS(w, query("example.com.", dns.TypeA))

	if len(w.got.Answer) != 1 {
		t.Fatalf("got %d answers, want the forwarded answer", len(w.got.Answer))
	}
}

func TestServeDNS_ForwarderFailureIsServfail(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{err: context.DeadlineExceeded}, zerolog.Nop(), nil)
	w := &recorder{}
	s.ServeDNS(w, query("example.com.", dns.TypeA))

	if w.got.Rcode != dns.RcodeServerFailure {
		t.Errorf("Rcode = %v, want SERVFAIL", w.got.Rcode)
	}
}

func TestServeDNS_NonINETClassIsNotImp(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{}, zerolog.Nop(), nil)
	w := &recorder{}
	req := query("laptop.home.arpa.", dns.TypeA)
	req.Question[0].Qclass = dns.ClassCHAOS
	s.ServeDNS(w, req)

	if w.got.Rcode != dns.RcodeNotImplemented {
		t.Errorf("Rcode = %v, want NotImplemented", w.got.Rcode)
	}
}

func TestServeDNS_TCPNeverTruncated(t *testing.T) {
	s := New(testAuthority(t), &stubUpstream{}, zerolog.Nop(), nil)
	w := &recorder{network: "tcp"}
	s.ServeDNS(w, query("laptop.home.arpa.", dns.TypeA))

	if w.got.Truncated {
		t.Errorf("a TCP response should never be truncated")
	}
}
