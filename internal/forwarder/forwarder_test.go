package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startUDPHandler binds a UDP DNS listener on host:port and serves handler
// until the test ends.
func startUDPHandler(t *testing.T, host, port string, handler dns.HandlerFunc) {
	t.Helper()
	srv := &dns.Server{Addr: host + ":" + port, Net: "udp", Handler: handler}
	started := make(chan error, 1)
	srv.NotifyStartedFunc = func() { started <- nil }
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			select {
			case started <- err:
			default:
			}
		}
	}()
	t.Cleanup(func() { srv.Shutdown() })
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("starting test server on %s:%s: %v", host, port, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out starting test server on %s:%s", host, port)
	}
}

func okHandler(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	rr, _ := dns.NewRR("example.com. 60 IN A 1.2.3.4")
	m.Answer = append(m.Answer, rr)
	w.WriteMsg(m)
}

func servfailHandler(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetRcode(r, dns.RcodeServerFailure)
	w.WriteMsg(m)
}

func newQuery(name string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	return m
}

func TestForward_FirstNonServfailWins(t *testing.T) {
	const testPort = "17153"
	startUDPHandler(t, "127.0.0.1", testPort, servfailHandler)
	startUDPHandler(t, "127.0.0.2", testPort, okHandler)

	f := New([]string{"127.0.0.1", "127.0.0.2"}, testPort)
	resp, err := f.Forward(context.Background(), newQuery("example.com."))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("got %d answers, want 1", len(resp.Answer))
	}
}

func TestForward_SingleUpstreamHappyPath(t *testing.T) {
	const testPort = "17154"
	startUDPHandler(t, "127.0.0.1", testPort, okHandler)

	f := New([]string{"127.0.0.1"}, testPort)
	resp, err := f.Forward(context.Background(), newQuery("example.com."))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(resp.Answer) != 1 || resp.Answer[0].Header().Name != "example.com." {
		t.Errorf("unexpected answer: %+v", resp.Answer)
	}
}

func TestForward_NoUpstreamsConfigured(t *testing.T) {
	f := New(nil, "53")
	_, err := f.Forward(context.Background(), newQuery("example.com."))
	if err != ErrNoUpstreams {
		t.Errorf("err = %v, want ErrNoUpstreams", err)
	}
}

func TestForward_AllServersUnreachable(t *testing.T) {
	f := New([]string{"127.0.0.1"}, "1") // port 1 is unassigned, connection refused
	f.timeout = 200 * time.Millisecond
	if _, err := f.Forward(context.Background(), newQuery("example.com.")); err == nil {
		t.Errorf("expected an error when every upstream is unreachable")
	}
}
