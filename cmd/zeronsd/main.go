// Command zeronsd serves DNS for one ZeroTier network: it republishes the
// network's member inventory as forward and reverse records, forwards
// everything else upstream, and keeps Central pointed at itself as the
// network's DNS server.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zerotier/zeronsd/internal/central"
	"github.com/zerotier/zeronsd/internal/forwarder"
	"github.com/zerotier/zeronsd/internal/reconcile"
	"github.com/zerotier/zeronsd/internal/server"
	"github.com/zerotier/zeronsd/internal/ztlocal"
	"github.com/zerotier/zeronsd/internal/zone"
)

type flags struct {
	networkID  string
	domain     string
	wildcard   bool
	hostsPath  string
	token      string
	secret     string
	tlsCert    string
	tlsKey     string
	logLevel   string
	resolvConf string
	ztBaseURL  string
	centralURL string
	pollEvery  time.Duration
	ttl        time.Duration
	metricAddr string
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "zeronsd",
		Short: "Authoritative and forwarding DNS server for a ZeroTier network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	root.PersistentFlags().StringVar(&f.networkID, "network", "", "ZeroTier network ID to serve (required)")
	root.PersistentFlags().StringVar(&f.domain, "domain", "home.arpa", "DNS suffix served authoritatively")
	root.PersistentFlags().BoolVar(&f.wildcard, "wildcard", false, "answer A/AAAA for any name below a known name under --domain")
	root.PersistentFlags().StringVar(&f.hostsPath, "hosts", "", "optional hosts(5)-format file to merge into the zone")
	root.PersistentFlags().StringVar(&f.token, "token", "", "ZeroTier Central API token")
	root.PersistentFlags().StringVar(&f.secret, "secret", "", "local ZeroTier service auth secret (authtoken.secret)")
	root.PersistentFlags().StringVar(&f.tlsCert, "tls-cert", "", "DNS-over-TLS certificate file; enables port 853 when set with --tls-key")
	root.PersistentFlags().StringVar(&f.tlsKey, "tls-key", "", "DNS-over-TLS private key file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&f.resolvConf, "resolv-conf", "/etc/resolv.conf", "upstream resolver configuration for forwarded queries")
	root.PersistentFlags().StringVar(&f.ztBaseURL, "zt-api", "", "local ZeroTier service base URL (default http://127.0.0.1:9993)")
	root.PersistentFlags().StringVar(&f.centralURL, "central-api", "", "ZeroTier Central base URL (default https://my.zerotier.com/api/v1)")
	root.PersistentFlags().DurationVar(&f.pollEvery, "poll-interval", 30*time.Second, "reconciler poll cadence")
	root.PersistentFlags().DurationVar(&f.ttl, "ttl", 60*time.Second, "TTL applied to every served record")
	root.PersistentFlags().StringVar(&f.metricAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags) error {
	level, err := zerolog.ParseLevel(f.logLevel)
	if err != nil {
		return fmt.Errorf("parsing --log-level: %w", err)
	}
	logger := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if f.networkID == "" {
		return fmt.Errorf("--network is required")
	}
	if f.token == "" {
		return fmt.Errorf("--token is required")
	}
	if f.secret == "" {
		return fmt.Errorf("--secret is required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ztClient := ztlocal.New(f.ztBaseURL, f.secret)

	status, err := ztClient.Status(ctx)
	if err != nil {
		return fmt.Errorf("querying local ZeroTier service: %w", err)
	}
	netConf, err := ztClient.NetworkConfig(ctx, f.networkID)
	if err != nil {
		return fmt.Errorf("querying local network config: %w", err)
	}
	prefixes, err := assignedPrefixes(netConf.AssignedAddresses)
	if err != nil {
		return fmt.Errorf("parsing assigned addresses: %w", err)
	}

	network := zone.Network{
		ID:           f.networkID,
		NodeAddress:  status.Address,
		Prefixes:     prefixes,
		TLD:          f.domain,
		Wildcard:     f.wildcard,
		HostsPath:    f.hostsPath,
		PollInterval: f.pollEvery,
		TTL:          f.ttl,
	}

	authority := zone.NewAuthority(network)

	centralClient := central.New(f.centralURL, f.token)
	publisher := central.NewPublisher(centralClient, f.networkID)

	var registry prometheus.Registerer
	if f.metricAddr != "" {
		reg := prometheus.NewRegistry()
		registry = reg
		go serveMetrics(f.metricAddr, reg, logger)
	}
	metrics := server.NewMetrics(registry)

	fwd, err := forwarder.FromClientConfig(f.resolvConf)
	if err != nil {
		return fmt.Errorf("loading upstream resolver configuration: %w", err)
	}

	dispatcher := server.New(authority, fwd, logger, metrics)

	reconciler := reconcile.New(network, authority, ztClient, centralClient, publisher, logger)
	go reconciler.Run(ctx)

	tlsConfig, err := loadTLSConfig(f.tlsCert, f.tlsKey)
	if err != nil {
		return fmt.Errorf("loading TLS material: %w", err)
	}

	addrs := listenAddresses(prefixes)
	if len(addrs) == 0 {
		return fmt.Errorf("node has no assigned addresses on network %s to listen on", f.networkID)
	}

	logger.Info().Strs("listen", addrs).Str("domain", f.domain).Msg("starting zeronsd")
	return dispatcher.ListenAndServe(ctx, addrs, tlsConfig)
}

// assignedPrefixes parses the local service's reported assigned-address
// list (each a CIDR string) into netip.Prefix, skipping anything
// unparsable rather than failing startup outright.
func assignedPrefixes(assigned []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, a := range assigned {
		p, err := netip.ParsePrefix(a)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parsable assigned addresses")
	}
	return out, nil
}

// listenAddresses derives the bind addresses from the node's own assigned
// prefixes: ZeroNSD listens only on its ZeroTier interface addresses, never
// on every interface.
func listenAddresses(prefixes []netip.Prefix) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range prefixes {
		addr := p.Addr().String()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// loadTLSConfig builds a server TLS config from a cert/key pair, or returns
// nil if neither flag was set (DNS-over-TLS stays disabled).
func loadTLSConfig(cert, key string) (*tls.Config, error) {
	if cert == "" && key == "" {
		return nil, nil
	}
	if cert == "" || key == "" {
		return nil, fmt.Errorf("--tls-cert and --tls-key must be set together")
	}
	pair, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("addr", addr).Msg("metrics listener exited")
	}
}
