// Package reconcile drives the periodic inventory reconciliation loop: it
// fetches node status and member inventory, rebuilds the zone, installs it
// atomically, and keeps Central's advertised DNS pointer in sync.
package reconcile

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zerotier/zeronsd/internal/central"
	"github.com/zerotier/zeronsd/internal/hosts"
	"github.com/zerotier/zeronsd/internal/ztlocal"
	"github.com/zerotier/zeronsd/internal/zone"
)

const defaultPollInterval = 30 * time.Second

// LocalService is the subset of the local ZeroTier service client the
// reconciler needs.
type LocalService interface {
	Status(ctx context.Context) (ztlocal.Status, error)
	NetworkConfig(ctx context.Context, networkID string) (ztlocal.NetworkConfig, error)
}

// CentralService is the subset of the Central client the reconciler needs.
type CentralService interface {
	GetMembers(ctx context.Context, networkID string) ([]central.Member, error)
}

// Publisher is the Central DNS-pointer publisher interface the reconciler
// drives every tick.
type Publisher interface {
	Publish(ctx context.Context, domain string, servers []string) error
}

// Reconciler is the periodic Idle -> Polling -> Publishing -> Sleeping loop
// that keeps a network's zone and Central DNS pointer in sync.
type Reconciler struct {
	network   zone.Network
	authority *zone.Authority
	local     LocalService
	central   CentralService
	publisher Publisher
	log       zerolog.Logger
}

// New constructs a Reconciler for one Network, writing its results into
// authority.
func New(network zone.Network, authority *zone.Authority, local LocalService, centralSvc CentralService, publisher Publisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		network:   network,
		authority: authority,
		local:     local,
		central:   centralSvc,
		publisher: publisher,
		log:       log.With().Str("component", "reconciler").Str("network_id", network.ID).Logger(),
	}
}

// Run ticks forever at the network's poll interval (defaulting to 30s)
// until ctx is canceled. It always performs one tick immediately on start
// so the zone is populated before the first interval elapses.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.network.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one Idle -> Polling -> Publishing -> Sleeping cycle. A
// failure at any fetch step leaves the current snapshot untouched and
// schedules no special retry; the next tick happens at the same cadence,
// per spec: no exponential backoff, and DNS must never go stale-forever
// silently nor serve a half-built snapshot.
func (r *Reconciler) tick(ctx context.Context) {
	status, err := r.local.Status(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("fetching local node status failed; retaining current snapshot")
		return
	}

	netConf, err := r.local.NetworkConfig(ctx, r.network.ID)
	if err != nil {
		r.log.Warn().Err(err).Msg("fetching local network config failed; retaining current snapshot")
		return
	}

	members, err := r.central.GetMembers(ctx, r.network.ID)
	if err != nil {
		if _, ok := err.(*central.AuthError); ok {
			r.log.Error().Err(err).Msg("Central authentication failed; retaining current snapshot")
		} else {
			r.log.Warn().Err(err).Msg("fetching Central member list failed; retaining current snapshot")
		}
		return
	}

	hostEntries, err := hosts.ParseFile(r.network.HostsPath, r.warnf)
	if err != nil {
		r.log.Warn().Err(err).Msg("reading hosts file failed; continuing without hosts entries")
	}

	zoneMembers := toZoneMembers(members, r.warnf)
	snap := zone.Build(r.network, zoneMembers, hostEntries, r.warnf)
	r.authority.Install(snap)
	r.log.Info().
		Str("self_address", status.Address).
		Int("member_count", len(zoneMembers)).
		Msg("installed new zone snapshot")

	servers := advertisedServers(netConf.AssignedAddresses)
	if len(servers) == 0 {
		r.log.Warn().Msg("no assigned addresses on this node; skipping Central DNS publish")
		return
	}
	if err := r.publisher.Publish(ctx, r.network.TLD, servers); err != nil {
		r.log.Warn().Err(err).Msg("publishing DNS pointer to Central failed; will retry next tick")
	}
}

func (r *Reconciler) warnf(format string, args ...any) {
	r.log.Warn().Msgf(format, args...)
}

// toZoneMembers converts Central's wire representation into zone.Member,
// skipping malformed entries (invariant: a missing member_id is skipped
// with a warning, the rest of the snapshot builds normally) and addresses
// that don't parse.
func toZoneMembers(members []central.Member, warn func(format string, args ...any)) []zone.Member {
	out := make([]zone.Member, 0, len(members))
	for _, m := range members {
		if m.Config.Address == "" {
			warn("member missing member_id, skipping")
			continue
		}
		zm := zone.Member{
			ID:         m.Config.Address,
			Name:       m.Name,
			Authorized: m.Config.Authorized,
		}
		for _, ipStr := range m.Config.IPAssignments {
			ip := parseIPAssignment(ipStr)
			if ip.IsValid() {
				zm.AssignedIPs = append(zm.AssignedIPs, ip)
			}
		}
		out = append(out, zm)
	}
	return out
}

func parseIPAssignment(s string) netip.Addr {
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// advertisedServers picks the addresses to hand Central as this server's
// listeners: every assigned address, IPv4 preferred first so resolvers that
// only try the first server see the dual-stack-friendlier choice.
func advertisedServers(assigned []string) []string {
	var v4, v6 []string
	for _, a := range assigned {
		prefix, err := netip.ParsePrefix(a)
		if err != nil {
			continue
		}
		addr := prefix.Addr()
		if addr.Is4() || addr.Is4In6() {
			v4 = append(v4, addr.String())
		} else {
			v6 = append(v6, addr.String())
		}
	}
	return append(v4, v6...)
}
