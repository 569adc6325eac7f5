package zone

import (
	"net/netip"
	"time"

	"github.com/zerotier/zeronsd/internal/hosts"
)

// Build assembles a new Snapshot from a member list and an optional set of
// hosts-file entries, per the zone construction algorithm: every member
// contributes a zt-<id> record for each of its assigned IPs that overlaps
// this node's prefixes, plus a sanitized-name record when the member has a
// usable name (later member wins on name collision); PTR records mirror
// every member-derived forward record except 6PLANE addresses; hosts-file
// entries are applied last, override member-derived records at the same
// owner, and get no PTR records.
func Build(network Network, members []Member, hostEntries []hosts.Entry, warn func(format string, args ...any)) *Snapshot {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	ttl := uint32(network.TTL / time.Second)
	snap := emptySnapshot(network.TLD, ttl, network.Wildcard)

	for _, m := range members {
		if m.ID == "" {
			warn("member missing member_id, skipping")
			continue
		}

		matched := make([]netip.Addr, 0, len(m.AssignedIPs))
		for _, ip := range m.AssignedIPs {
			if overlapsAny(ip, network.Prefixes) {
				matched = append(matched, ip)
			}
		}
		if len(matched) == 0 {
			continue
		}

		idOwner := Qualify(MemberLabel(m.ID), network.TLD)
		snap.addForward(idOwner, matched, ttl)
		snap.addPTRFor(idOwner, matched, network.ID, ttl)

		label, ok := Sanitize(m.Name)
		if !ok {
			continue
		}
		nameOwner := Qualify(label, network.TLD)
		snap.setForward(nameOwner, matched, ttl) // later member wins
		snap.setPTRFor(nameOwner, matched, network.ID, ttl)
	}

	for _, entry := range hostEntries {
		for _, n := range entry.Names {
			label, ok := Sanitize(n)
			if !ok {
				warn("hosts file name %q did not sanitize to a usable label, skipping", n)
				continue
			}
			owner := Qualify(label, network.TLD)
			snap.setForward(owner, []netip.Addr{entry.IP}, ttl)
		}
	}

	return snap
}
