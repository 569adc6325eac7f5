package zone

import (
	"net/netip"
	"time"
)

// Network is the immutable per-process context describing the ZeroTier
// network this instance serves: its own identity, the node's assigned
// address space on it, and the operator-configured serving policy.
type Network struct {
	// ID is the 16-hex-character ZeroTier network ID.
	ID string

	// NodeAddress is this process's own 10-hex-character ZeroTier address.
	NodeAddress string

	// Prefixes are this node's assigned IP prefixes on the network. Forward
	// records are only generated for member addresses overlapping one of
	// these.
	Prefixes []netip.Prefix

	// TLD is the DNS suffix served authoritatively. Defaults to home.arpa.
	TLD string

	// Wildcard enables wildcard A/AAAA answers under every known name.
	Wildcard bool

	// HostsPath is the optional path to a hosts(5)-format file merged into
	// the zone. Empty disables it.
	HostsPath string

	// PollInterval is the reconciler's tick cadence. Defaults to 30s.
	PollInterval time.Duration

	// TTL is applied uniformly to every record in a snapshot. Defaults to
	// 60s.
	TTL time.Duration
}

// Member is one ZeroTier network member as observed from Central.
type Member struct {
	// ID is the member's 10-hex-character ZeroTier address. Required;
	// unique within a network.
	ID string

	// Name is the free-form, user-supplied member name. May be empty.
	Name string

	// AssignedIPs are the member's assigned addresses on the network.
	AssignedIPs []netip.Addr

	// Authorized reports whether Central has authorized this member.
	Authorized bool
}

// overlapsAny reports whether addr falls within any of the prefixes.
func overlapsAny(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
