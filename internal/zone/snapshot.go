package zone

import (
	"net/netip"
	"sort"
)

// RRType enumerates the record types the zone authority serves.
type RRType uint8

const (
	TypeA RRType = iota
	TypeAAAA
	TypePTR
	// TypeANY is never stored in a snapshot; it is only a Lookup qtype that
	// requests every type present at an owner.
	TypeANY
	// TypeOther is never stored either; it stands in for any query type the
	// zone doesn't carry (e.g. MX, TXT), so a Lookup for it always yields
	// zero records -- NODATA if the owner exists, NXDOMAIN otherwise.
	TypeOther
)

// Record is a single unit of the zone: an owner name, its RR type, a TTL,
// and its rdata (an address for A/AAAA, a domain name for PTR).
type Record struct {
	Owner  string
	Type   RRType
	TTL    uint32
	Addr   netip.Addr // set for TypeA / TypeAAAA
	Target string     // set for TypePTR
}

// Snapshot is an immutable zone built by Build and installed into an
// Authority. Exactly one snapshot is current at any moment.
type Snapshot struct {
	origin   string
	ttl      uint32
	wildcard bool

	// forward maps an absolute owner name to the records present there,
	// grouped by type.
	forward map[string]map[RRType][]Record

	// reverse maps an absolute in-addr.arpa/ip6.arpa owner to its single PTR
	// record.
	reverse map[string]Record
}

// emptySnapshot is the zero-record zone served before the reconciler
// completes its first successful tick.
func emptySnapshot(origin string, ttl uint32, wildcard bool) *Snapshot {
	return &Snapshot{
		origin:   origin,
		ttl:      ttl,
		wildcard: wildcard,
		forward:  map[string]map[RRType][]Record{},
		reverse:  map[string]Record{},
	}
}

// rrTypeFor returns the RRType matching addr's family.
func rrTypeFor(addr netip.Addr) RRType {
	if addr.Is4() || addr.Is4In6() {
		return TypeA
	}
	return TypeAAAA
}

// addForward appends A/AAAA records at owner for each address, without
// disturbing any records already present (used for the always-present
// zt-<id> form, which is never subject to collision).
func (s *Snapshot) addForward(owner string, addrs []netip.Addr, ttl uint32) {
	for _, addr := range addrs {
		s.appendRecord(owner, Record{Owner: owner, Type: rrTypeFor(addr), TTL: ttl, Addr: addr})
	}
}

// setForward replaces whatever A/AAAA records exist at owner with one
// record per address (used for the sanitized-name form, where a later
// member or a hosts-file entry overwrites an earlier one at the same
// owner).
func (s *Snapshot) setForward(owner string, addrs []netip.Addr, ttl uint32) {
	byType := s.forward[owner]
	if byType == nil {
		byType = map[RRType][]Record{}
		s.forward[owner] = byType
	}
	delete(byType, TypeA)
	delete(byType, TypeAAAA)
	s.addForward(owner, addrs, ttl)
}

func (s *Snapshot) appendRecord(owner string, rec Record) {
	byType := s.forward[owner]
	if byType == nil {
		byType = map[RRType][]Record{}
		s.forward[owner] = byType
	}
	for _, existing := range byType[rec.Type] {
		if existing.Addr == rec.Addr {
			return // duplicate (owner, type, rdata) collapses.
		}
	}
	byType[rec.Type] = append(byType[rec.Type], rec)
}

// addPTRFor sets a PTR record pointing at owner for each address, unless the
// address is a 6PLANE address. It never overwrites a PTR
// already set (setPTRFor does that, and is called after addPTRFor for the
// same member when the member has a usable name).
func (s *Snapshot) addPTRFor(owner string, addrs []netip.Addr, networkID string, ttl uint32) {
	for _, addr := range addrs {
		if IsSixPlane(addr, networkID) {
			continue
		}
		ptrOwner := PTROwner(addr)
		if _, exists := s.reverse[ptrOwner]; exists {
			continue
		}
		s.reverse[ptrOwner] = Record{Owner: ptrOwner, Type: TypePTR, TTL: ttl, Target: owner}
	}
}

// setPTRFor unconditionally points the PTR record at owner, overriding
// whatever addPTRFor set for the zt-<id> form. Still suppressed for 6PLANE
// addresses.
func (s *Snapshot) setPTRFor(owner string, addrs []netip.Addr, networkID string, ttl uint32) {
	for _, addr := range addrs {
		if IsSixPlane(addr, networkID) {
			continue
		}
		ptrOwner := PTROwner(addr)
		s.reverse[ptrOwner] = Record{Owner: ptrOwner, Type: TypePTR, TTL: ttl, Target: owner}
	}
}

// forwardTypes returns the sorted set of types present at owner.
func (s *Snapshot) forwardTypes(owner string) []RRType {
	types := s.forward[owner]
	out := make([]RRType, 0, len(types))
	for t := range types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
