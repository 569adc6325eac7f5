package zone

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// Code is the disposition of a Lookup.
type Code int

const (
	// CodeRefused means the queried name is outside both the served TLD
	// and this node's reverse zones; the dispatcher should forward it
	// upstream instead of answering. Never put on the wire as-is.
	CodeRefused Code = iota
	// CodeNXDomain means the name does not exist in the zone.
	CodeNXDomain
	// CodeNoData means the owner exists but has no records of the
	// requested type (NOERROR, empty answer).
	CodeNoData
	// CodeRecords means matching records were found.
	CodeRecords
)

// Result is the outcome of a Lookup.
type Result struct {
	Code    Code
	Records []Record
}

// Authority is the in-memory forward/reverse zone for one Network. It holds
// an atomically-swapped pointer to the current Snapshot: Install publishes a
// new one; Lookup reads a stable reference for the duration of one query,
// satisfying snapshot monotonicity without per-record locking.
type Authority struct {
	network      Network
	tldAbs       string
	reverseZones []string

	current atomic.Pointer[Snapshot]
}

// NewAuthority creates an Authority serving network, initially with an
// empty (zero-record) snapshot so queries always get a well-formed answer
// even before the reconciler's first successful tick.
func NewAuthority(network Network) *Authority {
	a := &Authority{
		network:      network,
		tldAbs:       dns.CanonicalName(network.TLD),
		reverseZones: reverseZoneSuffixes(network.Prefixes),
	}
	ttl := uint32(network.TTL / time.Second)
	a.current.Store(emptySnapshot(a.tldAbs, ttl, network.Wildcard))
	return a
}

// Install atomically replaces the current snapshot. Never partially
// updates the zone: readers either see the old snapshot in full, or the
// new one in full.
func (a *Authority) Install(snap *Snapshot) {
	a.current.Store(snap)
}

// Current returns the presently-installed snapshot.
func (a *Authority) Current() *Snapshot {
	return a.current.Load()
}

// reverseZoneSuffixes computes, for each of the node's assigned prefixes,
// the enclosing in-addr.arpa/ip6.arpa zone name, byte/nibble-aligned to the
// nearest boundary at or below the prefix length.
func reverseZoneSuffixes(prefixes []netip.Prefix) []string {
	var zones []string
	for _, p := range prefixes {
		zones = append(zones, reverseZoneSuffix(p))
	}
	return zones
}

func reverseZoneSuffix(p netip.Prefix) string {
	p = p.Masked()
	addr := p.Addr()
	bits := p.Bits()

	if addr.Is4() || addr.Is4In6() {
		octets := bits / 8
		b := addr.As4()
		labels := make([]string, 0, octets)
		for i := octets - 1; i >= 0; i-- {
			labels = append(labels, strconv.Itoa(int(b[i])))
		}
		labels = append(labels, "in-addr", "arpa")
		return dns.CanonicalName(strings.Join(labels, "."))
	}

	nibbles := bits / 4
	b := addr.As16()
	labels := make([]string, 0, nibbles)
	for i := nibbles - 1; i >= 0; i-- {
		byteIdx := i / 2
		var nib byte
		if i%2 == 0 {
			nib = b[byteIdx] >> 4
		} else {
			nib = b[byteIdx] & 0x0f
		}
		labels = append(labels, fmt.Sprintf("%x", nib))
	}
	labels = append(labels, "ip6", "arpa")
	return dns.CanonicalName(strings.Join(labels, "."))
}

// withinReverseZones reports whether owner falls inside any zone this node
// is authoritative for in reverse.
func (a *Authority) withinReverseZones(owner string) bool {
	for _, z := range a.reverseZones {
		if dns.IsSubDomain(z, owner) {
			return true
		}
	}
	return false
}

// Lookup answers a single query against the current snapshot, following
// the order: Refused (outside served zones) -> exact match -> wildcard (for
// A/AAAA only) -> NXDOMAIN.
func (a *Authority) Lookup(owner string, qtype RRType) Result {
	owner = dns.CanonicalName(owner)

	inTLD := dns.IsSubDomain(a.tldAbs, owner)
	inReverse := a.withinReverseZones(owner)
	if !inTLD && !inReverse {
		return Result{Code: CodeRefused}
	}

	snap := a.current.Load()

	if inReverse {
		return lookupReverse(snap, owner, qtype)
	}
	return a.lookupForward(snap, owner, qtype)
}

func lookupReverse(snap *Snapshot, owner string, qtype RRType) Result {
	rec, ok := snap.reverse[owner]
	if !ok {
		return Result{Code: CodeNXDomain}
	}
	if qtype != TypePTR && qtype != TypeANY {
		return Result{Code: CodeNoData}
	}
	return Result{Code: CodeRecords, Records: []Record{rec}}
}

func (a *Authority) lookupForward(snap *Snapshot, owner string, qtype RRType) Result {
	if byType, ok := snap.forward[owner]; ok {
		recs := recordsForType(byType, qtype)
		if len(recs) == 0 {
			return Result{Code: CodeNoData}
		}
		return Result{Code: CodeRecords, Records: recs}
	}

	if snap.wildcard && (qtype == TypeA || qtype == TypeAAAA || qtype == TypeANY) {
		if recs, ok := a.wildcardLookup(snap, owner, qtype); ok {
			return Result{Code: CodeRecords, Records: recs}
		}
	}

	return Result{Code: CodeNXDomain}
}

// wildcardLookup strips leftmost labels one at a time looking for a known
// owner whose type set covers qtype, per standard DNS wildcard semantics.
// Matching records are returned re-owned to the original queried name.
func (a *Authority) wildcardLookup(snap *Snapshot, owner string, qtype RRType) ([]Record, bool) {
	next := owner
	for {
		idx := strings.IndexByte(next, '.')
		if idx < 0 || idx+1 >= len(next) {
			return nil, false
		}
		next = next[idx+1:]
		if next == "" || next == "." {
			return nil, false
		}
		if !dns.IsSubDomain(a.tldAbs, next) {
			return nil, false
		}
		byType, ok := snap.forward[next]
		if !ok {
			continue
		}
		recs := recordsForType(byType, qtype)
		if len(recs) == 0 {
			continue
		}
		out := make([]Record, len(recs))
		for i, r := range recs {
			r.Owner = owner
			out[i] = r
		}
		return out, true
	}
}

func recordsForType(byType map[RRType][]Record, qtype RRType) []Record {
	if qtype == TypeANY {
		var all []Record
		all = append(all, byType[TypeA]...)
		all = append(all, byType[TypeAAAA]...)
		return all
	}
	return byType[qtype]
}
