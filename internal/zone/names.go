// Package zone implements the forward/reverse DNS record catalogue for a
// single ZeroTier network: name formatting, the in-memory zone authority,
// and the snapshot-build algorithm the reconciler drives.
package zone

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// memberIDPattern matches labels beginning with the zt-<id> form reserved for
// member-id records; Sanitize uses it to reject names that would collide with
// one (see the zt- collision rule below).
var memberIDPattern = regexp.MustCompile(`^zt-[0-9a-f]{10}`)

var digitsOnlyPattern = regexp.MustCompile(`^[0-9]+$`)

var dashRunPattern = regexp.MustCompile(`-+`)

const maxLabelOctets = 63
const maxNameOctets = 253

// MemberLabel formats a ZeroTier member address into the zt-<id> label used
// as its always-present DNS name.
func MemberLabel(memberID string) string {
	return "zt-" + strings.ToLower(memberID)
}

// Sanitize turns a free-form member name into a single DNS label, or reports
// that no usable name could be produced. Runs of characters outside
// [a-z0-9-] collapse to a single hyphen, leading/trailing hyphens are
// trimmed, and the result is rejected if it would be empty, too long, could
// be mistaken for a bare IPv4 octet run, or begins with the zt-<id> form.
func Sanitize(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	label := dashRunPattern.ReplaceAllString(b.String(), "-")
	label = strings.Trim(label, "-")

	if label == "" {
		return "", false
	}
	if len(label) > maxLabelOctets || len(label) > maxNameOctets {
		return "", false
	}
	if digitsOnlyPattern.MatchString(label) {
		// Would be indistinguishable from a bare octet; reject.
		return "", false
	}
	if memberIDPattern.MatchString(label) {
		// Reserved for the zt-<member_id> form.
		return "", false
	}
	return label, true
}

// Qualify appends the TLD to a label (or label sequence) and returns the
// canonical (lowercased, absolute) name.
func Qualify(label, tld string) string {
	label = strings.Trim(label, ".")
	tld = strings.Trim(tld, ".")
	return dns.CanonicalName(fmt.Sprintf("%s.%s.", label, tld))
}

// PTROwner computes the standard in-addr.arpa/ip6.arpa owner name for an IP
// address.
func PTROwner(addr netip.Addr) string {
	if addr.Is4() || addr.Is4In6() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", b[3], b[2], b[1], b[0])
	}
	b := addr.As16()
	var sb strings.Builder
	for i := len(b) - 1; i >= 0; i-- {
		hi := b[i] >> 4
		lo := b[i] & 0x0f
		fmt.Fprintf(&sb, "%x.%x.", lo, hi)
	}
	sb.WriteString("ip6.arpa.")
	return sb.String()
}

// sixPlanePrefix computes the deterministic 40-bit (5-byte) 6PLANE prefix
// ("fc" followed by the network ID XOR-folded into 32 bits) for a network.
func sixPlanePrefix(networkID string) ([5]byte, bool) {
	nwid, err := strconv.ParseUint(networkID, 16, 64)
	if err != nil {
		return [5]byte{}, false
	}
	folded := uint32(nwid>>32) ^ uint32(nwid)
	var prefix [5]byte
	prefix[0] = 0xfc
	binary.BigEndian.PutUint32(prefix[1:], folded)
	return prefix, true
}

// IsSixPlane reports whether addr falls within the ZeroTier 6PLANE /80
// assigned to networkID: the high 40 bits must equal "fc" plus the
// network's XOR-folded 32-bit identifier, with the following 40 bits free to
// encode the member address. PTR records are suppressed for such addresses
// because they are derived deterministically and colliding PTRs would
// otherwise appear for every member on the network.
func IsSixPlane(addr netip.Addr, networkID string) bool {
	if !addr.Is6() || addr.Is4In6() {
		return false
	}
	prefix, ok := sixPlanePrefix(networkID)
	if !ok {
		return false
	}
	b := addr.As16()
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
