package zone

import (
	"net/netip"
	"testing"
)

func TestSanitize(t *testing.T) {
	for tn, tc := range map[string]struct {
		input   string
		want    string
		wantOK  bool
	}{
		"simple":                {input: "laptop", want: "laptop", wantOK: true},
		"uppercase folds":       {input: "Laptop", want: "laptop", wantOK: true},
		"spaces collapse":       {input: "my   laptop", want: "my-laptop", wantOK: true},
		"punctuation collapses": {input: "my_laptop!!", want: "my-laptop", wantOK: true},
		"leading/trailing trim": {input: "--laptop--", want: "laptop", wantOK: true},
		"empty rejected":        {input: "", wantOK: false},
		"whitespace only":       {input: "   ", wantOK: false},
		"digits only rejected":  {input: "12345", wantOK: false},
		"zt- collision rejected": {input: "zt-0123456789", wantOK: false},
		"zt- collision case insensitive": {input: "ZT-0123456789", wantOK: false},
		"too long rejected": {
			input:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			wantOK: false,
		},
	} {
		t.Run(tn, func(t *testing.T) {
			got, ok := Sanitize(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMemberLabel(t *testing.T) {
	if got, want := MemberLabel("ABCDEF0123"), "zt-abcdef0123"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestQualify(t *testing.T) {
	for tn, tc := range map[string]struct {
		label, tld, want string
	}{
		"plain":          {label: "foo", tld: "home.arpa", want: "foo.home.arpa."},
		"trims dots":     {label: "foo.", tld: ".home.arpa.", want: "foo.home.arpa."},
	} {
		t.Run(tn, func(t *testing.T) {
			if got := Qualify(tc.label, tc.tld); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPTROwner(t *testing.T) {
	for tn, tc := range map[string]struct {
		addr string
		want string
	}{
		"v4": {addr: "10.1.2.3", want: "3.2.1.10.in-addr.arpa."},
		"v6": {
			addr: "fd00::1",
			want: "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.d.f.ip6.arpa.",
		},
	} {
		t.Run(tn, func(t *testing.T) {
			addr := netip.MustParseAddr(tc.addr)
			if got := PTROwner(addr); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsSixPlane(t *testing.T) {
	const networkID = "8056c2e21c000001"

	prefix, ok := sixPlanePrefix(networkID)
	if !ok {
		t.Fatalf("sixPlanePrefix(%q) failed", networkID)
	}

	var b [16]byte
	copy(b[:5], prefix[:])
	b[15] = 0x01
	sixPlaneAddr := netip.AddrFrom16(b)

	for tn, tc := range map[string]struct {
		addr      netip.Addr
		networkID string
		want      bool
	}{
		"matching 6plane address":  {addr: sixPlaneAddr, networkID: networkID, want: true},
		"unrelated v6 address":     {addr: netip.MustParseAddr("fd00::1"), networkID: networkID, want: false},
		"v4 address never 6plane":  {addr: netip.MustParseAddr("10.1.2.3"), networkID: networkID, want: false},
		"garbage network id":       {addr: sixPlaneAddr, networkID: "not-hex", want: false},
	} {
		t.Run(tn, func(t *testing.T) {
			if got := IsSixPlane(tc.addr, tc.networkID); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
