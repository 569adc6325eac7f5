package server

import (
	"net"

	"github.com/miekg/dns"

	"github.com/zerotier/zeronsd/internal/zone"
)

// dnsTypeToRRType maps an incoming query type to the zone package's record
// type space. Types the zone never stores (anything but A/AAAA/PTR/ANY) map
// to typeOther, which always yields zero records -- NODATA if the owner
// exists, NXDOMAIN otherwise, exactly as an authoritative server should
// answer a query for an RR type it doesn't carry at a name it does serve.
func dnsTypeToRRType(qtype uint16) zone.RRType {
	switch qtype {
	case dns.TypeA:
		return zone.TypeA
	case dns.TypeAAAA:
		return zone.TypeAAAA
	case dns.TypePTR:
		return zone.TypePTR
	case dns.TypeANY:
		return zone.TypeANY
	default:
		return zone.TypeOther
	}
}

// recordToRR converts one zone.Record into its wire RR.
func recordToRR(r zone.Record) dns.RR {
	hdr := dns.RR_Header{Name: r.Owner, Class: dns.ClassINET, Ttl: r.TTL}
	switch r.Type {
	case zone.TypeA:
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: net.IP(r.Addr.AsSlice())}
	case zone.TypeAAAA:
		hdr.Rrtype = dns.TypeAAAA
		return &dns.AAAA{Hdr: hdr, AAAA: net.IP(r.Addr.AsSlice())}
	case zone.TypePTR:
		hdr.Rrtype = dns.TypePTR
		return &dns.PTR{Hdr: hdr, Ptr: r.Target}
	default:
		return nil
	}
}

func recordsToRRs(recs []zone.Record) []dns.RR {
	out := make([]dns.RR, 0, len(recs))
	for _, r := range recs {
		if rr := recordToRR(r); rr != nil {
			out = append(out, rr)
		}
	}
	return out
}
