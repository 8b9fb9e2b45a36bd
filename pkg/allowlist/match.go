package allowlist

import (
	"net/netip"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// Ranges is the parsed form of one client's allowlist entries.
type Ranges []*ipaddr.IPAddressString

// ParseRanges parses allowlist entries. Single addresses, CIDR prefixes,
// wildcard segments ("10.1.*.*") and ranges ("10.1.1.1-9") are accepted for
// both families. Empty and malformed entries are returned in invalid and left
// out of the result.
func ParseRanges(entries []string) (ranges Ranges, invalid []string) {
	ranges = make(Ranges, 0, len(entries))
	for _, entry := range entries {
		r, ok := parseRange(entry)
		if !ok {
			invalid = append(invalid, entry)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, invalid
}

func parseRange(entry string) (*ipaddr.IPAddressString, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, false
	}
	r := ipaddr.NewIPAddressString(entry)
	if !r.IsValid() {
		return nil, false
	}
	return r, true
}

// Contains reports whether sourceIP falls into any of the ranges. A malformed
// source never matches. IPv4-mapped IPv6 sources ("::ffff:192.0.2.1") are
// matched as IPv4.
func (r Ranges) Contains(sourceIP string) bool {
	sourceIP = strings.TrimSpace(sourceIP)
	if addr, err := netip.ParseAddr(sourceIP); err == nil {
		sourceIP = addr.Unmap().WithZone("").String()
	}
	src, ok := parseRange(sourceIP)
	if !ok {
		return false
	}
	for _, allowed := range r {
		if allowed.Contains(src) {
			return true
		}
	}
	return false
}
