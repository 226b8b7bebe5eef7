package config

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/imamik/oscp/internal/resource"
)

// privateRange is one block of the allocator's search space: every /24 with
// the given first octet and a second octet in [secondFrom, secondTo].
type privateRange struct {
	first      byte
	secondFrom int
	secondTo   int
}

// privateRanges is the allocator's scan order. It must not change: callers
// and tests rely on the first free block being predictable.
var privateRanges = []privateRange{
	{first: 10, secondFrom: 0, secondTo: 255},    // 10.0.0.0/8
	{first: 172, secondFrom: 16, secondTo: 31},   // 172.16.0.0/12
	{first: 192, secondFrom: 168, secondTo: 168}, // 192.168.0.0/16
}

// FirstFreeSubnet returns the first /24 in 10.0.0.0/8, then 172.16.0.0/12,
// then 192.168.0.0/16 that does not overlap any block in blacklist.
// Candidates are enumerated in ascending address order within each range.
// It returns resource.ErrSubnetsExhausted when every candidate overlaps.
func FirstFreeSubnet(blacklist []netip.Prefix) (netip.Prefix, error) {
	masked := make([]netip.Prefix, 0, len(blacklist))
	for _, p := range blacklist {
		if p.IsValid() && p.Addr().Is4() {
			masked = append(masked, p.Masked())
		}
	}

	for _, r := range privateRanges {
		for second := r.secondFrom; second <= r.secondTo; second++ {
			for third := 0; third < 256; third++ {
				// #nosec G115
				addr := netip.AddrFrom4([4]byte{r.first, byte(second), byte(third), 0})
				candidate := netip.PrefixFrom(addr, 24)
				if !overlapsAny(candidate, masked) {
					return candidate, nil
				}
			}
		}
	}

	return netip.Prefix{}, resource.ErrSubnetsExhausted
}

func overlapsAny(candidate netip.Prefix, blocks []netip.Prefix) bool {
	for _, b := range blocks {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// ParsePrefixes parses CIDR strings, ignoring blanks. A bare IPv4 address is
// read as a /32.
func ParsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// CIDRHost calculates a full host IP address for a given network address and host number.
// This mimics the behavior of Terraform's cidrhost function.
//
// Parameters:
//   - prefix: The network prefix (e.g., "10.0.0.0/24")
//   - hostnum: The host number to calculate. Can be negative to count from the end
//
// Note: Only IPv4 addresses are supported. IPv6 addresses will return an error.
func CIDRHost(prefix string, hostnum int) (string, error) {
	_, network, err := net.ParseCIDR(prefix)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR prefix: %w", err)
	}

	if network.IP.To4() == nil {
		return "", fmt.Errorf("only IPv4 addresses are supported, got IPv6: %s", prefix)
	}

	maskSize, totalBits := network.Mask.Size()
	hostBits := totalBits - maskSize
	maxHosts := uint64(1) << hostBits

	var offset uint64
	if hostnum < 0 {
		absHostNum := uint64(-hostnum)
		if absHostNum > maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
		offset = maxHosts - absHostNum
	} else {
		offset = uint64(hostnum)
		if offset >= maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
	}

	ipInt := uint64(binary.BigEndian.Uint32(network.IP.To4())) + offset

	ip := make(net.IP, 4)
	// #nosec G115
	binary.BigEndian.PutUint32(ip, uint32(ipInt))
	return ip.String(), nil
}

// HostPool returns the usable address range of a gateway-less IPv4 subnet:
// from the first host to the last address before broadcast.
func HostPool(cidr string) (start, end string, err error) {
	start, err = CIDRHost(cidr, 1)
	if err != nil {
		return "", "", err
	}
	end, err = CIDRHost(cidr, -2)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}
