package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// CIDRSubnet calculates a subnet address given a network address, a netmask
// size increase, and a subnet number, like Terraform's cidrsubnet.
// Only IPv4 is supported.
func CIDRSubnet(prefix string, newbits int, netnum int) (string, error) {
	network, err := netip.ParsePrefix(prefix)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	if !network.Addr().Is4() {
		return "", fmt.Errorf("only IPv4 addresses are supported, got %s", prefix)
	}
	network = network.Masked()

	newMaskSize := network.Bits() + newbits
	if newbits < 0 || newMaskSize > 32 {
		return "", fmt.Errorf("prefix extension of %d bits is invalid for %s", newbits, prefix)
	}
	if netnum < 0 || netnum >= 1<<newbits {
		return "", fmt.Errorf("subnet number %d exceeds max subnets %d", netnum, 1<<newbits)
	}

	base := network.Addr().As4()
	ip := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	// #nosec G115
	ip += uint32(netnum) << (32 - newMaskSize)

	addr := netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)})
	return netip.PrefixFrom(addr, newMaskSize).String(), nil
}

// NormalizeIngressCIDR parses an ingress source. A bare IPv4 address is
// widened to a /32; assumed reports that this happened so callers can warn.
func NormalizeIngressCIDR(s string) (cidr string, assumed bool, err error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			return "", false, fmt.Errorf("invalid IPv4 address %q", s)
		}
		return netip.PrefixFrom(addr, 32).String(), true, nil
	}

	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return "", false, fmt.Errorf("invalid IPv4 CIDR %q", s)
	}
	return p.Masked().String(), false, nil
}
