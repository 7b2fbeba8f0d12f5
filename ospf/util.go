package ospf

import (
	"net"
	"net/netip"

	"go4.org/netipx"
	"golang.org/x/exp/constraints"
)

// addMetric adds b to a, clamping at the maximum value of T.
func addMetric[T constraints.Unsigned](a, b T) T {
	sum := a + b
	if sum < a {
		return ^T(0)
	}

	return sum
}

// MaskFromBits returns the dotted IPv4 netmask for a prefix length.
func MaskFromBits(bits int) netip.Addr {
	mask := net.CIDRMask(bits, 32)
	addr, _ := netip.AddrFromSlice(mask)
	return addr
}

// prefixFromMask combines a network number and a dotted mask into a prefix.
// Non-contiguous masks are rejected.
func prefixFromMask(addr, mask netip.Addr) (netip.Prefix, bool) {
	if !addr.Is4() || !mask.Is4() {
		return netip.Prefix{}, false
	}

	m := mask.As4()
	a := addr.As4()
	ipnet := &net.IPNet{
		IP:   net.IP(a[:]),
		Mask: net.IPMask(m[:]),
	}

	if ones, bits := ipnet.Mask.Size(); ones == 0 && bits == 0 {
		return netip.Prefix{}, false
	}

	pfx, ok := netipx.FromStdIPNet(ipnet)
	if !ok {
		return netip.Prefix{}, false
	}

	return pfx.Masked(), true
}

func prefixContains(pfx netip.Prefix, addr netip.Addr) bool {
	return pfx.IsValid() && pfx.Contains(addr)
}
