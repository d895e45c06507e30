package platform

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
)

// GamePort is the well-known UDP port both peers listen on.
const GamePort = 7777

// MaxDatagramSize is the size of a single read from the game socket.
// A datagram of exactly this size signals that the logical message continues
// in the next datagram.
const MaxDatagramSize = 4096

// ResolveLocalAddr returns the IPv4 address the machine's host name resolves to.
// If the host name can't be resolved, the first non-loopback IPv4 interface address is used,
// and loopback as the last resort.
func ResolveLocalAddr(ctx context.Context) netip.Addr {
	if hostname, err := os.Hostname(); err == nil {
		if addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", hostname); err == nil {
			for _, addr := range addrs {
				if addr.Is4() || addr.Is4In6() {
					return addr.Unmap()
				}
			}
		}
	}

	if addr, ok := firstInterfaceAddr(); ok {
		return addr
	}

	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

func firstInterfaceAddr() (netip.Addr, bool) {
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, false
	}

	for _, a := range ifaces {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		addr := prefix.Addr().Unmap()
		if addr.Is4() && !addr.IsLoopback() {
			return addr, true
		}
	}

	return netip.Addr{}, false
}

// ParseHost parses numeric host address entered by the user, e.g. "192.168.1.5".
func ParseHost(host string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse host %q: %w", host, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("host %q is not an IPv4 address", host)
	}

	return addr, nil
}
