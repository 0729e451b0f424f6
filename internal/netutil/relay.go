package netutil

import (
	"net"
	"strings"
)

// cgnat is the carrier-grade NAT range also used by Tailscale and WARP.
var cgnat = mustCIDR("100.64.0.0/10")

// tunnelHints match interface names of VPN and point-to-point adapters.
var tunnelHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// Interface is the part of a network interface the relay heuristic reads.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.IP
}

// ShouldForceRelay reports whether this host is likely behind a VPN or CGNAT,
// where direct mesh connections usually fail and TURN should be used.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	list := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		item := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					item.Addrs = append(item.Addrs, v.IP)
				case *net.IPAddr:
					item.Addrs = append(item.Addrs, v.IP)
				}
			}
		}
		list = append(list, item)
	}
	return RelayLikely(list)
}

// RelayLikely applies the heuristic to an explicit interface list.
func RelayLikely(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range tunnelHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, ip := range iface.Addrs {
			if cgnat.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}
