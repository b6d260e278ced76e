// Package netiface resolves the local network identity (outbound
// interface MAC, gateway MAC) needed to build a forward.Local value,
// grounded on the pack's netlink-based neighbor and link lookups.
package netiface

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LinkMAC returns the hardware address of the named interface.
func LinkMAC(name string) ([6]byte, error) {
	var mac [6]byte

	link, err := netlink.LinkByName(name)
	if err != nil {
		return mac, fmt.Errorf("netiface: link %s: %w", name, err)
	}

	hw := link.Attrs().HardwareAddr
	if len(hw) < 6 {
		return mac, fmt.Errorf("netiface: link %s has no hardware address", name)
	}
	copy(mac[:], hw[:6])
	return mac, nil
}

// ResolveNeighborMAC queries the kernel's neighbor (ARP) table for the MAC
// address of ip on the named interface. It accepts REACHABLE, STALE, and
// PERMANENT entries.
func ResolveNeighborMAC(ifaceName string, ip net.IP) ([6]byte, error) {
	var mac [6]byte

	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return mac, fmt.Errorf("netiface: link %s: %w", ifaceName, err)
	}

	neighs, err := netlink.NeighList(link.Attrs().Index, netlink.FAMILY_V4)
	if err != nil {
		return mac, fmt.Errorf("netiface: neigh list on %s: %w", ifaceName, err)
	}

	for _, n := range neighs {
		if !n.IP.Equal(ip) {
			continue
		}
		if n.State&(netlink.NUD_REACHABLE|netlink.NUD_STALE|netlink.NUD_PERMANENT) == 0 {
			continue
		}
		if len(n.HardwareAddr) >= 6 {
			copy(mac[:], n.HardwareAddr[:6])
			return mac, nil
		}
	}

	return mac, fmt.Errorf("netiface: no neighbor entry for %s on %s", ip, ifaceName)
}

// InterfaceForIP finds the name of the interface that owns ip.
func InterfaceForIP(ip net.IP) (string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return "", fmt.Errorf("netiface: link list: %w", err)
	}

	for _, link := range links {
		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr.IP.Equal(ip) {
				return link.Attrs().Name, nil
			}
		}
	}

	return "", fmt.Errorf("netiface: no interface owns %s", ip)
}
