package server

import (
	"fmt"
	"net"

	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/wire"
	"github.com/easzlab/xhashlb/pkg/config"
	"github.com/easzlab/xhashlb/pkg/snat"
	"go.uber.org/zap"
)

// buildRegistry translates the loaded config's real servers into a fresh
// registry, 1-based id order matching their position in the config file.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*registry.Registry, error) {
	reg := registry.New(int(cfg.Global.VirtualNodes))

	for i, rsCfg := range cfg.RealServers {
		ip, err := ipv4Bytes(rsCfg.IP)
		if err != nil {
			return nil, fmt.Errorf("realserver[%d]: %w", i, err)
		}

		mac := parseMAC(rsCfg.MAC, logger)

		rs := &registry.RealServer{
			ID:     uint32(i + 1),
			IP:     ip,
			Port:   rsCfg.Port,
			MAC:    mac,
			Weight: rsCfg.Weight,
		}
		if err := reg.Add(rs); err != nil {
			return nil, fmt.Errorf("realserver[%d]: %w", i, err)
		}
	}

	return reg, nil
}

// buildSNATRules derives the NAT-mode return-path rules from the current
// registry membership: every backend's reply traffic gets SNAT'd (or
// MASQUERADE'd, if no explicit snat source is configured) back through the
// balancer.
func buildSNATRules(reg *registry.Registry, snatIP string) []snat.SNATRule {
	backends := reg.List()
	rules := make([]snat.SNATRule, 0, len(backends))
	for _, rs := range backends {
		rules = append(rules, snat.SNATRule{
			BackendIP:   fmt.Sprintf("%d.%d.%d.%d", rs.IP[0], rs.IP[1], rs.IP[2], rs.IP[3]),
			BackendPort: rs.Port,
			Protocol:    "tcp",
			SnatIP:      snatIP,
		})
	}
	return rules
}

func ipv4Bytes(s string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(s)
	if ip == nil {
		return out, fmt.Errorf("invalid ip %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("ip %q is not IPv4", s)
	}
	copy(out[:], v4)
	return out, nil
}

// parseMAC resolves a config MAC string to wire.MAC. Per §9, a malformed
// or empty entry resolves to the all-zero MAC rather than failing config
// load outright, since DR mode can still be reconfigured at runtime once
// ARP resolves the real address.
func parseMAC(s string, logger *zap.Logger) wire.MAC {
	var mac wire.MAC
	if s == "" {
		return mac
	}
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		logger.Warn("invalid realserver mac, defaulting to zero", zap.String("mac", s))
		return mac
	}
	copy(mac[:], hw)
	return mac
}
