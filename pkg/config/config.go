// Package config loads, validates, and hot-reloads the balancer's
// configuration record (§6). The on-disk format is the INI-style
// section.key layout the spec documents; viper's native INI reader parses
// it, while loading/validation/hot-reload keep the shape of the teacher's
// own config Manager (Load/Validate/WatchConfig/GetConfig/OnChange).
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Mode selects the forwarder (§4.9).
type Mode string

const (
	ModeNAT Mode = "nat"
	ModeDR  Mode = "dr"
)

// GlobalConfig holds the [global] section.
type GlobalConfig struct {
	Mode           Mode
	SessionTimeout uint // seconds
	VirtualNodes   uint // V, the ring's replica base
}

// VIPConfig holds the [vip] section: the balancer's own identity.
type VIPConfig struct {
	IP    string
	MAC   string
	Ports []uint16
}

// NetworkConfig holds the [network] section.
type NetworkConfig struct {
	Gateway string
}

// RealServerConfig is one `realserver.server<i> = ip:port:weight:mac` entry.
type RealServerConfig struct {
	IP     string
	Port   uint16
	Weight uint32
	MAC    string // raw, possibly malformed; the caller resolves an invalid MAC to all-zero
}

// Config is the fully resolved configuration record (§6).
type Config struct {
	Global      GlobalConfig
	VIP         VIPConfig
	Network     NetworkConfig
	RealServers []RealServerConfig
}

// Manager handles configuration loading, validation, and hot-reload.
type Manager struct {
	viper      *viper.Viper
	configPath string
	current    *Config
	mu         sync.RWMutex
	onChange   chan struct{}
	logger     *zap.Logger
}

// NewManager creates a config Manager, loads and validates the initial configuration.
func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(configPath)
	viperInstance.SetConfigType("ini")

	viperInstance.SetDefault("global.mode", "nat")
	viperInstance.SetDefault("global.session_timeout", 90)
	viperInstance.SetDefault("global.virtual_nodes", 150)
	viperInstance.SetDefault("realserver.count", 0)

	manager := &Manager{
		viper:      viperInstance,
		configPath: configPath,
		onChange:   make(chan struct{}, 1),
		logger:     logger,
	}

	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	manager.current = cfg

	return manager, nil
}

// Load reads the config file, resolves it into a Config, and validates it.
func (m *Manager) Load() (*Config, error) {
	if err := m.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		Global: GlobalConfig{
			Mode:           Mode(strings.ToLower(m.viper.GetString("global.mode"))),
			SessionTimeout: m.viper.GetUint("global.session_timeout"),
			VirtualNodes:   m.viper.GetUint("global.virtual_nodes"),
		},
		Network: NetworkConfig{
			Gateway: m.viper.GetString("network.gateway"),
		},
	}

	cfg.VIP.IP = m.viper.GetString("vip.ip")
	cfg.VIP.MAC = m.viper.GetString("vip.mac")
	cfg.VIP.Ports = parsePortList(m.viper.GetString("vip.ports"))

	count := int(m.viper.GetUint("realserver.count"))
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("realserver.server%d", i)
		raw := m.viper.GetString(key)
		if raw == "" {
			return nil, fmt.Errorf("realserver.count is %d but %s is missing", count, key)
		}
		rs, err := parseRealServerLine(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		cfg.RealServers = append(cfg.RealServers, rs)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parseRealServerLine parses "ip:port:weight:mac". Per §9, only the first
// three colon-separated fields are ip/port/weight; every remaining token
// is rejoined with ":" to recover the MAC, since a MAC's own octets are
// themselves colon-separated.
func parseRealServerLine(line string) (RealServerConfig, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 3 {
		return RealServerConfig{}, fmt.Errorf("malformed realserver line %q (want ip:port:weight:mac)", line)
	}

	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return RealServerConfig{}, fmt.Errorf("invalid port in %q: %w", line, err)
	}

	weight, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return RealServerConfig{}, fmt.Errorf("invalid weight in %q: %w", line, err)
	}

	mac := ""
	if len(parts) > 3 {
		mac = strings.Join(parts[3:], ":")
	}

	return RealServerConfig{
		IP:     parts[0],
		Port:   uint16(port),
		Weight: uint32(weight),
		MAC:    mac,
	}, nil
}

// parsePortList parses a comma-separated port list, e.g. "80,443".
func parsePortList(s string) []uint16 {
	if s == "" {
		return nil
	}
	var out []uint16
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		p, err := strconv.ParseUint(tok, 10, 16)
		if err != nil {
			continue
		}
		out = append(out, uint16(p))
	}
	return out
}

// Validate checks the configuration for correctness.
func Validate(cfg *Config) error {
	if cfg.Global.Mode != ModeNAT && cfg.Global.Mode != ModeDR {
		return fmt.Errorf("global.mode must be %q or %q, got %q", ModeNAT, ModeDR, cfg.Global.Mode)
	}
	if cfg.Global.SessionTimeout == 0 {
		return fmt.Errorf("global.session_timeout must be positive")
	}

	if net.ParseIP(cfg.VIP.IP) == nil {
		return fmt.Errorf("vip.ip %q is not a valid IP address", cfg.VIP.IP)
	}
	if len(cfg.VIP.Ports) == 0 {
		return fmt.Errorf("vip.ports must list at least one port")
	}

	if cfg.Global.Mode == ModeNAT && net.ParseIP(cfg.Network.Gateway) == nil {
		return fmt.Errorf("network.gateway %q is required and must be a valid IP in nat mode", cfg.Network.Gateway)
	}

	if len(cfg.RealServers) == 0 {
		return fmt.Errorf("at least one realserver must be configured")
	}

	seen := make(map[string]bool)
	for i, rs := range cfg.RealServers {
		if net.ParseIP(rs.IP) == nil {
			return fmt.Errorf("realserver[%d]: invalid ip %q", i, rs.IP)
		}
		if rs.Port == 0 {
			return fmt.Errorf("realserver[%d]: port must be nonzero", i)
		}
		key := fmt.Sprintf("%s:%d", rs.IP, rs.Port)
		if seen[key] {
			return fmt.Errorf("realserver[%d]: duplicate address %s", i, key)
		}
		seen[key] = true
	}

	return nil
}

// WatchConfig starts watching the config file for changes.
// On change, it reloads and validates; if valid, updates current config and notifies via onChange channel.
func (m *Manager) WatchConfig() {
	m.viper.OnConfigChange(func(event fsnotify.Event) {
		m.logger.Info("config file changed", zap.String("file", event.Name))

		cfg, err := m.Load()
		if err != nil {
			m.logger.Error("failed to reload config, keeping previous config", zap.Error(err))
			return
		}

		m.mu.Lock()
		m.current = cfg
		m.mu.Unlock()

		m.logger.Info("config reloaded successfully")

		// Non-blocking send to notify listeners
		select {
		case m.onChange <- struct{}{}:
		default:
		}
	})

	m.viper.WatchConfig()
}

// GetConfig returns a snapshot of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange returns a read-only channel that signals when config has changed.
func (m *Manager) OnChange() <-chan struct{} {
	return m.onChange
}
