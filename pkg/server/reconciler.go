package server

import (
	"fmt"
	"sync"

	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/pkg/config"
	"go.uber.org/zap"
)

// Reconciler diffs a config.Config's real servers against the registry's
// live backend set and applies the minimal set of add/remove/update
// operations, the way the teacher's lvs.Reconciler diffed service configs
// against the kernel's IPVS state.
type Reconciler struct {
	reg    *registry.Registry
	logger *zap.Logger

	mu      sync.Mutex
	idByKey map[string]uint32
	nextID  uint32
}

// NewReconciler creates a Reconciler bound to reg.
func NewReconciler(reg *registry.Registry, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		reg:     reg,
		logger:  logger,
		idByKey: make(map[string]uint32),
	}
}

// Reconcile applies cfg's real servers to the registry: new addresses are
// added, stale addresses are removed, and addresses whose weight or MAC
// changed are replaced in place so the ring picks up the new weight.
func (r *Reconciler) Reconcile(cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desired := make(map[string]config.RealServerConfig, len(cfg.RealServers))
	for _, rsCfg := range cfg.RealServers {
		desired[realServerKey(rsCfg)] = rsCfg
	}

	// Remove backends no longer desired.
	for key, id := range r.idByKey {
		if _, ok := desired[key]; !ok {
			r.reg.Remove(id)
			delete(r.idByKey, key)
			r.logger.Info("removed realserver", zap.String("address", key))
		}
	}

	for key, rsCfg := range desired {
		id, tracked := r.idByKey[key]
		if tracked {
			current, ok := r.reg.Get(id)
			if ok && !needsUpdate(current, rsCfg) {
				continue
			}
			r.reg.Remove(id)
		} else {
			r.nextID++
			id = r.nextID
		}

		ip, err := ipv4Bytes(rsCfg.IP)
		if err != nil {
			return fmt.Errorf("realserver %s: %w", key, err)
		}

		rs := &registry.RealServer{
			ID:     id,
			IP:     ip,
			Port:   rsCfg.Port,
			MAC:    parseMAC(rsCfg.MAC, r.logger),
			Weight: rsCfg.Weight,
		}
		if err := r.reg.Add(rs); err != nil {
			return fmt.Errorf("realserver %s: %w", key, err)
		}
		r.idByKey[key] = id
		r.logger.Info("reconciled realserver", zap.String("address", key), zap.Uint32("id", id))
	}

	return nil
}

func realServerKey(rs config.RealServerConfig) string {
	return fmt.Sprintf("%s:%d", rs.IP, rs.Port)
}

func needsUpdate(current registry.RealServer, desired config.RealServerConfig) bool {
	if current.Weight != desired.Weight {
		return true
	}
	mac := parseMAC(desired.MAC, zap.NewNop())
	return current.MAC != mac
}
