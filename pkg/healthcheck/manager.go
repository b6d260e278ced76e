package healthcheck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/easzlab/xhashlb/internal/registry"
	"go.uber.org/zap"
)

// backendStatus tracks the consecutive check results for a single backend.
// The backend's actual Status lives in the registry; this struct only
// holds the run counters needed to decide the next transition.
type backendStatus struct {
	id               uint32
	consecutiveFails int
	consecutiveOK    int
	cancel           context.CancelFunc
}

// Manager drives the registry's per-backend status bits (§3: UP, DOWN,
// CHECKING) from periodic TCP probes, the way the teacher's health check
// manager drove its own boolean healthy/unhealthy transitions.
type Manager struct {
	reg       *registry.Registry
	checker   Checker
	interval  time.Duration
	failCount int
	riseCount int

	statuses map[uint32]*backendStatus
	mu       sync.Mutex
	onChange func()
	logger   *zap.Logger
}

// NewManager creates a health check Manager bound to reg. The onChange
// callback is invoked whenever a backend's status bit changes.
func NewManager(reg *registry.Registry, interval, timeout time.Duration, failCount, riseCount int, onChange func(), logger *zap.Logger) *Manager {
	return &Manager{
		reg:       reg,
		checker:   NewTCPChecker(timeout),
		interval:  interval,
		failCount: failCount,
		riseCount: riseCount,
		statuses:  make(map[uint32]*backendStatus),
		onChange:  onChange,
		logger:    logger,
	}
}

// Start begins probing every backend currently in the registry that isn't
// already tracked.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rs := range m.reg.List() {
		if _, tracked := m.statuses[rs.ID]; tracked {
			continue
		}
		m.startLocked(ctx, rs.ID)
	}
}

// Sync reconciles the tracked backend set with the registry's current
// membership: new backends get probes started, removed backends get
// their probe goroutine cancelled.
func (m *Manager) Sync(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[uint32]bool)
	for _, rs := range m.reg.List() {
		live[rs.ID] = true
		if _, tracked := m.statuses[rs.ID]; !tracked {
			m.startLocked(ctx, rs.ID)
		}
	}

	for id, st := range m.statuses {
		if !live[id] {
			st.cancel()
			delete(m.statuses, id)
			m.logger.Info("stopped health check for removed backend", zap.Uint32("backend_id", id))
		}
	}
}

func (m *Manager) startLocked(ctx context.Context, id uint32) {
	checkCtx, cancel := context.WithCancel(ctx)
	st := &backendStatus{id: id, cancel: cancel}
	m.statuses[id] = st

	m.logger.Info("started health check for backend", zap.Uint32("backend_id", id))
	go m.runCheck(checkCtx, st)
}

func (m *Manager) runCheck(ctx context.Context, st *backendStatus) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs, ok := m.reg.Get(st.id)
			if !ok {
				return
			}
			addr := fmt.Sprintf("%d.%d.%d.%d:%d", rs.IP[0], rs.IP[1], rs.IP[2], rs.IP[3], rs.Port)
			err := m.checker.Check(addr)
			m.handleCheckResult(st, err)
		}
	}
}

// handleCheckResult applies one probe result's worth of hysteresis and, if
// it crosses a threshold, updates the registry's status bit.
func (m *Manager) handleCheckResult(st *backendStatus, checkErr error) {
	rs, ok := m.reg.Get(st.id)
	if !ok {
		return
	}
	prev := rs.GetStatus()
	next := prev

	if checkErr != nil {
		st.consecutiveFails++
		st.consecutiveOK = 0

		switch prev {
		case registry.StatusUp:
			if st.consecutiveFails >= m.failCount {
				next = registry.StatusDown
			} else {
				next = registry.StatusChecking
			}
		case registry.StatusChecking:
			if st.consecutiveFails >= m.failCount {
				next = registry.StatusDown
			}
		}
	} else {
		st.consecutiveOK++
		st.consecutiveFails = 0

		switch prev {
		case registry.StatusDown:
			if st.consecutiveOK >= m.riseCount {
				next = registry.StatusUp
			} else {
				next = registry.StatusChecking
			}
		case registry.StatusChecking:
			if st.consecutiveOK >= m.riseCount {
				next = registry.StatusUp
			}
		}
	}

	if next == prev {
		return
	}

	if err := m.reg.SetStatus(st.id, next); err != nil {
		return
	}

	if next == registry.StatusDown {
		m.logger.Warn("backend marked down",
			zap.Uint32("backend_id", st.id),
			zap.Int("consecutive_fails", st.consecutiveFails),
			zap.Error(checkErr),
		)
	} else if next == registry.StatusUp {
		m.logger.Info("backend marked up",
			zap.Uint32("backend_id", st.id),
			zap.Int("consecutive_ok", st.consecutiveOK),
		)
	}

	if m.onChange != nil {
		m.onChange()
	}
}

// Stop cancels every running health check goroutine and clears state.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, st := range m.statuses {
		st.cancel()
		m.logger.Debug("stopped health check", zap.Uint32("backend_id", id))
	}

	m.statuses = make(map[uint32]*backendStatus)
	m.logger.Info("all health checks stopped")
}
