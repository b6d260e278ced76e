package healthcheck

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/easzlab/xhashlb/internal/registry"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, n int) *registry.Registry {
	t.Helper()
	reg := registry.New(150)
	for i := 1; i <= n; i++ {
		rs := &registry.RealServer{
			ID:     uint32(i),
			IP:     [4]byte{192, 168, 1, byte(i)},
			Port:   8080,
			Weight: 100,
		}
		if err := reg.Add(rs); err != nil {
			t.Fatalf("failed to seed registry: %v", err)
		}
	}
	return reg
}

func TestManager_SyncTracksBackends(t *testing.T) {
	reg := newTestRegistry(t, 2)
	mgr := NewManager(reg, 100*time.Millisecond, 50*time.Millisecond, 3, 2, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.Sync(ctx)

	mgr.mu.Lock()
	count := len(mgr.statuses)
	mgr.mu.Unlock()
	if count != 2 {
		t.Fatalf("expected 2 tracked backends, got %d", count)
	}
}

func TestManager_SyncRemovesStaleBackends(t *testing.T) {
	reg := newTestRegistry(t, 2)
	mgr := NewManager(reg, 100*time.Millisecond, 50*time.Millisecond, 3, 2, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.Sync(ctx)
	reg.Remove(2)
	mgr.Sync(ctx)

	mgr.mu.Lock()
	_, stillTracked := mgr.statuses[2]
	_, oneTracked := mgr.statuses[1]
	mgr.mu.Unlock()

	if stillTracked {
		t.Error("expected removed backend to be untracked")
	}
	if !oneTracked {
		t.Error("expected remaining backend to still be tracked")
	}
}

// --- handleCheckResult tests ---

func TestHandleCheckResult_ConsecutiveFailsMarkDown(t *testing.T) {
	reg := newTestRegistry(t, 1)
	var onChangeCalled atomic.Int32
	mgr := NewManager(reg, time.Second, time.Second, 3, 2, func() { onChangeCalled.Add(1) }, zap.NewNop())

	st := &backendStatus{id: 1}
	checkErr := fmt.Errorf("connection refused")

	// Fail 1 and 2: transitions to CHECKING but not DOWN yet.
	mgr.handleCheckResult(st, checkErr)
	mgr.handleCheckResult(st, checkErr)

	rs, _ := reg.Get(1)
	if rs.GetStatus() == registry.StatusDown {
		t.Fatal("expected backend not yet down after 2 failures (threshold is 3)")
	}

	// Fail 3: crosses the threshold.
	mgr.handleCheckResult(st, checkErr)

	rs, _ = reg.Get(1)
	if rs.GetStatus() != registry.StatusDown {
		t.Error("expected backend down after 3 consecutive failures")
	}
	if onChangeCalled.Load() == 0 {
		t.Error("expected onChange to be called on status transition")
	}
}

func TestHandleCheckResult_ConsecutiveSuccessMarksUp(t *testing.T) {
	reg := newTestRegistry(t, 1)
	reg.SetStatus(1, registry.StatusDown)
	var onChangeCalled atomic.Int32
	mgr := NewManager(reg, time.Second, time.Second, 3, 2, func() { onChangeCalled.Add(1) }, zap.NewNop())

	st := &backendStatus{id: 1}

	mgr.handleCheckResult(st, nil)
	rs, _ := reg.Get(1)
	if rs.GetStatus() == registry.StatusUp {
		t.Fatal("expected backend not yet up after 1 success (threshold is 2)")
	}

	mgr.handleCheckResult(st, nil)
	rs, _ = reg.Get(1)
	if rs.GetStatus() != registry.StatusUp {
		t.Error("expected backend up after 2 consecutive successes")
	}
	if onChangeCalled.Load() == 0 {
		t.Error("expected onChange to be called on status transition")
	}
}

func TestHandleCheckResult_NoChangeNoCallback(t *testing.T) {
	reg := newTestRegistry(t, 1)
	var onChangeCalled atomic.Int32
	mgr := NewManager(reg, time.Second, time.Second, 3, 2, func() { onChangeCalled.Add(1) }, zap.NewNop())

	st := &backendStatus{id: 1}
	mgr.handleCheckResult(st, nil) // already UP, success keeps it UP

	if onChangeCalled.Load() != 0 {
		t.Errorf("expected onChange not to be called when status doesn't change, got %d", onChangeCalled.Load())
	}
}

func TestHandleCheckResult_FailResetsConsecutiveOK(t *testing.T) {
	reg := newTestRegistry(t, 1)
	reg.SetStatus(1, registry.StatusDown)
	mgr := NewManager(reg, time.Second, time.Second, 3, 3, nil, zap.NewNop())

	st := &backendStatus{id: 1}
	mgr.handleCheckResult(st, nil)
	mgr.handleCheckResult(st, nil)
	mgr.handleCheckResult(st, fmt.Errorf("fail"))

	if st.consecutiveOK != 0 {
		t.Errorf("expected consecutiveOK reset to 0, got %d", st.consecutiveOK)
	}
	if st.consecutiveFails != 1 {
		t.Errorf("expected consecutiveFails 1, got %d", st.consecutiveFails)
	}
}

func TestHandleCheckResult_UnknownBackendIgnored(t *testing.T) {
	reg := newTestRegistry(t, 1)
	mgr := NewManager(reg, time.Second, time.Second, 3, 2, nil, zap.NewNop())

	st := &backendStatus{id: 999}
	mgr.handleCheckResult(st, nil) // should not panic
}

// --- Stop tests ---

func TestStop_ClearsAllState(t *testing.T) {
	reg := newTestRegistry(t, 2)
	mgr := NewManager(reg, 100*time.Millisecond, 50*time.Millisecond, 3, 2, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.Sync(ctx)

	mgr.mu.Lock()
	count := len(mgr.statuses)
	mgr.mu.Unlock()
	if count != 2 {
		t.Fatalf("expected 2 tracked backends, got %d", count)
	}

	mgr.Stop()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if len(mgr.statuses) != 0 {
		t.Errorf("expected 0 statuses after Stop, got %d", len(mgr.statuses))
	}
}

// --- Integration-style test: full lifecycle ---

func TestManager_FullLifecycle(t *testing.T) {
	reg := newTestRegistry(t, 1)
	var onChangeCalled atomic.Int32
	mgr := NewManager(reg, time.Second, time.Second, 2, 2, func() { onChangeCalled.Add(1) }, zap.NewNop())

	st := &backendStatus{id: 1}

	checkErr := fmt.Errorf("connection refused")
	mgr.handleCheckResult(st, checkErr)
	mgr.handleCheckResult(st, checkErr)

	rs, _ := reg.Get(1)
	if rs.GetStatus() != registry.StatusDown {
		t.Fatal("expected down after 2 failures")
	}

	mgr.handleCheckResult(st, nil)
	mgr.handleCheckResult(st, nil)

	rs, _ = reg.Get(1)
	if rs.GetStatus() != registry.StatusUp {
		t.Fatal("expected up after 2 successes")
	}

	// UP->CHECKING->DOWN->CHECKING->UP: onChange fires on each of the four
	// status changes.
	if onChangeCalled.Load() != 4 {
		t.Errorf("expected onChange called 4 times, got %d", onChangeCalled.Load())
	}
}
