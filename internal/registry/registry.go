// Package registry holds the id -> backend table and the consistent-hash
// ring derived from it, mirroring the lifecycle the teacher's IPVS
// reconciler drove against the kernel: backends are created at config load,
// mutated in place by status changes, replaced under the same id when their
// weight changes, and removed on reload or shutdown.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/easzlab/xhashlb/internal/hashing"
	"github.com/easzlab/xhashlb/internal/hashring"
	"github.com/easzlab/xhashlb/internal/wire"
)

// Status is a backend's health state.
type Status uint8

const (
	StatusDown Status = iota
	StatusUp
	StatusChecking
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusChecking:
		return "CHECKING"
	default:
		return "DOWN"
	}
}

// Counters are the per-backend statistics from §3. They are individually
// atomic so readers never need to take the registry lock to observe them.
// TotalConn, BytesIn and BytesOut are monotonic; ConnCount is the number of
// currently open connections and goes down on RecordConnClose.
type Counters struct {
	ConnCount  int64
	TotalConn  uint64
	BytesIn    uint64
	BytesOut   uint64
}

// Reset zero-clears every counter. Apart from Reset and ConnCount's
// decrement on close, the counters never decrease.
func (c *Counters) Reset() {
	atomic.StoreInt64(&c.ConnCount, 0)
	atomic.StoreUint64(&c.TotalConn, 0)
	atomic.StoreUint64(&c.BytesIn, 0)
	atomic.StoreUint64(&c.BytesOut, 0)
}

// RealServer is a backend record. Id is 1-based and unique within a
// Registry. Weight defaults to 100.
type RealServer struct {
	ID     uint32
	IP     [4]byte
	Port   uint16
	MAC    wire.MAC
	Weight uint32

	status int32 // atomic Status
	Counters
}

// SetStatus atomically updates the backend's health state without touching
// the ring: a DOWN backend stays in the ring so reshuffling stays minimal,
// Select simply rejects it.
func (r *RealServer) SetStatus(s Status) { atomic.StoreInt32(&r.status, int32(s)) }

// GetStatus returns the backend's current health state.
func (r *RealServer) GetStatus() Status { return Status(atomic.LoadInt32(&r.status)) }

// Available reports whether the backend may currently receive new flows.
func (r *RealServer) Available() bool { return r.GetStatus() == StatusUp }

// snapshot returns a value copy safe to hand to callers outside the lock.
func (r *RealServer) snapshot() RealServer {
	cp := *r
	return cp
}

// Registry is the id -> backend table plus its embedded consistent-hash
// ring. All mutation paths take the same mutex; Select's critical section
// is a ring lookup plus a map read, both short.
type Registry struct {
	mu       sync.RWMutex
	backends map[uint32]*RealServer
	ring     *hashring.Ring
}

// New creates an empty registry with the given virtual-node base.
func New(virtualNodes int) *Registry {
	return &Registry{
		backends: make(map[uint32]*RealServer),
		ring:     hashring.New(virtualNodes),
	}
}

// Add inserts a backend into both the map and the ring. It is an error to
// reuse an id already present.
func (reg *Registry) Add(rs *RealServer) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.backends[rs.ID]; exists {
		return fmt.Errorf("registry: backend id %d already exists", rs.ID)
	}
	if rs.Weight == 0 {
		rs.Weight = 100
	}
	rs.SetStatus(StatusUp)

	reg.backends[rs.ID] = rs
	reg.ring.Add(rs.ID, rs.Weight)
	return nil
}

// Remove erases a backend from both the map and the ring.
func (reg *Registry) Remove(id uint32) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.backends, id)
	reg.ring.Remove(id)
}

// SetStatus mutates a backend's status bit in place.
func (reg *Registry) SetStatus(id uint32, status Status) error {
	reg.mu.RLock()
	rs, ok := reg.backends[id]
	reg.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: unknown backend id %d", id)
	}
	rs.SetStatus(status)
	return nil
}

// Get returns a snapshot copy of the backend by id.
func (reg *Registry) Get(id uint32) (RealServer, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rs, ok := reg.backends[id]
	if !ok {
		return RealServer{}, false
	}
	return rs.snapshot(), true
}

// List returns a snapshot of every backend in the registry.
func (reg *Registry) List() []RealServer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]RealServer, 0, len(reg.backends))
	for _, rs := range reg.backends {
		out = append(out, rs.snapshot())
	}
	return out
}

// Select resolves a flow to a backend: ring lookup, then a status check. It
// returns ok=false if the ring is empty or the chosen backend is not UP.
func (reg *Registry) Select(t hashing.FiveTuple) (RealServer, bool) {
	id, ok := reg.ring.LookupTuple(t)
	if !ok {
		return RealServer{}, false
	}

	reg.mu.RLock()
	rs, exists := reg.backends[id]
	reg.mu.RUnlock()
	if !exists || !rs.Available() {
		return RealServer{}, false
	}
	return rs.snapshot(), true
}

// live returns the live *RealServer for internal counter updates, bypassing
// the snapshot copy Select/Get return to callers.
func (reg *Registry) live(id uint32) (*RealServer, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rs, ok := reg.backends[id]
	return rs, ok
}

// RecordConnOpen increments a backend's connection counters on flow
// creation.
func (reg *Registry) RecordConnOpen(id uint32) {
	rs, ok := reg.live(id)
	if !ok {
		return
	}
	atomic.AddInt64(&rs.ConnCount, 1)
	atomic.AddUint64(&rs.TotalConn, 1)
}

// RecordConnClose decrements the active connection counter on flow
// teardown.
func (reg *Registry) RecordConnClose(id uint32) {
	rs, ok := reg.live(id)
	if !ok {
		return
	}
	atomic.AddInt64(&rs.ConnCount, -1)
}

// RecordBytes adds to a backend's byte counters.
func (reg *Registry) RecordBytes(id uint32, in, out uint64) {
	rs, ok := reg.live(id)
	if !ok {
		return
	}
	if in > 0 {
		atomic.AddUint64(&rs.BytesIn, in)
	}
	if out > 0 {
		atomic.AddUint64(&rs.BytesOut, out)
	}
}
