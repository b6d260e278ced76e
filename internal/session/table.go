// Package session implements the five-tuple -> Session table: creation,
// touch-on-lookup, statistics, and the periodic expiry sweep, guarded by a
// single mutex per §4.6.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/easzlab/xhashlb/internal/hashing"
)

// Session is a flow's tracked state. It is handed out by value; the table
// remains the sole owner of the live entry.
type Session struct {
	Client     hashing.FiveTuple
	Server     hashing.FiveTuple
	BackendID  uint32
	Created    int64 // monotonic nanoseconds
	LastActive int64 // monotonic nanoseconds
	Packets    uint64
	Bytes      uint64
}

// IsExpired reports whether now-LastActive exceeds timeout.
func (s Session) IsExpired(now int64, timeout time.Duration) bool {
	return now-s.LastActive > timeout.Nanoseconds()
}

// Table is the five-tuple -> Session map. The zero value is not usable;
// construct with New.
type Table struct {
	mu       sync.Mutex
	sessions map[hashing.FiveTuple]*Session

	total uint64 // atomic, monotonic, never reset by Cleanup

	now func() int64 // injectable monotonic clock, nanoseconds
}

// New creates an empty session table using the real monotonic clock.
func New() *Table {
	start := time.Now()
	return &Table{
		sessions: make(map[hashing.FiveTuple]*Session),
		now:      func() int64 { return int64(time.Since(start)) },
	}
}

// NewWithClock creates a table using a caller-supplied clock, for tests that
// need to advance time deterministically.
func NewWithClock(now func() int64) *Table {
	t := New()
	t.now = now
	return t
}

// Lookup returns a copy of the session for tuple, touching LastActive to
// now. ok is false if no session exists.
func (t *Table) Lookup(tuple hashing.FiveTuple) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[tuple]
	if !ok {
		return Session{}, false
	}
	s.LastActive = t.now()
	return *s, true
}

// Peek returns a copy of the session without updating LastActive.
func (t *Table) Peek(tuple hashing.FiveTuple) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[tuple]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Create inserts a new session for tuple bound to backendID. now is used
// for both Created and LastActive. Total session count is incremented
// unconditionally, matching IPVS-style "Flows" counters.
func (t *Table) Create(tuple hashing.FiveTuple, server hashing.FiveTuple, backendID uint32) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := &Session{
		Client:     tuple,
		Server:     server,
		BackendID:  backendID,
		Created:    now,
		LastActive: now,
	}
	t.sessions[tuple] = s
	atomic.AddUint64(&t.total, 1)
	return *s
}

// UpdateStats touches LastActive and adds to the packet/byte counters for
// tuple. A no-op if the session is gone.
func (t *Table) UpdateStats(tuple hashing.FiveTuple, bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[tuple]
	if !ok {
		return
	}
	s.LastActive = t.now()
	s.Packets++
	s.Bytes += bytes
}

// Remove erases the session for tuple.
func (t *Table) Remove(tuple hashing.FiveTuple) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, tuple)
}

// Cleanup scans every session and removes those whose idle time exceeds
// timeout, returning the number removed.
func (t *Table) Cleanup(timeout time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for k, s := range t.sessions {
		if s.IsExpired(now, timeout) {
			delete(t.sessions, k)
			removed++
		}
	}
	return removed
}

// ActiveSessions returns the current entry count.
func (t *Table) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// TotalSessions returns the monotonic lifetime creation count.
func (t *Table) TotalSessions() uint64 {
	return atomic.LoadUint64(&t.total)
}
