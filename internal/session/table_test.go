package session

import (
	"testing"
	"time"

	"github.com/easzlab/xhashlb/internal/hashing"
)

func sampleTuple() hashing.FiveTuple {
	return hashing.FiveTuple{SrcIP: [4]byte{10, 0, 0, 1}, DstIP: [4]byte{10, 0, 0, 2}, SrcPort: 1234, DstPort: 80, Protocol: 6}
}

func TestTable_CreateAndLookup(t *testing.T) {
	tb := New()
	client := sampleTuple()
	server := client
	server.DstIP = [4]byte{192, 168, 0, 1}

	tb.Create(client, server, 1)

	s, ok := tb.Lookup(client)
	if !ok {
		t.Fatal("expected Lookup to find the created session")
	}
	if s.BackendID != 1 {
		t.Errorf("BackendID = %d, want 1", s.BackendID)
	}
	if s.Server != server {
		t.Error("Server tuple mismatch")
	}
}

func TestTable_LookupMissing(t *testing.T) {
	tb := New()
	if _, ok := tb.Lookup(sampleTuple()); ok {
		t.Error("expected Lookup on an empty table to fail")
	}
}

func TestTable_UpdateStatsAccumulates(t *testing.T) {
	tb := New()
	tup := sampleTuple()
	tb.Create(tup, tup, 1)

	tb.UpdateStats(tup, 100)
	tb.UpdateStats(tup, 50)

	s, _ := tb.Peek(tup)
	if s.Packets != 2 {
		t.Errorf("Packets = %d, want 2", s.Packets)
	}
	if s.Bytes != 150 {
		t.Errorf("Bytes = %d, want 150", s.Bytes)
	}
}

func TestTable_Remove(t *testing.T) {
	tb := New()
	tup := sampleTuple()
	tb.Create(tup, tup, 1)
	tb.Remove(tup)

	if _, ok := tb.Lookup(tup); ok {
		t.Error("expected session to be gone after Remove")
	}
}

func TestTable_CleanupExpiresIdleSessions(t *testing.T) {
	now := int64(0)
	clock := func() int64 { return now }
	tb := NewWithClock(clock)

	tup := sampleTuple()
	tb.Create(tup, tup, 1)

	now = int64(2 * time.Second)
	removed := tb.Cleanup(1 * time.Second)
	if removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	if _, ok := tb.Lookup(tup); ok {
		t.Error("expected expired session to be gone")
	}
}

func TestTable_CleanupSparesActiveSessions(t *testing.T) {
	now := int64(0)
	clock := func() int64 { return now }
	tb := NewWithClock(clock)

	tup := sampleTuple()
	tb.Create(tup, tup, 1)

	now = int64(500 * time.Millisecond)
	removed := tb.Cleanup(1 * time.Second)
	if removed != 0 {
		t.Errorf("Cleanup removed %d sessions under timeout, want 0", removed)
	}
}

func TestTable_ActiveAndTotalSessions(t *testing.T) {
	tb := New()
	t1 := sampleTuple()
	t2 := sampleTuple()
	t2.SrcPort = 5555

	tb.Create(t1, t1, 1)
	tb.Create(t2, t2, 2)

	if tb.ActiveSessions() != 2 {
		t.Errorf("ActiveSessions = %d, want 2", tb.ActiveSessions())
	}
	if tb.TotalSessions() != 2 {
		t.Errorf("TotalSessions = %d, want 2", tb.TotalSessions())
	}

	tb.Remove(t1)
	if tb.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions after remove = %d, want 1", tb.ActiveSessions())
	}
	if tb.TotalSessions() != 2 {
		t.Error("TotalSessions must not decrease on Remove")
	}
}

func TestSession_IsExpired(t *testing.T) {
	s := Session{LastActive: 0}
	if s.IsExpired(int64(500*time.Millisecond), 1*time.Second) {
		t.Error("expected not expired before the timeout elapses")
	}
	if !s.IsExpired(int64(2*time.Second), 1*time.Second) {
		t.Error("expected expired once the timeout elapses")
	}
}
