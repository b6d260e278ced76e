package registry

import (
	"testing"

	"github.com/easzlab/xhashlb/internal/hashing"
)

func TestRegistry_AddSelect(t *testing.T) {
	reg := New(150)
	if err := reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80, Weight: 100}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tup := hashing.FiveTuple{SrcIP: [4]byte{1, 2, 3, 4}, DstIP: [4]byte{10, 0, 0, 1}, SrcPort: 1234, DstPort: 80, Protocol: 6}
	rs, ok := reg.Select(tup)
	if !ok {
		t.Fatal("expected Select to resolve the only backend")
	}
	if rs.ID != 1 {
		t.Errorf("Select returned id %d, want 1", rs.ID)
	}
}

func TestRegistry_AddDuplicateIDFails(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})
	if err := reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 2}, Port: 81}); err == nil {
		t.Error("expected Add to reject a duplicate id")
	}
}

func TestRegistry_AddDefaultsWeight(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})
	rs, _ := reg.Get(1)
	if rs.Weight != 100 {
		t.Errorf("default weight = %d, want 100", rs.Weight)
	}
}

func TestRegistry_DownBackendNotSelected(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})
	if err := reg.SetStatus(1, StatusDown); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	tup := hashing.FiveTuple{SrcIP: [4]byte{1, 1, 1, 1}, DstIP: [4]byte{10, 0, 0, 1}, SrcPort: 1, DstPort: 80, Protocol: 6}
	if _, ok := reg.Select(tup); ok {
		t.Error("expected Select to reject a DOWN backend")
	}
}

func TestRegistry_RemoveRemovesFromRing(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})
	reg.Remove(1)

	if _, ok := reg.Get(1); ok {
		t.Error("expected Get to fail for a removed backend")
	}

	tup := hashing.FiveTuple{SrcIP: [4]byte{1, 1, 1, 1}, DstIP: [4]byte{10, 0, 0, 1}, SrcPort: 1, DstPort: 80, Protocol: 6}
	if _, ok := reg.Select(tup); ok {
		t.Error("expected Select to fail on an empty ring")
	}
}

func TestRegistry_SetStatusUnknownID(t *testing.T) {
	reg := New(150)
	if err := reg.SetStatus(99, StatusUp); err == nil {
		t.Error("expected SetStatus to fail for an unknown id")
	}
}

func TestRegistry_ListReturnsSnapshots(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})
	reg.RecordConnOpen(1)

	list := reg.List()
	if len(list) != 1 {
		t.Fatalf("List() len = %d, want 1", len(list))
	}
	if list[0].ConnCount != 1 {
		t.Errorf("ConnCount = %d, want 1", list[0].ConnCount)
	}

	// Mutating the registry afterward must not change the snapshot.
	reg.RecordConnOpen(1)
	if list[0].ConnCount != 1 {
		t.Error("List() snapshot was mutated by a later registry update")
	}
}

func TestRegistry_RecordConnOpenCloseAndBytes(t *testing.T) {
	reg := New(150)
	reg.Add(&RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80})

	reg.RecordConnOpen(1)
	reg.RecordConnOpen(1)
	reg.RecordConnClose(1)
	reg.RecordBytes(1, 100, 200)

	rs, _ := reg.Get(1)
	if rs.ConnCount != 1 {
		t.Errorf("ConnCount = %d, want 1", rs.ConnCount)
	}
	if rs.TotalConn != 2 {
		t.Errorf("TotalConn = %d, want 2", rs.TotalConn)
	}
	if rs.BytesIn != 100 || rs.BytesOut != 200 {
		t.Errorf("bytes = %d/%d, want 100/200", rs.BytesIn, rs.BytesOut)
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{StatusUp: "UP", StatusDown: "DOWN", StatusChecking: "CHECKING"}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
