package hashing

import "testing"

func sampleTuple() FiveTuple {
	return FiveTuple{
		SrcIP:    [4]byte{10, 0, 0, 1},
		DstIP:    [4]byte{10, 0, 0, 2},
		SrcPort:  5000,
		DstPort:  80,
		Protocol: 6,
	}
}

func TestFiveTuple_HashDeterministic(t *testing.T) {
	tup := sampleTuple()
	if tup.Hash() != tup.Hash() {
		t.Error("Hash() not deterministic for an identical tuple")
	}
}

func TestFiveTuple_HashDiffersOnAnyField(t *testing.T) {
	base := sampleTuple()
	baseHash := base.Hash()

	variants := []FiveTuple{base, base, base, base, base}
	variants[0].SrcPort++
	variants[1].DstPort++
	variants[2].SrcIP[3]++
	variants[3].DstIP[3]++
	variants[4].Protocol = 17

	for i, v := range variants {
		if v.Hash() == baseHash {
			t.Errorf("variant %d: expected hash to differ from base", i)
		}
	}
}

func TestFiveTuple_Reverse(t *testing.T) {
	tup := sampleTuple()
	rev := tup.Reverse()

	if rev.SrcIP != tup.DstIP || rev.DstIP != tup.SrcIP {
		t.Error("Reverse() did not swap IPs")
	}
	if rev.SrcPort != tup.DstPort || rev.DstPort != tup.SrcPort {
		t.Error("Reverse() did not swap ports")
	}
	if rev.Protocol != tup.Protocol {
		t.Error("Reverse() must not change protocol")
	}
	if rev.Reverse() != tup {
		t.Error("Reverse() should be its own inverse")
	}
}

func TestFiveTuple_String(t *testing.T) {
	s := sampleTuple().String()
	if s == "" {
		t.Error("String() returned empty string")
	}
}
