package hashing

import "testing"

func TestMurmur3_32_Deterministic(t *testing.T) {
	data := []byte("hello world")
	a := Murmur3_32(data, 0)
	b := Murmur3_32(data, 0)
	if a != b {
		t.Errorf("Murmur3_32 not deterministic: %d != %d", a, b)
	}
}

func TestMurmur3_32_SeedChangesHash(t *testing.T) {
	data := []byte("hello world")
	a := Murmur3_32(data, 0)
	b := Murmur3_32(data, 1)
	if a == b {
		t.Error("expected different seeds to produce different hashes")
	}
}

func TestMurmur3_32_EmptyInput(t *testing.T) {
	// Must not panic on an empty slice (zero blocks, zero-length tail).
	_ = Murmur3_32(nil, 0)
	_ = Murmur3_32([]byte{}, 42)
}

func TestMurmur3_32_TailLengths(t *testing.T) {
	base := []byte{1, 2, 3, 4, 5, 6, 7}
	seen := make(map[uint32]bool)
	for n := 0; n <= len(base); n++ {
		h := Murmur3_32(base[:n], 0)
		seen[h] = true
	}
	if len(seen) < 4 {
		t.Errorf("expected distinct hashes across tail lengths, got %d distinct of %d", len(seen), len(base)+1)
	}
}
