package wire

import "github.com/easzlab/xhashlb/internal/checksum"

// TCPUDPChecksum computes the full IPv4 pseudo-header + segment checksum for
// a TCP or UDP packet, used when building test fixtures and when a
// forwarder opts to recompute from scratch rather than apply an incremental
// update. l4 must have its checksum field already zeroed.
func TCPUDPChecksum(src, dst [4]byte, proto uint8, l4 []byte) uint16 {
	pseudo := make([]byte, 12+len(l4))
	copy(pseudo[0:4], src[:])
	copy(pseudo[4:8], dst[:])
	pseudo[9] = proto
	bePutUint16(pseudo[10:12], uint16(len(l4)))
	copy(pseudo[12:], l4)
	return checksum.Compute(pseudo)
}
