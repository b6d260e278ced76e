package hashing

import "fmt"

// FiveTuple identifies a flow: source/destination address, port (held in
// host byte order for readability and comparison) and IP protocol number.
// pack() is the single place that commits to a network-order byte layout
// for hashing.
type FiveTuple struct {
	SrcIP    [4]byte
	DstIP    [4]byte
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// String renders the tuple for logs.
func (t FiveTuple) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d->%d.%d.%d.%d:%d/%d",
		t.SrcIP[0], t.SrcIP[1], t.SrcIP[2], t.SrcIP[3], t.SrcPort,
		t.DstIP[0], t.DstIP[1], t.DstIP[2], t.DstIP[3], t.DstPort,
		t.Protocol)
}

// Reverse swaps source and destination address and port, leaving the
// protocol unchanged. Used to look up the return-path session for a
// backend's reply packet.
func (t FiveTuple) Reverse() FiveTuple {
	return FiveTuple{
		SrcIP:    t.DstIP,
		DstIP:    t.SrcIP,
		SrcPort:  t.DstPort,
		DstPort:  t.SrcPort,
		Protocol: t.Protocol,
	}
}

// pack lays the tuple out in a fixed 13-byte representation: src, dst,
// sport, dport, proto, each field already in network byte order.
func (t FiveTuple) pack() [13]byte {
	var b [13]byte
	copy(b[0:4], t.SrcIP[:])
	copy(b[4:8], t.DstIP[:])
	b[8] = byte(t.SrcPort >> 8)
	b[9] = byte(t.SrcPort)
	b[10] = byte(t.DstPort >> 8)
	b[11] = byte(t.DstPort)
	b[12] = t.Protocol
	return b
}

// Hash returns the MurmurHash3-32 (seed 0) of the tuple's packed
// representation. Two equal tuples always hash equal; it is not
// cryptographically collision-resistant.
func (t FiveTuple) Hash() uint32 {
	b := t.pack()
	return Murmur3_32(b[:], 0)
}
