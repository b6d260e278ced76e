// Package forward implements the two forwarding modes from §4.9: NAT
// (destination rewrite forward, source rewrite on return) and DR (MAC
// rewrite only, backend replies directly to the client). Both are
// expressed against the same Forwarder surface, a sum type with a common
// operation set rather than an inheritance hierarchy.
package forward

import (
	"github.com/easzlab/xhashlb/internal/checksum"
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
	"github.com/easzlab/xhashlb/internal/wire"
)

// Local carries the balancer's own identity needed to rewrite frames:
// the VIP and the interfaces it is reachable on.
type Local struct {
	VIP        [4]byte
	VIPMAC     wire.MAC
	ListenPort uint16
	GatewayMAC wire.MAC // next hop for NAT egress when the backend is off-link
	LocalMAC   wire.MAC
	DecrementTTL bool
}

// Forwarder rewrites a packet in place for the forward (client->backend)
// and reply (backend->client) directions.
type Forwarder interface {
	// Forward rewrites pkt (meta already parsed from it) to deliver the
	// client's packet to backend. It returns false if the packet cannot be
	// forwarded as-is (e.g. any IPv4 fragment, see IsFragment).
	Forward(pkt []byte, meta *wire.PacketMeta, backend registry.RealServer, local Local) bool

	// ForwardReply rewrites pkt (the backend's reply) to deliver it back to
	// the client identified by sess. It returns false if this mode has no
	// return path through the balancer (DR).
	ForwardReply(pkt []byte, meta *wire.PacketMeta, sess session.Session, local Local) bool
}

func ip4ToU32(ip [4]byte) uint32 {
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func rewriteDstMAC(pkt []byte, mac wire.MAC) { copy(pkt[0:6], mac[:]) }
func rewriteSrcMAC(pkt []byte, mac wire.MAC) { copy(pkt[6:12], mac[:]) }

// decrementTTL mutates the TTL byte and keeps the IP checksum consistent.
// TTL and protocol share the 16-bit word the checksum algorithm sums, so
// the update is expressed over that combined word.
func decrementTTL(l3 []byte) {
	oldWord := uint16(l3[8])<<8 | uint16(l3[9])
	if l3[8] == 0 {
		return
	}
	l3[8]--
	newWord := uint16(l3[8])<<8 | uint16(l3[9])
	sum := wire.IPv4Checksum(l3)
	wire.IPv4SetChecksum(l3, checksum.Update(sum, oldWord, newWord))
}

// rewriteL3Dst rewrites the IPv4 destination address and keeps the IP
// header checksum and, when present, the TCP/UDP checksum consistent (the
// pseudo-header folds the address into the L4 checksum the same additive
// way, so the same incremental update applies).
func rewriteL3Dst(pkt []byte, meta *wire.PacketMeta, newDst [4]byte) {
	l3 := pkt[meta.L3Offset:]
	oldDst := wire.IPv4Dst(l3)

	ipSum := wire.IPv4Checksum(l3)
	ipSum = checksum.Update32(ipSum, ip4ToU32(oldDst), ip4ToU32(newDst))
	wire.IPv4SetDst(l3, newDst)
	wire.IPv4SetChecksum(l3, ipSum)

	updateL4Checksum32(pkt, meta, ip4ToU32(oldDst), ip4ToU32(newDst))
}

func rewriteL3Src(pkt []byte, meta *wire.PacketMeta, newSrc [4]byte) {
	l3 := pkt[meta.L3Offset:]
	oldSrc := wire.IPv4Src(l3)

	ipSum := wire.IPv4Checksum(l3)
	ipSum = checksum.Update32(ipSum, ip4ToU32(oldSrc), ip4ToU32(newSrc))
	wire.IPv4SetSrc(l3, newSrc)
	wire.IPv4SetChecksum(l3, ipSum)

	updateL4Checksum32(pkt, meta, ip4ToU32(oldSrc), ip4ToU32(newSrc))
}

func updateL4Checksum32(pkt []byte, meta *wire.PacketMeta, oldVal, newVal uint32) {
	l4 := pkt[meta.L4Offset:]
	switch meta.Protocol {
	case wire.ProtoTCP:
		sum := wire.TCPChecksum(l4)
		wire.TCPSetChecksum(l4, checksum.Update32(sum, oldVal, newVal))
	case wire.ProtoUDP:
		if wire.UDPChecksum(l4) == 0 {
			return // checksum disabled, nothing to maintain
		}
		sum := wire.UDPChecksum(l4)
		wire.UDPSetChecksum(l4, checksum.Update32(sum, oldVal, newVal))
	}
}

func rewriteDstPort(pkt []byte, meta *wire.PacketMeta, newPort uint16) {
	l4 := pkt[meta.L4Offset:]
	switch meta.Protocol {
	case wire.ProtoTCP:
		old := wire.TCPDstPort(l4)
		sum := checksum.Update(wire.TCPChecksum(l4), old, newPort)
		wire.TCPSetDstPort(l4, newPort)
		wire.TCPSetChecksum(l4, sum)
	case wire.ProtoUDP:
		old := wire.UDPDstPort(l4)
		if wire.UDPChecksum(l4) != 0 {
			sum := checksum.Update(wire.UDPChecksum(l4), old, newPort)
			wire.UDPSetChecksum(l4, sum)
		}
		wire.UDPSetDstPort(l4, newPort)
	}
}

func rewriteSrcPort(pkt []byte, meta *wire.PacketMeta, newPort uint16) {
	l4 := pkt[meta.L4Offset:]
	switch meta.Protocol {
	case wire.ProtoTCP:
		old := wire.TCPSrcPort(l4)
		sum := checksum.Update(wire.TCPChecksum(l4), old, newPort)
		wire.TCPSetSrcPort(l4, newPort)
		wire.TCPSetChecksum(l4, sum)
	case wire.ProtoUDP:
		old := wire.UDPSrcPort(l4)
		if wire.UDPChecksum(l4) != 0 {
			sum := checksum.Update(wire.UDPChecksum(l4), old, newPort)
			wire.UDPSetChecksum(l4, sum)
		}
		wire.UDPSetSrcPort(l4, newPort)
	}
}

// IsFragment reports whether meta describes an IPv4 fragment: the MF flag
// is set or the fragment offset is nonzero, so the first fragment of a
// fragmented datagram counts as well. Both forwarders refuse every packet
// for which this is true, first fragments included; fragments are not
// reassembled.
func IsFragment(pkt []byte, meta *wire.PacketMeta) bool {
	if !meta.IsIPv4 {
		return false
	}
	return wire.IPv4MoreFragments(pkt[meta.L3Offset:])
}
