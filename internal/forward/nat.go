package forward

import (
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
	"github.com/easzlab/xhashlb/internal/wire"
)

// NAT implements symmetric NAT-mode forwarding: the client-facing
// destination is rewritten to the backend on the way in, and the backend's
// source is rewritten back to the VIP on the way out.
type NAT struct{}

// Forward rewrites dst_ip/dst_port to the backend, updates the IP and L4
// checksums incrementally, and rewrites the MAC pair for the next hop.
func (NAT) Forward(pkt []byte, meta *wire.PacketMeta, backend registry.RealServer, local Local) bool {
	if IsFragment(pkt, meta) {
		return false
	}

	rewriteL3Dst(pkt, meta, backend.IP)
	rewriteDstPort(pkt, meta, backend.Port)

	if local.DecrementTTL {
		decrementTTL(pkt[meta.L3Offset:])
	}

	nextHop := backend.MAC
	if nextHop == (wire.MAC{}) {
		nextHop = local.GatewayMAC
	}
	rewriteDstMAC(pkt, nextHop)
	rewriteSrcMAC(pkt, local.LocalMAC)

	return true
}

// ForwardReply rewrites src_ip/src_port back to the VIP's identity for the
// return path, looked up by the reversed tuple.
func (NAT) ForwardReply(pkt []byte, meta *wire.PacketMeta, sess session.Session, local Local) bool {
	if IsFragment(pkt, meta) {
		return false
	}

	rewriteL3Src(pkt, meta, local.VIP)
	rewriteSrcPort(pkt, meta, local.ListenPort)

	if local.DecrementTTL {
		decrementTTL(pkt[meta.L3Offset:])
	}

	rewriteSrcMAC(pkt, local.LocalMAC)
	// destination MAC for the return path is resolved by the forwarding
	// plane's neighbour table, not rewritten here.

	return true
}
