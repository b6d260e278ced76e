package forward

import (
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
	"github.com/easzlab/xhashlb/internal/wire"
)

// DR implements direct-routing forwarding: only the MAC pair is rewritten,
// the backend (configured with the VIP on a loopback interface) replies
// straight to the client. There is no return path through the balancer, so
// L3/L4 is left untouched and no checksum update is needed.
type DR struct{}

// Forward rewrites only the destination/source MAC addresses.
func (DR) Forward(pkt []byte, meta *wire.PacketMeta, backend registry.RealServer, local Local) bool {
	if IsFragment(pkt, meta) {
		return false
	}

	rewriteDstMAC(pkt, backend.MAC)
	rewriteSrcMAC(pkt, local.LocalMAC)
	return true
}

// ForwardReply always fails: DR mode has no return path through the
// balancer (§4.9).
func (DR) ForwardReply(pkt []byte, meta *wire.PacketMeta, sess session.Session, local Local) bool {
	return false
}
