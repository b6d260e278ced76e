// Package proxy implements the L7 mode event loop from §4.10: a
// single-threaded, cooperative accept/connect/read/write pump driven by a
// readiness-notification primitive, with half-close handling and explicit
// connection lifecycle.
package proxy

import (
	"github.com/easzlab/xhashlb/internal/hashing"
)

// bufSize is the fixed read buffer size for each side of a connection.
const bufSize = 8192

// Connection tracks one proxied flow: a client socket and the backend
// socket selected for it. The fd->Connection map in Loop holds this value
// under both the client fd and the backend fd; teardown must remove both
// entries in one transaction to avoid a dangling reference from whichever
// key is processed second.
type Connection struct {
	Tuple     hashing.FiveTuple
	BackendID uint32

	ClientFD  int
	BackendFD int

	ClientConnected  bool
	BackendConnected bool

	// half-close bookkeeping: a side is "closed" once its peer read
	// returned 0 bytes (EOF). Client-side close tears the connection down
	// once nothing is left buffered for the backend; backend-side close
	// alone never tears it down, the connection stays up until the client
	// side also closes.
	ClientClosed  bool
	BackendClosed bool

	// pending holds bytes read from one side that could not be fully
	// written to the other side because of EAGAIN; a faithful
	// implementation buffers rather than drops them.
	pendingToBackend []byte
	pendingToClient  []byte
}

// torn reports whether both sides are done: either both halves closed, or
// the client side closed with nothing left buffered for the backend.
func (c *Connection) torn() bool {
	if c.ClientClosed && c.BackendClosed {
		return true
	}
	if c.ClientClosed && len(c.pendingToBackend) == 0 {
		return true
	}
	return false
}
