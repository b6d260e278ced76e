//go:build linux

package proxy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/easzlab/xhashlb/internal/hashing"
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
)

// epollTimeoutMillis bounds each EpollWait call so Run can observe context
// cancellation promptly without a dedicated wakeup fd.
const epollTimeoutMillis = 200

// Loop is the single-threaded, nonblocking accept/connect/read/write pump
// described in §4.10, driven by Linux epoll as its readiness-notification
// primitive.
type Loop struct {
	listenFD int
	epfd     int
	vip      [4]byte
	port     uint16

	registry *registry.Registry
	sessions *session.Table
	stats    Stats
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[int]*Connection
}

// NewLoop creates a listening socket bound to vip:port and the epoll
// instance that drives the loop.
func NewLoop(vip [4]byte, port uint16, reg *registry.Registry, sessions *session.Table, logger *zap.Logger) (*Loop, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("proxy: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("proxy: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Addr: vip, Port: int(port)}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("proxy: bind: %w", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("proxy: listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("proxy: epoll_create1: %w", err)
	}

	l := &Loop{
		listenFD: fd,
		epfd:     epfd,
		vip:      vip,
		port:     port,
		registry: reg,
		sessions: sessions,
		logger:   logger,
		conns:    make(map[int]*Connection),
	}

	if err := l.epollAdd(fd, unix.EPOLLIN); err != nil {
		l.Close()
		return nil, err
	}

	return l, nil
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats { return l.stats.Snapshot() }

// Close releases the listening socket and epoll instance, and tears down
// every live connection.
func (l *Loop) Close() {
	l.mu.Lock()
	seen := make(map[*Connection]bool)
	for _, c := range l.conns {
		if !seen[c] {
			seen[c] = true
			l.closeConnLocked(c)
		}
	}
	l.mu.Unlock()

	unix.Close(l.epfd)
	unix.Close(l.listenFD)
}

// Run blocks, servicing readiness events, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, 256)

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return nil
		default:
		}

		n, err := unix.EpollWait(l.epfd, events, epollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("proxy: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)

			if fd == l.listenFD {
				l.acceptAll()
				continue
			}

			l.handleEvent(fd, ev.Events)
		}
	}
}

func (l *Loop) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (l *Loop) epollMod(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (l *Loop) epollDel(fd int) {
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// acceptAll drains the listener's accept queue.
func (l *Loop) acceptAll() {
	for {
		nfd, sa, err := unix.Accept4(l.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			l.logger.Warn("proxy: accept failed", zap.Error(err))
			return
		}
		l.stats.incAccepted()
		l.onAccept(nfd, sa)
	}
}

func (l *Loop) onAccept(clientFD int, sa unix.Sockaddr) {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(clientFD)
		return
	}

	tuple := hashing.FiveTuple{
		SrcIP:    in4.Addr,
		DstIP:    l.vip,
		SrcPort:  uint16(in4.Port),
		DstPort:  l.port,
		Protocol: 6, // TCP
	}

	backend, ok := l.registry.Select(tuple)
	if !ok {
		l.stats.incNoBackend()
		unix.Close(clientFD)
		return
	}

	backendFD, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		l.stats.incDialErrors()
		unix.Close(clientFD)
		return
	}

	err = unix.Connect(backendFD, &unix.SockaddrInet4{Addr: backend.IP, Port: int(backend.Port)})
	if err != nil && err != unix.EINPROGRESS {
		l.stats.incDialErrors()
		unix.Close(clientFD)
		unix.Close(backendFD)
		return
	}

	conn := &Connection{
		Tuple:           tuple,
		BackendID:       backend.ID,
		ClientFD:        clientFD,
		BackendFD:       backendFD,
		ClientConnected: true,
	}

	l.mu.Lock()
	l.conns[clientFD] = conn
	l.conns[backendFD] = conn
	l.mu.Unlock()

	l.registry.RecordConnOpen(backend.ID)
	serverTuple := tuple
	serverTuple.DstIP = backend.IP
	serverTuple.DstPort = backend.Port
	l.sessions.Create(tuple, serverTuple, backend.ID)

	if err := l.epollAdd(clientFD, unix.EPOLLIN); err != nil {
		l.teardown(conn)
		return
	}
	if err := l.epollAdd(backendFD, unix.EPOLLIN|unix.EPOLLOUT); err != nil {
		l.teardown(conn)
		return
	}
}

func (l *Loop) connFor(fd int) (*Connection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.conns[fd]
	return c, ok
}

func (l *Loop) handleEvent(fd int, events uint32) {
	conn, ok := l.connFor(fd)
	if !ok {
		return
	}

	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && events&unix.EPOLLIN == 0 {
		l.teardown(conn)
		return
	}

	isClient := fd == conn.ClientFD

	if !isClient && !conn.BackendConnected {
		if events&unix.EPOLLOUT != 0 {
			if serr, serr2 := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); serr2 != nil || serr != 0 {
				l.stats.incDialErrors()
				l.teardown(conn)
				return
			}
			conn.BackendConnected = true
			l.stats.incConnected()
			_ = l.epollMod(fd, unix.EPOLLIN)
		}
	}

	if events&unix.EPOLLIN != 0 {
		if isClient {
			l.pump(conn, conn.ClientFD, conn.BackendFD, &conn.ClientClosed, &conn.pendingToBackend, true)
		} else {
			l.pump(conn, conn.BackendFD, conn.ClientFD, &conn.BackendClosed, &conn.pendingToClient, false)
		}
	}

	if events&unix.EPOLLOUT != 0 {
		if isClient {
			l.flushPending(conn, conn.ClientFD, &conn.pendingToClient)
		} else if conn.BackendConnected {
			l.flushPending(conn, conn.BackendFD, &conn.pendingToBackend)
		}
	}

	if conn.torn() {
		l.teardown(conn)
	}
}

// pump reads from srcFD and writes to dstFD, buffering any remainder that
// hits EAGAIN in *pending so a later writable event can drain it.
func (l *Loop) pump(conn *Connection, srcFD, dstFD int, closedFlag *bool, pending *[]byte, fromClient bool) {
	buf := make([]byte, bufSize)

	for {
		n, err := unix.Read(srcFD, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			l.stats.incReadErrors()
			*closedFlag = true
			return
		}
		if n == 0 {
			*closedFlag = true
			return
		}

		if fromClient {
			l.stats.addBytesIn(uint64(n))
		} else {
			l.stats.addBytesOut(uint64(n))
		}
		l.sessions.UpdateStats(conn.Tuple, uint64(n))

		data := append(*pending, buf[:n]...)
		written := l.writeAvailable(dstFD, data)
		if written < len(data) {
			*pending = append([]byte{}, data[written:]...)
			l.enableWritable(dstFD)
			return
		}
		*pending = (*pending)[:0]
	}
}

func (l *Loop) flushPending(conn *Connection, fd int, pending *[]byte) {
	if len(*pending) == 0 {
		return
	}
	written := l.writeAvailable(fd, *pending)
	*pending = append([]byte{}, (*pending)[written:]...)
	if len(*pending) == 0 {
		l.disableWritable(fd, conn)
	}
}

// writeAvailable writes as much of data as the socket will currently
// accept, returning the number of bytes written.
func (l *Loop) writeAvailable(fd int, data []byte) int {
	total := 0
	for total < len(data) {
		n, err := unix.Write(fd, data[total:])
		if err != nil {
			if err == unix.EAGAIN {
				return total
			}
			return total
		}
		if n <= 0 {
			return total
		}
		total += n
	}
	return total
}

func (l *Loop) enableWritable(fd int) {
	_ = l.epollMod(fd, unix.EPOLLIN|unix.EPOLLOUT)
}

func (l *Loop) disableWritable(fd int, conn *Connection) {
	_ = l.epollMod(fd, unix.EPOLLIN)
}

func (l *Loop) teardown(conn *Connection) {
	l.mu.Lock()
	l.closeConnLocked(conn)
	l.mu.Unlock()
}

// closeConnLocked removes both fd entries in one transaction, per the
// fd->Connection map invariant (§9), and closes both sockets.
func (l *Loop) closeConnLocked(conn *Connection) {
	if _, ok := l.conns[conn.ClientFD]; !ok {
		return // already torn down
	}
	delete(l.conns, conn.ClientFD)
	delete(l.conns, conn.BackendFD)

	l.epollDel(conn.ClientFD)
	l.epollDel(conn.BackendFD)
	unix.Close(conn.ClientFD)
	unix.Close(conn.BackendFD)

	l.sessions.Remove(conn.Tuple)
	l.registry.RecordConnClose(conn.BackendID)
	l.stats.incTornDown()
}
