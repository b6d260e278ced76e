//go:build !linux

package proxy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
)

// Loop is a non-Linux stand-in: the real event loop needs Linux epoll as
// its readiness-notification primitive. This keeps the package buildable
// (for config/registry-only tests) on other platforms.
type Loop struct {
	stats Stats
}

// NewLoop always fails on non-Linux platforms.
func NewLoop(vip [4]byte, port uint16, reg *registry.Registry, sessions *session.Table, logger *zap.Logger) (*Loop, error) {
	return nil, fmt.Errorf("proxy: event loop requires linux (epoll)")
}

// Run never returns successfully on this platform.
func (l *Loop) Run(ctx context.Context) error {
	return fmt.Errorf("proxy: event loop requires linux (epoll)")
}

// Stats returns a snapshot of the loop's counters (always zero here).
func (l *Loop) Stats() Stats { return l.stats.Snapshot() }

// Close is a no-op on this platform.
func (l *Loop) Close() {}
