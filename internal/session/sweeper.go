package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically runs Table.Cleanup, the way the balancer's
// connection-tracking GC keeps the session table bounded in steady state.
type Sweeper struct {
	table    *Table
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a Sweeper for table with the given expiry timeout and
// sweep interval.
func NewSweeper(table *Table, timeout, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{table: table, timeout: timeout, interval: interval, logger: logger}
}

// Run blocks, sweeping on every tick, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.table.Cleanup(s.timeout)
			if n > 0 {
				s.logger.Debug("session sweep removed expired flows", zap.Int("count", n))
			}
		}
	}
}
