package proxy

import "sync/atomic"

// Stats are the proxy loop's monotonic counters (§3, §4.10). Every field is
// updated with relaxed-atomic adds and may briefly skew across reads but
// never decreases.
type Stats struct {
	Accepted   uint64
	Connected  uint64
	TornDown   uint64
	BytesIn    uint64
	BytesOut   uint64
	NoBackend  uint64 // dropped: registry.Select found nothing
	DialErrors uint64
	ReadErrors uint64
}

func (s *Stats) incAccepted()         { atomic.AddUint64(&s.Accepted, 1) }
func (s *Stats) incConnected()        { atomic.AddUint64(&s.Connected, 1) }
func (s *Stats) incTornDown()         { atomic.AddUint64(&s.TornDown, 1) }
func (s *Stats) addBytesIn(n uint64)  { atomic.AddUint64(&s.BytesIn, n) }
func (s *Stats) addBytesOut(n uint64) { atomic.AddUint64(&s.BytesOut, n) }
func (s *Stats) incNoBackend()        { atomic.AddUint64(&s.NoBackend, 1) }
func (s *Stats) incDialErrors()       { atomic.AddUint64(&s.DialErrors, 1) }
func (s *Stats) incReadErrors()       { atomic.AddUint64(&s.ReadErrors, 1) }

// Snapshot returns a point-in-time copy safe to export.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Accepted:   atomic.LoadUint64(&s.Accepted),
		Connected:  atomic.LoadUint64(&s.Connected),
		TornDown:   atomic.LoadUint64(&s.TornDown),
		BytesIn:    atomic.LoadUint64(&s.BytesIn),
		BytesOut:   atomic.LoadUint64(&s.BytesOut),
		NoBackend:  atomic.LoadUint64(&s.NoBackend),
		DialErrors: atomic.LoadUint64(&s.DialErrors),
		ReadErrors: atomic.LoadUint64(&s.ReadErrors),
	}
}
