// Package metrics exports the balancer's runtime counters (§3) through a
// Prometheus registry, grounded on the periodic snapshot-and-set collector
// pattern from the pack's conntrack exporter: gauges are reset and
// repopulated from a fresh snapshot on every collection tick rather than
// incremented in place, so a removed backend's series disappears instead
// of lingering at its last value.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/easzlab/xhashlb/internal/proxy"
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
)

var backendLabels = []string{"backend_id", "address"}

// Collector periodically snapshots the registry, session table, and proxy
// loop, and republishes them as Prometheus series.
type Collector struct {
	reg      *registry.Registry
	sessions *session.Table
	proxy    func() proxy.Stats
	interval time.Duration

	backendStatus    *prometheus.GaugeVec
	backendConnCount *prometheus.GaugeVec
	backendTotalConn *prometheus.GaugeVec
	backendBytesIn   *prometheus.GaugeVec
	backendBytesOut  *prometheus.GaugeVec

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Gauge

	proxyAccepted   prometheus.Gauge
	proxyConnected  prometheus.Gauge
	proxyTornDown   prometheus.Gauge
	proxyBytesIn    prometheus.Gauge
	proxyBytesOut   prometheus.Gauge
	proxyNoBackend  prometheus.Gauge
	proxyDialErrors prometheus.Gauge
	proxyReadErrors prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector builds a Collector. proxyStats may be nil when running in
// packet-forwarding (NAT/DR) mode, where there is no L7 event loop to
// report on.
func NewCollector(reg *registry.Registry, sessions *session.Table, proxyStats func() proxy.Stats, interval time.Duration) *Collector {
	c := &Collector{
		reg:      reg,
		sessions: sessions,
		proxy:    proxyStats,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	c.backendStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xhashlb_backend_status",
		Help: "Backend health status: 0=down, 1=up, 2=checking.",
	}, backendLabels)
	c.backendConnCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xhashlb_backend_conn_count",
		Help: "Current active connections routed to this backend.",
	}, backendLabels)
	c.backendTotalConn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xhashlb_backend_total_conn",
		Help: "Total connections ever routed to this backend.",
	}, backendLabels)
	c.backendBytesIn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xhashlb_backend_bytes_in",
		Help: "Total bytes received from clients for this backend.",
	}, backendLabels)
	c.backendBytesOut = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xhashlb_backend_bytes_out",
		Help: "Total bytes sent to clients for this backend.",
	}, backendLabels)

	c.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xhashlb_sessions_active",
		Help: "Number of sessions currently tracked.",
	})
	c.sessionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xhashlb_sessions_total",
		Help: "Total sessions created since start.",
	})

	c.proxyAccepted = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_accepted_total", Help: "L7 proxy connections accepted."})
	c.proxyConnected = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_connected_total", Help: "L7 proxy backend connections established."})
	c.proxyTornDown = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_torn_down_total", Help: "L7 proxy connections torn down."})
	c.proxyBytesIn = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_bytes_in_total", Help: "L7 proxy bytes read from clients."})
	c.proxyBytesOut = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_bytes_out_total", Help: "L7 proxy bytes read from backends."})
	c.proxyNoBackend = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_no_backend_total", Help: "L7 proxy accepts dropped for lack of an available backend."})
	c.proxyDialErrors = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_dial_errors_total", Help: "L7 proxy backend dial failures."})
	c.proxyReadErrors = prometheus.NewGauge(prometheus.GaugeOpts{Name: "xhashlb_proxy_read_errors_total", Help: "L7 proxy socket read errors."})

	return c
}

// MustRegister registers every metric into reg.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.backendStatus, c.backendConnCount, c.backendTotalConn, c.backendBytesIn, c.backendBytesOut,
		c.sessionsActive, c.sessionsTotal,
		c.proxyAccepted, c.proxyConnected, c.proxyTornDown, c.proxyBytesIn, c.proxyBytesOut,
		c.proxyNoBackend, c.proxyDialErrors, c.proxyReadErrors,
	)
}

// Start begins periodic collection in a background goroutine, with an
// immediate first snapshot.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.doneCh)

		c.collect()

		t := time.NewTicker(c.interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-t.C:
				c.collect()
			}
		}
	}()
}

// Stop halts the collector goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) collect() {
	c.backendStatus.Reset()
	c.backendConnCount.Reset()
	c.backendTotalConn.Reset()
	c.backendBytesIn.Reset()
	c.backendBytesOut.Reset()

	for _, rs := range c.reg.List() {
		labels := []string{
			fmt.Sprintf("%d", rs.ID),
			fmt.Sprintf("%d.%d.%d.%d:%d", rs.IP[0], rs.IP[1], rs.IP[2], rs.IP[3], rs.Port),
		}
		c.backendStatus.WithLabelValues(labels...).Set(float64(rs.GetStatus()))
		c.backendConnCount.WithLabelValues(labels...).Set(float64(rs.ConnCount))
		c.backendTotalConn.WithLabelValues(labels...).Set(float64(rs.TotalConn))
		c.backendBytesIn.WithLabelValues(labels...).Set(float64(rs.BytesIn))
		c.backendBytesOut.WithLabelValues(labels...).Set(float64(rs.BytesOut))
	}

	c.sessionsActive.Set(float64(c.sessions.ActiveSessions()))
	c.sessionsTotal.Set(float64(c.sessions.TotalSessions()))

	if c.proxy != nil {
		st := c.proxy()
		c.proxyAccepted.Set(float64(st.Accepted))
		c.proxyConnected.Set(float64(st.Connected))
		c.proxyTornDown.Set(float64(st.TornDown))
		c.proxyBytesIn.Set(float64(st.BytesIn))
		c.proxyBytesOut.Set(float64(st.BytesOut))
		c.proxyNoBackend.Set(float64(st.NoBackend))
		c.proxyDialErrors.Set(float64(st.DialErrors))
		c.proxyReadErrors.Set(float64(st.ReadErrors))
	}
}
