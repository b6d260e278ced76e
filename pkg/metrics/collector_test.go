package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/easzlab/xhashlb/internal/proxy"
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestCollector_CollectBackendAndSessionMetrics(t *testing.T) {
	reg := registry.New(150)
	rs := &registry.RealServer{ID: 1, IP: [4]byte{10, 0, 0, 1}, Port: 80, Weight: 100}
	if err := reg.Add(rs); err != nil {
		t.Fatalf("add backend: %v", err)
	}
	reg.RecordConnOpen(1)
	reg.RecordBytes(1, 100, 200)

	sessions := session.New()

	c := NewCollector(reg, sessions, nil, 0)
	c.collect()

	if v := gaugeValue(t, c.sessionsActive); v != 0 {
		t.Errorf("expected 0 active sessions, got %v", v)
	}

	var found bool
	chMetrics := make(chan prometheus.Metric, 8)
	c.backendConnCount.Collect(chMetrics)
	close(chMetrics)
	for m := range chMetrics {
		var pb dto.Metric
		_ = m.Write(&pb)
		if pb.GetGauge().GetValue() == 1 {
			found = true
		}
	}
	if !found {
		t.Error("expected backend_conn_count gauge with value 1 for the open connection")
	}
}

func TestCollector_ProxyStatsOptional(t *testing.T) {
	reg := registry.New(150)
	sessions := session.New()

	c := NewCollector(reg, sessions, func() proxy.Stats {
		return proxy.Stats{Accepted: 5}
	}, 0)
	c.collect()

	if v := gaugeValue(t, c.proxyAccepted); v != 5 {
		t.Errorf("expected proxy accepted 5, got %v", v)
	}
}

func TestCollector_MustRegisterNoPanic(t *testing.T) {
	reg := registry.New(150)
	sessions := session.New()
	c := NewCollector(reg, sessions, nil, 0)

	promReg := prometheus.NewRegistry()
	c.MustRegister(promReg)

	mfs, err := promReg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	if !strings.Contains(strings.Join(names, ","), "xhashlb_sessions_active") {
		t.Errorf("expected xhashlb_sessions_active to be registered, got %v", names)
	}
}
