package server

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/easzlab/xhashlb/internal/proxy"
	"github.com/easzlab/xhashlb/internal/registry"
	"github.com/easzlab/xhashlb/internal/session"
	"github.com/easzlab/xhashlb/pkg/config"
	"github.com/easzlab/xhashlb/pkg/healthcheck"
	"github.com/easzlab/xhashlb/pkg/metrics"
	"github.com/easzlab/xhashlb/pkg/snat"
)

// Health-check cadence. The spec's Non-goals exclude anything beyond
// status-bit health checking, so these are fixed rather than exposed as
// config knobs.
const (
	healthCheckInterval = 2 * time.Second
	healthCheckTimeout  = 1 * time.Second
	healthFailCount     = 3
	healthRiseCount     = 2

	sessionSweepInterval = 1 * time.Second

	metricsInterval = 2 * time.Second
	metricsAddr     = ":9090"
)

// Server coordinates every module the balancer needs at runtime: config
// hot-reload, the backend registry and ring, session tracking, health
// checking, NAT return-path rules, the L7 proxy loops, and metrics export.
// Its lifecycle mirrors the teacher's own Server: NewServer builds
// everything eagerly, Run drives it until ctx is cancelled.
type Server struct {
	configMgr  *config.Manager
	reg        *registry.Registry
	reconciler *Reconciler
	sessions   *session.Table
	sweeper    *session.Sweeper
	healthMgr  *healthcheck.Manager
	snatMgr    snat.Manager
	collector  *metrics.Collector
	metricsSrv *metrics.Server
	loops      []*proxy.Loop
	logger     *zap.Logger
}

// NewServer loads the initial configuration and builds every module bound
// to it.
func NewServer(configPath string, logger *zap.Logger) (*Server, error) {
	configMgr, err := config.NewManager(configPath, logger.Named("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.GetConfig()

	reg := registry.New(int(cfg.Global.VirtualNodes))
	reconciler := NewReconciler(reg, logger.Named("reconciler"))
	if err := reconciler.Reconcile(cfg); err != nil {
		return nil, fmt.Errorf("failed to populate registry: %w", err)
	}

	sessions := session.New()
	sweeper := session.NewSweeper(sessions, time.Duration(cfg.Global.SessionTimeout)*time.Second, sessionSweepInterval, logger.Named("session"))

	snatMgr, err := snat.NewManager(logger.Named("snat"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snat manager: %w", err)
	}

	s := &Server{
		configMgr:  configMgr,
		reg:        reg,
		reconciler: reconciler,
		sessions:   sessions,
		sweeper:    sweeper,
		snatMgr:    snatMgr,
		logger:     logger,
	}

	s.healthMgr = healthcheck.NewManager(reg, healthCheckInterval, healthCheckTimeout, healthFailCount, healthRiseCount, s.onHealthChange, logger.Named("healthcheck"))

	loops, err := s.buildProxyLoops(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy loops: %w", err)
	}
	s.loops = loops

	s.collector = metrics.NewCollector(reg, sessions, s.proxyStats, metricsInterval)
	s.metricsSrv = &metrics.Server{Logger: logger.Named("metrics"), Registry: prometheus.NewRegistry(), Addr: metricsAddr}
	s.collector.MustRegister(s.metricsSrv.Registry)

	return s, nil
}

// buildProxyLoops starts one L7 proxy loop per configured VIP port.
func (s *Server) buildProxyLoops(cfg *config.Config) ([]*proxy.Loop, error) {
	vip, err := ipv4Bytes(cfg.VIP.IP)
	if err != nil {
		return nil, fmt.Errorf("vip.ip: %w", err)
	}

	loops := make([]*proxy.Loop, 0, len(cfg.VIP.Ports))
	for _, port := range cfg.VIP.Ports {
		loop, err := proxy.NewLoop(vip, port, s.reg, s.sessions, s.logger.Named("proxy"))
		if err != nil {
			return nil, fmt.Errorf("vip port %d: %w", port, err)
		}
		loops = append(loops, loop)
	}
	return loops, nil
}

// proxyStats aggregates every loop's counters into one snapshot for the
// metrics collector.
func (s *Server) proxyStats() proxy.Stats {
	var total proxy.Stats
	for _, loop := range s.loops {
		st := loop.Stats()
		total.Accepted += st.Accepted
		total.Connected += st.Connected
		total.TornDown += st.TornDown
		total.BytesIn += st.BytesIn
		total.BytesOut += st.BytesOut
		total.NoBackend += st.NoBackend
		total.DialErrors += st.DialErrors
		total.ReadErrors += st.ReadErrors
	}
	return total
}

// onHealthChange is invoked by the health check manager whenever a
// backend's status bit flips; the ring membership never changes so no
// reconcile is needed, only a log line for operators.
func (s *Server) onHealthChange() {
	s.logger.Debug("backend health status changed")
}

// reconcileSNAT derives and applies the NAT-mode return-path rules from the
// registry's current membership.
func (s *Server) reconcileSNAT(cfg *config.Config) {
	if cfg.Global.Mode != config.ModeNAT {
		return
	}
	rules := buildSNATRules(s.reg, cfg.Network.Gateway)
	if err := s.snatMgr.Reconcile(rules); err != nil {
		s.logger.Error("snat reconcile failed", zap.Error(err))
	}
}

// Run starts every background component and blocks until ctx is
// cancelled, then shuts everything down in turn.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.configMgr.GetConfig()

	s.reconcileSNAT(cfg)

	go s.sweeper.Run(ctx)
	s.healthMgr.Start(ctx)
	s.collector.Start(ctx)

	for _, loop := range s.loops {
		loop := loop
		go func() {
			if err := loop.Run(ctx); err != nil {
				s.logger.Error("proxy loop exited", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := s.metricsSrv.Start(ctx); err != nil {
			s.logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	s.configMgr.WatchConfig()
	s.logger.Info("config watcher started")

	s.logger.Info("server started, entering main loop")
	for {
		select {
		case <-s.configMgr.OnChange():
			s.logger.Info("config change detected, reconciling backends")
			newCfg := s.configMgr.GetConfig()
			if err := s.reconciler.Reconcile(newCfg); err != nil {
				s.logger.Error("reconcile after config change failed", zap.Error(err))
				continue
			}
			s.healthMgr.Sync(ctx)
			s.reconcileSNAT(newCfg)

		case <-ctx.Done():
			s.logger.Info("shutdown signal received, stopping server")
			s.shutdown()
			return nil
		}
	}
}

// shutdown stops every background component in turn.
func (s *Server) shutdown() {
	s.healthMgr.Stop()
	s.collector.Stop()
	for _, loop := range s.loops {
		loop.Close()
	}
	if err := s.snatMgr.Cleanup(); err != nil {
		s.logger.Error("snat cleanup failed", zap.Error(err))
	}
	s.logger.Info("server stopped")
}
