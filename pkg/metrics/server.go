package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes a Prometheus registry over HTTP, the way the pack's
// conntrack exporter's web.Server does.
type Server struct {
	Logger        *zap.Logger
	Registry      *prometheus.Registry
	Addr          string
	TelemetryPath string
}

// Start launches the HTTP server and blocks until ctx is cancelled, then
// attempts a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.TelemetryPath == "" {
		s.TelemetryPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(s.TelemetryPath, promhttp.InstrumentMetricHandler(
		s.Registry, promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}),
	))

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	if s.Logger != nil {
		s.Logger.Info("metrics server started", zap.String("addr", s.Addr), zap.String("path", s.TelemetryPath))
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err == nil || err == http.ErrServerClosed {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
