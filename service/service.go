package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-lineprobe/metrics"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config selects which side servers run next to the fixture runner.
type Config struct {
	Metrics     opmetrics.CLIConfig
	HealthzAddr string // Empty disables the healthz endpoint
}

// Service owns the optional metrics and healthz HTTP servers.
type Service struct {
	log     log.Logger
	Healthz *HealthzServer
	Metrics *httputil.HTTPServer
}

func New(logger log.Logger) *Service {
	return &Service{log: logger}
}

// Start launches the servers enabled in cfg. On error, anything already
// started is stopped again.
func (s *Service) Start(ctx context.Context, cfg Config) error {
	s.log.Info("service starting")

	if cfg.Metrics.Enabled {
		s.log.Info("starting metrics server", "addr", cfg.Metrics.ListenAddr, "port", cfg.Metrics.ListenPort)
		srv, err := opmetrics.StartServer(metrics.Registry, cfg.Metrics.ListenAddr, cfg.Metrics.ListenPort)
		if err != nil {
			metrics.RecordErrorDetails("metrics server", err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.log.Info("started metrics server", "endpoint", srv.Addr())
		s.Metrics = srv
	}

	if cfg.HealthzAddr != "" {
		h := NewHealthzServer(s.log)
		if err := h.Start(cfg.HealthzAddr); err != nil {
			metrics.RecordErrorDetails("healthz server", err)
			return errors.Join(fmt.Errorf("failed to start healthz server: %w", err), s.Shutdown(ctx))
		}
		s.log.Info("started healthz server", "addr", h.Addr())
		s.Healthz = h
	}

	s.log.Info("service started")
	return nil
}

// Shutdown stops whatever Start launched. It is safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")

	var result error
	if s.Healthz != nil {
		if err := s.Healthz.Shutdown(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop healthz server: %w", err))
		}
		s.Healthz = nil
		s.log.Info("healthz stopped")
	}
	if s.Metrics != nil {
		if err := s.Metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
		s.Metrics = nil
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
	return result
}
