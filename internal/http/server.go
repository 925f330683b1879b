// Package http serves health, readiness and Prometheus metrics endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"modguard/internal/core"
)

// Server is the operational HTTP endpoint. It also implements core.Recorder,
// feeding pipeline outcomes into the Prometheus counters.
type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	registry *prometheus.Registry
}

// Metrics holds the exported Prometheus collectors.
type Metrics struct {
	MessagesTotal *prometheus.CounterVec
	ActionsTotal  *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

// NewServer creates the HTTP server with its own metrics registry.
func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modguard_messages_total",
				Help: "Total number of messages processed, by pipeline outcome",
			},
			[]string{"outcome"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modguard_actions_total",
				Help: "Total number of moderation actions issued",
			},
			[]string{"kind"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modguard_errors_total",
				Help: "Total number of degraded operations",
			},
			[]string{"component"},
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.MessagesTotal,
		metrics.ActionsTotal,
		metrics.ErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"modguard"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"modguard"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:   config,
		logger:   logger,
		server:   server,
		metrics:  metrics,
		registry: registry,
	}
}

// TrackFloodEntries exports the number of live flood windows as a gauge.
func (s *Server) TrackFloodEntries(size func() int) {
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "modguard_flood_entries",
			Help: "Number of (chat, user) flood windows currently tracked",
		},
		func() float64 { return float64(size()) },
	))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// RecordMessage counts one processed message by pipeline outcome.
func (s *Server) RecordMessage(outcome string) {
	s.metrics.MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordAction counts one issued moderation action.
func (s *Server) RecordAction(kind string) {
	s.metrics.ActionsTotal.WithLabelValues(kind).Inc()
}

// RecordError counts one degraded operation by component.
func (s *Server) RecordError(component string) {
	s.metrics.ErrorsTotal.WithLabelValues(component).Inc()
}
