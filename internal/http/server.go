// Package http serves health checks and Prometheus metrics for the bot.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chatguard/internal/core"
)

const (
	metricsNamespace = "chatguard"
	shutdownTimeout  = 10 * time.Second
)

var _ core.Metrics = (*Server)(nil)

// Server exposes /healthz, /readyz and /metrics. It also implements core.Metrics.
type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	metrics  *Metrics
	ready    *atomic.Bool
}

type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	RuleMatches     *prometheus.CounterVec
	ActionsTotal    *prometheus.CounterVec
	CaptchaTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	PendingCaptchas prometheus.Gauge
	FloodWindows    prometheus.Gauge
	ProcessingTime  *prometheus.HistogramVec
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Total number of chat events received",
			},
			[]string{"kind"},
		),
		RuleMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rule_matches_total",
				Help:      "Total number of messages matched by a moderation rule",
			},
			[]string{"rule"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "actions_total",
				Help:      "Total number of moderation actions attempted",
			},
			[]string{"action", "status"},
		),
		CaptchaTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "captcha_total",
				Help:      "Total number of captcha outcomes",
			},
			[]string{"outcome"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),
		PendingCaptchas: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pending_captchas",
				Help:      "Number of newcomers waiting to pass the captcha",
			},
		),
		FloodWindows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "flood_active_windows",
				Help:      "Number of per-user antiflood windows currently tracked",
			},
		),
		ProcessingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "processing_duration_seconds",
				Help:      "Time spent handling chat events",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsTotal,
		m.RuleMatches,
		m.ActionsTotal,
		m.CaptchaTotal,
		m.ErrorsTotal,
		m.PendingCaptchas,
		m.FloodWindows,
		m.ProcessingTime,
	}
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := newMetrics()

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.collectors()...)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ready := &atomic.Bool{}
	mux := setupRoutes(logger, registry, ready)

	return &Server{
		config:   config,
		logger:   logger,
		server:   createHTTPServer(config, mux),
		registry: registry,
		metrics:  metrics,
		ready:    ready,
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(logger *zap.Logger, registry *prometheus.Registry, ready *atomic.Bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", jsonHandler(logger, `{"status":"ok","service":"chatguard"}`))

	readyBody := jsonHandler(logger, `{"status":"ready","service":"chatguard"}`)
	notReadyBody := `{"status":"starting","service":"chatguard"}`
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			readyBody(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(notReadyBody)); err != nil {
			logger.Debug("Failed to write readiness response", zap.Error(err))
		}
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	mux.HandleFunc("/", homeHandler(logger))

	return mux
}

func jsonHandler(logger *zap.Logger, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			logger.Debug("Failed to write response", zap.Error(err))
		}
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>ChatGuard</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">🛡️ ChatGuard</h1>
    <p>Telegram group moderation bot</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// SetReady flips the /readyz answer
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) IncEvent(kind string) {
	s.metrics.EventsTotal.WithLabelValues(kind).Inc()
}

func (s *Server) IncRuleMatch(rule string) {
	s.metrics.RuleMatches.WithLabelValues(rule).Inc()
}

func (s *Server) IncAction(action string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ActionsTotal.WithLabelValues(action, status).Inc()
}

func (s *Server) IncCaptcha(outcome string) {
	s.metrics.CaptchaTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) IncError(component, errType string) {
	s.metrics.ErrorsTotal.WithLabelValues(component, errType).Inc()
}

func (s *Server) SetPendingCaptchas(n int) {
	s.metrics.PendingCaptchas.Set(float64(n))
}

func (s *Server) SetFloodWindows(n int) {
	s.metrics.FloodWindows.Set(float64(n))
}

func (s *Server) ObserveProcessing(kind string, d time.Duration) {
	s.metrics.ProcessingTime.WithLabelValues(kind).Observe(d.Seconds())
}
