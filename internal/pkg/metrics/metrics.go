// Package metrics exposes the Prometheus collectors of the casino and the
// small side server that serves them.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the casino collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	Bets          *prometheus.CounterVec
	Wagered       *prometheus.CounterVec
	Paid          *prometheus.CounterVec
	RoundsSettled *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	CrashStreams  prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Bets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_bets_total",
			Help: "Stakes accepted, by game.",
		}, []string{"game"}),
		Wagered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_wagered_chips_total",
			Help: "Chips staked, by game.",
		}, []string{"game"}),
		Paid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_paid_chips_total",
			Help: "Chips paid out, by game.",
		}, []string{"game"}),
		RoundsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casino_rounds_settled_total",
			Help: "Settled rounds, by game and result.",
		}, []string{"game", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casino_http_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		CrashStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "casino_crash_streams_active",
			Help: "Open crash websocket streams.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Bets, m.Wagered, m.Paid, m.RoundsSettled, m.HTTPDuration, m.CrashStreams,
	)
	return m
}

// ObserveBet counts an accepted stake.
func (m *Metrics) ObserveBet(game string, amount int64) {
	if m == nil {
		return
	}
	m.Bets.WithLabelValues(game).Inc()
	m.Wagered.WithLabelValues(game).Add(float64(amount))
}

// ObserveSettlement counts a settled round and its payout.
func (m *Metrics) ObserveSettlement(game, result string, payout int64) {
	if m == nil {
		return
	}
	m.RoundsSettled.WithLabelValues(game, result).Inc()
	if payout > 0 {
		m.Paid.WithLabelValues(game).Add(float64(payout))
	}
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// StreamOpened and StreamClosed track open crash streams.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.CrashStreams.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.CrashStreams.Dec()
	}
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler(checks map[string]HealthFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, "unhealthy: %s: %v", name, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer returns the metrics side server. The caller starts and stops it.
func (m *Metrics) NewServer(addr string, checks map[string]HealthFunc) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           m.Handler(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
