// Package metrics exposes control loop metrics in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	CycleDuration prometheus.Histogram
	Records       prometheus.Counter
	Finalizations prometheus.Counter
	Sessions      *prometheus.CounterVec
	LoopState     prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "armrecord_cycle_duration_seconds",
			Help:    "Control loop cycle duration (seconds)",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armrecord_records_total",
			Help: "Trajectory records appended",
		}),
		Finalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armrecord_finalizations_total",
			Help: "Episodes closed with a LAST record",
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "armrecord_sessions_total",
			Help: "Finished sessions by outcome",
		}, []string{"outcome"}), // completed | failed | cancelled
		LoopState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "armrecord_loop_state",
			Help: "Current control loop state (0 idle .. 5 closed)",
		}),
	}
	m.Registry.MustRegister(m.CycleDuration, m.Records, m.Finalizations, m.Sessions, m.LoopState)
	return m
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordAppended() {
	if m == nil {
		return
	}
	m.Records.Inc()
}

func (m *Metrics) Finalized() {
	if m == nil {
		return
	}
	m.Finalizations.Inc()
}

func (m *Metrics) SessionDone(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.LoopState.Set(float64(state))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
