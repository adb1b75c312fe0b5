// Package metrics exposes Prometheus instrumentation on a private registry.
// Every method is safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "progression"

// Metrics holds every collector the engine records.
type Metrics struct {
	registry *prometheus.Registry

	xpCredited        *prometheus.CounterVec
	streakClaims      *prometheus.CounterVec
	missionsCompleted *prometheus.CounterVec
	syncFailures      *prometheus.CounterVec
	rollovers         *prometheus.CounterVec
	eventHandlers     *prometheus.HistogramVec
	circuitState      *prometheus.GaugeVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		xpCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_credited_total",
			Help:      "XP credited to player ledgers, by source.",
		}, []string{"source"}),
		streakClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streak_claims_total",
			Help:      "Streak claim attempts, by result.",
		}, []string{"result"}),
		missionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missions_completed_total",
			Help:      "Completed mission runs, by kind.",
		}, []string{"kind"}),
		syncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failures_total",
			Help:      "Soft failures of secondary writes, by target.",
		}, []string{"target"}),
		rollovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "league_rollovers_total",
			Help:      "League cohorts rolled over, by tier.",
		}, []string{"tier"}),
		eventHandlers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler latency, by event type and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type", "outcome"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.xpCredited,
		m.streakClaims,
		m.missionsCompleted,
		m.syncFailures,
		m.rollovers,
		m.eventHandlers,
		m.circuitState,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) XPCredited(source string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpCredited.WithLabelValues(source).Add(float64(amount))
}

// StreakClaim records a claim with result "claimed", "already_claimed",
// "conflict" or "error".
func (m *Metrics) StreakClaim(result string) {
	if m == nil {
		return
	}
	m.streakClaims.WithLabelValues(result).Inc()
}

func (m *Metrics) MissionCompleted(kind string) {
	if m == nil {
		return
	}
	m.missionsCompleted.WithLabelValues(kind).Inc()
}

func (m *Metrics) SyncFailure(target string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(target).Inc()
}

func (m *Metrics) RolloverApplied(tier string) {
	if m == nil {
		return
	}
	m.rollovers.WithLabelValues(tier).Inc()
}

func (m *Metrics) EventHandled(eventType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.eventHandlers.WithLabelValues(eventType, outcome).Observe(d.Seconds())
}

// CircuitState records a breaker transition. state follows the
// circuitbreaker package ordering.
func (m *Metrics) CircuitState(name string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
