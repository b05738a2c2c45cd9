// Package metrics exposes prometheus collectors for the parrot engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route labels for emitted phrases.
const (
	RouteLocal    = "local"
	RouteRadio    = "radio"
	RouteFallback = "fallback"
)

// Outcome labels for durable store calls.
const (
	OutcomeOK        = "ok"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	learnVerdicts *prometheus.CounterVec
	emissions     *prometheus.CounterVec
	emitFailures  *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	memoryFill    *prometheus.GaugeVec
}

// New registers the collectors on reg under namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		learnVerdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_verdicts_total",
			Help:      "Heard phrases by learning gate verdict",
		}, []string{"reason"}),
		emissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_total",
			Help:      "Phrases handed to the transmitter by route",
		}, []string{"route"}),
		emitFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_failures_total",
			Help:      "Transmitter failures by route",
		}, []string{"route"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durable_refreshes_total",
			Help:      "Durable memory refreshes by outcome",
		}, []string{"outcome"}),
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durable_publishes_total",
			Help:      "Durable phrase publishes by outcome",
		}, []string{"outcome"}),
		memoryFill: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_phrases",
			Help:      "Phrases currently held per parrot",
		}, []string{"parrot"}),
	}
}

// LearnVerdict counts one learning gate verdict.
func (m *Metrics) LearnVerdict(reason string) {
	if m == nil {
		return
	}
	m.learnVerdicts.WithLabelValues(reason).Inc()
}

// Emitted counts a phrase delivered on route.
func (m *Metrics) Emitted(route string) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(route).Inc()
}

// EmitFailed counts a transmitter failure on route.
func (m *Metrics) EmitFailed(route string) {
	if m == nil {
		return
	}
	m.emitFailures.WithLabelValues(route).Inc()
}

// Refreshed counts a durable refresh outcome.
func (m *Metrics) Refreshed(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Published counts a durable publish outcome.
func (m *Metrics) Published(outcome string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

// MemoryFill records how many phrases a parrot holds.
func (m *Metrics) MemoryFill(parrot string, n int) {
	if m == nil {
		return
	}
	m.memoryFill.WithLabelValues(parrot).Set(float64(n))
}

// ForgetParrot drops the per-parrot series of a removed parrot.
func (m *Metrics) ForgetParrot(parrot string) {
	if m == nil {
		return
	}
	m.memoryFill.DeleteLabelValues(parrot)
}
