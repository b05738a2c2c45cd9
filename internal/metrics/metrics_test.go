package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LearnVerdict("accepted")
	m.Emitted(RouteLocal)
	m.EmitFailed(RouteRadio)
	m.Refreshed(OutcomeOK)
	m.Published(OutcomeSkipped)
	m.MemoryFill("polly", 3)
	m.ForgetParrot("polly")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("polly", reg)

	m.Emitted(RouteRadio)
	m.Emitted(RouteRadio)
	m.Emitted(RouteFallback)
	m.EmitFailed(RouteRadio)
	m.LearnVerdict("on_cooldown")
	m.Refreshed(OutcomeAbandoned)
	m.Published(OutcomeOK)

	if got := testutil.ToFloat64(m.emissions.WithLabelValues(RouteRadio)); got != 2 {
		t.Errorf("radio emissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.emissions.WithLabelValues(RouteFallback)); got != 1 {
		t.Errorf("fallback emissions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.emitFailures.WithLabelValues(RouteRadio)); got != 1 {
		t.Errorf("radio failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.learnVerdicts.WithLabelValues("on_cooldown")); got != 1 {
		t.Errorf("cooldown verdicts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeAbandoned)); got != 1 {
		t.Errorf("abandoned refreshes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("publishes = %v, want 1", got)
	}
}

func TestMemoryFillForget(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("polly", reg)

	m.MemoryFill("a", 4)
	m.MemoryFill("b", 1)
	if n := testutil.CollectAndCount(m.memoryFill); n != 2 {
		t.Fatalf("series = %d, want 2", n)
	}
	m.ForgetParrot("a")
	if n := testutil.CollectAndCount(m.memoryFill); n != 1 {
		t.Fatalf("series after forget = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.memoryFill.WithLabelValues("b")); got != 1 {
		t.Errorf("b fill = %v, want 1", got)
	}
}
