package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the session/strategy counters and the step-duration
// histogram (spec.md §4's healingStats, given a Prometheus face),
// grounded on the teacher's internal/observability ContextMetrics:
// one struct per concern, constructed against a caller-supplied
// registerer so tests never touch the global default registry.
type Metrics struct {
	healingAttempted prometheus.Counter
	healingSuccess   prometheus.Counter
	healingFailed    prometheus.Counter
	healingCached    prometheus.Counter
	strategyHits     *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
}

// NewMetricsWithRegisterer constructs a Metrics registered against reg,
// so concurrent tests (and concurrent Engine instances in one process)
// never collide on the global default registry.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		healingAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playback_healing_attempted_total",
			Help: "Number of steps that required a self-healing resolution attempt.",
		}),
		healingSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playback_healing_successful_total",
			Help: "Number of self-healing resolution attempts that succeeded.",
		}),
		healingFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playback_healing_failed_total",
			Help: "Number of self-healing resolution attempts that exhausted every strategy.",
		}),
		healingCached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playback_healing_cached_total",
			Help: "Number of resolutions served from the pattern store's cache.",
		}),
		strategyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_resolution_strategy_hits_total",
			Help: "Number of times each resolution strategy produced the winning match.",
		}, []string{"strategy"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playback_step_duration_seconds",
			Help:    "Step execution duration, from resolve through dispatch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.healingAttempted, m.healingSuccess, m.healingFailed, m.healingCached, m.strategyHits, m.stepDuration)
	return m
}

func (m *Metrics) RecordHealingAttempt() { m.healingAttempted.Inc() }
func (m *Metrics) RecordHealingSuccess() { m.healingSuccess.Inc() }
func (m *Metrics) RecordHealingFailure() { m.healingFailed.Inc() }
func (m *Metrics) RecordHealingCached()  { m.healingCached.Inc() }

func (m *Metrics) RecordStrategyHit(strategy string) {
	if strategy == "" {
		return
	}
	m.strategyHits.WithLabelValues(strategy).Inc()
}

func (m *Metrics) RecordStepDuration(d time.Duration, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.stepDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
