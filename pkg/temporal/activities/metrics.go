package activities

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "uiharness",
		Name:      "browser_sessions_active",
		Help:      "Number of open browser sessions on this worker.",
	})
	metricStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiharness",
		Name:      "steps_total",
		Help:      "Executed scenario steps by status and error kind.",
	}, []string{"status", "kind"})
	metricStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "uiharness",
		Name:      "step_duration_seconds",
		Help:      "Wall time of scenario steps, lookups included.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	metricScenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiharness",
		Name:      "scenarios_total",
		Help:      "Recorded scenario results by status.",
	}, []string{"status"})
)

func recordStep(status, kind string, took time.Duration) {
	metricStepsTotal.WithLabelValues(status, kind).Inc()
	metricStepDuration.Observe(took.Seconds())
}

func recordScenario(status string) {
	metricScenariosTotal.WithLabelValues(status).Inc()
}
