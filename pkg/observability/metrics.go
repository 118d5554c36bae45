package observability

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentflow"

// Metrics holds the Prometheus collectors fed by the engine lifecycle.
type Metrics struct {
	RunsStarted  *prometheus.CounterVec
	RunsFinished *prometheus.CounterVec
	RunSteps     *prometheus.HistogramVec
	NodeVisits   *prometheus.CounterVec
	NodeErrors   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RunsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of runs started",
			},
			[]string{"graph_id"},
		),
		RunsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of runs finished, by terminal status",
			},
			[]string{"graph_id", "status"},
		),
		RunSteps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_steps",
				Help:      "Node invocations per finished run",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"graph_id"},
		),
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_visits_total",
				Help:      "Total number of node visits",
			},
			[]string{"node_id"},
		),
		NodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_errors_total",
				Help:      "Total number of failed node invocations",
			},
			[]string{"node_id"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node invocations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_id"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.RunsStarted, m.RunsFinished, m.RunSteps,
		m.NodeVisits, m.NodeErrors, m.NodeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			m.RunsStarted.WithLabelValues(e.GraphID).Inc()
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.RunsFinished.WithLabelValues(e.GraphID, string(e.Status)).Inc()
			m.RunSteps.WithLabelValues(e.GraphID).Observe(float64(e.StepCount))
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.NodeID).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeDuration.WithLabelValues(e.NodeID).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.NodeErrors.WithLabelValues(e.NodeID).Inc()
			}
		},
	}
}
