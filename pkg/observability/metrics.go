package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0x-stone/zspa/pkg/domain"
)

// Metrics holds the agent collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	nodeVisits    *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	nodeErrors    *prometheus.CounterVec
	forks         *prometheus.CounterVec
	verifications *prometheus.CounterVec
	pollCycles    *prometheus.CounterVec
	turns         *prometheus.CounterVec
	turnDuration  prometheus.Histogram
}

// NewMetrics creates and registers the collectors, including the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_node_visits_total",
			Help: "Total number of node visits",
		}, []string{"node_id"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zspa_node_duration_seconds",
			Help:    "Duration of node executions",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"node_id"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_node_errors_total",
			Help: "Node executions that returned an error or panicked",
		}, []string{"node_id"}),
		forks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_forks_total",
			Help: "Completed side tasks by outcome",
		}, []string{"fork", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_verifications_total",
			Help: "Inference verification results",
		}, []string{"node_id", "verified"}),
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_poll_cycles_total",
			Help: "Settlement status checks by reported status",
		}, []string{"status"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zspa_turns_total",
			Help: "Completed turns by outcome",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zspa_turn_duration_seconds",
			Help:    "Wall time of a turn including polling re-entries",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 10),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.nodeVisits, m.nodeDuration, m.nodeErrors, m.forks,
		m.verifications, m.pollCycles, m.turns, m.turnDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle callbacks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.NodeID).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeDuration.WithLabelValues(e.NodeID).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.nodeErrors.WithLabelValues(e.NodeID).Inc()
			}
		},
		OnForkComplete: func(_ context.Context, e *domain.ForkEvent) {
			m.forks.WithLabelValues(e.Fork, outcome(e.Err)).Inc()
		},
		OnVerification: func(_ context.Context, p *domain.Proof) {
			m.verifications.WithLabelValues(p.Node, strconv.FormatBool(p.Verified)).Inc()
		},
		OnPollCycle: func(_ context.Context, status string, _ int) {
			m.pollCycles.WithLabelValues(status).Inc()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.turns.WithLabelValues(outcome(e.Err)).Inc()
			m.turnDuration.Observe(e.Duration.Seconds())
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
