// Package metrics exports the service state as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bgservice/internal/controller"
)

var allStates = []controller.State{
	controller.StateNotRunning,
	controller.StateRunning,
	controller.StateRunningForeground,
}

// Metrics holds the collectors for one registry.
type Metrics struct {
	reg         prometheus.Registerer
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bgservice_state",
			Help: "1 for the current state of the service, 0 for the others",
		}, []string{"service", "state"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bgservice_transitions_total",
			Help: "state transitions by trigger",
		}, []string{"service", "trigger"}),
	}
}

// SetState records s as the current state of service.
func (m *Metrics) SetState(service string, s controller.State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(service, st.String()).Set(v)
	}
}

// Observe records a transition. Pass it to Subscribe.
func (m *Metrics) Observe(tr controller.Transition) {
	m.transitions.WithLabelValues(tr.Service, string(tr.Trigger)).Inc()
	m.SetState(tr.Service, tr.To)
}

// RegisterDropped exports fn as the count of events dropped before publishing.
func (m *Metrics) RegisterDropped(fn func() uint64) {
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Name: "bgservice_events_dropped_total",
		Help: "events dropped because the publish queue was full",
	}, func() float64 { return float64(fn()) })
}
