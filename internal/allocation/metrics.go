package allocation

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	admissions  *prometheus.CounterVec
	disruptions *prometheus.CounterVec
	displaced   prometheus.Counter
	reshuffles  prometheus.Counter
	queueDepth  *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Name:      "token_admissions_total",
			Help:      "Tokens submitted, by class and admission outcome.",
		}, []string{"class", "outcome"}),
		disruptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Name:      "disruptions_total",
			Help:      "Disruption events handled, by kind.",
		}, []string{"kind"}),
		displaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opd",
			Name:      "delay_displaced_tokens_total",
			Help:      "Tokens pulled out of blocked slots by doctor delays.",
		}),
		reshuffles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opd",
			Name:      "reshuffles_total",
			Help:      "Occupants relocated to make room for an emergency.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "opd",
			Name:      "queue_depth",
			Help:      "Tokens waiting in a doctor's queue.",
		}, []string{"doctor_id"}),
	}
	reg.MustRegister(m.admissions, m.disruptions, m.displaced, m.reshuffles, m.queueDepth)
	return m
}

func (m *Metrics) admitted(class TokenClass, outcome Outcome, moved bool) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(string(class), string(outcome)).Inc()
	if moved {
		m.reshuffles.Inc()
	}
}

func (m *Metrics) disrupted(kind string, displaced int) {
	if m == nil {
		return
	}
	m.disruptions.WithLabelValues(kind).Inc()
	if displaced > 0 {
		m.displaced.Add(float64(displaced))
	}
}

func (m *Metrics) observeQueue(l *ledger) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(l.doctor.ID.String()).Set(float64(l.queue.Len()))
}
