package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics are additive operator visibility counters; nothing in the
// dispatch path depends on them, and a nil *Metrics is always safe to use.
type Metrics struct {
	answered  prometheus.Counter
	forwarded prometheus.Counter
	servfail  prometheus.Counter
	refused   prometheus.Counter
}

// NewMetrics registers the dispatcher's counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		answered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zeronsd",
			Name:      "queries_answered_total",
			Help:      "Queries answered directly from the zone authority.",
		}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zeronsd",
			Name:      "queries_forwarded_total",
			Help:      "Queries forwarded to an upstream resolver.",
		}),
		servfail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zeronsd",
			Name:      "queries_servfail_total",
			Help:      "Queries answered SERVFAIL due to a forwarder failure.",
		}),
		refused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zeronsd",
			Name:      "queries_notimp_total",
			Help:      "Queries rejected for an unsupported query class.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.answered, m.forwarded, m.servfail, m.refused)
	}
	return m
}

func (m *Metrics) incAnswered() {
	if m != nil {
		m.answered.Inc()
	}
}

func (m *Metrics) incForwarded() {
	if m != nil {
		m.forwarded.Inc()
	}
}

func (m *Metrics) incServfail() {
	if m != nil {
		m.servfail.Inc()
	}
}

func (m *Metrics) incNotImp() {
	if m != nil {
		m.refused.Inc()
	}
}
