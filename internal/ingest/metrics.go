package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts ingestion outcomes and drains. A nil *Metrics records nothing.
type Metrics struct {
	ingests *prometheus.CounterVec
	drains  *prometheus.CounterVec
}

// NewMetrics registers the ingestion collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogpost_ingest_total",
				Help: "Multipart post ingestions by outcome.",
			},
			[]string{"outcome"},
		),
		drains: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogpost_drain_total",
				Help: "Request body drains after an aborted ingestion, by result.",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.ingests, m.drains} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeIngest(err error) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(Reason(err)).Inc()
}

func (m *Metrics) observeDrain(res DrainResult) {
	if m == nil {
		return
	}
	m.drains.WithLabelValues(res.Reason).Inc()
}
