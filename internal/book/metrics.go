package book

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors shared by every InstrumentBook
// in a process, registered once by the composition root (spec.md §5:
// logs/metrics are the only process-wide sink a single-threaded engine
// instance touches).
type Metrics struct {
	// MessagesTotal is registered with the other collectors, but no code
	// path in this package increments it.
	MessagesTotal     *prometheus.CounterVec
	SnapshotsEmitted  *prometheus.CounterVec
	ProtocolErrors    *prometheus.CounterVec
	HoldingSlotEvents *prometheus.CounterVec
	CagePromotions    *prometheus.CounterVec
}

// NewMetrics constructs the metric family, with an "exchange" label
// distinguishing SZSE from SSE instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axob",
			Name:      "messages_total",
			Help:      "Inbound messages processed by the book engine, by type.",
		}, []string{"exchange", "msg_type"}),
		SnapshotsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axob",
			Name:      "snapshots_emitted_total",
			Help:      "Regenerated snapshots emitted, by exchange.",
		}, []string{"exchange"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axob",
			Name:      "protocol_errors_total",
			Help:      "Protocol-level anomalies detected, by error code.",
		}, []string{"exchange", "code"}),
		HoldingSlotEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axob",
			Name:      "holding_slot_events_total",
			Help:      "Holding-slot open/flush events, by kind.",
		}, []string{"exchange", "kind"}),
		CagePromotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axob",
			Name:      "cage_promotions_total",
			Help:      "ChiNext hidden-order cage promotions, by side.",
		}, []string{"side"}),
	}
	if reg != nil {
		reg.MustRegister(m.MessagesTotal, m.SnapshotsEmitted, m.ProtocolErrors, m.HoldingSlotEvents, m.CagePromotions)
	}
	return m
}
