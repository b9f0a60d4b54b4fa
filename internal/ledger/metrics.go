package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	callsTotal   *prometheus.CounterVec
	callLatency  *prometheus.HistogramVec
	blockHeight  prometheus.Gauge
	eventsTotal  prometheus.Counter
	replayedCall prometheus.Counter
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.callsTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "dvgov_ledger_calls_total",
		Help: "submitted calls by action and outcome case",
	}, []string{"action", "outcome"})
	m.callLatency = promautoFactory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dvgov_ledger_call_duration_seconds",
		Help:    "wall time spent executing a submitted call",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"action"})
	m.blockHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "dvgov_ledger_block_height",
		Help: "latest mined block",
	})
	m.eventsTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "dvgov_ledger_events_total",
		Help: "contract events emitted by committed calls",
	})
	m.replayedCall = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "dvgov_ledger_replayed_calls_total",
		Help: "calls re-executed by replay",
	})
}
