package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics reports progress of the event indexer.
type IndexerMetrics struct {
	written  *prometheus.CounterVec
	failures *prometheus.CounterVec
	height   prometheus.Gauge
}

var (
	indexerOnce     sync.Once
	indexerRegistry *IndexerMetrics
)

func Indexer() *IndexerMetrics {
	indexerOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			written: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "puzzle_indexer_events_written_total",
				Help: "Count of events persisted by the indexer by type.",
			}, []string{"type"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "puzzle_indexer_failures_total",
				Help: "Number of failed indexer writes by stage.",
			}, []string{"stage"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "puzzle_indexer_height",
				Help: "Highest committed height written by the indexer.",
			}),
		}
		prometheus.MustRegister(
			indexerRegistry.written,
			indexerRegistry.failures,
			indexerRegistry.height,
		)
	})
	return indexerRegistry
}

func (m *IndexerMetrics) RecordWritten(eventType string) {
	if m == nil {
		return
	}
	m.written.WithLabelValues(eventType).Inc()
}

func (m *IndexerMetrics) RecordFailure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}

func (m *IndexerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
