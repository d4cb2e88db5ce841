package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics tracks delivery of ledger events through the event hub.
type EventMetrics struct {
	published *prometheus.CounterVec
	dropped   prometheus.Counter
	streams   prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking emitted ledger events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tip",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of ledger events published to the hub by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tip",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events dropped because a subscriber buffer was full.",
			}),
			streams: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "tip",
				Subsystem: "events",
				Name:      "streams_open",
				Help:      "Open websocket event streams.",
			}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped, eventRegistry.streams)
	})
	return eventRegistry
}

// RecordPublished increments the publish counter for the supplied event type.
func (m *EventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordDrop counts one event missed by a slow subscriber.
func (m *EventMetrics) RecordDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// StreamOpened and StreamClosed track live websocket subscribers.
func (m *EventMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

func (m *EventMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}
