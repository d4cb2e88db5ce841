package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TippingMetrics struct {
	tipsSent      *prometheus.CounterVec
	tipVolume     *prometheus.CounterVec
	feesCollected *prometheus.CounterVec
	refunds       *prometheus.CounterVec
	batches       *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	eventsCreated prometheus.Counter
	height        prometheus.Gauge
}

var (
	tippingOnce     sync.Once
	tippingRegistry *TippingMetrics
)

func Tipping() *TippingMetrics {
	tippingOnce.Do(func() {
		tippingRegistry = &TippingMetrics{
			tipsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_tips_sent_total",
				Help: "Count of settled tips by asset.",
			}, []string{"asset"}),
			tipVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_gross_volume_total",
				Help: "Gross amount of settled tips by asset, in base units.",
			}, []string{"asset"}),
			feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_fees_collected_total",
				Help: "Platform fees captured by asset, in base units.",
			}, []string{"asset"}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_refunds_total",
				Help: "Count of refunded tips by asset.",
			}, []string{"asset"}),
			batches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_batches_total",
				Help: "Batch sends by outcome (complete, partial, failed).",
			}, []string{"outcome"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_rejected_total",
				Help: "Rejected tipping operations by operation and error code.",
			}, []string{"operation", "code"}),
			eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_events_created_total",
				Help: "Count of tipping events created by artists.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tipping_chain_height",
				Help: "Height currently observed by the ledger.",
			}),
		}
		prometheus.MustRegister(
			tippingRegistry.tipsSent,
			tippingRegistry.tipVolume,
			tippingRegistry.feesCollected,
			tippingRegistry.refunds,
			tippingRegistry.batches,
			tippingRegistry.rejected,
			tippingRegistry.eventsCreated,
			tippingRegistry.height,
		)
	})
	return tippingRegistry
}

func assetLabel(asset string) string {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

func (m *TippingMetrics) ObserveTip(asset string, gross, fee uint64) {
	if m == nil {
		return
	}
	label := assetLabel(asset)
	m.tipsSent.WithLabelValues(label).Inc()
	m.tipVolume.WithLabelValues(label).Add(float64(gross))
	m.feesCollected.WithLabelValues(label).Add(float64(fee))
}

func (m *TippingMetrics) ObserveRefund(asset string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(assetLabel(asset)).Inc()
}

func (m *TippingMetrics) ObserveBatch(total, committed int) {
	if m == nil {
		return
	}
	outcome := "partial"
	switch {
	case committed == total:
		outcome = "complete"
	case committed == 0:
		outcome = "failed"
	}
	m.batches.WithLabelValues(outcome).Inc()
}

func (m *TippingMetrics) ObserveRejected(operation, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.rejected.WithLabelValues(operation, code).Inc()
}

func (m *TippingMetrics) ObserveEventCreated() {
	if m == nil {
		return
	}
	m.eventsCreated.Inc()
}

func (m *TippingMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
