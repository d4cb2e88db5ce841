package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTippingMetricsObserve(t *testing.T) {
	m := Tipping()
	if Tipping() != m {
		t.Fatalf("expected singleton registry")
	}
	before := testutil.ToFloat64(m.tipsSent.WithLabelValues("NATIVE"))
	m.ObserveTip("native", 1_000, 5)
	if got := testutil.ToFloat64(m.tipsSent.WithLabelValues("NATIVE")); got != before+1 {
		t.Fatalf("expected tips counter to advance, got %v", got)
	}
	if got := testutil.ToFloat64(m.feesCollected.WithLabelValues("NATIVE")); got < 5 {
		t.Fatalf("expected fees to include 5, got %v", got)
	}

	m.ObserveBatch(3, 1)
	if got := testutil.ToFloat64(m.batches.WithLabelValues("partial")); got < 1 {
		t.Fatalf("expected partial batch recorded, got %v", got)
	}
	m.ObserveRejected("send", "")
	if got := testutil.ToFloat64(m.rejected.WithLabelValues("send", "unknown")); got < 1 {
		t.Fatalf("expected rejection recorded, got %v", got)
	}
	m.SetHeight(77)
	if got := testutil.ToFloat64(m.height); got != 77 {
		t.Fatalf("unexpected height gauge %v", got)
	}
}

func TestNilTippingMetricsAreSafe(t *testing.T) {
	var m *TippingMetrics
	m.ObserveTip("native", 1, 0)
	m.ObserveRefund("native")
	m.ObserveBatch(1, 1)
	m.ObserveRejected("send", "paused")
	m.ObserveEventCreated()
	m.SetHeight(1)
}
