package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaCountLimit(t *testing.T) {
	q := Quota{MaxCountPerEpoch: 3, EpochHeights: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Count != 3 {
		t.Fatalf("unexpected count: %d", next.Count)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.Count != 1 {
		t.Fatalf("unexpected rollover counters: %+v", rollover)
	}
}

func TestCheckQuotaAmountCap(t *testing.T) {
	q := Quota{MaxAmountPerEpoch: 1_000, EpochHeights: 10}
	next, err := CheckQuota(q, 0, QuotaNow{}, 1, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := CheckQuota(q, 0, next, 1, 101); !errors.Is(err, ErrQuotaAmountExceeded) {
		t.Fatalf("expected ErrQuotaAmountExceeded, got %v", err)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	q := Quota{EpochHeights: 1}
	prev := QuotaNow{AmountUsed: math.MaxUint64}
	if _, err := CheckQuota(q, 0, prev, 0, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestQuotaEpochs(t *testing.T) {
	if (Quota{}).Enabled() {
		t.Fatalf("zero quota must be disabled")
	}
	q := Quota{MaxCountPerEpoch: 1, EpochHeights: 144}
	if !q.Enabled() {
		t.Fatalf("expected quota to be enabled")
	}
	if q.EpochAt(143) != 0 || q.EpochAt(144) != 1 {
		t.Fatalf("unexpected epoch mapping")
	}
}

type pausedModules map[string]bool

func (p pausedModules) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	paused := pausedModules{"tipping": true}
	if err := Guard(paused, "tipping"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(paused, "escrow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "tipping"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}
