package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaAmountExceeded   = errors.New("quota amount cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current usage counters for an address.
type QuotaNow struct {
	Count      uint64
	AmountUsed uint64
	EpochID    uint64
}

// Quota defines the per-address limits enforced within one epoch. Zero values
// disable the corresponding limit; a zero EpochHeights disables the quota.
type Quota struct {
	MaxCountPerEpoch  uint64
	MaxAmountPerEpoch uint64
	EpochHeights      uint64
}

// Enabled reports whether any limit is active.
func (q Quota) Enabled() bool {
	return q.EpochHeights > 0 && (q.MaxCountPerEpoch > 0 || q.MaxAmountPerEpoch > 0)
}

// EpochAt maps a height to its quota epoch.
func (q Quota) EpochAt(height uint64) uint64 {
	if q.EpochHeights == 0 {
		return 0
	}
	return height / q.EpochHeights
}

// CheckQuota verifies whether the additional count and amount fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded; on denial the previous counters are returned.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addCount uint64, addAmount uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addCount > 0 {
		if next.Count > math.MaxUint64-addCount {
			return prev, ErrQuotaCounterOverflow
		}
		next.Count += addCount
	}
	if q.MaxCountPerEpoch > 0 && next.Count > q.MaxCountPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addAmount > 0 {
		if next.AmountUsed > math.MaxUint64-addAmount {
			return prev, ErrQuotaCounterOverflow
		}
		next.AmountUsed += addAmount
	}
	if q.MaxAmountPerEpoch > 0 && next.AmountUsed > q.MaxAmountPerEpoch {
		return prev, ErrQuotaAmountExceeded
	}

	return next, nil
}
