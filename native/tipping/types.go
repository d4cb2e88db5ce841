package tipping

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/fees"
)

const (
	// RefundWindow is the number of heights after a tip during which its tipper
	// may reverse it.
	RefundWindow uint64 = 144
	// HistoryCap bounds each per-account history sequence.
	HistoryCap = 100
	// MaxBatchSize bounds the number of entries in one batch send.
	MaxBatchSize = 10
	// DefaultMinTipAmount is the floor applied when genesis does not set one.
	DefaultMinTipAmount uint64 = 100
	// DefaultFeePermille is the platform fee applied when genesis does not set one.
	DefaultFeePermille uint64 = 5
)

// HistoryRole selects the sent or received history of an account.
type HistoryRole uint8

const (
	HistorySent HistoryRole = iota
	HistoryReceived
)

func (r HistoryRole) String() string {
	if r == HistoryReceived {
		return "received"
	}
	return "sent"
}

// ParseHistoryRole accepts "sent"/"tipper" and "received"/"artist".
func ParseHistoryRole(raw string) (HistoryRole, error) {
	switch raw {
	case "", "sent", "tipper":
		return HistorySent, nil
	case "received", "artist":
		return HistoryReceived, nil
	default:
		return 0, fmt.Errorf("tipping: unknown history role %q", raw)
	}
}

// HistoryPolicy decides what happens when a history sequence is full.
type HistoryPolicy uint8

const (
	// HistoryPolicyEvict drops the oldest id to make room.
	HistoryPolicyEvict HistoryPolicy = iota
	// HistoryPolicyReject fails the send with ErrHistoryCapExceeded.
	HistoryPolicyReject
)

// ParseHistoryPolicy maps the configuration spelling to a policy.
func ParseHistoryPolicy(raw string) (HistoryPolicy, error) {
	switch raw {
	case "", "evict":
		return HistoryPolicyEvict, nil
	case "reject":
		return HistoryPolicyReject, nil
	default:
		return 0, fmt.Errorf("tipping: unknown history policy %q", raw)
	}
}

// Tip is the immutable record of one settled payment. Only Refunded changes
// after creation.
type Tip struct {
	ID             uint64         `json:"id"`
	Tipper         crypto.Address `json:"tipper"`
	Artist         crypto.Address `json:"artist"`
	GrossAmount    uint64         `json:"grossAmount"`
	Asset          assets.Asset   `json:"asset"`
	CapturedFee    uint64         `json:"capturedFee"`
	Timestamp      uint64         `json:"timestamp"`
	Refunded       bool           `json:"refunded"`
	CreditedEvents []uint64       `json:"creditedEvents,omitempty"`
}

// NetAmount is the amount paid to the artist.
func (t *Tip) NetAmount() uint64 {
	if t == nil || t.CapturedFee > t.GrossAmount {
		return 0
	}
	return t.GrossAmount - t.CapturedFee
}

// RefundableAt reports whether the refund window is still open at height.
func (t *Tip) RefundableAt(height uint64) bool {
	if t == nil || t.Refunded {
		return false
	}
	if t.Timestamp > ^uint64(0)-RefundWindow {
		return true
	}
	return height < t.Timestamp+RefundWindow
}

// Clone returns a deep copy of the tip.
func (t *Tip) Clone() *Tip {
	if t == nil {
		return nil
	}
	clone := *t
	if t.CreditedEvents != nil {
		clone.CreditedEvents = append([]uint64(nil), t.CreditedEvents...)
	}
	return &clone
}

// Receipt is a blake3 digest over the settled fields of the tip. It does not
// cover Refunded so the value is stable for the life of the tip.
func (t *Tip) Receipt() [32]byte {
	if t == nil {
		return [32]byte{}
	}
	asset := t.Asset.String()
	buf := make([]byte, 0, 8*4+2*len(t.Tipper)+len(asset))
	buf = binary.BigEndian.AppendUint64(buf, t.ID)
	buf = append(buf, t.Tipper[:]...)
	buf = append(buf, t.Artist[:]...)
	buf = binary.BigEndian.AppendUint64(buf, t.GrossAmount)
	buf = binary.BigEndian.AppendUint64(buf, t.CapturedFee)
	buf = binary.BigEndian.AppendUint64(buf, t.Timestamp)
	buf = append(buf, asset...)
	return blake3.Sum256(buf)
}

// ReceiptHex renders the receipt with a 0x prefix.
func (t *Tip) ReceiptHex() string {
	sum := t.Receipt()
	return "0x" + hex.EncodeToString(sum[:])
}

// Totals are the running aggregates of an account over non-refunded tips.
type Totals struct {
	TotalReceived uint64 `json:"totalReceived"`
	TotalSent     uint64 `json:"totalSent"`
}

// TippingEvent is an artist-declared window that accumulates tips.
type TippingEvent struct {
	ID          uint64         `json:"id"`
	Artist      crypto.Address `json:"artist"`
	StartHeight uint64         `json:"startHeight"`
	EndHeight   uint64         `json:"endHeight"`
	TotalTipped uint64         `json:"totalTipped"`
}

// ActiveAt reports whether height lies inside the inclusive window.
func (e *TippingEvent) ActiveAt(height uint64) bool {
	return e != nil && e.StartHeight <= height && height <= e.EndHeight
}

// Clone returns a copy of the event.
func (e *TippingEvent) Clone() *TippingEvent {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Config is the owner-controlled singleton.
type Config struct {
	Owner        crypto.Address `json:"owner"`
	Paused       bool           `json:"paused"`
	MinTipAmount uint64         `json:"minTipAmount"`
	FeePermille  uint64         `json:"feePermille"`
}

// DefaultConfig returns the configuration used when none is stored.
func DefaultConfig(owner crypto.Address) Config {
	return Config{Owner: owner, MinTipAmount: DefaultMinTipAmount, FeePermille: DefaultFeePermille}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: owner must be set", ErrInvalidConfig)
	}
	if err := fees.ValidatePermille(c.FeePermille); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// IsPaused implements common.PauseView.
func (c Config) IsPaused(string) bool { return c.Paused }

// BatchEntry is one (artist, amount) pair in a batch send.
type BatchEntry struct {
	Artist crypto.Address `json:"artist"`
	Amount uint64         `json:"amount"`
}

// EntryStatus is the outcome of one batch entry.
type EntryStatus string

const (
	EntrySucceeded EntryStatus = "succeeded"
	EntryFailed    EntryStatus = "failed"
	EntrySkipped   EntryStatus = "skipped"
)

// BatchEntryResult reports the outcome of one batch entry.
type BatchEntryResult struct {
	Index  int            `json:"index"`
	Artist crypto.Address `json:"artist"`
	Amount uint64         `json:"amount"`
	Status EntryStatus    `json:"status"`
	TipID  uint64         `json:"tipId,omitempty"`
	Err    error          `json:"-"`
}

// BatchResult reports every entry of a batch. Entries before the first
// failure are committed and stay committed.
type BatchResult struct {
	Entries      []BatchEntryResult `json:"entries"`
	Committed    int                `json:"committed"`
	AllSucceeded bool               `json:"allSucceeded"`
}

// TipIDs returns the ids of the committed entries in order.
func (r *BatchResult) TipIDs() []uint64 {
	if r == nil {
		return nil
	}
	ids := make([]uint64, 0, r.Committed)
	for _, entry := range r.Entries {
		if entry.Status == EntrySucceeded {
			ids = append(ids, entry.TipID)
		}
	}
	return ids
}

// FirstError returns the error of the failed entry, if any.
func (r *BatchResult) FirstError() error {
	if r == nil {
		return nil
	}
	for _, entry := range r.Entries {
		if entry.Status == EntryFailed {
			return entry.Err
		}
	}
	return nil
}
