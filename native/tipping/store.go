package tipping

import (
	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/common"
)

// Tx is the staged view of ledger state used by one entry point. Writes are
// visible to later reads in the same Tx and become durable only when the
// surrounding Store.Update returns nil.
type Tx interface {
	Config() (Config, bool, error)
	PutConfig(cfg Config) error

	NextTipID() (uint64, error)
	Tip(id uint64) (*Tip, bool, error)
	PutTip(tip *Tip) error

	History(role HistoryRole, addr crypto.Address) ([]uint64, error)
	PutHistory(role HistoryRole, addr crypto.Address, ids []uint64) error

	Totals(addr crypto.Address) (Totals, error)
	PutTotals(addr crypto.Address, totals Totals) error

	NextEventID() (uint64, error)
	Event(id uint64) (*TippingEvent, bool, error)
	PutEvent(evt *TippingEvent) error
	ArtistEvents(artist crypto.Address) ([]uint64, error)
	PutArtistEvents(artist crypto.Address, ids []uint64) error

	QuotaUsage(addr crypto.Address) (common.QuotaNow, error)
	PutQuotaUsage(addr crypto.Address, usage common.QuotaNow) error

	// NativeLedger and TokenLedger expose balances staged in the same Tx so
	// transfer legs roll back with the ledger records.
	NativeLedger() assets.NativeLedger
	TokenLedger() assets.TokenLedger
}

// Store runs closures against staged transactions.
type Store interface {
	// Update commits the Tx when fn returns nil and discards it otherwise.
	Update(fn func(tx Tx) error) error
	// View runs fn against committed state. Writes are discarded.
	View(fn func(tx Tx) error) error
}

// HeightSource reports the current chain height.
type HeightSource interface {
	Height() uint64
}

// HeightFunc adapts a function to HeightSource.
type HeightFunc func() uint64

// Height implements HeightSource.
func (f HeightFunc) Height() uint64 { return f() }
