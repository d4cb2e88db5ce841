package state

import (
	"encoding/binary"
	"fmt"

	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/common"
	"tipchain/native/tipping"
)

const tippingPrefix = "tipping/"

var (
	tippingConfigKey   = []byte(tippingPrefix + "config")
	tippingTipSeqKey   = []byte(tippingPrefix + "seq/tip")
	tippingEventSeqKey = []byte(tippingPrefix + "seq/event")
)

type storedTip struct {
	ID             uint64
	Tipper         [20]byte
	Artist         [20]byte
	GrossAmount    uint64
	AssetKind      uint8
	AssetToken     string
	CapturedFee    uint64
	Timestamp      uint64
	Refunded       bool
	CreditedEvents []uint64
}

type storedTotals struct {
	TotalReceived uint64
	TotalSent     uint64
}

type storedEvent struct {
	ID          uint64
	Artist      [20]byte
	StartHeight uint64
	EndHeight   uint64
	TotalTipped uint64
}

type storedConfig struct {
	Owner        [20]byte
	Paused       bool
	MinTipAmount uint64
	FeePermille  uint64
}

type storedQuota struct {
	Count      uint64
	AmountUsed uint64
	EpochID    uint64
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func tipKey(id uint64) []byte {
	return joinKey(tippingPrefix+"tip/", idBytes(id))
}

func historyKey(role tipping.HistoryRole, addr crypto.Address) []byte {
	return joinKey(tippingPrefix+"history/"+role.String()+"/", addr.Bytes())
}

func totalsKey(addr crypto.Address) []byte {
	return joinKey(tippingPrefix+"totals/", addr.Bytes())
}

func eventKey(id uint64) []byte {
	return joinKey(tippingPrefix+"event/", idBytes(id))
}

func artistEventsKey(addr crypto.Address) []byte {
	return joinKey(tippingPrefix+"events/artist/", addr.Bytes())
}

func quotaKey(addr crypto.Address) []byte {
	return joinKey(tippingPrefix+"quota/", addr.Bytes())
}

// TippingStore binds the tipping ledger records to the manager.
type TippingStore struct {
	manager *Manager
}

// TippingStore returns a tipping store helper bound to the manager.
func (m *Manager) TippingStore() *TippingStore {
	if m == nil {
		return nil
	}
	return &TippingStore{manager: m}
}

// Update implements tipping.Store.
func (s *TippingStore) Update(fn func(tx tipping.Tx) error) error {
	if s == nil || s.manager == nil {
		return fmt.Errorf("tipping store: unavailable")
	}
	return s.manager.Update(func(txn *Txn) error {
		return fn(txn.Tipping())
	})
}

// View implements tipping.Store.
func (s *TippingStore) View(fn func(tx tipping.Tx) error) error {
	if s == nil || s.manager == nil {
		return fmt.Errorf("tipping store: unavailable")
	}
	return s.manager.View(func(txn *Txn) error {
		return fn(txn.Tipping())
	})
}

// TippingTx exposes tipping records on a staged transaction.
type TippingTx struct {
	txn *Txn
}

// Tipping returns the tipping view of the transaction.
func (t *Txn) Tipping() *TippingTx {
	return &TippingTx{txn: t}
}

func (t *TippingTx) Config() (tipping.Config, bool, error) {
	var stored storedConfig
	ok, err := t.txn.KVGet(tippingConfigKey, &stored)
	if err != nil || !ok {
		return tipping.Config{}, false, err
	}
	return tipping.Config{
		Owner:        crypto.Address(stored.Owner),
		Paused:       stored.Paused,
		MinTipAmount: stored.MinTipAmount,
		FeePermille:  stored.FeePermille,
	}, true, nil
}

func (t *TippingTx) PutConfig(cfg tipping.Config) error {
	return t.txn.KVPut(tippingConfigKey, &storedConfig{
		Owner:        cfg.Owner,
		Paused:       cfg.Paused,
		MinTipAmount: cfg.MinTipAmount,
		FeePermille:  cfg.FeePermille,
	})
}

func (t *TippingTx) nextSeq(key []byte) (uint64, error) {
	var last uint64
	if _, err := t.txn.KVGet(key, &last); err != nil {
		return 0, err
	}
	if last == ^uint64(0) {
		return 0, fmt.Errorf("%w: sequence exhausted", tipping.ErrArithmeticOverflow)
	}
	next := last + 1
	if err := t.txn.KVPut(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// NextTipID allocates the next tip id. Ids start at 1.
func (t *TippingTx) NextTipID() (uint64, error) {
	return t.nextSeq(tippingTipSeqKey)
}

func (t *TippingTx) Tip(id uint64) (*tipping.Tip, bool, error) {
	var stored storedTip
	ok, err := t.txn.KVGet(tipKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	tip := &tipping.Tip{
		ID:          stored.ID,
		Tipper:      crypto.Address(stored.Tipper),
		Artist:      crypto.Address(stored.Artist),
		GrossAmount: stored.GrossAmount,
		Asset:       assets.Asset{Kind: assets.Kind(stored.AssetKind), Token: stored.AssetToken},
		CapturedFee: stored.CapturedFee,
		Timestamp:   stored.Timestamp,
		Refunded:    stored.Refunded,
	}
	if len(stored.CreditedEvents) > 0 {
		tip.CreditedEvents = append([]uint64(nil), stored.CreditedEvents...)
	}
	return tip, true, nil
}

func (t *TippingTx) PutTip(tip *tipping.Tip) error {
	if tip == nil || tip.ID == 0 {
		return fmt.Errorf("tipping store: tip id required")
	}
	return t.txn.KVPut(tipKey(tip.ID), &storedTip{
		ID:             tip.ID,
		Tipper:         tip.Tipper,
		Artist:         tip.Artist,
		GrossAmount:    tip.GrossAmount,
		AssetKind:      uint8(tip.Asset.Kind),
		AssetToken:     tip.Asset.Token,
		CapturedFee:    tip.CapturedFee,
		Timestamp:      tip.Timestamp,
		Refunded:       tip.Refunded,
		CreditedEvents: append([]uint64{}, tip.CreditedEvents...),
	})
}

func (t *TippingTx) History(role tipping.HistoryRole, addr crypto.Address) ([]uint64, error) {
	var ids []uint64
	if err := t.txn.KVGetList(historyKey(role, addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *TippingTx) PutHistory(role tipping.HistoryRole, addr crypto.Address, ids []uint64) error {
	return t.txn.KVPut(historyKey(role, addr), ids)
}

func (t *TippingTx) Totals(addr crypto.Address) (tipping.Totals, error) {
	var stored storedTotals
	if _, err := t.txn.KVGet(totalsKey(addr), &stored); err != nil {
		return tipping.Totals{}, err
	}
	return tipping.Totals{TotalReceived: stored.TotalReceived, TotalSent: stored.TotalSent}, nil
}

func (t *TippingTx) PutTotals(addr crypto.Address, totals tipping.Totals) error {
	if totals == (tipping.Totals{}) {
		return t.txn.KVDelete(totalsKey(addr))
	}
	return t.txn.KVPut(totalsKey(addr), &storedTotals{TotalReceived: totals.TotalReceived, TotalSent: totals.TotalSent})
}

// NextEventID allocates the next tipping event id. Ids start at 1.
func (t *TippingTx) NextEventID() (uint64, error) {
	return t.nextSeq(tippingEventSeqKey)
}

func (t *TippingTx) Event(id uint64) (*tipping.TippingEvent, bool, error) {
	var stored storedEvent
	ok, err := t.txn.KVGet(eventKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &tipping.TippingEvent{
		ID:          stored.ID,
		Artist:      crypto.Address(stored.Artist),
		StartHeight: stored.StartHeight,
		EndHeight:   stored.EndHeight,
		TotalTipped: stored.TotalTipped,
	}, true, nil
}

func (t *TippingTx) PutEvent(evt *tipping.TippingEvent) error {
	if evt == nil || evt.ID == 0 {
		return fmt.Errorf("tipping store: event id required")
	}
	return t.txn.KVPut(eventKey(evt.ID), &storedEvent{
		ID:          evt.ID,
		Artist:      evt.Artist,
		StartHeight: evt.StartHeight,
		EndHeight:   evt.EndHeight,
		TotalTipped: evt.TotalTipped,
	})
}

func (t *TippingTx) ArtistEvents(artist crypto.Address) ([]uint64, error) {
	var ids []uint64
	if err := t.txn.KVGetList(artistEventsKey(artist), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *TippingTx) PutArtistEvents(artist crypto.Address, ids []uint64) error {
	if len(ids) == 0 {
		return t.txn.KVDelete(artistEventsKey(artist))
	}
	return t.txn.KVPut(artistEventsKey(artist), ids)
}

func (t *TippingTx) QuotaUsage(addr crypto.Address) (common.QuotaNow, error) {
	var stored storedQuota
	if _, err := t.txn.KVGet(quotaKey(addr), &stored); err != nil {
		return common.QuotaNow{}, err
	}
	return common.QuotaNow{Count: stored.Count, AmountUsed: stored.AmountUsed, EpochID: stored.EpochID}, nil
}

func (t *TippingTx) PutQuotaUsage(addr crypto.Address, usage common.QuotaNow) error {
	return t.txn.KVPut(quotaKey(addr), &storedQuota{Count: usage.Count, AmountUsed: usage.AmountUsed, EpochID: usage.EpochID})
}

func (t *TippingTx) NativeLedger() assets.NativeLedger { return t.txn }

func (t *TippingTx) TokenLedger() assets.TokenLedger { return t.txn }
