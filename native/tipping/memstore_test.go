package tipping

import (
	"context"
	"fmt"
	"math"

	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/common"
)

type historyKey struct {
	role HistoryRole
	addr crypto.Address
}

// memState is a copyable in-memory ledger. memStore stages every Update on a
// deep copy so discarded transactions leave no trace.
type memState struct {
	cfg          *Config
	tips         map[uint64]*Tip
	history      map[historyKey][]uint64
	totals       map[crypto.Address]Totals
	events       map[uint64]*TippingEvent
	artistEvents map[crypto.Address][]uint64
	quota        map[crypto.Address]common.QuotaNow
	tipSeq       uint64
	eventSeq     uint64
	native       map[crypto.Address]uint64
	tokens       map[string]map[crypto.Address]uint64
	tokenPaused  map[string]bool
}

func newMemState() *memState {
	return &memState{
		tips:         make(map[uint64]*Tip),
		history:      make(map[historyKey][]uint64),
		totals:       make(map[crypto.Address]Totals),
		events:       make(map[uint64]*TippingEvent),
		artistEvents: make(map[crypto.Address][]uint64),
		quota:        make(map[crypto.Address]common.QuotaNow),
		native:       make(map[crypto.Address]uint64),
		tokens:       make(map[string]map[crypto.Address]uint64),
		tokenPaused:  make(map[string]bool),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	if s.cfg != nil {
		cfg := *s.cfg
		c.cfg = &cfg
	}
	for k, v := range s.tips {
		c.tips[k] = v.Clone()
	}
	for k, v := range s.history {
		c.history[k] = append([]uint64(nil), v...)
	}
	for k, v := range s.totals {
		c.totals[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v.Clone()
	}
	for k, v := range s.artistEvents {
		c.artistEvents[k] = append([]uint64(nil), v...)
	}
	for k, v := range s.quota {
		c.quota[k] = v
	}
	c.tipSeq, c.eventSeq = s.tipSeq, s.eventSeq
	for k, v := range s.native {
		c.native[k] = v
	}
	for sym, book := range s.tokens {
		copied := make(map[crypto.Address]uint64, len(book))
		for k, v := range book {
			copied[k] = v
		}
		c.tokens[sym] = copied
	}
	for k, v := range s.tokenPaused {
		c.tokenPaused[k] = v
	}
	return c
}

type memStore struct {
	state *memState
	// commitErr, when set, fails Update after fn succeeds and discards the
	// staged state.
	commitErr error
}

func newMemStore() *memStore { return &memStore{state: newMemState()} }

func (m *memStore) Update(fn func(tx Tx) error) error {
	staged := m.state.clone()
	if err := fn(&memTx{s: staged}); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.state = staged
	return nil
}

func (m *memStore) View(fn func(tx Tx) error) error {
	return fn(&memTx{s: m.state.clone()})
}

type memTx struct {
	s *memState
}

func (t *memTx) Config() (Config, bool, error) {
	if t.s.cfg == nil {
		return Config{}, false, nil
	}
	return *t.s.cfg, true, nil
}

func (t *memTx) PutConfig(cfg Config) error {
	t.s.cfg = &cfg
	return nil
}

func (t *memTx) NextTipID() (uint64, error) {
	t.s.tipSeq++
	return t.s.tipSeq, nil
}

func (t *memTx) Tip(id uint64) (*Tip, bool, error) {
	tip, ok := t.s.tips[id]
	if !ok {
		return nil, false, nil
	}
	return tip.Clone(), true, nil
}

func (t *memTx) PutTip(tip *Tip) error {
	t.s.tips[tip.ID] = tip.Clone()
	return nil
}

func (t *memTx) History(role HistoryRole, addr crypto.Address) ([]uint64, error) {
	return append([]uint64{}, t.s.history[historyKey{role, addr}]...), nil
}

func (t *memTx) PutHistory(role HistoryRole, addr crypto.Address, ids []uint64) error {
	t.s.history[historyKey{role, addr}] = append([]uint64(nil), ids...)
	return nil
}

func (t *memTx) Totals(addr crypto.Address) (Totals, error) { return t.s.totals[addr], nil }

func (t *memTx) PutTotals(addr crypto.Address, totals Totals) error {
	if totals == (Totals{}) {
		delete(t.s.totals, addr)
		return nil
	}
	t.s.totals[addr] = totals
	return nil
}

func (t *memTx) NextEventID() (uint64, error) {
	t.s.eventSeq++
	return t.s.eventSeq, nil
}

func (t *memTx) Event(id uint64) (*TippingEvent, bool, error) {
	evt, ok := t.s.events[id]
	if !ok {
		return nil, false, nil
	}
	return evt.Clone(), true, nil
}

func (t *memTx) PutEvent(evt *TippingEvent) error {
	t.s.events[evt.ID] = evt.Clone()
	return nil
}

func (t *memTx) ArtistEvents(artist crypto.Address) ([]uint64, error) {
	return append([]uint64{}, t.s.artistEvents[artist]...), nil
}

func (t *memTx) PutArtistEvents(artist crypto.Address, ids []uint64) error {
	if len(ids) == 0 {
		delete(t.s.artistEvents, artist)
		return nil
	}
	t.s.artistEvents[artist] = append([]uint64(nil), ids...)
	return nil
}

func (t *memTx) QuotaUsage(addr crypto.Address) (common.QuotaNow, error) {
	return t.s.quota[addr], nil
}

func (t *memTx) PutQuotaUsage(addr crypto.Address, usage common.QuotaNow) error {
	t.s.quota[addr] = usage
	return nil
}

func (t *memTx) NativeLedger() assets.NativeLedger { return t }

func (t *memTx) TokenLedger() assets.TokenLedger { return t }

func (t *memTx) NativeBalance(addr crypto.Address) (uint64, error) { return t.s.native[addr], nil }

func (t *memTx) SetNativeBalance(addr crypto.Address, amount uint64) error {
	if amount == 0 {
		delete(t.s.native, addr)
		return nil
	}
	t.s.native[addr] = amount
	return nil
}

func (t *memTx) TransferToken(_ context.Context, symbol string, amount uint64, from, to crypto.Address) error {
	book, ok := t.s.tokens[symbol]
	if !ok {
		return fmt.Errorf("%w: token %s not registered", assets.ErrAdapterRejected, symbol)
	}
	if t.s.tokenPaused[symbol] {
		return fmt.Errorf("%w: token %s paused", assets.ErrAdapterRejected, symbol)
	}
	if book[from] < amount {
		return assets.ErrInsufficientBalance
	}
	book[from] -= amount
	if book[to] > math.MaxUint64-amount {
		return assets.ErrAdapterRejected
	}
	book[to] += amount
	return nil
}
