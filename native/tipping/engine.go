package tipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"tipchain/core/events"
	"tipchain/core/identity"
	"tipchain/core/types"
	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/common"
	"tipchain/native/fees"
	"tipchain/observability/metrics"
)

const moduleName = "tipping"

// Engine wires the tipping ledger with persistence, identity resolution,
// asset settlement and event emission. Mutating entry points are serialised
// by a single mutex and each runs inside one staged state transaction.
type Engine struct {
	mu            sync.Mutex
	state         Store
	registry      identity.Registry
	emitter       events.Emitter
	height        HeightSource
	logger        *slog.Logger
	telemetry     *metrics.TippingMetrics
	historyPolicy HistoryPolicy
	quota         common.Quota
	tokenAdapters map[string]assets.AssetTransferor
}

// NewEngine constructs a tipping engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		logger:        slog.Default(),
		telemetry:     metrics.Tipping(),
		tokenAdapters: make(map[string]assets.AssetTransferor),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state Store) { e.state = state }

// SetRegistry configures the identity registry consulted for artist roles.
func (e *Engine) SetRegistry(registry identity.Registry) { e.registry = registry }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetHeightSource overrides the height source. A nil source pins height to 0.
func (e *Engine) SetHeightSource(source HeightSource) { e.height = source }

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetHistoryPolicy selects the behaviour when a history sequence is full.
func (e *Engine) SetHistoryPolicy(policy HistoryPolicy) { e.historyPolicy = policy }

// SetQuota configures the per-tipper epoch quota. The zero value disables it.
func (e *Engine) SetQuota(quota common.Quota) { e.quota = quota }

// SetTokenAdapter routes transfers of one token to an external transferor
// instead of the token balances kept in state.
func (e *Engine) SetTokenAdapter(symbol string, transferor assets.AssetTransferor) {
	normalized := assets.NormalizeSymbol(symbol)
	if transferor == nil {
		delete(e.tokenAdapters, normalized)
		return
	}
	e.tokenAdapters[normalized] = transferor
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) currentHeight() uint64 {
	if e == nil || e.height == nil {
		return 0
	}
	return e.height.Height()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) reject(operation string, err error) {
	code := ErrorCode(err)
	e.telemetry.ObserveRejected(operation, code)
	e.logger.Debug("tipping operation rejected",
		slog.String("component", moduleName),
		slog.String("operation", operation),
		slog.String("code", code),
		slog.String("error", err.Error()))
}

func (e *Engine) gateway(tx Tx) *assets.Gateway {
	gw := assets.NewGateway(assets.NewNativeLedgerAdapter(tx.NativeLedger()), tx.TokenLedger())
	for symbol, transferor := range e.tokenAdapters {
		gw.WithTokenAdapter(symbol, transferor)
	}
	return gw
}

func loadConfig(tx Tx) (Config, error) {
	cfg, ok, err := tx.Config()
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: ledger not initialised", ErrInvalidConfig)
	}
	return cfg, nil
}

// SendTip pays gross of asset from tipper to artist, minus the platform fee,
// and records the tip. It returns the new tip id.
func (e *Engine) SendTip(ctx context.Context, tipper, artist crypto.Address, gross uint64, asset assets.Asset) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tip *Tip
	now := e.currentHeight()
	err := e.update(ctx, func(tx Tx) (*assets.Settlement, error) {
		var (
			settled *assets.Settlement
			err     error
		)
		tip, settled, err = e.sendTip(ctx, tx, tipper, artist, gross, asset, now)
		return settled, err
	})
	if err != nil {
		e.reject("send", err)
		return 0, err
	}
	e.tipCommitted(tip)
	return tip.ID, nil
}

// update runs fn in a staged transaction. Native and state-backed token legs
// live in the transaction; legs moved through an external adapter do not, so
// they are reversed whenever the transaction is not committed.
func (e *Engine) update(ctx context.Context, fn func(tx Tx) (*assets.Settlement, error)) error {
	var settled *assets.Settlement
	err := e.state.Update(func(tx Tx) error {
		var err error
		settled, err = fn(tx)
		return err
	})
	if err == nil || settled == nil {
		return err
	}
	if revErr := e.reverseExternal(ctx, settled); revErr != nil {
		return errors.Join(err, fmt.Errorf("tipping: compensate external legs: %w", revErr))
	}
	return err
}

func (e *Engine) reverseExternal(ctx context.Context, settled *assets.Settlement) error {
	external := &assets.Settlement{}
	for _, leg := range settled.Legs {
		if leg.Asset.IsNative() {
			continue
		}
		if _, ok := e.tokenAdapters[assets.NormalizeSymbol(leg.Asset.Token)]; ok {
			external.Legs = append(external.Legs, leg)
		}
	}
	if len(external.Legs) == 0 {
		return nil
	}
	gw := assets.NewGateway(nil, nil)
	for symbol, transferor := range e.tokenAdapters {
		gw.WithTokenAdapter(symbol, transferor)
	}
	return gw.Reverse(ctx, external)
}

// sendTip runs the single-send path against tx at height now. Every ledger
// write that can fail runs before the payment legs, so the settlement is the
// last step. The caller commits or discards tx based on the returned error.
func (e *Engine) sendTip(ctx context.Context, tx Tx, tipper, artist crypto.Address, gross uint64, asset assets.Asset, now uint64) (*Tip, *assets.Settlement, error) {
	cfg, err := loadConfig(tx)
	if err != nil {
		return nil, nil, err
	}
	if err := common.Guard(cfg, moduleName); err != nil {
		return nil, nil, ErrPaused
	}
	active, err := identity.IsActiveArtist(ctx, e.registry, artist)
	if err != nil {
		return nil, nil, fmt.Errorf("tipping: resolve artist: %w", err)
	}
	if !active {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotRegisteredArtist, artist)
	}
	if gross == 0 || gross < cfg.MinTipAmount {
		return nil, nil, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, gross, cfg.MinTipAmount)
	}
	if err := asset.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if err := e.consumeQuota(tx, tipper, gross, now); err != nil {
		return nil, nil, err
	}

	split, err := fees.ComputeSplit(gross, cfg.FeePermille)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	id, err := tx.NextTipID()
	if err != nil {
		return nil, nil, err
	}
	tip := &Tip{
		ID:          id,
		Tipper:      tipper,
		Artist:      artist,
		GrossAmount: gross,
		Asset:       asset,
		CapturedFee: split.Fee,
		Timestamp:   now,
	}
	credited, err := creditEvents(tx, artist, gross, now)
	if err != nil {
		return nil, nil, err
	}
	tip.CreditedEvents = credited
	if err := tx.PutTip(tip); err != nil {
		return nil, nil, err
	}
	if err := e.appendHistory(tx, HistorySent, tipper, id); err != nil {
		return nil, nil, err
	}
	if err := e.appendHistory(tx, HistoryReceived, artist, id); err != nil {
		return nil, nil, err
	}
	if err := adjustTotals(tx, tipper, func(t *Totals) error { return addChecked(&t.TotalSent, gross) }); err != nil {
		return nil, nil, err
	}
	if err := adjustTotals(tx, artist, func(t *Totals) error { return addChecked(&t.TotalReceived, split.Net) }); err != nil {
		return nil, nil, err
	}

	settled, err := e.gateway(tx).SettleTip(ctx, tipper, cfg.Owner, artist, split, asset)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return tip, settled, nil
}

func (e *Engine) tipCommitted(tip *Tip) {
	e.telemetry.ObserveTip(tip.Asset.String(), tip.GrossAmount, tip.CapturedFee)
	e.logger.Info("tip sent",
		slog.String("component", moduleName),
		slog.Uint64("id", tip.ID),
		slog.String("tipper", tip.Tipper.String()),
		slog.String("artist", tip.Artist.String()),
		slog.Uint64("gross", tip.GrossAmount),
		slog.Uint64("fee", tip.CapturedFee),
		slog.String("asset", tip.Asset.String()))
	e.emit(TipSentEvent(tip, tip.Timestamp))
}

func (e *Engine) consumeQuota(tx Tx, tipper crypto.Address, gross, now uint64) error {
	if !e.quota.Enabled() {
		return nil
	}
	prev, err := tx.QuotaUsage(tipper)
	if err != nil {
		return err
	}
	next, err := common.CheckQuota(e.quota, e.quota.EpochAt(now), prev, 1, gross)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	return tx.PutQuotaUsage(tipper, next)
}

// appendHistory adds id to the history of addr, evicting the oldest entry or
// rejecting per the configured policy once HistoryCap is reached.
func (e *Engine) appendHistory(tx Tx, role HistoryRole, addr crypto.Address, id uint64) error {
	ids, err := tx.History(role, addr)
	if err != nil {
		return err
	}
	if len(ids) >= HistoryCap {
		if e.historyPolicy == HistoryPolicyReject {
			return fmt.Errorf("%w: %s history of %s", ErrHistoryCapExceeded, role, addr)
		}
		ids = append([]uint64(nil), ids[len(ids)-HistoryCap+1:]...)
	}
	ids = append(ids, id)
	return tx.PutHistory(role, addr, ids)
}

func adjustTotals(tx Tx, addr crypto.Address, mutate func(*Totals) error) error {
	totals, err := tx.Totals(addr)
	if err != nil {
		return err
	}
	if err := mutate(&totals); err != nil {
		return err
	}
	return tx.PutTotals(addr, totals)
}

func addChecked(dst *uint64, amount uint64) error {
	if *dst > math.MaxUint64-amount {
		return ErrArithmeticOverflow
	}
	*dst += amount
	return nil
}

func subChecked(dst *uint64, amount uint64) error {
	if *dst < amount {
		return ErrArithmeticOverflow
	}
	*dst -= amount
	return nil
}
