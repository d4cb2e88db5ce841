package tipping

import (
	"context"
	"fmt"
	"log/slog"

	"tipchain/crypto"
	"tipchain/native/assets"
)

// RefundTip reverses tipID on behalf of its tipper while the refund window is
// open. The artist returns the net amount; the captured fee is not reclaimed.
func (e *Engine) RefundTip(ctx context.Context, caller crypto.Address, tipID uint64) error {
	if err := e.ready(); err != nil {
		return err
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
		tip, settled, err = e.refundTip(ctx, tx, caller, tipID, now)
		return settled, err
	})
	if err != nil {
		e.reject("refund", err)
		return err
	}
	e.telemetry.ObserveRefund(tip.Asset.String())
	e.logger.Info("tip refunded",
		slog.String("component", moduleName),
		slog.Uint64("id", tip.ID),
		slog.String("tipper", tip.Tipper.String()),
		slog.Uint64("net", tip.NetAmount()))
	e.emit(TipRefundedEvent(tip, now))
	return nil
}

// refundTip applies the ledger side of a refund first and moves the net amount
// back to the tipper last.
func (e *Engine) refundTip(ctx context.Context, tx Tx, caller crypto.Address, tipID, now uint64) (*Tip, *assets.Settlement, error) {
	tip, ok, err := tx.Tip(tipID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrTipNotFound, tipID)
	}
	if caller != tip.Tipper {
		return nil, nil, fmt.Errorf("%w: only the tipper may refund tip %d", ErrNotAuthorized, tipID)
	}
	if tip.Refunded {
		return nil, nil, fmt.Errorf("%w: tip %d already refunded", ErrRefundNotAllowed, tipID)
	}
	if !tip.RefundableAt(now) {
		return nil, nil, fmt.Errorf("%w: refund window for tip %d closed at height %d", ErrRefundNotAllowed, tipID, tip.Timestamp+RefundWindow)
	}

	net := tip.NetAmount()
	tip.Refunded = true
	if err := tx.PutTip(tip); err != nil {
		return nil, nil, err
	}
	if err := adjustTotals(tx, tip.Tipper, func(t *Totals) error { return subChecked(&t.TotalSent, tip.GrossAmount) }); err != nil {
		return nil, nil, err
	}
	if err := adjustTotals(tx, tip.Artist, func(t *Totals) error { return subChecked(&t.TotalReceived, net) }); err != nil {
		return nil, nil, err
	}
	if err := debitEvents(tx, tip.CreditedEvents, tip.GrossAmount); err != nil {
		return nil, nil, err
	}
	settled, err := e.gateway(tx).Refund(ctx, tip.Artist, tip.Tipper, net, tip.Asset)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return tip, settled, nil
}
