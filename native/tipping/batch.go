package tipping

import (
	"context"
	"fmt"
	"log/slog"

	"tipchain/crypto"
	"tipchain/native/assets"
)

// NewBatchEntries zips parallel artist and amount lists into batch entries.
func NewBatchEntries(artists []crypto.Address, amounts []uint64) ([]BatchEntry, error) {
	if len(artists) != len(amounts) {
		return nil, fmt.Errorf("%w: %d artists, %d amounts", ErrBatchLimitExceeded, len(artists), len(amounts))
	}
	entries := make([]BatchEntry, len(artists))
	for i := range artists {
		entries[i] = BatchEntry{Artist: artists[i], Amount: amounts[i]}
	}
	return entries, nil
}

// BatchSendTip sends each entry through the single-send path in order and
// stops at the first failure. The batch is not atomic: entries committed
// before a failure stay committed. The returned result reports every entry.
// An error is returned only when the batch is rejected before any entry ran.
func (e *Engine) BatchSendTip(ctx context.Context, tipper crypto.Address, entries []BatchEntry, asset assets.Asset) (*BatchResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(entries) == 0 || len(entries) > MaxBatchSize {
		err := fmt.Errorf("%w: %d entries, limit %d", ErrBatchLimitExceeded, len(entries), MaxBatchSize)
		e.reject("batch", err)
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.state.View(func(tx Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if cfg.Paused {
			return ErrPaused
		}
		return nil
	}); err != nil {
		e.reject("batch", err)
		return nil, err
	}

	now := e.currentHeight()
	result := &BatchResult{Entries: make([]BatchEntryResult, len(entries))}
	for i, entry := range entries {
		result.Entries[i] = BatchEntryResult{Index: i, Artist: entry.Artist, Amount: entry.Amount, Status: EntrySkipped}
	}
	for i, entry := range entries {
		var tip *Tip
		err := e.update(ctx, func(tx Tx) (*assets.Settlement, error) {
			var (
				settled *assets.Settlement
				err     error
			)
			tip, settled, err = e.sendTip(ctx, tx, tipper, entry.Artist, entry.Amount, asset, now)
			return settled, err
		})
		if err != nil {
			result.Entries[i].Status = EntryFailed
			result.Entries[i].Err = err
			e.reject("batch", err)
			break
		}
		result.Entries[i].Status = EntrySucceeded
		result.Entries[i].TipID = tip.ID
		result.Committed++
		e.tipCommitted(tip)
	}
	result.AllSucceeded = result.Committed == len(entries)

	e.telemetry.ObserveBatch(len(entries), result.Committed)
	e.logger.Info("tip batch processed",
		slog.String("component", moduleName),
		slog.String("tipper", tipper.String()),
		slog.Int("entries", len(entries)),
		slog.Int("committed", result.Committed),
		slog.Bool("allSucceeded", result.AllSucceeded))
	e.emit(BatchCompletedEvent(tipper, result, now))
	return result, nil
}
