package tipindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"tipchain/core/events"
	"tipchain/core/types"
	"tipchain/native/tipping"
)

// Projector applies ledger events to the index.
type Projector struct {
	store  *Store
	logger *slog.Logger
}

// NewProjector binds a projector to store.
func NewProjector(store *Store, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{store: store, logger: logger.With("component", "tipindex")}
}

// Run consumes envelopes until ctx is cancelled or the channel closes.
// Failures are logged and the envelope is skipped.
func (p *Projector) Run(ctx context.Context, ch <-chan events.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.Apply(ctx, env.Event); err != nil {
				p.logger.Warn("index event", "seq", env.Seq, "type", env.Event.Type, "error", err)
			}
		}
	}
}

// Apply projects one event. Types the index does not track are ignored.
func (p *Projector) Apply(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return nil
	}
	switch evt.Type {
	case tipping.EventTypeTipSent:
		rec, err := tipFromAttributes(evt)
		if err != nil {
			return err
		}
		return p.store.UpsertTip(ctx, rec)
	case tipping.EventTypeTipRefunded:
		rec, err := tipFromAttributes(evt)
		if err != nil {
			return err
		}
		// A refund seen before its send still leaves a complete row.
		rec.Refunded = true
		rec.RefundHeight = evt.Height
		if err := p.store.UpsertTip(ctx, rec); err != nil {
			return err
		}
		return p.store.MarkRefunded(ctx, rec.ID, evt.Height)
	case tipping.EventTypeBatchCompleted:
		rec, err := batchFromAttributes(evt)
		if err != nil {
			return err
		}
		return p.store.RecordBatch(ctx, rec)
	}
	return nil
}

func tipFromAttributes(evt *types.Event) (*TipRecord, error) {
	attrs := evt.Attributes
	id, err := parseUintAttr(attrs, "id")
	if err != nil {
		return nil, err
	}
	rec := &TipRecord{
		ID:             id,
		Tipper:         attrs["tipper"],
		Artist:         attrs["artist"],
		Asset:          attrs["asset"],
		Gross:          attrs["gross"],
		Fee:            attrs["fee"],
		Net:            attrs["net"],
		Receipt:        attrs["receipt"],
		CreditedEvents: attrs["creditedEvents"],
	}
	if rec.Tipper == "" || rec.Artist == "" {
		return nil, fmt.Errorf("tipindex: tip %d missing parties", id)
	}
	for _, key := range []string{"gross", "fee", "net"} {
		if _, err := parseUintAttr(attrs, key); err != nil {
			return nil, err
		}
	}
	if rec.Height, err = parseUintAttr(attrs, "timestamp"); err != nil {
		return nil, err
	}
	return rec, nil
}

func batchFromAttributes(evt *types.Event) (*BatchRecord, error) {
	attrs := evt.Attributes
	entries, err := strconv.Atoi(attrs["entries"])
	if err != nil {
		return nil, fmt.Errorf("tipindex: batch entries: %w", err)
	}
	committed, err := strconv.Atoi(attrs["committed"])
	if err != nil {
		return nil, fmt.Errorf("tipindex: batch committed: %w", err)
	}
	all, err := strconv.ParseBool(attrs["allSucceeded"])
	if err != nil {
		return nil, fmt.Errorf("tipindex: batch allSucceeded: %w", err)
	}
	return &BatchRecord{
		Tipper:       attrs["tipper"],
		Entries:      entries,
		Committed:    committed,
		AllSucceeded: all,
		ErrorCode:    attrs["errorCode"],
		TipIDs:       attrs["tipIds"],
		Height:       evt.Height,
	}, nil
}

var errMissingAttr = errors.New("tipindex: missing attribute")

func parseUintAttr(attrs map[string]string, key string) (uint64, error) {
	raw := strings.TrimSpace(attrs[key])
	if raw == "" {
		return 0, fmt.Errorf("%w %q", errMissingAttr, key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tipindex: attribute %q: %w", key, err)
	}
	return v, nil
}
