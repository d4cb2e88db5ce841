package tipping

import (
	"strconv"
	"strings"

	"tipchain/core/events"
	"tipchain/core/types"
	"tipchain/crypto"
)

const (
	// EventTypeTipSent is emitted when a tip settles.
	EventTypeTipSent = "tipping.tip.sent"
	// EventTypeTipRefunded is emitted when a tipper reverses a tip.
	EventTypeTipRefunded = "tipping.tip.refunded"
	// EventTypeBatchCompleted is emitted after a batch send, including partial ones.
	EventTypeBatchCompleted = "tipping.batch.completed"
	// EventTypeEventCreated is emitted when an artist opens a tipping event.
	EventTypeEventCreated = "tipping.event.created"
	// EventTypeConfigUpdated is emitted after an owner changes the configuration.
	EventTypeConfigUpdated = "tipping.config.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = formatUint(id)
	}
	return strings.Join(parts, ",")
}

func tipAttributes(tip *Tip) map[string]string {
	return map[string]string{
		"id":             formatUint(tip.ID),
		"tipper":         tip.Tipper.String(),
		"artist":         tip.Artist.String(),
		"gross":          formatUint(tip.GrossAmount),
		"fee":            formatUint(tip.CapturedFee),
		"net":            formatUint(tip.NetAmount()),
		"asset":          tip.Asset.String(),
		"timestamp":      formatUint(tip.Timestamp),
		"receipt":        tip.ReceiptHex(),
		"creditedEvents": joinIDs(tip.CreditedEvents),
	}
}

// TipSentEvent returns the structured payload for a settled tip.
func TipSentEvent(tip *Tip, height uint64) *types.Event {
	return &types.Event{Type: EventTypeTipSent, Height: height, Attributes: tipAttributes(tip)}
}

// TipRefundedEvent returns the structured payload for a refund.
func TipRefundedEvent(tip *Tip, height uint64) *types.Event {
	return &types.Event{Type: EventTypeTipRefunded, Height: height, Attributes: tipAttributes(tip)}
}

// BatchCompletedEvent summarises a batch send.
func BatchCompletedEvent(tipper crypto.Address, result *BatchResult, height uint64) *types.Event {
	attrs := map[string]string{
		"tipper":       tipper.String(),
		"entries":      strconv.Itoa(len(result.Entries)),
		"committed":    strconv.Itoa(result.Committed),
		"allSucceeded": strconv.FormatBool(result.AllSucceeded),
		"tipIds":       joinIDs(result.TipIDs()),
	}
	if err := result.FirstError(); err != nil {
		attrs["errorCode"] = ErrorCode(err)
	}
	return &types.Event{Type: EventTypeBatchCompleted, Height: height, Attributes: attrs}
}

// EventCreatedEvent announces a new tipping event.
func EventCreatedEvent(evt *TippingEvent, height uint64) *types.Event {
	return &types.Event{
		Type:   EventTypeEventCreated,
		Height: height,
		Attributes: map[string]string{
			"id":          formatUint(evt.ID),
			"artist":      evt.Artist.String(),
			"startHeight": formatUint(evt.StartHeight),
			"endHeight":   formatUint(evt.EndHeight),
		},
	}
}

// ConfigUpdatedEvent reports the configuration after an owner operation.
func ConfigUpdatedEvent(operation string, cfg Config, height uint64) *types.Event {
	return &types.Event{
		Type:   EventTypeConfigUpdated,
		Height: height,
		Attributes: map[string]string{
			"operation":    operation,
			"owner":        cfg.Owner.String(),
			"paused":       strconv.FormatBool(cfg.Paused),
			"minTipAmount": formatUint(cfg.MinTipAmount),
			"feePermille":  formatUint(cfg.FeePermille),
		},
	}
}
