package routes

import (
	"tipchain/native/tipping"
	"tipchain/services/tipindex"
)

// Amounts travel as decimal strings so JavaScript clients keep full uint64
// precision.

type tipView struct {
	ID             uint64   `json:"id"`
	Tipper         string   `json:"tipper"`
	Artist         string   `json:"artist"`
	Asset          string   `json:"asset"`
	Gross          string   `json:"gross"`
	Fee            string   `json:"fee"`
	Net            string   `json:"net"`
	Timestamp      uint64   `json:"timestamp"`
	Refunded       bool     `json:"refunded"`
	RefundableNow  bool     `json:"refundableNow"`
	Receipt        string   `json:"receipt"`
	CreditedEvents []uint64 `json:"creditedEvents,omitempty"`
}

func newTipView(tip *tipping.Tip, height uint64) tipView {
	return tipView{
		ID:             tip.ID,
		Tipper:         tip.Tipper.String(),
		Artist:         tip.Artist.String(),
		Asset:          tip.Asset.String(),
		Gross:          formatUint(tip.GrossAmount),
		Fee:            formatUint(tip.CapturedFee),
		Net:            formatUint(tip.NetAmount()),
		Timestamp:      tip.Timestamp,
		Refunded:       tip.Refunded,
		RefundableNow:  tip.RefundableAt(height),
		Receipt:        tip.ReceiptHex(),
		CreditedEvents: tip.CreditedEvents,
	}
}

type indexedTipView struct {
	ID           uint64 `json:"id"`
	Tipper       string `json:"tipper"`
	Artist       string `json:"artist"`
	Asset        string `json:"asset"`
	Gross        string `json:"gross"`
	Fee          string `json:"fee"`
	Net          string `json:"net"`
	Timestamp    uint64 `json:"timestamp"`
	Refunded     bool   `json:"refunded"`
	RefundHeight uint64 `json:"refundHeight,omitempty"`
	Receipt      string `json:"receipt"`
}

func newIndexedTipView(rec tipindex.TipRecord) indexedTipView {
	return indexedTipView{
		ID:           rec.ID,
		Tipper:       rec.Tipper,
		Artist:       rec.Artist,
		Asset:        rec.Asset,
		Gross:        rec.Gross,
		Fee:          rec.Fee,
		Net:          rec.Net,
		Timestamp:    rec.Height,
		Refunded:     rec.Refunded,
		RefundHeight: rec.RefundHeight,
		Receipt:      rec.Receipt,
	}
}

type entryView struct {
	Index  int    `json:"index"`
	Artist string `json:"artist"`
	Amount string `json:"amount"`
	Status string `json:"status"`
	TipID  uint64 `json:"tipId,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

type batchView struct {
	Entries      []entryView `json:"entries"`
	Committed    int         `json:"committed"`
	AllSucceeded bool        `json:"allSucceeded"`
	TipIDs       []uint64    `json:"tipIds"`
}

func newBatchView(result *tipping.BatchResult) batchView {
	view := batchView{
		Entries:      make([]entryView, len(result.Entries)),
		Committed:    result.Committed,
		AllSucceeded: result.AllSucceeded,
		TipIDs:       result.TipIDs(),
	}
	for i, entry := range result.Entries {
		ev := entryView{
			Index:  entry.Index,
			Artist: entry.Artist.String(),
			Amount: formatUint(entry.Amount),
			Status: string(entry.Status),
			TipID:  entry.TipID,
		}
		if entry.Err != nil {
			ev.Code = tipping.ErrorCode(entry.Err)
			ev.Error = entry.Err.Error()
		}
		view.Entries[i] = ev
	}
	return view
}

type eventView struct {
	ID          uint64 `json:"id"`
	Artist      string `json:"artist"`
	StartHeight uint64 `json:"startHeight"`
	EndHeight   uint64 `json:"endHeight"`
	TotalTipped string `json:"totalTipped"`
	Active      bool   `json:"active"`
}

func newEventView(evt *tipping.TippingEvent, height uint64) eventView {
	return eventView{
		ID:          evt.ID,
		Artist:      evt.Artist.String(),
		StartHeight: evt.StartHeight,
		EndHeight:   evt.EndHeight,
		TotalTipped: formatUint(evt.TotalTipped),
		Active:      evt.ActiveAt(height),
	}
}

type configView struct {
	Owner        string `json:"owner"`
	Paused       bool   `json:"paused"`
	MinTipAmount string `json:"minTipAmount"`
	FeePermille  uint64 `json:"feePermille"`
}

func newConfigView(cfg tipping.Config) configView {
	return configView{
		Owner:        cfg.Owner.String(),
		Paused:       cfg.Paused,
		MinTipAmount: formatUint(cfg.MinTipAmount),
		FeePermille:  cfg.FeePermille,
	}
}
