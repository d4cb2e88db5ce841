package routes

import (
	"net/http"
	"strings"

	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/tipping"
)

type sendTipRequest struct {
	Artist string `json:"artist"`
	Amount string `json:"amount"`
	Asset  string `json:"asset,omitempty"`
}

type batchEntryRequest struct {
	Artist string `json:"artist"`
	Amount string `json:"amount"`
}

type batchRequest struct {
	Asset   string              `json:"asset,omitempty"`
	Entries []batchEntryRequest `json:"entries"`
}

func parseAssetField(raw string) (assets.Asset, error) {
	if strings.TrimSpace(raw) == "" {
		return assets.Native(), nil
	}
	asset, err := assets.ParseAsset(raw)
	if err != nil {
		return assets.Asset{}, badRequest("asset: %v", err)
	}
	return asset, nil
}

func (a *api) sendTip(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sendTipRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	artist, err := parseAddress("artist", req.Artist)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAssetField(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := a.ledger.SendTip(r.Context(), caller, artist, amount, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	tip, err := a.ledger.Tip(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTipView(tip, a.currentHeight()))
}

func (a *api) batchSend(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAssetField(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}
	artists := make([]crypto.Address, len(req.Entries))
	amounts := make([]uint64, len(req.Entries))
	for i, entry := range req.Entries {
		if artists[i], err = parseAddress("entries.artist", entry.Artist); err != nil {
			writeError(w, err)
			return
		}
		if amounts[i], err = parseAmount("entries.amount", entry.Amount); err != nil {
			writeError(w, err)
			return
		}
	}
	entries, err := tipping.NewBatchEntries(artists, amounts)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := a.ledger.BatchSendTip(r.Context(), caller, entries, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	// Partial batches still committed their leading entries.
	status := http.StatusOK
	if !result.AllSucceeded {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, newBatchView(result))
}

func (a *api) refundTip(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.ledger.RefundTip(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	tip, err := a.ledger.Tip(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTipView(tip, a.currentHeight()))
}

func (a *api) getTip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	tip, err := a.ledger.Tip(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTipView(tip, a.currentHeight()))
}
