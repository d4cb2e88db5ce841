package routes

import (
	"errors"
	"net/http"
	"strings"

	"tipchain/native/assets"
	"tipchain/native/tipping"
	"tipchain/services/tipindex"
)

var errIndexDisabled = errors.New("tip index not configured")

type historyResponse struct {
	Address string    `json:"address"`
	Role    string    `json:"role"`
	Tips    []tipView `json:"tips"`
}

type totalsResponse struct {
	Address       string `json:"address"`
	TotalSent     string `json:"totalSent"`
	TotalReceived string `json:"totalReceived"`
}

type balanceView struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type indexedTipsResponse struct {
	Address string           `json:"address"`
	Role    string           `json:"role"`
	Total   int64            `json:"total"`
	Tips    []indexedTipView `json:"tips"`
}

// getHistory serves the capped on-ledger history, oldest first.
func (a *api) getHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	role, err := tipping.ParseHistoryRole(strings.TrimSpace(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	tips, err := a.ledger.HistoryTips(addr, role)
	if err != nil {
		writeError(w, err)
		return
	}
	height := a.currentHeight()
	views := make([]tipView, 0, len(tips))
	for _, tip := range tips {
		views = append(views, newTipView(tip, height))
	}
	writeJSON(w, http.StatusOK, historyResponse{Address: addr.String(), Role: role.String(), Tips: views})
}

func (a *api) getTotals(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := a.ledger.Totals(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalsResponse{
		Address:       addr.String(),
		TotalSent:     formatUint(totals.TotalSent),
		TotalReceived: formatUint(totals.TotalReceived),
	})
}

func (a *api) getBalances(w http.ResponseWriter, r *http.Request) {
	if a.balances == nil {
		writeError(w, errors.New("balances unavailable"))
		return
	}
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	requested := r.URL.Query()["asset"]
	if len(requested) == 0 {
		requested = []string{assets.NativeSymbol}
	}
	views := make([]balanceView, 0, len(requested))
	for _, raw := range requested {
		asset, err := parseAssetField(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		amount, err := a.balances.Balance(asset, addr)
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, balanceView{Asset: asset.String(), Amount: formatUint(amount)})
	}
	writeJSON(w, http.StatusOK, views)
}

// getIndexedTips serves the uncapped history from the read index.
func (a *api) getIndexedTips(w http.ResponseWriter, r *http.Request) {
	if a.index == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errIndexDisabled.Error(), Code: "index_disabled"})
		return
	}
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	if role == "" {
		role = tipindex.RoleSent
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}
	records, total, err := a.index.History(r.Context(), addr.String(), role, tipindex.Page{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]indexedTipView, 0, len(records))
	for _, rec := range records {
		views = append(views, newIndexedTipView(rec))
	}
	writeJSON(w, http.StatusOK, indexedTipsResponse{Address: addr.String(), Role: role, Total: total, Tips: views})
}
