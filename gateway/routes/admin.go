package routes

import (
	"net/http"
)

type heightResponse struct {
	Height uint64 `json:"height"`
}

type ownerResponse struct {
	Address string `json:"address"`
	IsOwner bool   `json:"isOwner"`
}

type pausedRequest struct {
	Paused bool `json:"paused"`
}

type minTipRequest struct {
	Amount string `json:"amount"`
}

type feeRequest struct {
	Permille uint64 `json:"permille"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

func (a *api) getHeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, heightResponse{Height: a.currentHeight()})
}

func (a *api) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.ledger.Config()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

func (a *api) getIsOwner(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := a.ledger.IsOwner(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownerResponse{Address: addr.String(), IsOwner: owner})
}

// adminUpdate runs an owner operation and responds with the resulting config.
func (a *api) adminUpdate(w http.ResponseWriter, r *http.Request, body interface{}, apply func() error) {
	if _, err := requireCaller(r); err != nil {
		writeError(w, err)
		return
	}
	if err := decodeBody(w, r, body); err != nil {
		writeError(w, err)
		return
	}
	if err := apply(); err != nil {
		writeError(w, err)
		return
	}
	a.getConfig(w, r)
}

func (a *api) setPaused(w http.ResponseWriter, r *http.Request) {
	var req pausedRequest
	a.adminUpdate(w, r, &req, func() error {
		caller, _ := requireCaller(r)
		return a.ledger.SetPaused(caller, req.Paused)
	})
}

func (a *api) setMinTip(w http.ResponseWriter, r *http.Request) {
	var req minTipRequest
	a.adminUpdate(w, r, &req, func() error {
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		caller, _ := requireCaller(r)
		return a.ledger.SetMinTipAmount(caller, amount)
	})
}

func (a *api) setFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	a.adminUpdate(w, r, &req, func() error {
		caller, _ := requireCaller(r)
		return a.ledger.SetFeePermille(caller, req.Permille)
	})
}

func (a *api) transferOwner(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	a.adminUpdate(w, r, &req, func() error {
		owner, err := parseAddress("owner", req.Owner)
		if err != nil {
			return err
		}
		caller, _ := requireCaller(r)
		return a.ledger.TransferOwnership(caller, owner)
	})
}
