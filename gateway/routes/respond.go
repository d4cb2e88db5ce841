package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"tipchain/crypto"
	"tipchain/gateway/middleware"
	"tipchain/native/tipping"
	"tipchain/services/tipindex"
)

const maxBodyBytes = 64 << 10

var (
	errNoCaller   = errors.New("authenticated caller required")
	errBadRequest = errors.New("bad request")
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps ledger errors onto HTTP statuses and stable codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, tipindex.ErrNotFound):
		return http.StatusNotFound, "tip_not_found"
	case errors.Is(err, tipindex.ErrInvalidRole):
		return http.StatusBadRequest, "bad_request"
	}
	code := tipping.ErrorCode(err)
	switch code {
	case "not_authorized":
		return http.StatusForbidden, code
	case "tip_not_found", "event_not_found":
		return http.StatusNotFound, code
	case "paused":
		return http.StatusServiceUnavailable, code
	case "insufficient_balance", "transfer_failed", "refund_not_allowed", "history_cap_exceeded", "quota_exceeded":
		return http.StatusConflict, code
	case "not_registered_artist", "below_minimum", "batch_limit_exceeded", "invalid_config", "invalid_amount", "arithmetic_overflow":
		return http.StatusBadRequest, code
	default:
		return http.StatusInternalServerError, code
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func requireCaller(r *http.Request) (crypto.Address, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.IsZero() {
		return crypto.Address{}, errNoCaller
	}
	return caller, nil
}

func parseAmount(field, raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badRequest("%s required", field)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be a base-10 unsigned integer", field)
	}
	return v, nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

func pathAddress(r *http.Request, param string) (crypto.Address, error) {
	return parseAddress(param, chi.URLParam(r, param))
}

func pathID(r *http.Request, param string) (uint64, error) {
	return parseAmount(param, chi.URLParam(r, param))
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("%s must be a non-negative integer", key)
	}
	return v, nil
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }
