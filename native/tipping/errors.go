package tipping

import (
	"errors"

	"tipchain/native/assets"
)

var (
	ErrPaused              = errors.New("tipping: paused")
	ErrNotRegisteredArtist = errors.New("tipping: recipient is not a registered artist")
	ErrBelowMinimum        = errors.New("tipping: amount below minimum tip")
	ErrNotAuthorized       = errors.New("tipping: caller not authorized")
	ErrTransferFailed      = errors.New("tipping: transfer failed")
	ErrTipNotFound         = errors.New("tipping: tip not found")
	ErrRefundNotAllowed    = errors.New("tipping: refund not allowed")
	ErrBatchLimitExceeded  = errors.New("tipping: batch size invalid")
	ErrHistoryCapExceeded  = errors.New("tipping: history capacity exceeded")
	ErrInvalidConfig       = errors.New("tipping: invalid config")
	ErrInvalidAmount       = errors.New("tipping: invalid amount")
	ErrArithmeticOverflow  = errors.New("tipping: arithmetic overflow")
	ErrEventNotFound       = errors.New("tipping: event not found")
	ErrQuotaExceeded       = errors.New("tipping: quota exceeded")

	errNilState = errors.New("tipping: state not configured")
)

// ErrorCode maps an error to the stable code exposed by the API.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrNotRegisteredArtist):
		return "not_registered_artist"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrTransferFailed) && errors.Is(err, assets.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrTipNotFound):
		return "tip_not_found"
	case errors.Is(err, ErrRefundNotAllowed):
		return "refund_not_allowed"
	case errors.Is(err, ErrBatchLimitExceeded):
		return "batch_limit_exceeded"
	case errors.Is(err, ErrHistoryCapExceeded):
		return "history_cap_exceeded"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	default:
		return "internal"
	}
}
