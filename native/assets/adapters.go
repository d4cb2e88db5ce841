package assets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"tipchain/crypto"
)

var (
	// ErrInsufficientBalance is returned when the payer cannot cover a leg.
	ErrInsufficientBalance = errors.New("assets: insufficient balance")
	// ErrAdapterRejected is returned when a backend refuses the transfer for
	// any reason other than balance (unknown or paused token, overflow, ...).
	ErrAdapterRejected = errors.New("assets: adapter rejected transfer")
)

// AssetTransferor is the atomic transfer primitive consumed by the gateway.
type AssetTransferor interface {
	Transfer(ctx context.Context, amount uint64, from, to crypto.Address) error
}

// NativeLedger stores native currency balances.
type NativeLedger interface {
	NativeBalance(addr crypto.Address) (uint64, error)
	SetNativeBalance(addr crypto.Address, amount uint64) error
}

// TokenLedger is the backend for registered fungible tokens. Implementations
// report ErrInsufficientBalance and ErrAdapterRejected (possibly wrapped).
type TokenLedger interface {
	TransferToken(ctx context.Context, symbol string, amount uint64, from, to crypto.Address) error
}

// NativeLedgerAdapter moves native currency between ledger balances.
type NativeLedgerAdapter struct {
	ledger NativeLedger
}

// NewNativeLedgerAdapter binds the adapter to a balance store.
func NewNativeLedgerAdapter(ledger NativeLedger) *NativeLedgerAdapter {
	return &NativeLedgerAdapter{ledger: ledger}
}

// Transfer implements AssetTransferor.
func (a *NativeLedgerAdapter) Transfer(_ context.Context, amount uint64, from, to crypto.Address) error {
	if a == nil || a.ledger == nil {
		return fmt.Errorf("%w: native ledger not configured", ErrAdapterRejected)
	}
	if amount == 0 {
		return nil
	}
	fromBalance, err := a.ledger.NativeBalance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from, fromBalance, amount)
	}
	if err := a.ledger.SetNativeBalance(from, fromBalance-amount); err != nil {
		return err
	}
	// Re-read so a self-transfer observes the debit above.
	toBalance, err := a.ledger.NativeBalance(to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit overflows balance of %s", ErrAdapterRejected, to)
	}
	return a.ledger.SetNativeBalance(to, toBalance+amount)
}

// ExternalTokenAdapter forwards transfers of one token to a TokenLedger.
type ExternalTokenAdapter struct {
	symbol string
	ledger TokenLedger
}

// NewExternalTokenAdapter binds the adapter to a token symbol and backend.
func NewExternalTokenAdapter(symbol string, ledger TokenLedger) *ExternalTokenAdapter {
	return &ExternalTokenAdapter{symbol: NormalizeSymbol(symbol), ledger: ledger}
}

// Symbol returns the token handled by the adapter.
func (a *ExternalTokenAdapter) Symbol() string { return a.symbol }

// Transfer implements AssetTransferor.
func (a *ExternalTokenAdapter) Transfer(ctx context.Context, amount uint64, from, to crypto.Address) error {
	if a == nil || a.ledger == nil {
		return fmt.Errorf("%w: token ledger not configured", ErrAdapterRejected)
	}
	if amount == 0 {
		return nil
	}
	err := a.ledger.TransferToken(ctx, a.symbol, amount, from, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrAdapterRejected) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrAdapterRejected, a.symbol, err)
}
