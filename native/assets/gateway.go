package assets

import (
	"context"
	"errors"
	"fmt"

	"tipchain/crypto"
	"tipchain/native/fees"
)

// Leg purposes recorded on a settlement.
const (
	PurposeFee    = "fee"
	PurposeNet    = "net"
	PurposeRefund = "refund"
)

// Leg is one executed transfer.
type Leg struct {
	Purpose string
	Asset   Asset
	From    crypto.Address
	To      crypto.Address
	Amount  uint64
}

// Settlement lists the legs executed for one payment, in execution order.
type Settlement struct {
	Legs []Leg
}

// Gateway selects a transferor per asset and executes payment legs.
type Gateway struct {
	native    AssetTransferor
	tokens    TokenLedger
	overrides map[string]AssetTransferor
}

// NewGateway constructs a gateway over the native transferor and the default
// token backend.
func NewGateway(native AssetTransferor, tokens TokenLedger) *Gateway {
	return &Gateway{native: native, tokens: tokens, overrides: make(map[string]AssetTransferor)}
}

// WithTokenAdapter routes one token symbol to a dedicated transferor.
func (g *Gateway) WithTokenAdapter(symbol string, transferor AssetTransferor) *Gateway {
	if transferor != nil {
		g.overrides[NormalizeSymbol(symbol)] = transferor
	}
	return g
}

// Resolve returns the transferor responsible for the asset.
func (g *Gateway) Resolve(asset Asset) (AssetTransferor, error) {
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterRejected, err)
	}
	if asset.IsNative() {
		if g.native == nil {
			return nil, fmt.Errorf("%w: native transferor not configured", ErrAdapterRejected)
		}
		return g.native, nil
	}
	if override, ok := g.overrides[asset.Token]; ok {
		return override, nil
	}
	if g.tokens == nil {
		return nil, fmt.Errorf("%w: no backend for token %s", ErrAdapterRejected, asset.Token)
	}
	return NewExternalTokenAdapter(asset.Token, g.tokens), nil
}

// TransferLeg moves amount of asset from one account to another. It returns
// nil, ErrInsufficientBalance or ErrAdapterRejected (wrapped). No retries.
func (g *Gateway) TransferLeg(ctx context.Context, amount uint64, from, to crypto.Address, asset Asset) error {
	transferor, err := g.Resolve(asset)
	if err != nil {
		return err
	}
	return transferor.Transfer(ctx, amount, from, to)
}

// SettleTip pays the fee to the owner and the net amount to the artist. If
// the net leg fails after the fee leg succeeded, the fee leg is reversed
// before returning so the caller never observes a half-paid tip.
func (g *Gateway) SettleTip(ctx context.Context, tipper, owner, artist crypto.Address, split fees.Split, asset Asset) (*Settlement, error) {
	settlement := &Settlement{}
	if split.Fee > 0 {
		if err := g.TransferLeg(ctx, split.Fee, tipper, owner, asset); err != nil {
			return nil, fmt.Errorf("fee leg: %w", err)
		}
		settlement.Legs = append(settlement.Legs, Leg{Purpose: PurposeFee, Asset: asset, From: tipper, To: owner, Amount: split.Fee})
	}
	if err := g.TransferLeg(ctx, split.Net, tipper, artist, asset); err != nil {
		legErr := fmt.Errorf("net leg: %w", err)
		if revErr := g.Reverse(ctx, settlement); revErr != nil {
			return nil, errors.Join(legErr, fmt.Errorf("compensate fee leg: %w", revErr))
		}
		return nil, legErr
	}
	settlement.Legs = append(settlement.Legs, Leg{Purpose: PurposeNet, Asset: asset, From: tipper, To: artist, Amount: split.Net})
	return settlement, nil
}

// Refund returns amount from the artist to the tipper as a single leg.
func (g *Gateway) Refund(ctx context.Context, artist, tipper crypto.Address, amount uint64, asset Asset) (*Settlement, error) {
	if err := g.TransferLeg(ctx, amount, artist, tipper, asset); err != nil {
		return nil, fmt.Errorf("refund leg: %w", err)
	}
	return &Settlement{Legs: []Leg{{Purpose: PurposeRefund, Asset: asset, From: artist, To: tipper, Amount: amount}}}, nil
}

// Reverse undoes the settlement legs in reverse order. It stops at the first
// failure.
func (g *Gateway) Reverse(ctx context.Context, settlement *Settlement) error {
	if settlement == nil {
		return nil
	}
	for i := len(settlement.Legs) - 1; i >= 0; i-- {
		leg := settlement.Legs[i]
		if err := g.TransferLeg(ctx, leg.Amount, leg.To, leg.From, leg.Asset); err != nil {
			return fmt.Errorf("reverse %s leg: %w", leg.Purpose, err)
		}
	}
	return nil
}
