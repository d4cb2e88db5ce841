package assets

import (
	"context"
	"errors"
	"math"
	"testing"

	"tipchain/crypto"
	"tipchain/native/fees"
)

type memNative map[crypto.Address]uint64

func (m memNative) NativeBalance(addr crypto.Address) (uint64, error) { return m[addr], nil }

func (m memNative) SetNativeBalance(addr crypto.Address, amount uint64) error {
	m[addr] = amount
	return nil
}

type memTokens struct {
	balances map[string]map[crypto.Address]uint64
	failTo   map[crypto.Address]error
	calls    int
}

func newMemTokens() *memTokens {
	return &memTokens{balances: make(map[string]map[crypto.Address]uint64), failTo: make(map[crypto.Address]error)}
}

func (m *memTokens) fund(symbol string, addr crypto.Address, amount uint64) {
	if m.balances[symbol] == nil {
		m.balances[symbol] = make(map[crypto.Address]uint64)
	}
	m.balances[symbol][addr] = amount
}

func (m *memTokens) TransferToken(_ context.Context, symbol string, amount uint64, from, to crypto.Address) error {
	m.calls++
	if err := m.failTo[to]; err != nil {
		return err
	}
	book := m.balances[symbol]
	if book == nil {
		return ErrAdapterRejected
	}
	if book[from] < amount {
		return ErrInsufficientBalance
	}
	book[from] -= amount
	book[to] += amount
	return nil
}

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[19] = b
	return a
}

func TestParseAsset(t *testing.T) {
	for _, raw := range []string{"", "native", "NATIVE", " Native "} {
		asset, err := ParseAsset(raw)
		if err != nil || !asset.IsNative() {
			t.Fatalf("%q: expected native, got %v %v", raw, asset, err)
		}
	}
	asset, err := ParseAsset(" usdc ")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if asset.IsNative() || asset.Token != "USDC" || asset.String() != "USDC" {
		t.Fatalf("unexpected asset %+v", asset)
	}
	for _, raw := range []string{"1ABC", "A", "TOOLONGSYMBOL1", "US-DC"} {
		if _, err := ParseAsset(raw); !errors.Is(err, ErrInvalidAsset) {
			t.Fatalf("%q: expected ErrInvalidAsset, got %v", raw, err)
		}
	}
	var decoded Asset
	if err := decoded.UnmarshalText([]byte("zap")); err != nil || decoded != Token("ZAP") {
		t.Fatalf("unmarshal text: %v %+v", err, decoded)
	}
}

func TestNativeAdapterTransfer(t *testing.T) {
	ledger := memNative{addr(1): 100}
	adapter := NewNativeLedgerAdapter(ledger)
	ctx := context.Background()

	if err := adapter.Transfer(ctx, 40, addr(1), addr(2)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ledger[addr(1)] != 60 || ledger[addr(2)] != 40 {
		t.Fatalf("unexpected balances %v", ledger)
	}
	if err := adapter.Transfer(ctx, 61, addr(1), addr(2)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := adapter.Transfer(ctx, 10, addr(1), addr(1)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if ledger[addr(1)] != 60 {
		t.Fatalf("self transfer changed balance: %d", ledger[addr(1)])
	}
	if err := adapter.Transfer(ctx, 0, addr(9), addr(1)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	ledger[addr(3)] = math.MaxUint64
	if err := adapter.Transfer(ctx, 1, addr(1), addr(3)); !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected overflow rejection, got %v", err)
	}
}

func TestExternalTokenAdapterWrapsUnknownErrors(t *testing.T) {
	tokens := newMemTokens()
	tokens.fund("ZAP", addr(1), 10)
	tokens.failTo[addr(4)] = errors.New("backend offline")
	adapter := NewExternalTokenAdapter("zap", tokens)
	if adapter.Symbol() != "ZAP" {
		t.Fatalf("symbol not normalised: %s", adapter.Symbol())
	}
	ctx := context.Background()
	if err := adapter.Transfer(ctx, 11, addr(1), addr(2)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := adapter.Transfer(ctx, 1, addr(1), addr(4)); !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected ErrAdapterRejected, got %v", err)
	}
}

func TestSettleTipNative(t *testing.T) {
	ledger := memNative{addr(1): 1_000}
	gateway := NewGateway(NewNativeLedgerAdapter(ledger), nil)
	split, _ := fees.ComputeSplit(1_000, 5)

	settlement, err := gateway.SettleTip(context.Background(), addr(1), addr(2), addr(3), split, Native())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(settlement.Legs) != 2 || settlement.Legs[0].Purpose != PurposeFee || settlement.Legs[1].Purpose != PurposeNet {
		t.Fatalf("unexpected legs %+v", settlement.Legs)
	}
	if ledger[addr(1)] != 0 || ledger[addr(2)] != 5 || ledger[addr(3)] != 995 {
		t.Fatalf("unexpected balances %v", ledger)
	}
}

func TestSettleTipSkipsZeroFeeLeg(t *testing.T) {
	ledger := memNative{addr(1): 100}
	gateway := NewGateway(NewNativeLedgerAdapter(ledger), nil)
	split, _ := fees.ComputeSplit(100, 5)

	settlement, err := gateway.SettleTip(context.Background(), addr(1), addr(2), addr(3), split, Native())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(settlement.Legs) != 1 || settlement.Legs[0].Purpose != PurposeNet {
		t.Fatalf("expected only net leg, got %+v", settlement.Legs)
	}
	if ledger[addr(3)] != 100 {
		t.Fatalf("artist should receive full amount, got %d", ledger[addr(3)])
	}
}

func TestSettleTipCompensatesFeeLeg(t *testing.T) {
	tokens := newMemTokens()
	tokens.fund("ZAP", addr(1), 1_000)
	tokens.failTo[addr(3)] = ErrAdapterRejected
	gateway := NewGateway(nil, tokens)
	split, _ := fees.ComputeSplit(1_000, 50)

	_, err := gateway.SettleTip(context.Background(), addr(1), addr(2), addr(3), split, Token("ZAP"))
	if !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected ErrAdapterRejected, got %v", err)
	}
	if tokens.balances["ZAP"][addr(1)] != 1_000 || tokens.balances["ZAP"][addr(2)] != 0 {
		t.Fatalf("fee leg not compensated: %v", tokens.balances["ZAP"])
	}
	if tokens.calls != 3 {
		t.Fatalf("expected fee, net and reversal calls, got %d", tokens.calls)
	}
}

func TestSettleTipReportsFailedCompensation(t *testing.T) {
	tokens := newMemTokens()
	tokens.fund("ZAP", addr(1), 1_000)
	tokens.failTo[addr(3)] = ErrAdapterRejected
	tokens.failTo[addr(1)] = errors.New("tipper frozen")
	gateway := NewGateway(nil, tokens)
	split, _ := fees.ComputeSplit(1_000, 50)

	_, err := gateway.SettleTip(context.Background(), addr(1), addr(2), addr(3), split, Token("ZAP"))
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected joined ErrAdapterRejected, got %v", err)
	}
}

func TestGatewayTokenOverride(t *testing.T) {
	ledger := memNative{addr(1): 50}
	gateway := NewGateway(nil, nil).WithTokenAdapter("pts", NewNativeLedgerAdapter(ledger))
	if err := gateway.TransferLeg(context.Background(), 20, addr(1), addr(2), Token("PTS")); err != nil {
		t.Fatalf("override transfer: %v", err)
	}
	if ledger[addr(2)] != 20 {
		t.Fatalf("override not used")
	}
	if err := gateway.TransferLeg(context.Background(), 1, addr(1), addr(2), Token("ZAP")); !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected rejection for unconfigured token, got %v", err)
	}
	if err := gateway.TransferLeg(context.Background(), 1, addr(1), addr(2), Native()); !errors.Is(err, ErrAdapterRejected) {
		t.Fatalf("expected rejection for missing native transferor, got %v", err)
	}
}

func TestGatewayRefund(t *testing.T) {
	ledger := memNative{addr(3): 995}
	gateway := NewGateway(NewNativeLedgerAdapter(ledger), nil)
	settlement, err := gateway.Refund(context.Background(), addr(3), addr(1), 995, Native())
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if settlement.Legs[0].Purpose != PurposeRefund || ledger[addr(1)] != 995 {
		t.Fatalf("unexpected refund result %+v %v", settlement, ledger)
	}
	if _, err := gateway.Refund(context.Background(), addr(3), addr(1), 1, Native()); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
