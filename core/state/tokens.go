package state

import (
	"context"
	"fmt"
	"math"
	"sort"

	"tipchain/crypto"
	"tipchain/native/assets"
)

// TokenMetadata describes a registered fungible token.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
	Paused   bool
}

var (
	tokenListKey  = []byte("token-list")
	tokenPrefix   = "token/"
	nativePrefix  = "bank/native/"
	balancePrefix = "bank/token/"
)

func tokenMetadataKey(symbol string) []byte {
	return joinKey(tokenPrefix, []byte(symbol))
}

func nativeBalanceKey(addr crypto.Address) []byte {
	return joinKey(nativePrefix, addr.Bytes())
}

func tokenBalanceKey(symbol string, addr crypto.Address) []byte {
	return joinKey(balancePrefix, []byte(symbol), addr.Bytes())
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (t *Txn) RegisterToken(symbol, name string, decimals uint8) error {
	asset, err := assets.ParseAsset(symbol)
	if err != nil {
		return err
	}
	if asset.IsNative() {
		return fmt.Errorf("token %s: reserved symbol", symbol)
	}
	normalized := asset.Token
	if name == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := t.Token(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}
	list, err := t.TokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := t.KVPut(tokenListKey, list); err != nil {
		return err
	}
	return t.KVPut(tokenMetadataKey(normalized), &TokenMetadata{Symbol: normalized, Name: name, Decimals: decimals})
}

// SetTokenPaused stores the paused state for the given token. Transfers of a
// paused token are rejected.
func (t *Txn) SetTokenPaused(symbol string, paused bool) error {
	normalized := assets.NormalizeSymbol(symbol)
	meta, err := t.Token(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s not registered", normalized)
	}
	meta.Paused = paused
	return t.KVPut(tokenMetadataKey(normalized), meta)
}

// Token retrieves metadata for a registered token, or nil when unknown.
func (t *Txn) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := t.KVGet(tokenMetadataKey(assets.NormalizeSymbol(symbol)), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// TokenList returns all registered token symbols in sorted order.
func (t *Txn) TokenList() ([]string, error) {
	var list []string
	if err := t.KVGetList(tokenListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// NativeBalance implements assets.NativeLedger.
func (t *Txn) NativeBalance(addr crypto.Address) (uint64, error) {
	var amount uint64
	if _, err := t.KVGet(nativeBalanceKey(addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// SetNativeBalance implements assets.NativeLedger.
func (t *Txn) SetNativeBalance(addr crypto.Address, amount uint64) error {
	if amount == 0 {
		return t.KVDelete(nativeBalanceKey(addr))
	}
	return t.KVPut(nativeBalanceKey(addr), amount)
}

// CreditNative adds amount to the native balance of addr.
func (t *Txn) CreditNative(addr crypto.Address, amount uint64) error {
	balance, err := t.NativeBalance(addr)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("native balance of %s overflows", addr)
	}
	return t.SetNativeBalance(addr, balance+amount)
}

// TokenBalance returns the balance of addr in the given token.
func (t *Txn) TokenBalance(symbol string, addr crypto.Address) (uint64, error) {
	var amount uint64
	if _, err := t.KVGet(tokenBalanceKey(assets.NormalizeSymbol(symbol), addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// SetTokenBalance stores a token balance. The token must be registered.
func (t *Txn) SetTokenBalance(symbol string, addr crypto.Address, amount uint64) error {
	normalized := assets.NormalizeSymbol(symbol)
	meta, err := t.Token(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s not registered", normalized)
	}
	key := tokenBalanceKey(normalized, addr)
	if amount == 0 {
		return t.KVDelete(key)
	}
	return t.KVPut(key, amount)
}

// MintToken credits amount of a registered token to addr.
func (t *Txn) MintToken(symbol string, addr crypto.Address, amount uint64) error {
	balance, err := t.TokenBalance(symbol, addr)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("token balance of %s overflows", addr)
	}
	return t.SetTokenBalance(symbol, addr, balance+amount)
}

// Balance returns the balance of addr in the given asset.
func (t *Txn) Balance(asset assets.Asset, addr crypto.Address) (uint64, error) {
	if asset.IsNative() {
		return t.NativeBalance(addr)
	}
	return t.TokenBalance(asset.Token, addr)
}

// Balance returns the committed balance of addr in asset.
func (m *Manager) Balance(asset assets.Asset, addr crypto.Address) (uint64, error) {
	var amount uint64
	err := m.View(func(txn *Txn) error {
		var err error
		amount, err = txn.Balance(asset, addr)
		return err
	})
	return amount, err
}

// TransferToken implements assets.TokenLedger over the registered token
// balances.
func (t *Txn) TransferToken(_ context.Context, symbol string, amount uint64, from, to crypto.Address) error {
	normalized := assets.NormalizeSymbol(symbol)
	meta, err := t.Token(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("%w: token %s not registered", assets.ErrAdapterRejected, normalized)
	}
	if meta.Paused {
		return fmt.Errorf("%w: token %s paused", assets.ErrAdapterRejected, normalized)
	}
	if amount == 0 {
		return nil
	}
	fromBalance, err := t.TokenBalance(normalized, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s holds %d %s, needs %d", assets.ErrInsufficientBalance, from, fromBalance, normalized, amount)
	}
	if err := t.SetTokenBalance(normalized, from, fromBalance-amount); err != nil {
		return err
	}
	toBalance, err := t.TokenBalance(normalized, to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit overflows %s balance of %s", assets.ErrAdapterRejected, normalized, to)
	}
	return t.SetTokenBalance(normalized, to, toBalance+amount)
}
