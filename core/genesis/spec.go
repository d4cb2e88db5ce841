package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"tipchain/core/identity"
	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/tipping"
)

// ErrInvalidSpec marks seed files that fail validation.
var ErrInvalidSpec = errors.New("genesis: invalid spec")

// Spec is the YAML seed that bootstraps a fresh ledger.
type Spec struct {
	Owner    string        `yaml:"owner"`
	Tipping  *TippingSpec  `yaml:"tipping,omitempty"`
	Tokens   []TokenSpec   `yaml:"tokens,omitempty"`
	Accounts []AccountSpec `yaml:"accounts,omitempty"`

	digest []byte
}

// TippingSpec overrides the default tipping configuration.
type TippingSpec struct {
	Paused       bool    `yaml:"paused"`
	MinTipAmount *string `yaml:"minTipAmount,omitempty"`
	FeePermille  *uint64 `yaml:"feePermille,omitempty"`
}

// TokenSpec registers an external token.
type TokenSpec struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
	Paused   bool   `yaml:"paused,omitempty"`
}

// AccountSpec seeds an identity record and opening balances.
type AccountSpec struct {
	Address  string            `yaml:"address"`
	Role     string            `yaml:"role,omitempty"`
	Handle   string            `yaml:"handle,omitempty"`
	Verified bool              `yaml:"verified,omitempty"`
	Banned   bool              `yaml:"banned,omitempty"`
	Balances map[string]string `yaml:"balances,omitempty"` // asset -> amount
}

// Balance is a resolved opening balance.
type Balance struct {
	Asset  assets.Asset
	Amount uint64
}

// Account is a resolved AccountSpec.
type Account struct {
	Info     identity.AccountInfo
	Balances []Balance
}

// Resolved is the validated, typed form of a Spec.
type Resolved struct {
	Config   tipping.Config
	Tokens   []TokenSpec
	Accounts []Account
	Digest   []byte
}

// LoadSpec reads and decodes a YAML seed file. Unknown fields are rejected.
func LoadSpec(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	return ParseSpec(raw)
}

// ParseSpec decodes a YAML seed document.
func ParseSpec(raw []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	sum := blake3.Sum256(raw)
	spec.digest = sum[:]
	return &spec, nil
}

// Digest identifies the seed document. A ledger only accepts the seed it was
// created from.
func (s *Spec) Digest() []byte {
	return append([]byte(nil), s.digest...)
}

// Resolve validates the seed and converts it to runtime types. Tokens and
// accounts are returned in a deterministic order.
func (s *Spec) Resolve() (*Resolved, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: spec must not be nil", ErrInvalidSpec)
	}
	owner, err := crypto.ParseAddress(s.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %v", ErrInvalidSpec, err)
	}
	cfg := tipping.DefaultConfig(owner)
	if s.Tipping != nil {
		cfg.Paused = s.Tipping.Paused
		if s.Tipping.MinTipAmount != nil {
			amount, err := parseAmount(*s.Tipping.MinTipAmount)
			if err != nil {
				return nil, fmt.Errorf("%w: tipping.minTipAmount: %v", ErrInvalidSpec, err)
			}
			cfg.MinTipAmount = amount
		}
		if s.Tipping.FeePermille != nil {
			cfg.FeePermille = *s.Tipping.FeePermille
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	out := &Resolved{Config: cfg, Digest: s.Digest()}
	registered := map[string]bool{}
	for _, token := range s.Tokens {
		asset, err := assets.ParseAsset(token.Symbol)
		if err != nil || asset.IsNative() {
			return nil, fmt.Errorf("%w: token symbol %q", ErrInvalidSpec, token.Symbol)
		}
		if registered[asset.Token] {
			return nil, fmt.Errorf("%w: duplicate token %s", ErrInvalidSpec, asset.Token)
		}
		registered[asset.Token] = true
		token.Symbol = asset.Token
		out.Tokens = append(out.Tokens, token)
	}
	sort.Slice(out.Tokens, func(i, j int) bool { return out.Tokens[i].Symbol < out.Tokens[j].Symbol })

	seen := map[crypto.Address]bool{}
	for i, acct := range s.Accounts {
		addr, err := crypto.ParseAddress(acct.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: accounts[%d]: %v", ErrInvalidSpec, i, err)
		}
		if seen[addr] {
			return nil, fmt.Errorf("%w: duplicate account %s", ErrInvalidSpec, addr)
		}
		seen[addr] = true
		role, err := identity.ParseRole(acct.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: accounts[%d]: %v", ErrInvalidSpec, i, err)
		}
		handle, err := identity.NormalizeHandle(acct.Handle)
		if err != nil {
			return nil, fmt.Errorf("%w: accounts[%d]: %v", ErrInvalidSpec, i, err)
		}
		resolved := Account{Info: identity.AccountInfo{
			Address:  addr,
			Role:     role,
			Handle:   handle,
			Verified: acct.Verified,
			Banned:   acct.Banned,
		}}
		symbols := make([]string, 0, len(acct.Balances))
		for symbol := range acct.Balances {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			asset, err := assets.ParseAsset(symbol)
			if err != nil {
				return nil, fmt.Errorf("%w: accounts[%d] balance %q: %v", ErrInvalidSpec, i, symbol, err)
			}
			if !asset.IsNative() && !registered[asset.Token] {
				return nil, fmt.Errorf("%w: accounts[%d] balance in unregistered token %s", ErrInvalidSpec, i, asset.Token)
			}
			amount, err := parseAmount(acct.Balances[symbol])
			if err != nil {
				return nil, fmt.Errorf("%w: accounts[%d] balance %s: %v", ErrInvalidSpec, i, symbol, err)
			}
			resolved.Balances = append(resolved.Balances, Balance{Asset: asset, Amount: amount})
		}
		out.Accounts = append(out.Accounts, resolved)
	}
	sort.Slice(out.Accounts, func(i, j int) bool {
		return bytes.Compare(out.Accounts[i].Info.Address.Bytes(), out.Accounts[j].Info.Address.Bytes()) < 0
	})
	return out, nil
}

func parseAmount(raw string) (uint64, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseUint(trimmed, 10, 64)
}
