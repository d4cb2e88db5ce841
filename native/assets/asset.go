package assets

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes the native currency from registered fungible tokens.
type Kind uint8

const (
	KindNative Kind = iota
	KindToken
)

// NativeSymbol is the textual form of the native asset.
const NativeSymbol = "native"

var (
	// ErrInvalidAsset is returned for malformed asset identifiers.
	ErrInvalidAsset = errors.New("assets: invalid asset")

	tokenSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,11}$`)
)

// Asset identifies what a tip is denominated in.
type Asset struct {
	Kind  Kind
	Token string
}

// Native returns the native currency asset.
func Native() Asset { return Asset{Kind: KindNative} }

// Token returns a token asset for the supplied symbol.
func Token(symbol string) Asset {
	return Asset{Kind: KindToken, Token: NormalizeSymbol(symbol)}
}

// NormalizeSymbol canonicalises token symbols for consistent lookups.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ParseAsset accepts "", "native" (any case) or a token symbol.
func ParseAsset(raw string) (Asset, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, NativeSymbol) {
		return Native(), nil
	}
	asset := Token(trimmed)
	if err := asset.Validate(); err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// IsNative reports whether the asset is the native currency.
func (a Asset) IsNative() bool { return a.Kind == KindNative }

// Validate checks the asset identifier.
func (a Asset) Validate() error {
	switch a.Kind {
	case KindNative:
		if a.Token != "" {
			return fmt.Errorf("%w: native asset must not carry a token symbol", ErrInvalidAsset)
		}
		return nil
	case KindToken:
		if !tokenSymbolPattern.MatchString(a.Token) {
			return fmt.Errorf("%w: token symbol %q", ErrInvalidAsset, a.Token)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAsset, a.Kind)
	}
}

func (a Asset) String() string {
	if a.IsNative() {
		return NativeSymbol
	}
	return a.Token
}

// MarshalText renders the asset as "native" or its token symbol.
func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (a *Asset) UnmarshalText(text []byte) error {
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
