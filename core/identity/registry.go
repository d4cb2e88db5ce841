package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tipchain/crypto"
)

// Role classifies an account for tipping purposes.
type Role string

const (
	RoleArtist Role = "artist"
	RoleFan    Role = "fan"
)

const (
	handleMinLength = 3
	handleMaxLength = 32
)

var (
	handlePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)
	// ErrInvalidHandle is returned when a handle does not satisfy the naming constraints.
	ErrInvalidHandle = errors.New("identity: invalid handle")
	// ErrInvalidRole is returned for roles other than artist and fan.
	ErrInvalidRole = errors.New("identity: invalid role")
)

// AccountInfo is the registry record consulted by the tipping engine.
type AccountInfo struct {
	Address  crypto.Address
	Role     Role
	Banned   bool
	Verified bool
	Handle   string
}

// IsActiveArtist reports whether the record has the artist role and is not banned.
func (a AccountInfo) IsActiveArtist() bool {
	return a.Role == RoleArtist && !a.Banned
}

// Registry resolves accounts to their identity record.
type Registry interface {
	Lookup(ctx context.Context, addr crypto.Address) (AccountInfo, bool, error)
}

// IsActiveArtist answers the single question the ledger asks of the registry.
func IsActiveArtist(ctx context.Context, registry Registry, addr crypto.Address) (bool, error) {
	if registry == nil {
		return false, errors.New("identity: registry not configured")
	}
	info, ok, err := registry.Lookup(ctx, addr)
	if err != nil {
		return false, err
	}
	return ok && info.IsActiveArtist(), nil
}

// ParseRole normalises a textual role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleArtist:
		return RoleArtist, nil
	case RoleFan, "":
		return RoleFan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// NormalizeHandle lowercases and validates a public handle. Empty handles are allowed.
func NormalizeHandle(handle string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(handle))
	if lower == "" {
		return "", nil
	}
	if len(lower) < handleMinLength || len(lower) > handleMaxLength {
		return "", fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidHandle, handleMinLength, handleMaxLength)
	}
	if !handlePattern.MatchString(lower) {
		return "", fmt.Errorf("%w: allowed characters are [a-z0-9._-]", ErrInvalidHandle)
	}
	return lower, nil
}

// StaticRegistry is an in-memory registry used by tests and tooling.
type StaticRegistry map[crypto.Address]AccountInfo

// Lookup implements Registry.
func (s StaticRegistry) Lookup(_ context.Context, addr crypto.Address) (AccountInfo, bool, error) {
	info, ok := s[addr]
	return info, ok, nil
}
