package state

import (
	"context"
	"fmt"

	"tipchain/core/identity"
	"tipchain/crypto"
)

const identityPrefix = "identity/"

type storedAccountInfo struct {
	Role     string
	Banned   bool
	Verified bool
	Handle   string
}

func identityKey(addr crypto.Address) []byte {
	return joinKey(identityPrefix, addr.Bytes())
}

// PutAccountInfo stores the identity record of an account.
func (t *Txn) PutAccountInfo(info identity.AccountInfo) error {
	if info.Address.IsZero() {
		return fmt.Errorf("identity: address must not be empty")
	}
	role, err := identity.ParseRole(string(info.Role))
	if err != nil {
		return err
	}
	handle, err := identity.NormalizeHandle(info.Handle)
	if err != nil {
		return err
	}
	return t.KVPut(identityKey(info.Address), &storedAccountInfo{
		Role:     string(role),
		Banned:   info.Banned,
		Verified: info.Verified,
		Handle:   handle,
	})
}

// AccountInfo loads the identity record of an account.
func (t *Txn) AccountInfo(addr crypto.Address) (identity.AccountInfo, bool, error) {
	var stored storedAccountInfo
	ok, err := t.KVGet(identityKey(addr), &stored)
	if err != nil || !ok {
		return identity.AccountInfo{}, false, err
	}
	return identity.AccountInfo{
		Address:  addr,
		Role:     identity.Role(stored.Role),
		Banned:   stored.Banned,
		Verified: stored.Verified,
		Handle:   stored.Handle,
	}, true, nil
}

// SetBanned flips the ban flag of a registered account.
func (t *Txn) SetBanned(addr crypto.Address, banned bool) error {
	info, ok, err := t.AccountInfo(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("identity: %s not registered", addr)
	}
	info.Banned = banned
	return t.PutAccountInfo(info)
}

// IdentityRegistry resolves accounts against committed identity records.
type IdentityRegistry struct {
	manager *Manager
}

// IdentityRegistry returns a registry bound to the manager. Lookups read the
// database directly so they are safe to call while an Update is in flight.
func (m *Manager) IdentityRegistry() *IdentityRegistry {
	if m == nil {
		return nil
	}
	return &IdentityRegistry{manager: m}
}

// Lookup implements identity.Registry.
func (r *IdentityRegistry) Lookup(_ context.Context, addr crypto.Address) (identity.AccountInfo, bool, error) {
	if r == nil || r.manager == nil || r.manager.db == nil {
		return identity.AccountInfo{}, false, fmt.Errorf("identity: registry unavailable")
	}
	return newTxn(r.manager.db).AccountInfo(addr)
}
