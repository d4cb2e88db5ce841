package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tipchain/core/identity"
	"tipchain/storage"
)

func TestIdentityRegistryLookup(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	registry := mgr.IdentityRegistry()
	ctx := context.Background()

	_, ok, err := registry.Lookup(ctx, testAddr(1))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		require.NoError(t, txn.PutAccountInfo(identity.AccountInfo{Address: testAddr(1), Role: identity.RoleArtist, Handle: "Night.Owl"}))
		require.NoError(t, txn.PutAccountInfo(identity.AccountInfo{Address: testAddr(2), Role: identity.RoleFan}))
		require.ErrorIs(t, txn.PutAccountInfo(identity.AccountInfo{Address: testAddr(3), Role: "curator"}), identity.ErrInvalidRole)
		require.ErrorIs(t, txn.PutAccountInfo(identity.AccountInfo{Address: testAddr(3), Handle: "x"}), identity.ErrInvalidHandle)
		return nil
	}))

	info, ok, err := registry.Lookup(ctx, testAddr(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "night.owl", info.Handle)
	require.True(t, info.IsActiveArtist())

	active, err := identity.IsActiveArtist(ctx, registry, testAddr(2))
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		return txn.SetBanned(testAddr(1), true)
	}))
	active, err = identity.IsActiveArtist(ctx, registry, testAddr(1))
	require.NoError(t, err)
	require.False(t, active, "banned artists are not active")
}

func TestIdentityLookupDuringUpdate(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	require.NoError(t, mgr.Update(func(txn *Txn) error {
		return txn.PutAccountInfo(identity.AccountInfo{Address: testAddr(1), Role: identity.RoleArtist})
	}))

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		active, err := identity.IsActiveArtist(context.Background(), mgr.IdentityRegistry(), testAddr(1))
		require.NoError(t, err)
		require.True(t, active)
		return nil
	}))
}
