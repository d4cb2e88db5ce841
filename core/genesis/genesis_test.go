package genesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tipchain/core/identity"
	"tipchain/core/state"
	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/tipping"
	"tipchain/storage"
)

func addr(b byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func seedYAML(owner, artist, fan crypto.Address) string {
	return fmt.Sprintf(`owner: %s
tipping:
  minTipAmount: "250"
  feePermille: 10
tokens:
  - symbol: usdt
    name: Tether
    decimals: 6
  - symbol: FROZEN
    name: Frozen
    decimals: 0
    paused: true
accounts:
  - address: %s
    role: artist
    handle: Alice
    verified: true
  - address: %s
    balances:
      native: "1_000_000"
      USDT: "5000"
`, owner, artist, fan)
}

func newLedger(t *testing.T) (*state.Manager, *tipping.Engine) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := tipping.NewEngine()
	engine.SetState(manager.TippingStore())
	engine.SetRegistry(manager.IdentityRegistry())
	engine.SetHeightSource(tipping.HeightFunc(func() uint64 { return 1 }))
	return manager, engine
}

func TestApplySeedsLedger(t *testing.T) {
	owner, artist, fan := addr(0x01), addr(0x02), addr(0x03)
	spec, err := ParseSpec([]byte(seedYAML(owner, artist, fan)))
	require.NoError(t, err)
	manager, engine := newLedger(t)

	seeded, err := Apply(manager, engine, spec)
	require.NoError(t, err)
	require.True(t, seeded)

	cfg, err := engine.Config()
	require.NoError(t, err)
	require.Equal(t, owner, cfg.Owner)
	require.Equal(t, uint64(250), cfg.MinTipAmount)
	require.Equal(t, uint64(10), cfg.FeePermille)

	info, ok, err := manager.IdentityRegistry().Lookup(context.Background(), artist)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, identity.RoleArtist, info.Role)
	require.Equal(t, "alice", info.Handle)

	require.NoError(t, manager.View(func(txn *state.Txn) error {
		native, err := txn.Balance(assets.Native(), fan)
		require.NoError(t, err)
		require.Equal(t, uint64(1_000_000), native)
		usdt, err := txn.Balance(assets.Token("USDT"), fan)
		require.NoError(t, err)
		require.Equal(t, uint64(5000), usdt)
		frozen, err := txn.Token("FROZEN")
		require.NoError(t, err)
		require.True(t, frozen.Paused)
		return nil
	}))

	// The seeded fan can tip the seeded artist straight away.
	id, err := engine.SendTip(context.Background(), fan, artist, 1_000, assets.Native())
	require.NoError(t, err)
	tip, err := engine.Tip(id)
	require.NoError(t, err)
	require.Equal(t, uint64(10), tip.CapturedFee)
}

func TestApplyIsIdempotentForSameSeed(t *testing.T) {
	owner, artist, fan := addr(0x01), addr(0x02), addr(0x03)
	raw := []byte(seedYAML(owner, artist, fan))
	spec, err := ParseSpec(raw)
	require.NoError(t, err)
	manager, engine := newLedger(t)

	_, err = Apply(manager, engine, spec)
	require.NoError(t, err)
	require.NoError(t, engine.SetFeePermille(owner, 20))

	again, err := ParseSpec(raw)
	require.NoError(t, err)
	seeded, err := Apply(manager, engine, again)
	require.NoError(t, err)
	require.False(t, seeded)

	cfg, err := engine.Config()
	require.NoError(t, err)
	require.Equal(t, uint64(20), cfg.FeePermille, "restart must keep owner changes")

	other, err := ParseSpec([]byte(seedYAML(owner, artist, addr(0x09))))
	require.NoError(t, err)
	_, err = Apply(manager, engine, other)
	require.True(t, errors.Is(err, ErrGenesisMismatch))
}

func TestLoadSpecFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML(addr(1), addr(2), addr(3))), 0o644))
	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.Len(t, spec.Digest(), 32)
	resolved, err := spec.Resolve()
	require.NoError(t, err)
	require.Equal(t, []string{"FROZEN", "USDT"}, []string{resolved.Tokens[0].Symbol, resolved.Tokens[1].Symbol})
	require.Len(t, resolved.Accounts, 2)
}

func TestResolveRejectsInvalidSeeds(t *testing.T) {
	owner := addr(0x01).String()
	cases := map[string]string{
		"missing owner":     "tipping:\n  feePermille: 5\n",
		"fee too high":      "owner: " + owner + "\ntipping:\n  feePermille: 101\n",
		"bad amount":        "owner: " + owner + "\ntipping:\n  minTipAmount: \"ten\"\n",
		"duplicate token":   "owner: " + owner + "\ntokens:\n  - {symbol: USDT, name: a}\n  - {symbol: usdt, name: b}\n",
		"unknown token":     "owner: " + owner + "\naccounts:\n  - address: " + owner + "\n    balances: {DAI: \"1\"}\n",
		"bad role":          "owner: " + owner + "\naccounts:\n  - address: " + owner + "\n    role: admin\n",
		"duplicate account": "owner: " + owner + "\naccounts:\n  - address: " + owner + "\n  - address: " + owner + "\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			spec, err := ParseSpec([]byte(doc))
			require.NoError(t, err)
			_, err = spec.Resolve()
			require.ErrorIs(t, err, ErrInvalidSpec)
		})
	}

	_, err := ParseSpec([]byte("owner: " + owner + "\nvalidators: []\n"))
	require.Error(t, err, "unknown fields must be rejected")
}

func TestDevSpec(t *testing.T) {
	spec := DevSpec(addr(0x05).String())
	resolved, err := spec.Resolve()
	require.NoError(t, err)
	require.Equal(t, tipping.DefaultConfig(addr(0x05)), resolved.Config)
}
