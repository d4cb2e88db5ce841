package genesis

import (
	"bytes"
	"errors"
	"fmt"

	"tipchain/core/state"
	"tipchain/native/tipping"
)

// ErrGenesisMismatch is returned when a ledger was created from another seed.
var ErrGenesisMismatch = errors.New("genesis: ledger was initialised from a different seed")

// Apply seeds a fresh ledger from spec and initialises the tipping
// configuration. Re-applying the seed a ledger was created from only
// re-runs the idempotent engine initialisation. The returned flag reports
// whether accounts and tokens were written.
func Apply(manager *state.Manager, engine *tipping.Engine, spec *Spec) (bool, error) {
	if manager == nil || engine == nil {
		return false, fmt.Errorf("genesis: state manager and engine required")
	}
	resolved, err := spec.Resolve()
	if err != nil {
		return false, err
	}

	seeded := false
	err = manager.Update(func(txn *state.Txn) error {
		existing, ok, err := txn.GenesisDigest()
		if err != nil {
			return err
		}
		if ok {
			if !bytes.Equal(existing, resolved.Digest) {
				return ErrGenesisMismatch
			}
			return nil
		}

		for _, token := range resolved.Tokens {
			if err := txn.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
				return fmt.Errorf("genesis: register token %s: %w", token.Symbol, err)
			}
			if token.Paused {
				if err := txn.SetTokenPaused(token.Symbol, true); err != nil {
					return fmt.Errorf("genesis: pause token %s: %w", token.Symbol, err)
				}
			}
		}
		for _, acct := range resolved.Accounts {
			if err := txn.PutAccountInfo(acct.Info); err != nil {
				return fmt.Errorf("genesis: account %s: %w", acct.Info.Address, err)
			}
			for _, bal := range acct.Balances {
				if bal.Asset.IsNative() {
					err = txn.CreditNative(acct.Info.Address, bal.Amount)
				} else {
					err = txn.MintToken(bal.Asset.Token, acct.Info.Address, bal.Amount)
				}
				if err != nil {
					return fmt.Errorf("genesis: balance %s for %s: %w", bal.Asset, acct.Info.Address, err)
				}
			}
		}
		seeded = true
		return txn.SetGenesisDigest(resolved.Digest)
	})
	if err != nil {
		return false, err
	}
	if err := engine.Initialize(resolved.Config); err != nil {
		return seeded, fmt.Errorf("genesis: initialise tipping: %w", err)
	}
	return seeded, nil
}

// DevSpec returns a minimal seed naming only the owner, used when a node
// starts without a genesis file.
func DevSpec(owner string) *Spec {
	raw := []byte("owner: " + owner + "\n")
	spec, err := ParseSpec(raw)
	if err != nil {
		return &Spec{Owner: owner}
	}
	return spec
}
