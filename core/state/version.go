package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion identifies the on-disk key layout of the ledger. Increment it
// whenever stored keys or encodings change incompatibly.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// StateVersion returns the stored schema version and whether it was present.
func (t *Txn) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := t.KVGet(stateVersionKey, &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// SetStateVersion records the schema version.
func (t *Txn) SetStateVersion(version uint32) error {
	return t.KVPut(stateVersionKey, uint64(version))
}

// EnsureStateVersion stamps an empty store with StateVersion and rejects a
// store written by an incompatible binary. allowMigrate tolerates a mismatch
// so operators can run a manual migration.
func (m *Manager) EnsureStateVersion(allowMigrate bool) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.Update(func(txn *Txn) error {
		version, ok, err := txn.StateVersion()
		if err != nil {
			return err
		}
		if !ok {
			return txn.SetStateVersion(StateVersion)
		}
		if version == StateVersion || allowMigrate {
			return nil
		}
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	})
}

