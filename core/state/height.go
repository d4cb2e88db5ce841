package state

var chainHeightKey = []byte("chain/height")

// Height returns the persisted chain height, or 0 before the first tick.
func (t *Txn) Height() (uint64, error) {
	var height uint64
	if _, err := t.KVGet(chainHeightKey, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// SetHeight persists the chain height.
func (t *Txn) SetHeight(height uint64) error {
	return t.KVPut(chainHeightKey, height)
}

// LoadHeight reads the committed chain height.
func (m *Manager) LoadHeight() (uint64, error) {
	var height uint64
	err := m.View(func(txn *Txn) error {
		var err error
		height, err = txn.Height()
		return err
	})
	return height, err
}

// StoreHeight commits a new chain height.
func (m *Manager) StoreHeight(height uint64) error {
	return m.Update(func(txn *Txn) error {
		return txn.SetHeight(height)
	})
}

var genesisDigestKey = []byte("chain/genesis")

// GenesisDigest returns the digest of the applied genesis seed, if any.
func (t *Txn) GenesisDigest() ([]byte, bool, error) {
	var digest []byte
	ok, err := t.KVGet(genesisDigestKey, &digest)
	return digest, ok, err
}

// SetGenesisDigest records the digest of the applied genesis seed.
func (t *Txn) SetGenesisDigest(digest []byte) error {
	return t.KVPut(genesisDigestKey, digest)
}
