package state

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"tipchain/storage"
)

// Manager owns the ledger key space. Every mutation runs inside a staged Txn
// that reaches the database as one atomic batch.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn against a staged transaction and commits the staged writes
// when fn returns nil. On error nothing is written.
func (m *Manager) Update(fn func(txn *Txn) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := newTxn(m.db)
	if err := fn(txn); err != nil {
		return err
	}
	return txn.commit()
}

// View runs fn against committed state. Writes made by fn are discarded.
func (m *Manager) View(fn func(txn *Txn) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTxn(m.db))
}

// Txn is a write-staging overlay on top of the committed database.
type Txn struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newTxn(db storage.Database) *Txn {
	return &Txn{db: db, writes: make(map[string][]byte), deletes: make(map[string]struct{})}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (t *Txn) getRaw(hashed []byte) ([]byte, error) {
	k := string(hashed)
	if value, ok := t.writes[k]; ok {
		return value, nil
	}
	if _, ok := t.deletes[k]; ok {
		return nil, nil
	}
	data, err := t.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (t *Txn) putRaw(hashed []byte, value []byte) {
	k := string(hashed)
	delete(t.deletes, k)
	t.writes[k] = value
}

// Pending reports the number of staged writes and deletes.
func (t *Txn) Pending() int {
	return len(t.writes) + len(t.deletes)
}

func (t *Txn) commit() error {
	if t.Pending() == 0 {
		return nil
	}
	batch := t.db.NewBatch()
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), t.writes[k])
	}
	for k := range t.deletes {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	t.putRaw(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.getRaw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key from state.
func (t *Txn) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(kvKey(key))
	delete(t.writes, hashed)
	t.deletes[hashed] = struct{}{}
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (t *Txn) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.getRaw(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

func joinKey(prefix string, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}
