package idempotency

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	recordKeyPrefix   = "idem:"
	observedKeyPrefix = "observed:"
)

// LevelDBStore persists recorded responses in LevelDB with a secondary index
// ordered by observation time for pruning.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (or creates) a LevelDB database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("idempotency store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve idempotency store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open idempotency store: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Close releases the underlying LevelDB resources.
func (s *LevelDBStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the record stored under key.
func (s *LevelDBStore) Load(_ context.Context, key string) (*Record, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("leveldb store not configured")
	}
	raw, err := s.db.Get([]byte(recordKeyPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode record: %w", err)
	}
	return &rec, true, nil
}

// Save stores rec under key, replacing any previous record.
func (s *LevelDBStore) Save(_ context.Context, key string, rec Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("leveldb store not configured")
	}
	if key == "" {
		return fmt.Errorf("idempotency key required")
	}
	observed := rec.ObservedAt.UTC()
	if observed.IsZero() {
		observed = time.Now().UTC()
		rec.ObservedAt = observed
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	batch := new(leveldb.Batch)
	if previous, ok, err := s.Load(context.Background(), key); err == nil && ok {
		batch.Delete([]byte(observedKey(previous.ObservedAt.UnixNano(), key)))
	}
	batch.Put([]byte(recordKeyPrefix+key), payload)
	batch.Put([]byte(observedKey(observed.UnixNano(), key)), encodeUnixNano(observed.UnixNano()))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// Prune deletes records observed before cutoff.
func (s *LevelDBStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("leveldb store not configured")
	}
	cutoffKey := []byte(observedKey(cutoff.UTC().UnixNano(), ""))
	iter := s.db.NewIterator(util.BytesPrefix([]byte(observedKeyPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	pruned := 0
	for iter.Next() {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		if bytes.Compare(iter.Key(), cutoffKey) >= 0 {
			break
		}
		key, _, ok := parseObservedKey(iter.Key())
		if !ok {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
		batch.Delete([]byte(recordKeyPrefix + key))
		pruned++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterate observed records: %w", err)
	}
	if batch.Len() > 0 {
		if err := s.db.Write(batch, nil); err != nil {
			return 0, fmt.Errorf("prune records: %w", err)
		}
	}
	return pruned, nil
}

func observedKey(nanos int64, key string) string {
	return fmt.Sprintf("%s%020d:%s", observedKeyPrefix, nanos, key)
}

func parseObservedKey(raw []byte) (string, int64, bool) {
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], nanos, true
}

func encodeUnixNano(nanos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(nanos))
	return buf
}
