package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tipchain/crypto"
	"tipchain/gateway/middleware"
)

func openStore(t *testing.T) (*LevelDBStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idem")
	store, err := OpenLevelDBStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, path
}

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	})
}

func post(handler http.Handler, key string, caller byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/tips", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	if caller != 0 {
		raw := make([]byte, 20)
		raw[19] = caller
		req = req.WithContext(middleware.WithCaller(req.Context(), crypto.MustAddress(raw)))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGuardReplaysRecordedResponse(t *testing.T) {
	store, _ := openStore(t)
	defer store.Close()
	var calls atomic.Int32
	guard := NewGuard(store, time.Hour, nil)
	handler := guard.Middleware(countingHandler(&calls, http.StatusCreated))

	first := post(handler, "retry-1", 1)
	second := post(handler, "retry-1", 1)
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", calls.Load())
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %q vs %q", second.Code, second.Body.String(), first.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Fatalf("replayed response not marked")
	}

	// Keys are scoped per caller.
	post(handler, "retry-1", 2)
	// Requests without a key are never replayed.
	post(handler, "", 1)
	if calls.Load() != 3 {
		t.Fatalf("handler ran %d times, want 3", calls.Load())
	}
}

func TestGuardSkipsServerErrors(t *testing.T) {
	store, _ := openStore(t)
	defer store.Close()
	var calls atomic.Int32
	handler := NewGuard(store, time.Hour, nil).Middleware(countingHandler(&calls, http.StatusInternalServerError))

	post(handler, "flaky", 1)
	post(handler, "flaky", 1)
	if calls.Load() != 2 {
		t.Fatalf("server errors must not be recorded, handler ran %d times", calls.Load())
	}
}

func TestGuardExpiresAndPrunes(t *testing.T) {
	store, _ := openStore(t)
	defer store.Close()
	var calls atomic.Int32
	guard := NewGuard(store, time.Minute, nil)
	now := time.Unix(1_717_787_717, 0)
	guard.now = func() time.Time { return now }
	handler := guard.Middleware(countingHandler(&calls, http.StatusOK))

	post(handler, "k", 1)
	now = now.Add(2 * time.Minute)
	pruned, err := guard.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned %d records, want 1", pruned)
	}
	post(handler, "k", 1)
	if calls.Load() != 2 {
		t.Fatalf("expired key replayed, handler ran %d times", calls.Load())
	}
}

func TestLevelDBStoreSurvivesRestart(t *testing.T) {
	store, path := openStore(t)
	rec := Record{Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":1}`), ObservedAt: time.Unix(100, 0)}
	if err := store.Save(context.Background(), "abc", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenLevelDBStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Load(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("load after restart: ok=%v err=%v", ok, err)
	}
	if got.Status != http.StatusCreated || string(got.Body) != `{"id":1}` {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, ok, _ := reopened.Load(context.Background(), "missing"); ok {
		t.Fatalf("unexpected record for missing key")
	}
}
