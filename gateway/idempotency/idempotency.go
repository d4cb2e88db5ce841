// Package idempotency replays the recorded response of a write request that
// is retried with the same Idempotency-Key, so a client retry never sends a
// tip twice.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tipchain/gateway/middleware"
)

const (
	// HeaderKey carries the client-chosen idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplayed marks a response served from the store.
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 128
)

// Record is a stored response.
type Record struct {
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Store persists recorded responses.
type Store interface {
	Load(ctx context.Context, key string) (*Record, bool, error)
	Save(ctx context.Context, key string, rec Record) error
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Guard is the replay middleware.
type Guard struct {
	store    Store
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard builds a guard keeping records for ttl.
func NewGuard(store Store, ttl time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{
		store:    store,
		ttl:      ttl,
		logger:   logger.With("component", "idempotency"),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Middleware replays stored responses for POST requests carrying
// Idempotency-Key. Keys are scoped to the caller, method and path. Server
// errors are not recorded so they can be retried.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderKey))
		if raw == "" || r.Method != http.MethodPost || g.store == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(raw) > maxKeyLength {
			http.Error(w, "idempotency key too long", http.StatusBadRequest)
			return
		}
		key := g.scopedKey(r, raw)

		if rec, ok, err := g.store.Load(r.Context(), key); err != nil {
			g.logger.Warn("load idempotent response", "error", err)
		} else if ok && g.now().Sub(rec.ObservedAt) < g.ttl {
			replay(w, rec)
			return
		}

		if !g.acquire(key) {
			http.Error(w, "request with this idempotency key in progress", http.StatusConflict)
			return
		}
		defer g.release(key)

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status >= http.StatusInternalServerError {
			return
		}
		rec := Record{
			Status:      recorder.status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.buf.Bytes(),
			ObservedAt:  g.now().UTC(),
		}
		if err := g.store.Save(r.Context(), key, rec); err != nil {
			g.logger.Warn("record idempotent response", "error", err)
		}
	})
}

// Prune drops records older than the ttl.
func (g *Guard) Prune(ctx context.Context) (int, error) {
	return g.store.Prune(ctx, g.now().Add(-g.ttl))
}

// RunPruner prunes every interval until ctx ends.
func (g *Guard) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := g.Prune(ctx); err != nil {
				g.logger.Warn("prune idempotency records", "error", err)
			} else if n > 0 {
				g.logger.Debug("pruned idempotency records", "count", n)
			}
		}
	}
}

func (g *Guard) scopedKey(r *http.Request, raw string) string {
	caller := "anonymous"
	if addr, ok := middleware.CallerFromContext(r.Context()); ok {
		caller = addr.String()
	}
	sum := sha256.Sum256([]byte(caller + "|" + r.Method + "|" + r.URL.Path + "|" + raw))
	return hex.EncodeToString(sum[:])
}

func (g *Guard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
