package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tipchain/crypto"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"tips": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("tips")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/tips", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimiterSeparatesKeys(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"tips":  {RequestsPerMinute: 1, Burst: 1},
		"admin": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	tips := limiter.Middleware("tips")(okHandler())
	admin := limiter.Middleware("admin")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/tips/1", nil)
	for name, handler := range map[string]http.Handler{"tips": tips, "admin": admin} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected first %s request to succeed, got %d", name, res.Code)
		}
	}
}

func TestRateLimiterKeysByCaller(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"tips": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("tips")(okHandler())

	for _, b := range []byte{1, 2} {
		var caller crypto.Address
		caller[0] = b
		req := httptest.NewRequest(http.MethodPost, "/v1/tips", nil)
		req = req.WithContext(WithCaller(req.Context(), caller))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("caller %d: expected request to succeed, got %d", b, res.Code)
		}
	}
	if limiter.Visitors() != 2 {
		t.Fatalf("expected one bucket per caller, got %d", limiter.Visitors())
	}
}

func TestRateLimiterPrunesIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"tips": {RequestsPerMinute: 60, Burst: 5},
	}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("tips")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if limiter.Visitors() != 1 {
		t.Fatalf("expected one visitor, got %d", limiter.Visitors())
	}

	now = now.Add(visitorTTL + 2*time.Minute)
	other := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	other.RemoteAddr = "10.1.1.1:5555"
	handler.ServeHTTP(httptest.NewRecorder(), other)
	if limiter.Visitors() != 1 {
		t.Fatalf("idle visitor must be pruned, got %d", limiter.Visitors())
	}
}

func TestRateLimiterUnknownKeyPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Middleware("missing")(okHandler())
	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", res.Code)
		}
	}
}
