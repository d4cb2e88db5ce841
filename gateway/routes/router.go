package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tipchain/core/events"
	"tipchain/crypto"
	"tipchain/gateway/idempotency"
	"tipchain/gateway/middleware"
	"tipchain/native/assets"
	"tipchain/native/tipping"
	"tipchain/services/tipindex"
)

// Ledger is the slice of the tipping engine served over HTTP.
type Ledger interface {
	SendTip(ctx context.Context, tipper, artist crypto.Address, gross uint64, asset assets.Asset) (uint64, error)
	BatchSendTip(ctx context.Context, tipper crypto.Address, entries []tipping.BatchEntry, asset assets.Asset) (*tipping.BatchResult, error)
	RefundTip(ctx context.Context, caller crypto.Address, tipID uint64) error
	CreateTippingEvent(ctx context.Context, caller, artist crypto.Address, duration uint64) (uint64, error)
	Tip(id uint64) (*tipping.Tip, error)
	HistoryTips(addr crypto.Address, role tipping.HistoryRole) ([]*tipping.Tip, error)
	Totals(addr crypto.Address) (tipping.Totals, error)
	Event(id uint64) (*tipping.TippingEvent, error)
	ActiveEvents(artist crypto.Address) ([]*tipping.TippingEvent, error)
	Config() (tipping.Config, error)
	IsOwner(addr crypto.Address) (bool, error)
	SetPaused(caller crypto.Address, paused bool) error
	SetMinTipAmount(caller crypto.Address, amount uint64) error
	SetFeePermille(caller crypto.Address, permille uint64) error
	TransferOwnership(caller, newOwner crypto.Address) error
}

// Balances reads committed asset balances.
type Balances interface {
	Balance(asset assets.Asset, addr crypto.Address) (uint64, error)
}

// HeightSource reports the current ledger height.
type HeightSource interface {
	Height() uint64
}

// Config wires the API router.
type Config struct {
	Ledger        Ledger
	Balances      Balances
	Height        HeightSource
	Index         *tipindex.Store
	Hub           *events.Hub
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Idempotency   *idempotency.Guard
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

type api struct {
	ledger   Ledger
	balances Balances
	height   HeightSource
	index    *tipindex.Store
	hub      *events.Hub
	logger   *slog.Logger
}

// New builds the HTTP handler of the tipping node.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("routes: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &api{
		ledger:   cfg.Ledger,
		balances: cfg.Balances,
		height:   cfg.Height,
		index:    cfg.Index,
		hub:      cfg.Hub,
		logger:   logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(sr chi.Router) {
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware())
		}
		if a.hub != nil {
			sr.Get("/ws/events", a.streamEvents)
		}
		sr.Route("/v1", func(v1 chi.Router) {
			v1.Group(func(reads chi.Router) {
				if cfg.RateLimiter != nil {
					reads.Use(cfg.RateLimiter.Middleware("read"))
				}
				reads.Get("/height", a.getHeight)
				reads.Get("/config", a.getConfig)
				reads.Get("/owners/{addr}", a.getIsOwner)
				reads.Get("/tips/{id}", a.getTip)
				reads.Get("/accounts/{addr}/history", a.getHistory)
				reads.Get("/accounts/{addr}/totals", a.getTotals)
				reads.Get("/accounts/{addr}/balances", a.getBalances)
				reads.Get("/accounts/{addr}/tips", a.getIndexedTips)
				reads.Get("/events/{id}", a.getEvent)
				reads.Get("/artists/{addr}/events", a.getArtistEvents)
			})
			v1.Group(func(writes chi.Router) {
				if cfg.RateLimiter != nil {
					writes.Use(cfg.RateLimiter.Middleware("write"))
				}
				if cfg.Idempotency != nil {
					writes.Use(cfg.Idempotency.Middleware)
				}
				writes.Post("/tips", a.sendTip)
				writes.Post("/tips/batch", a.batchSend)
				writes.Post("/tips/{id}/refund", a.refundTip)
				writes.Post("/events", a.createEvent)
				writes.Route("/admin", func(admin chi.Router) {
					admin.Put("/paused", a.setPaused)
					admin.Put("/min-tip", a.setMinTip)
					admin.Put("/fee", a.setFee)
					admin.Put("/owner", a.transferOwner)
				})
			})
		})
	})

	return r, nil
}

func (a *api) currentHeight() uint64 {
	if a.height == nil {
		return 0
	}
	return a.height.Height()
}
