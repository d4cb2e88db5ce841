package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tipchain/config"
	"tipchain/core/chain"
	"tipchain/core/events"
	"tipchain/core/genesis"
	"tipchain/core/state"
	"tipchain/gateway/idempotency"
	"tipchain/gateway/middleware"
	"tipchain/gateway/routes"
	"tipchain/native/tipping"
	"tipchain/observability"
	"tipchain/services/tipindex"
	"tipchain/storage"
)

const (
	idempotencyTTL   = 24 * time.Hour
	idempotencyPrune = 10 * time.Minute
)

// Options tune node start-up.
type Options struct {
	// Genesis seeds a fresh ledger. Nil requires DevOwner.
	Genesis *genesis.Spec
	// DevOwner seeds an empty ledger owned by this address when no genesis
	// file is configured.
	DevOwner string
	// AllowMigrate starts on a mismatched state schema.
	AllowMigrate bool
}

// Node is the central controller, wiring the ledger, height clock, event hub,
// read index and HTTP API together.
type Node struct {
	cfg    *config.Config
	logger *slog.Logger

	db      *storage.LevelDB
	state   *state.Manager
	engine  *tipping.Engine
	hub     *events.Hub
	clock   *chain.HeightClock
	index   *tipindex.Store
	idem    *idempotency.LevelDBStore
	guard   *idempotency.Guard
	closeMu sync.Once
}

// NewNode opens the data directory and assembles every component. The node
// does not advance heights or serve requests until Run.
func NewNode(cfg *config.Config, logger *slog.Logger, opts Options) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("core: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{cfg: cfg, logger: logger.With("component", "node")}
	if err := n.open(opts); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (n *Node) open(opts Options) error {
	if err := os.MkdirAll(n.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("core: prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(n.cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("core: open state: %w", err)
	}
	n.db = db
	n.state = state.NewManager(db)
	if err := n.state.EnsureStateVersion(opts.AllowMigrate); err != nil {
		return err
	}

	n.hub = events.NewHub(n.cfg.EventBuffer)
	eventMetrics := observability.Events()
	n.hub.OnDrop(eventMetrics.RecordDrop)

	n.clock, err = chain.NewHeightClock(chain.ClockConfig{
		Store:    n.state,
		Interval: n.cfg.BlockInterval(),
		Logger:   n.logger,
	})
	if err != nil {
		return err
	}

	policy, err := n.cfg.Tipping.Policy()
	if err != nil {
		return err
	}
	n.engine = tipping.NewEngine()
	n.engine.SetState(n.state.TippingStore())
	n.engine.SetRegistry(n.state.IdentityRegistry())
	n.engine.SetHeightSource(n.clock)
	n.engine.SetLogger(n.logger)
	n.engine.SetHistoryPolicy(policy)
	n.engine.SetQuota(n.cfg.Tipping.QuotaLimits())
	n.engine.SetEmitter(events.Fanout{
		events.EmitterFunc(func(evt events.Event) { eventMetrics.RecordPublished(evt.EventType()) }),
		n.hub,
	})

	spec := opts.Genesis
	if spec == nil {
		owner := strings.TrimSpace(opts.DevOwner)
		if owner == "" {
			return fmt.Errorf("core: genesis file or dev owner required")
		}
		spec = genesis.DevSpec(owner)
	}
	seeded, err := genesis.Apply(n.state, n.engine, spec)
	if err != nil {
		return err
	}
	if seeded {
		n.logger.Info("ledger seeded from genesis", "digest", fmt.Sprintf("%x", spec.Digest()))
	}

	if driver := n.cfg.Index.Driver; driver != "" && driver != "none" {
		n.index, err = tipindex.Open(driver, n.cfg.Index.DSN)
		if err != nil {
			return err
		}
	}

	n.idem, err = idempotency.OpenLevelDBStore(filepath.Join(n.cfg.DataDir, "idempotency"))
	if err != nil {
		return err
	}
	n.guard = idempotency.NewGuard(n.idem, idempotencyTTL, n.logger)
	return nil
}

// Engine returns the tipping engine.
func (n *Node) Engine() *tipping.Engine { return n.engine }

// State returns the state manager.
func (n *Node) State() *state.Manager { return n.state }

// Hub returns the event hub.
func (n *Node) Hub() *events.Hub { return n.hub }

// Height returns the current ledger height.
func (n *Node) Height() uint64 { return n.clock.Height() }

// Handler builds the HTTP API.
func (n *Node) Handler() (http.Handler, error) {
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:           n.cfg.Auth.Enabled,
		HMACSecret:        n.cfg.Auth.Secret,
		Issuer:            n.cfg.Auth.Issuer,
		Audience:          n.cfg.Auth.Audience,
		ClockSkew:         time.Duration(n.cfg.Auth.ClockSkewSeconds) * time.Second,
		AllowCallerHeader: !n.cfg.Auth.Enabled && strings.EqualFold(n.cfg.Env, "local"),
	}, n.logger)
	limit := middleware.RateLimit{RequestsPerMinute: n.cfg.RateLimit.RequestsPerMinute, Burst: n.cfg.RateLimit.Burst}
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{"read": limit, "write": limit}, n.logger)
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: "tipd",
		LogRequests: true,
		Enabled:     true,
	}, n.logger)

	return routes.New(routes.Config{
		Ledger:        n.engine,
		Balances:      n.state,
		Height:        n.clock,
		Index:         n.index,
		Hub:           n.hub,
		Authenticator: auth,
		RateLimiter:   limiter,
		Idempotency:   n.guard,
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", idempotency.HeaderKey, middleware.CallerHeader},
		},
		Logger: n.logger,
	})
}

// Run drives the background workers until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.clock.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		n.guard.RunPruner(ctx, idempotencyPrune)
	}()
	if n.index != nil {
		ch, cancel := n.hub.SubscribeLossless()
		projector := tipindex.NewProjector(n.index, n.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := projector.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
				n.logger.Error("tip index projector stopped", "error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

// Close releases every store. It is safe to call more than once.
func (n *Node) Close() {
	n.closeMu.Do(func() {
		if n.hub != nil {
			n.hub.Close()
		}
		if n.index != nil {
			if err := n.index.Close(); err != nil {
				n.logger.Warn("close tip index", "error", err)
			}
		}
		if n.idem != nil {
			if err := n.idem.Close(); err != nil {
				n.logger.Warn("close idempotency store", "error", err)
			}
		}
		if n.db != nil {
			n.db.Close()
		}
	})
}
