package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tipchain/observability/metrics"
)

// ErrHeightExhausted is returned when the height counter cannot advance further.
var ErrHeightExhausted = errors.New("chain: height exhausted")

// HeightStore persists the last produced height.
type HeightStore interface {
	LoadHeight() (uint64, error)
	StoreHeight(height uint64) error
}

// ClockConfig configures a HeightClock.
type ClockConfig struct {
	Store    HeightStore
	Interval time.Duration
	Logger   *slog.Logger
	// OnAdvance runs after each persisted tick with the new height.
	OnAdvance func(height uint64)
}

// HeightClock produces the logical block height consumed by the tipping
// engine. Heights only move forward and survive restarts through the store.
type HeightClock struct {
	store     HeightStore
	interval  time.Duration
	logger    *slog.Logger
	onAdvance func(uint64)

	mu     sync.Mutex
	height atomic.Uint64
}

// NewHeightClock restores the persisted height and returns a stopped clock.
func NewHeightClock(cfg ClockConfig) (*HeightClock, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chain: height store required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	height, err := cfg.Store.LoadHeight()
	if err != nil {
		return nil, fmt.Errorf("chain: load height: %w", err)
	}
	clock := &HeightClock{
		store:     cfg.Store,
		interval:  interval,
		logger:    logger.With("component", "chain"),
		onAdvance: cfg.OnAdvance,
	}
	clock.height.Store(height)
	metrics.Tipping().SetHeight(height)
	return clock, nil
}

// Height returns the current height.
func (c *HeightClock) Height() uint64 {
	if c == nil {
		return 0
	}
	return c.height.Load()
}

// Advance persists and publishes the next height.
func (c *HeightClock) Advance() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.height.Load()
	if current == math.MaxUint64 {
		return current, ErrHeightExhausted
	}
	next := current + 1
	if err := c.store.StoreHeight(next); err != nil {
		return current, fmt.Errorf("chain: store height: %w", err)
	}
	c.height.Store(next)
	metrics.Tipping().SetHeight(next)
	if c.onAdvance != nil {
		c.onAdvance(next)
	}
	return next, nil
}

// Run advances the height on every tick until the context is cancelled.
func (c *HeightClock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.logger.Info("height clock started", "height", c.Height(), "interval", c.interval.String())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("height clock stopped", "height", c.Height())
			return
		case <-ticker.C:
			if _, err := c.Advance(); err != nil {
				c.logger.Error("advance height", "error", err)
				if errors.Is(err, ErrHeightExhausted) {
					return
				}
			}
		}
	}
}
