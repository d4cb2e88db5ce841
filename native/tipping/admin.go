package tipping

import (
	"fmt"
	"log/slog"

	"tipchain/crypto"
)

// isOwner is the single authorisation check for administrative operations.
func isOwner(cfg Config, caller crypto.Address) bool {
	return !cfg.Owner.IsZero() && caller == cfg.Owner
}

// Initialize stores the genesis configuration. It is a no-op when a
// configuration already exists so restarts keep owner-applied changes.
func (e *Engine) Initialize(cfg Config) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	created := false
	err := e.state.Update(func(tx Tx) error {
		if _, ok, err := tx.Config(); err != nil || ok {
			return err
		}
		created = true
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return err
	}
	if created {
		e.logger.Info("tipping ledger initialised",
			slog.String("component", moduleName),
			slog.String("owner", cfg.Owner.String()),
			slog.Uint64("minTipAmount", cfg.MinTipAmount),
			slog.Uint64("feePermille", cfg.FeePermille))
	}
	return nil
}

// SetPaused toggles the pause flag consulted by sends.
func (e *Engine) SetPaused(caller crypto.Address, paused bool) error {
	return e.updateConfig("set_paused", caller, func(cfg *Config) error {
		cfg.Paused = paused
		return nil
	})
}

// SetMinTipAmount sets the minimum gross amount of a tip.
func (e *Engine) SetMinTipAmount(caller crypto.Address, amount uint64) error {
	return e.updateConfig("set_min_tip", caller, func(cfg *Config) error {
		cfg.MinTipAmount = amount
		return nil
	})
}

// SetFeePermille sets the platform fee applied to future tips. Existing tips
// keep the fee captured when they were sent.
func (e *Engine) SetFeePermille(caller crypto.Address, permille uint64) error {
	return e.updateConfig("set_fee", caller, func(cfg *Config) error {
		cfg.FeePermille = permille
		return nil
	})
}

// TransferOwnership hands administrative control to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner crypto.Address) error {
	return e.updateConfig("transfer_ownership", caller, func(cfg *Config) error {
		cfg.Owner = newOwner
		return nil
	})
}

func (e *Engine) updateConfig(operation string, caller crypto.Address, mutate func(*Config) error) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var updated Config
	now := e.currentHeight()
	err := e.state.Update(func(tx Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if !isOwner(cfg, caller) {
			return fmt.Errorf("%w: %s is not the owner", ErrNotAuthorized, caller)
		}
		if err := mutate(&cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		updated = cfg
		return tx.PutConfig(cfg)
	})
	if err != nil {
		e.reject(operation, err)
		return err
	}
	e.logger.Info("tipping config updated",
		slog.String("component", moduleName),
		slog.String("operation", operation),
		slog.String("owner", updated.Owner.String()),
		slog.Bool("paused", updated.Paused),
		slog.Uint64("minTipAmount", updated.MinTipAmount),
		slog.Uint64("feePermille", updated.FeePermille))
	e.emit(ConfigUpdatedEvent(operation, updated, now))
	return nil
}
