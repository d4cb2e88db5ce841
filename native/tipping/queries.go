package tipping

import (
	"fmt"

	"tipchain/crypto"
)

// Tip returns the tip record or ErrTipNotFound.
func (e *Engine) Tip(id uint64) (*Tip, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var tip *Tip
	err := e.state.View(func(tx Tx) error {
		stored, ok, err := tx.Tip(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrTipNotFound, id)
		}
		tip = stored
		return nil
	})
	return tip, err
}

// History returns the capped tip id sequence of addr for role, oldest first.
// Unknown accounts have an empty history.
func (e *Engine) History(addr crypto.Address, role HistoryRole) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var ids []uint64
	err := e.state.View(func(tx Tx) error {
		var err error
		ids, err = tx.History(role, addr)
		return err
	})
	if ids == nil {
		ids = []uint64{}
	}
	return ids, err
}

// HistoryTips resolves History into tip records.
func (e *Engine) HistoryTips(addr crypto.Address, role HistoryRole) ([]*Tip, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var tips []*Tip
	err := e.state.View(func(tx Tx) error {
		ids, err := tx.History(role, addr)
		if err != nil {
			return err
		}
		tips = make([]*Tip, 0, len(ids))
		for _, id := range ids {
			tip, ok, err := tx.Tip(id)
			if err != nil {
				return err
			}
			if ok {
				tips = append(tips, tip)
			}
		}
		return nil
	})
	return tips, err
}

// Totals returns the aggregates of addr. Unknown accounts have zero totals.
func (e *Engine) Totals(addr crypto.Address) (Totals, error) {
	if err := e.ready(); err != nil {
		return Totals{}, err
	}
	var totals Totals
	err := e.state.View(func(tx Tx) error {
		var err error
		totals, err = tx.Totals(addr)
		return err
	})
	return totals, err
}

// Event returns a tipping event or ErrEventNotFound.
func (e *Engine) Event(id uint64) (*TippingEvent, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var evt *TippingEvent
	err := e.state.View(func(tx Tx) error {
		stored, ok, err := tx.Event(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrEventNotFound, id)
		}
		evt = stored
		return nil
	})
	return evt, err
}

// ActiveEvents returns the events of artist that are active at the current
// height.
func (e *Engine) ActiveEvents(artist crypto.Address) ([]*TippingEvent, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.currentHeight()
	active := make([]*TippingEvent, 0)
	err := e.state.View(func(tx Tx) error {
		ids, err := tx.ArtistEvents(artist)
		if err != nil {
			return err
		}
		for _, id := range ids {
			evt, ok, err := tx.Event(id)
			if err != nil {
				return err
			}
			if ok && evt.ActiveAt(now) {
				active = append(active, evt)
			}
		}
		return nil
	})
	return active, err
}

// Config returns the stored configuration, or the defaults with no owner
// before initialisation.
func (e *Engine) Config() (Config, error) {
	if err := e.ready(); err != nil {
		return Config{}, err
	}
	var cfg Config
	err := e.state.View(func(tx Tx) error {
		stored, ok, err := tx.Config()
		if err != nil {
			return err
		}
		if !ok {
			stored = DefaultConfig(crypto.Address{})
		}
		cfg = stored
		return nil
	})
	return cfg, err
}

// IsOwner reports whether addr currently holds administrative control.
func (e *Engine) IsOwner(addr crypto.Address) (bool, error) {
	cfg, err := e.Config()
	if err != nil {
		return false, err
	}
	return isOwner(cfg, addr), nil
}
