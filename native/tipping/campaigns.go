package tipping

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"tipchain/core/identity"
	"tipchain/crypto"
)

// CreateTippingEvent opens a tipping window for artist lasting duration
// heights from now. Only the artist may open its own events.
func (e *Engine) CreateTippingEvent(ctx context.Context, caller, artist crypto.Address, duration uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var evt *TippingEvent
	err := e.state.Update(func(tx Tx) error {
		var err error
		evt, err = e.createEvent(ctx, tx, caller, artist, duration)
		return err
	})
	if err != nil {
		e.reject("create_event", err)
		return 0, err
	}
	e.telemetry.ObserveEventCreated()
	e.logger.Info("tipping event created",
		slog.String("component", moduleName),
		slog.Uint64("id", evt.ID),
		slog.String("artist", evt.Artist.String()),
		slog.Uint64("start", evt.StartHeight),
		slog.Uint64("end", evt.EndHeight))
	e.emit(EventCreatedEvent(evt, evt.StartHeight))
	return evt.ID, nil
}

func (e *Engine) createEvent(ctx context.Context, tx Tx, caller, artist crypto.Address, duration uint64) (*TippingEvent, error) {
	if caller != artist {
		return nil, fmt.Errorf("%w: only the artist may create its events", ErrNotAuthorized)
	}
	active, err := identity.IsActiveArtist(ctx, e.registry, artist)
	if err != nil {
		return nil, fmt.Errorf("tipping: resolve artist: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: %s", ErrNotRegisteredArtist, artist)
	}
	now := e.currentHeight()
	if duration == 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidAmount)
	}
	if now > math.MaxUint64-duration {
		return nil, fmt.Errorf("%w: end height overflows", ErrInvalidAmount)
	}
	id, err := tx.NextEventID()
	if err != nil {
		return nil, err
	}
	evt := &TippingEvent{ID: id, Artist: artist, StartHeight: now, EndHeight: now + duration}
	if err := tx.PutEvent(evt); err != nil {
		return nil, err
	}
	ids, err := liveArtistEvents(tx, artist, now)
	if err != nil {
		return nil, err
	}
	if err := tx.PutArtistEvents(artist, append(ids, id)); err != nil {
		return nil, err
	}
	return evt, nil
}

// liveArtistEvents returns the indexed event ids of artist whose window has
// not ended at now. Height never decreases, so dropped ids can never match
// again.
func liveArtistEvents(tx Tx, artist crypto.Address, now uint64) ([]uint64, error) {
	ids, err := tx.ArtistEvents(artist)
	if err != nil {
		return nil, err
	}
	live := make([]uint64, 0, len(ids))
	for _, id := range ids {
		evt, ok, err := tx.Event(id)
		if err != nil {
			return nil, err
		}
		if !ok || evt.EndHeight < now {
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// creditEvents adds gross to every active event of artist and returns the
// credited ids. Expired ids are pruned from the artist index.
func creditEvents(tx Tx, artist crypto.Address, gross, now uint64) ([]uint64, error) {
	indexed, err := tx.ArtistEvents(artist)
	if err != nil || len(indexed) == 0 {
		return nil, err
	}
	live, err := liveArtistEvents(tx, artist, now)
	if err != nil {
		return nil, err
	}
	if len(live) != len(indexed) {
		if err := tx.PutArtistEvents(artist, live); err != nil {
			return nil, err
		}
	}
	var credited []uint64
	for _, id := range live {
		evt, ok, err := tx.Event(id)
		if err != nil {
			return nil, err
		}
		if !ok || !evt.ActiveAt(now) {
			continue
		}
		if err := addChecked(&evt.TotalTipped, gross); err != nil {
			return nil, fmt.Errorf("%w: event %d total", err, id)
		}
		if err := tx.PutEvent(evt); err != nil {
			return nil, err
		}
		credited = append(credited, id)
	}
	return credited, nil
}

// debitEvents reverses creditEvents for a refunded tip.
func debitEvents(tx Tx, ids []uint64, gross uint64) error {
	for _, id := range ids {
		evt, ok, err := tx.Event(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := subChecked(&evt.TotalTipped, gross); err != nil {
			return fmt.Errorf("%w: event %d total", err, id)
		}
		if err := tx.PutEvent(evt); err != nil {
			return err
		}
	}
	return nil
}
