package tipindex

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tipchain/core/events"
	"tipchain/core/types"
	"tipchain/crypto"
	"tipchain/native/assets"
	"tipchain/native/tipping"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustAddress(raw)
}

func sampleTip(id uint64, tipper, artist crypto.Address, gross uint64) *tipping.Tip {
	return &tipping.Tip{
		ID:          id,
		Tipper:      tipper,
		Artist:      artist,
		GrossAmount: gross,
		Asset:       assets.Native(),
		CapturedFee: gross / 100,
		Timestamp:   10 + id,
	}
}

func TestProjectorIndexesSends(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	projector := NewProjector(store, nil)
	alice, bob, carol := addr(1), addr(2), addr(3)

	for id := uint64(1); id <= 3; id++ {
		artist := bob
		if id == 3 {
			artist = carol
		}
		evt := tipping.TipSentEvent(sampleTip(id, alice, artist, 1_000*id), 10+id)
		require.NoError(t, projector.Apply(ctx, evt))
	}
	// Replays are ignored.
	require.NoError(t, projector.Apply(ctx, tipping.TipSentEvent(sampleTip(1, alice, bob, 1_000), 11)))

	sent, total, err := store.History(ctx, alice.String(), RoleSent, Page{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, sent, 3)
	require.Equal(t, uint64(3), sent[0].ID, "newest first")

	received, total, err := store.History(ctx, bob.String(), RoleReceived, Page{Limit: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, received, 1)
	require.Equal(t, uint64(2), received[0].ID)

	rec, err := store.Tip(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "2000", rec.Gross)
	require.Equal(t, "20", rec.Fee)
	require.Equal(t, "1980", rec.Net)
	require.Equal(t, assets.NativeSymbol, rec.Asset)
	require.False(t, rec.Refunded)
	require.NotEmpty(t, rec.Receipt)
}

func TestProjectorMarksRefunds(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	projector := NewProjector(store, nil)
	tip := sampleTip(7, addr(1), addr(2), 5_000)

	require.NoError(t, projector.Apply(ctx, tipping.TipSentEvent(tip, 17)))
	refunded := tip.Clone()
	refunded.Refunded = true
	require.NoError(t, projector.Apply(ctx, tipping.TipRefundedEvent(refunded, 30)))

	rec, err := store.Tip(ctx, 7)
	require.NoError(t, err)
	require.True(t, rec.Refunded)
	require.Equal(t, uint64(30), rec.RefundHeight)

	// A refund for a tip the index never saw still produces a row.
	orphan := sampleTip(9, addr(1), addr(2), 2_000)
	require.NoError(t, projector.Apply(ctx, tipping.TipRefundedEvent(orphan, 40)))
	rec, err = store.Tip(ctx, 9)
	require.NoError(t, err)
	require.True(t, rec.Refunded)
}

func TestProjectorRecordsBatches(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	projector := NewProjector(store, nil)
	tipper := addr(4)

	result := &tipping.BatchResult{
		Entries: []tipping.BatchEntryResult{
			{Index: 0, Artist: addr(5), Amount: 100, Status: tipping.EntrySucceeded, TipID: 11},
			{Index: 1, Artist: addr(6), Amount: 1, Status: tipping.EntryFailed, Err: tipping.ErrBelowMinimum},
			{Index: 2, Artist: addr(7), Amount: 100, Status: tipping.EntrySkipped},
		},
		Committed: 1,
	}
	require.NoError(t, projector.Apply(ctx, tipping.BatchCompletedEvent(tipper, result, 50)))

	batches, err := store.Batches(ctx, tipper.String(), Page{})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, 3, batches[0].Entries)
	require.Equal(t, 1, batches[0].Committed)
	require.False(t, batches[0].AllSucceeded)
	require.Equal(t, "below_minimum", batches[0].ErrorCode)
	require.Equal(t, "11", batches[0].TipIDs)
}

func TestProjectorRejectsMalformedEvents(t *testing.T) {
	ctx := context.Background()
	projector := NewProjector(setupTestStore(t), nil)

	err := projector.Apply(ctx, &types.Event{Type: tipping.EventTypeTipSent, Attributes: map[string]string{"id": "x"}})
	require.Error(t, err)
	err = projector.Apply(ctx, &types.Event{Type: tipping.EventTypeTipSent, Attributes: map[string]string{"id": "1"}})
	require.Error(t, err)
	require.NoError(t, projector.Apply(ctx, &types.Event{Type: tipping.EventTypeConfigUpdated}))
	require.NoError(t, projector.Apply(ctx, nil))
}

func TestProjectorRunConsumesHub(t *testing.T) {
	store := setupTestStore(t)
	projector := NewProjector(store, nil)
	hub := events.NewHub(8)
	ch, cancel := hub.Subscribe()

	done := make(chan error, 1)
	go func() { done <- projector.Run(context.Background(), ch) }()

	hub.Emit(tipping.WrapEvent(tipping.TipSentEvent(sampleTip(1, addr(1), addr(2), 1_000), 11)))
	require.Eventually(t, func() bool {
		_, err := store.Tip(context.Background(), 1)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("projector did not stop after the subscription closed")
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Tip(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.MarkRefunded(ctx, 99, 1), ErrNotFound)
	_, _, err = store.History(ctx, "x", "both", Page{})
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = Open("mysql", "dsn")
	require.Error(t, err)
}
