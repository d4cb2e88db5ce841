package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tipchain/native/assets"
	"tipchain/native/common"
	"tipchain/native/tipping"
	"tipchain/storage"
)

func newTestStore(t *testing.T) (*Manager, *TippingStore) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := NewManager(db)
	return mgr, mgr.TippingStore()
}

func TestTippingStoreTipRoundTrip(t *testing.T) {
	_, store := newTestStore(t)

	var id uint64
	require.NoError(t, store.Update(func(tx tipping.Tx) error {
		var err error
		id, err = tx.NextTipID()
		require.NoError(t, err)
		return tx.PutTip(&tipping.Tip{
			ID:             id,
			Tipper:         testAddr(1),
			Artist:         testAddr(2),
			GrossAmount:    1_000,
			Asset:          assets.Token("ZAP"),
			CapturedFee:    5,
			Timestamp:      10,
			CreditedEvents: []uint64{3, 4},
		})
	}))
	require.Equal(t, uint64(1), id)

	require.NoError(t, store.View(func(tx tipping.Tx) error {
		tip, ok, err := tx.Tip(id)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, testAddr(1), tip.Tipper)
		require.Equal(t, testAddr(2), tip.Artist)
		require.Equal(t, assets.Token("ZAP"), tip.Asset)
		require.Equal(t, uint64(995), tip.NetAmount())
		require.Equal(t, []uint64{3, 4}, tip.CreditedEvents)
		require.False(t, tip.Refunded)

		_, ok, err = tx.Tip(id + 1)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestTippingStoreSequencesAreMonotonic(t *testing.T) {
	_, store := newTestStore(t)
	for want := uint64(1); want <= 3; want++ {
		require.NoError(t, store.Update(func(tx tipping.Tx) error {
			got, err := tx.NextTipID()
			require.Equal(t, want, got)
			return err
		}))
	}
	// A discarded txn must not consume an id.
	_ = store.Update(func(tx tipping.Tx) error {
		_, err := tx.NextTipID()
		require.NoError(t, err)
		return tipping.ErrPaused
	})
	require.NoError(t, store.Update(func(tx tipping.Tx) error {
		got, err := tx.NextTipID()
		require.Equal(t, uint64(4), got)
		event, err2 := tx.NextEventID()
		require.Equal(t, uint64(1), event)
		require.NoError(t, err2)
		return err
	}))
}

func TestTippingStoreIndexesAndTotals(t *testing.T) {
	_, store := newTestStore(t)
	artist := testAddr(2)

	require.NoError(t, store.Update(func(tx tipping.Tx) error {
		require.NoError(t, tx.PutHistory(tipping.HistoryReceived, artist, []uint64{1, 2}))
		require.NoError(t, tx.PutTotals(artist, tipping.Totals{TotalReceived: 995}))
		require.NoError(t, tx.PutArtistEvents(artist, []uint64{7}))
		require.NoError(t, tx.PutEvent(&tipping.TippingEvent{ID: 7, Artist: artist, StartHeight: 1, EndHeight: 9}))
		return tx.PutQuotaUsage(artist, common.QuotaNow{Count: 2, AmountUsed: 30, EpochID: 1})
	}))

	require.NoError(t, store.View(func(tx tipping.Tx) error {
		sent, err := tx.History(tipping.HistorySent, artist)
		require.NoError(t, err)
		require.Empty(t, sent)
		received, err := tx.History(tipping.HistoryReceived, artist)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 2}, received)

		totals, err := tx.Totals(artist)
		require.NoError(t, err)
		require.Equal(t, tipping.Totals{TotalReceived: 995}, totals)

		ids, err := tx.ArtistEvents(artist)
		require.NoError(t, err)
		require.Equal(t, []uint64{7}, ids)
		evt, ok, err := tx.Event(7)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, evt.ActiveAt(9))

		usage, err := tx.QuotaUsage(artist)
		require.NoError(t, err)
		require.Equal(t, common.QuotaNow{Count: 2, AmountUsed: 30, EpochID: 1}, usage)
		return nil
	}))

	require.NoError(t, store.Update(func(tx tipping.Tx) error {
		require.NoError(t, tx.PutArtistEvents(artist, nil))
		return tx.PutTotals(artist, tipping.Totals{})
	}))
	require.NoError(t, store.View(func(tx tipping.Tx) error {
		ids, err := tx.ArtistEvents(artist)
		require.NoError(t, err)
		require.Empty(t, ids)
		totals, err := tx.Totals(artist)
		require.Zero(t, totals)
		return err
	}))
}

func TestTippingStoreConfig(t *testing.T) {
	_, store := newTestStore(t)
	require.NoError(t, store.View(func(tx tipping.Tx) error {
		_, ok, err := tx.Config()
		require.False(t, ok)
		return err
	}))
	cfg := tipping.Config{Owner: testAddr(9), Paused: true, MinTipAmount: 100, FeePermille: 5}
	require.NoError(t, store.Update(func(tx tipping.Tx) error { return tx.PutConfig(cfg) }))
	require.NoError(t, store.View(func(tx tipping.Tx) error {
		got, ok, err := tx.Config()
		require.True(t, ok)
		require.Equal(t, cfg, got)
		return err
	}))
}

func TestTippingTxSharesStagedBalances(t *testing.T) {
	mgr, store := newTestStore(t)
	require.NoError(t, mgr.Update(func(txn *Txn) error {
		return txn.CreditNative(testAddr(1), 100)
	}))

	err := store.Update(func(tx tipping.Tx) error {
		adapter := assets.NewNativeLedgerAdapter(tx.NativeLedger())
		require.NoError(t, adapter.Transfer(context.Background(), 60, testAddr(1), testAddr(2)))
		return tipping.ErrTransferFailed
	})
	require.ErrorIs(t, err, tipping.ErrTransferFailed)

	require.NoError(t, mgr.View(func(txn *Txn) error {
		balance, err := txn.NativeBalance(testAddr(1))
		require.Equal(t, uint64(100), balance, "discarded txn must roll back transfer legs")
		return err
	}))
}
