package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreAddRemove(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Add("user", "1", "Widget"))
	require.ErrorIs(t, store.Add("user", "1", "Widget again"), ErrAlreadyTracking)

	// the original record survives a rejected duplicate
	rec, err := store.Get("user", "1")
	require.NoError(t, err)
	require.Equal(t, "Widget", rec.ItemName)
	require.Equal(t, 0, rec.LowestPrice)

	require.ErrorIs(t, store.Remove("user", "2"), ErrNotTracking)
	require.ErrorIs(t, store.Remove("stranger", "1"), ErrNotTracking)
	require.NoError(t, store.Remove("user", "1"))
	require.ErrorIs(t, store.Remove("user", "1"), ErrNotTracking)

	_, err = store.Get("user", "1")
	require.ErrorIs(t, err, ErrNotTracking)
}

func TestStoreListInsertionOrder(t *testing.T) {
	store := NewStore()

	require.Nil(t, store.ListForUser("user"))

	require.NoError(t, store.Add("user", "3", "Gamma"))
	require.NoError(t, store.Add("user", "1", "Alpha"))
	require.NoError(t, store.Add("user", "2", "Beta"))
	require.NoError(t, store.Add("other", "9", "Unrelated"))

	require.Equal(t, []TrackedItem{
		{ItemId: "3", ItemName: "Gamma"},
		{ItemId: "1", ItemName: "Alpha"},
		{ItemId: "2", ItemName: "Beta"},
	}, store.ListForUser("user"))

	require.NoError(t, store.Remove("user", "1"))
	require.Equal(t, []TrackedItem{
		{ItemId: "3", ItemName: "Gamma"},
		{ItemId: "2", ItemName: "Beta"},
	}, store.ListForUser("user"))
}

func TestStoreRecordLowerPrice(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Add("user", "1", "Widget"))

	// first observation always records
	rec, updated := store.RecordLowerPrice("user", "1", 1000, "A")
	require.True(t, updated)
	require.Equal(t, 1000, rec.LowestPrice)
	require.Equal(t, "A", rec.BestShopName)

	// equal price does not record
	_, updated = store.RecordLowerPrice("user", "1", 1000, "B")
	require.False(t, updated)

	// higher price does not record
	rec, updated = store.RecordLowerPrice("user", "1", 1500, "B")
	require.False(t, updated)
	require.Equal(t, 1000, rec.LowestPrice)
	require.Equal(t, "A", rec.BestShopName)

	// strictly lower records
	rec, updated = store.RecordLowerPrice("user", "1", 900, "C")
	require.True(t, updated)
	require.Equal(t, 900, rec.LowestPrice)
	require.Equal(t, "C", rec.BestShopName)

	// removed record drops the write
	require.NoError(t, store.Remove("user", "1"))
	_, updated = store.RecordLowerPrice("user", "1", 100, "D")
	require.False(t, updated)
}

func TestStoreTouchLastCheck(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Add("user", "1", "Widget"))

	now := time.Now()
	require.True(t, store.TouchLastCheck("user", "1", now))

	rec, err := store.Get("user", "1")
	require.NoError(t, err)
	require.Equal(t, now, rec.LastCheck)

	require.False(t, store.TouchLastCheck("user", "unknown", now))
}
