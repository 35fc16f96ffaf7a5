package telegrambot

import (
	"testing"
	"time"

	"pricewatch-backend/lib/timezone"
	"pricewatch-backend/services/tracker"

	"github.com/stretchr/testify/require"
)

func TestFormatItemInfo(t *testing.T) {
	lastCheck := time.Date(2024, 3, 7, 18, 30, 5, 0, timezone.Location)

	info := formatItemInfo(tracker.TrackingRecord{
		ItemId:       "123",
		ItemName:     "Widget",
		LowestPrice:  34990,
		BestShopName: "ShopAlpha",
		LastCheck:    lastCheck,
	})
	require.Equal(t,
		"--- Widget info --- \n\n"+
			"Last check time: 07/03/2024, 18:30:05\n"+
			"Lowest price: 34990 руб.\n"+
			"Shop with that price: ShopAlpha",
		info,
	)
}

func TestFormatItemInfoUnchecked(t *testing.T) {
	info := formatItemInfo(tracker.TrackingRecord{
		ItemId:   "123",
		ItemName: "Widget",
	})
	require.Contains(t, info, "Last check time: never")
	require.Contains(t, info, "Lowest price: 0 руб.")
	require.Contains(t, info, "Shop with that price: No shops")
}

func TestItemsKeyboard(t *testing.T) {
	markup := itemsKeyboard([]tracker.TrackedItem{
		{ItemId: "1", ItemName: "Alpha"},
		{ItemId: "2", ItemName: "Beta"},
	})

	require.Len(t, markup.InlineKeyboard, 2)
	require.Equal(t, "Alpha", markup.InlineKeyboard[0][0].Text)
	require.Equal(t, "item_1", markup.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "item_2", markup.InlineKeyboard[1][0].CallbackData)
}

func TestMatchTrackedItem(t *testing.T) {
	items := []tracker.TrackedItem{
		{ItemId: "1", ItemName: "Widget X200 Pro"},
		{ItemId: "2", ItemName: "Gadget Mini"},
	}

	item, ok := matchTrackedItem(items, "widget x200 pro")
	require.True(t, ok)
	require.Equal(t, "1", item.ItemId)

	// minor typos still resolve
	item, ok = matchTrackedItem(items, "gadget mini")
	require.True(t, ok)
	require.Equal(t, "2", item.ItemId)

	_, ok = matchTrackedItem(items, "toaster")
	require.False(t, ok)

	_, ok = matchTrackedItem(nil, "anything")
	require.False(t, ok)
}
