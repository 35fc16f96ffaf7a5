package tracker

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"pricewatch-backend/lib/scrapers/ekatalog"
	"pricewatch-backend/lib/testutil"
	"pricewatch-backend/services/tracker/db"

	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	offers []ekatalog.Offer
	err    error
}

type fakeSource struct {
	mu sync.Mutex
	// link -> resolved item
	links map[string]TrackedItem
	// consumed front to back, one per FetchOffers call
	results []fetchResult
}

func (f *fakeSource) IsSupportedLink(link string) bool {
	return strings.HasPrefix(link, "https://www.e-katalog.ru/")
}

func (f *fakeSource) ResolveItem(ctx context.Context, link string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.links[link]; ok {
		return item.ItemId, item.ItemName, nil
	}
	return "", "", ekatalog.ErrItemNotFound
}

func (f *fakeSource) FetchOffers(ctx context.Context, itemId string) ([]ekatalog.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, ekatalog.ErrNoOffers
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.offers, next.err
}

func (f *fakeSource) queue(offers []ekatalog.Offer, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fetchResult{offers: offers, err: err})
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, userId, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, userId+": "+text)
	return nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.messages...)
}

const widgetLink = "https://www.e-katalog.ru/widget-x200.htm"

func newFakeSource() *fakeSource {
	return &fakeSource{
		links: map[string]TrackedItem{
			widgetLink: {ItemId: "123", ItemName: "Widget"},
		},
	}
}

// timers are parked far in the future, every check in these tests is
// driven by calling checkPrice directly
var quietOptions = Options{
	CheckInterval: time.Hour * 24,
	InitialDelay:  time.Hour * 24,
}

func setupService(t *testing.T, source OfferSource, notifier Notifier) (*Service, *sql.DB) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/tracker",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := NewService(ctx, setup.DB, source, notifier, quietOptions)
	if err != nil {
		t.Fatal(err)
	}
	return s, setup.DB
}

func TestAddTracking(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()

	_, err := service.AddTracking(ctx, "42", "https://example.com/item")
	require.ErrorIs(t, err, ErrInvalidLink)

	_, err = service.AddTracking(ctx, "42", "https://www.e-katalog.ru/unknown.htm")
	require.ErrorIs(t, err, ekatalog.ErrItemNotFound)

	item, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)
	require.Equal(t, TrackedItem{ItemId: "123", ItemName: "Widget"}, item)

	_, err = service.AddTracking(ctx, "42", widgetLink)
	require.ErrorIs(t, err, ErrAlreadyTracking)

	// the original record is untouched by the rejected duplicate
	rec, err := service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, "Widget", rec.ItemName)
	require.Equal(t, 0, rec.LowestPrice)

	// another user may track the same item independently
	_, err = service.AddTracking(ctx, "7", widgetLink)
	require.NoError(t, err)
}

func TestRemoveTracking(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()

	require.ErrorIs(t, service.RemoveTracking(ctx, "42", "123"), ErrNotTracking)

	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)
	require.Len(t, service.ListTracking(ctx, "42"), 1)

	require.NoError(t, service.RemoveTracking(ctx, "42", "123"))
	require.Empty(t, service.ListTracking(ctx, "42"))
	require.ErrorIs(t, service.RemoveTracking(ctx, "42", "123"), ErrNotTracking)
}

func TestCheckPriceScenario(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	// first check observes prices for the first time
	source.queue([]ekatalog.Offer{{ShopName: "A", Price: 1000}, {ShopName: "B", Price: 1200}}, nil)
	service.checkPrice(ctx, "42", "123")

	rec, err := service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 1000, rec.LowestPrice)
	require.Equal(t, "A", rec.BestShopName)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "42: Found new lowest price for Widget\n#1. A - 1000 руб.\n#2. B - 1200 руб.\n", sent[0])

	// second check sees the same prices, nothing to say
	source.queue([]ekatalog.Offer{{ShopName: "A", Price: 1000}, {ShopName: "B", Price: 1200}}, nil)
	service.checkPrice(ctx, "42", "123")
	require.Len(t, notifier.sent(), 1)

	// third check finds a strictly lower price at a new shop
	source.queue([]ekatalog.Offer{{ShopName: "C", Price: 900}}, nil)
	service.checkPrice(ctx, "42", "123")

	rec, err = service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 900, rec.LowestPrice)
	require.Equal(t, "C", rec.BestShopName)

	sent = notifier.sent()
	require.Len(t, sent, 2)
	require.Equal(t, "42: Found new lowest price for Widget\n#1. C - 900 руб.\n", sent[1])

	// fourth check finds no price table at all, record is untouched
	source.queue(nil, ekatalog.ErrNoOffers)
	service.checkPrice(ctx, "42", "123")

	rec, err = service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 900, rec.LowestPrice)
	require.Equal(t, "C", rec.BestShopName)

	sent = notifier.sent()
	require.Len(t, sent, 3)
	require.Equal(t, "42: ⚠️ No prices for Widget \nBut I am still tracking it for you", sent[2])
}

func TestCheckPriceLowestNeverIncreases(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	prices := []int{1000, 1500, 800, 2000, 800, 799}
	lowest := 0
	for _, p := range prices {
		source.queue([]ekatalog.Offer{{ShopName: "S", Price: p}}, nil)
		service.checkPrice(ctx, "42", "123")

		if lowest == 0 || p < lowest {
			lowest = p
		}
		rec, err := service.InspectTracking(ctx, "42", "123")
		require.NoError(t, err)
		require.Equal(t, lowest, rec.LowestPrice)
	}
}

func TestCheckPriceNoOffersUpdatesOnlyLastCheck(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	source.queue(nil, ekatalog.ErrNoOffers)
	service.checkPrice(ctx, "42", "123")

	rec, err := service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 0, rec.LowestPrice)
	require.Empty(t, rec.BestShopName)
	require.False(t, rec.LastCheck.IsZero())

	// exactly one "no prices" message per firing
	require.Len(t, notifier.sent(), 1)

	// an empty offer list from the source counts as no offers too
	source.queue([]ekatalog.Offer{}, nil)
	service.checkPrice(ctx, "42", "123")
	require.Len(t, notifier.sent(), 2)
}

func TestCheckPriceFetchErrorIsSilent(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	source.queue(nil, context.DeadlineExceeded)
	service.checkPrice(ctx, "42", "123")

	// transient failures never reach the user, the next firing retries
	require.Empty(t, notifier.sent())

	rec, err := service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 0, rec.LowestPrice)
	require.False(t, rec.LastCheck.IsZero())
}

func TestCheckPriceTopFiveOnly(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	// the sixth row is cheapest but falls outside the considered window
	source.queue([]ekatalog.Offer{
		{ShopName: "S1", Price: 1000},
		{ShopName: "S2", Price: 1100},
		{ShopName: "S3", Price: 1200},
		{ShopName: "S4", Price: 1300},
		{ShopName: "S5", Price: 1400},
		{ShopName: "S6", Price: 1},
	}, nil)
	service.checkPrice(ctx, "42", "123")

	rec, err := service.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 1000, rec.LowestPrice)
	require.Equal(t, "S1", rec.BestShopName)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	require.NotContains(t, sent[0], "S6")
	require.Contains(t, sent[0], "#5. S5 - 1400 руб.")
}

func TestCheckPriceAfterRemovalIsDropped(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, _ := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)
	require.NoError(t, service.RemoveTracking(ctx, "42", "123"))

	// a firing that was already in flight when the item was removed
	// must not resurrect the record or message the user
	source.queue([]ekatalog.Offer{{ShopName: "A", Price: 1000}}, nil)
	service.checkPrice(ctx, "42", "123")

	require.Empty(t, notifier.sent())
	_, err = service.InspectTracking(ctx, "42", "123")
	require.ErrorIs(t, err, ErrNotTracking)
}

func TestServiceRestoresPersistedItems(t *testing.T) {
	source := newFakeSource()
	notifier := &fakeNotifier{}
	service, database := setupService(t, source, notifier)

	ctx := context.Background()
	_, err := service.AddTracking(ctx, "42", widgetLink)
	require.NoError(t, err)

	source.queue([]ekatalog.Offer{{ShopName: "A", Price: 1000}}, nil)
	service.checkPrice(ctx, "42", "123")

	// a new service over the same database picks the records back up
	restoredCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	restored, err := NewService(restoredCtx, database, source, notifier, quietOptions)
	require.NoError(t, err)

	require.Equal(t, []TrackedItem{{ItemId: "123", ItemName: "Widget"}}, restored.ListTracking(ctx, "42"))

	rec, err := restored.InspectTracking(ctx, "42", "123")
	require.NoError(t, err)
	require.Equal(t, 1000, rec.LowestPrice)
	require.Equal(t, "A", rec.BestShopName)
	require.False(t, rec.LastCheck.IsZero())
}
