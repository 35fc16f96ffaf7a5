package tracker

import (
	"context"
	"errors"
	"time"

	"pricewatch-backend/lib/scrapers/ekatalog"
)

// the submitted link does not belong to the supported catalog domain
var ErrInvalidLink = errors.New("this link is not a supported catalog link")

// the user already has an active tracking record for this item
var ErrAlreadyTracking = errors.New("this item is already being tracked")

// remove or inspect of an item the user does not track
var ErrNotTracking = errors.New("this item is not being tracked")

// TrackingRecord is the per (user, item) tracking state. LowestPrice is 0
// until a price has been observed and never increases afterwards.
// BestShopName is set together with LowestPrice. LastCheck is updated at
// the start of every check, even ones that fail.
type TrackingRecord struct {
	ItemId       string
	ItemName     string
	LowestPrice  int
	BestShopName string
	LastCheck    time.Time
}

// TrackedItem is the (id, name) projection used for listings.
type TrackedItem struct {
	ItemId   string
	ItemName string
}

// OfferSource resolves catalog links and fetches the current offer rows
// for an item. FetchOffers reports ekatalog.ErrNoOffers when the item
// currently has no price table; ResolveItem reports
// ekatalog.ErrItemNotFound when the page carries no item.
type OfferSource interface {
	IsSupportedLink(link string) bool
	ResolveItem(ctx context.Context, link string) (itemId string, itemName string, err error)
	FetchOffers(ctx context.Context, itemId string) ([]ekatalog.Offer, error)
}

// Notifier delivers a text message to a user. Delivery is fire and
// forget: failures are logged by the caller, never retried.
type Notifier interface {
	Notify(ctx context.Context, userId string, text string) error
}
