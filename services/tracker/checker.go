package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pricewatch-backend/lib/scrapers/ekatalog"
	"pricewatch-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// only the cheapest rows of the price table are considered and listed
// in notifications
const maxOffers = 5

// runs one scheduled price check for a (user, item) pair. every outcome
// here is soft: a fetch failure is logged and retried naturally on the
// next firing, a missing price table tells the user the item is still
// tracked, and a check whose record was removed mid-flight is dropped.
func (s *Service) checkPrice(ctx context.Context, userId, itemId string) {
	ctx, span := tracer.Start(ctx, "checkPrice")
	defer span.End()
	span.SetAttributes(
		attribute.String("user", userId),
		attribute.String("item", itemId),
	)

	slog.InfoContext(ctx, "checking price", "user", userId, "item", itemId)

	now := timezone.Now()
	if !s.store.TouchLastCheck(userId, itemId, now) {
		// removed while this firing was pending
		return
	}
	s.persistLastCheck(ctx, userId, itemId, now.Unix())

	offers, err := s.source.FetchOffers(ctx, itemId)
	if err == nil && len(offers) == 0 {
		err = ekatalog.ErrNoOffers
	}
	if errors.Is(err, ekatalog.ErrNoOffers) {
		rec, err := s.store.Get(userId, itemId)
		if err != nil {
			return
		}
		slog.InfoContext(ctx, "no price table", "user", userId, "item", itemId)
		s.notify(ctx, userId, fmt.Sprintf(
			"⚠️ No prices for %s \nBut I am still tracking it for you",
			rec.ItemName,
		))
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch offers")
		slog.WarnContext(ctx, "fetch offers", "user", userId, "item", itemId, "err", err)
		return
	}

	if len(offers) > maxOffers {
		offers = offers[:maxOffers]
	}

	best := offers[0]
	for _, offer := range offers[1:] {
		if offer.Price < best.Price {
			best = offer
		}
	}

	rec, updated := s.store.RecordLowerPrice(userId, itemId, best.Price, best.ShopName)
	if !updated {
		return
	}
	s.persistPrice(ctx, userId, itemId, int64(best.Price), best.ShopName)

	slog.InfoContext(ctx, "found new lowest price",
		"user", userId,
		"item", itemId,
		"price", best.Price,
		"shop", best.ShopName,
	)
	s.notify(ctx, userId, buildPriceMessage(rec.ItemName, offers))
}

func buildPriceMessage(itemName string, offers []ekatalog.Offer) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Found new lowest price for %s\n", itemName)
	for i, offer := range offers {
		fmt.Fprintf(&b, "#%d. %s - %d руб.\n", i+1, offer.ShopName, offer.Price)
	}
	return b.String()
}

func (s *Service) notify(ctx context.Context, userId, text string) {
	err := s.notifier.Notify(ctx, userId, text)
	if err != nil {
		slog.WarnContext(ctx, "deliver notification", "user", userId, "err", err)
	}
}
