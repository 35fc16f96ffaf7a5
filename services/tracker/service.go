// Package tracker is the price tracking engine: it owns the per-user
// tracking records, keeps one recurring check timer per tracked item
// and decides when a user gets notified about a price drop.
package tracker

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"pricewatch-backend/lib/timezone"
	"pricewatch-backend/services/tracker/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/tracker")

type Options struct {
	// how often each tracked item is re-checked, 30 minutes if zero
	CheckInterval time.Duration
	// delay before a freshly added item's first check, 1 second if zero
	InitialDelay time.Duration
}

type Service struct {
	store    *Store
	sched    *Scheduler
	source   OfferSource
	notifier Notifier
	qry      *db.Queries
	opts     Options

	// lifecycle context for check timers, independent of any single
	// request's context
	ctx context.Context
}

// NewService restores tracking records persisted by a previous run and
// schedules their checks before returning. ctx bounds the lifetime of
// every timer the service creates.
func NewService(ctx context.Context, database *sql.DB, source OfferSource, notifier Notifier, opts Options) (*Service, error) {
	if opts.CheckInterval == 0 {
		opts.CheckInterval = 30 * time.Minute
	}
	if opts.InitialDelay == 0 {
		opts.InitialDelay = time.Second
	}

	s := &Service{
		store:    NewStore(),
		sched:    NewScheduler(),
		source:   source,
		notifier: notifier,
		qry:      db.New(database),
		opts:     opts,
		ctx:      ctx,
	}

	rows, err := s.qry.GetAllTrackedItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		rec := TrackingRecord{
			ItemId:       row.ItemID,
			ItemName:     row.ItemName,
			LowestPrice:  int(row.LowestPrice),
			BestShopName: row.BestShopName,
		}
		if row.LastCheck != 0 {
			rec.LastCheck = time.Unix(row.LastCheck, 0).In(timezone.Location)
		}
		s.store.restore(row.UserID, rec)
		s.sched.Schedule(s.ctx, row.UserID, row.ItemID, opts.InitialDelay, opts.CheckInterval, s.checkPrice)
	}
	if len(rows) > 0 {
		slog.InfoContext(ctx, "restored tracked items", "count", len(rows))
	}

	return s, nil
}

// validates and resolves the link, creates the tracking record and
// schedules its recurring check. the record and its timer are always
// created together so the store and scheduler stay in lockstep.
func (s *Service) AddTracking(ctx context.Context, userId, link string) (TrackedItem, error) {
	ctx, span := tracer.Start(ctx, "AddTracking")
	defer span.End()
	span.SetAttributes(attribute.String("user", userId))

	if !s.source.IsSupportedLink(link) {
		slog.InfoContext(ctx, "incorrect link", "user", userId, "link", link)
		return TrackedItem{}, ErrInvalidLink
	}

	itemId, itemName, err := s.source.ResolveItem(ctx, link)
	if err != nil {
		slog.InfoContext(ctx, "resolve item", "user", userId, "link", link, "err", err)
		return TrackedItem{}, err
	}

	err = s.store.Add(userId, itemId, itemName)
	if err != nil {
		slog.InfoContext(ctx, "already tracking item", "user", userId, "item", itemId)
		return TrackedItem{}, err
	}

	err = s.qry.CreateTrackedItem(ctx, db.CreateTrackedItemParams{
		UserID:    userId,
		ItemID:    itemId,
		ItemName:  itemName,
		CreatedAt: timezone.Now().Unix(),
	})
	if err != nil {
		// roll the in-memory record back so the store never holds an
		// item the database lost
		s.store.Remove(userId, itemId)
		return TrackedItem{}, err
	}

	s.sched.Schedule(s.ctx, userId, itemId, s.opts.InitialDelay, s.opts.CheckInterval, s.checkPrice)

	slog.InfoContext(ctx, "tracking item", "user", userId, "item", itemId, "name", itemName)
	return TrackedItem{ItemId: itemId, ItemName: itemName}, nil
}

// cancels the item's timer and deletes its record. an in-flight check
// may still finish; its writes are dropped because the record is gone.
func (s *Service) RemoveTracking(ctx context.Context, userId, itemId string) error {
	ctx, span := tracer.Start(ctx, "RemoveTracking")
	defer span.End()
	span.SetAttributes(attribute.String("user", userId), attribute.String("item", itemId))

	s.sched.Cancel(userId, itemId)
	err := s.store.Remove(userId, itemId)
	if err != nil {
		return err
	}

	err = s.qry.DeleteTrackedItem(ctx, db.DeleteTrackedItemParams{
		UserID: userId,
		ItemID: itemId,
	})
	if err != nil {
		slog.WarnContext(ctx, "delete persisted item", "user", userId, "item", itemId, "err", err)
	}

	slog.InfoContext(ctx, "stopped tracking item", "user", userId, "item", itemId)
	return nil
}

func (s *Service) ListTracking(ctx context.Context, userId string) []TrackedItem {
	return s.store.ListForUser(userId)
}

func (s *Service) InspectTracking(ctx context.Context, userId, itemId string) (TrackingRecord, error) {
	return s.store.Get(userId, itemId)
}

func (s *Service) persistLastCheck(ctx context.Context, userId, itemId string, lastCheck int64) {
	err := s.qry.UpdateTrackedItemLastCheck(ctx, db.UpdateTrackedItemLastCheckParams{
		LastCheck: lastCheck,
		UserID:    userId,
		ItemID:    itemId,
	})
	if err != nil {
		slog.WarnContext(ctx, "persist last check", "user", userId, "item", itemId, "err", err)
	}
}

func (s *Service) persistPrice(ctx context.Context, userId, itemId string, price int64, shopName string) {
	err := s.qry.UpdateTrackedItemPrice(ctx, db.UpdateTrackedItemPriceParams{
		LowestPrice:  price,
		BestShopName: shopName,
		UserID:       userId,
		ItemID:       itemId,
	})
	if err != nil {
		slog.WarnContext(ctx, "persist lowest price", "user", userId, "item", itemId, "err", err)
	}
}
