package tracker

import (
	"sync"
	"time"
)

type userTracking struct {
	// item ids in insertion order, /list shows items in the order
	// they were added
	order []string
	items map[string]*TrackingRecord
}

// Store holds every user's tracking records. It is the only shared
// mutable state in the engine; all access goes through its mutex since
// add, remove and scheduled checks interleave on the same records.
type Store struct {
	mu    sync.Mutex
	users map[string]*userTracking
}

func NewStore() *Store {
	return &Store{users: map[string]*userTracking{}}
}

func (s *Store) Add(userId, itemId, itemName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[userId]
	if user == nil {
		user = &userTracking{items: map[string]*TrackingRecord{}}
		s.users[userId] = user
	}
	if _, ok := user.items[itemId]; ok {
		return ErrAlreadyTracking
	}

	user.items[itemId] = &TrackingRecord{
		ItemId:   itemId,
		ItemName: itemName,
	}
	user.order = append(user.order, itemId)
	return nil
}

func (s *Store) Remove(userId, itemId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[userId]
	if user == nil {
		return ErrNotTracking
	}
	if _, ok := user.items[itemId]; !ok {
		return ErrNotTracking
	}

	delete(user.items, itemId)
	for i, id := range user.order {
		if id == itemId {
			user.order = append(user.order[:i], user.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Get(userId, itemId string) (TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[userId]
	if user == nil {
		return TrackingRecord{}, ErrNotTracking
	}
	rec, ok := user.items[itemId]
	if !ok {
		return TrackingRecord{}, ErrNotTracking
	}
	return *rec, nil
}

func (s *Store) ListForUser(userId string) []TrackedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[userId]
	if user == nil {
		return nil
	}
	out := make([]TrackedItem, 0, len(user.order))
	for _, id := range user.order {
		out = append(out, TrackedItem{ItemId: id, ItemName: user.items[id].ItemName})
	}
	return out
}

// marks the start of a check. reports false when the record no longer
// exists, which tells an in-flight check that its item was removed.
func (s *Store) TouchLastCheck(userId, itemId string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookup(userId, itemId)
	if rec == nil {
		return false
	}
	rec.LastCheck = now
	return true
}

// applies a newly observed minimum price. the record is updated only
// when no price has been observed yet or the new price is strictly
// lower, keeping LowestPrice monotonically non-increasing. returns the
// record after the call and whether it was updated; a late call for a
// removed record is dropped.
func (s *Store) RecordLowerPrice(userId, itemId string, price int, shopName string) (TrackingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookup(userId, itemId)
	if rec == nil {
		return TrackingRecord{}, false
	}
	if rec.LowestPrice != 0 && price >= rec.LowestPrice {
		return *rec, false
	}
	rec.LowestPrice = price
	rec.BestShopName = shopName
	return *rec, true
}

// seeds a record restored from the database, bypassing the duplicate
// check. only used while rebuilding state at startup.
func (s *Store) restore(userId string, rec TrackingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[userId]
	if user == nil {
		user = &userTracking{items: map[string]*TrackingRecord{}}
		s.users[userId] = user
	}
	if _, ok := user.items[rec.ItemId]; !ok {
		user.order = append(user.order, rec.ItemId)
	}
	clone := rec
	user.items[rec.ItemId] = &clone
}

func (s *Store) lookup(userId, itemId string) *TrackingRecord {
	user := s.users[userId]
	if user == nil {
		return nil
	}
	return user.items[itemId]
}
