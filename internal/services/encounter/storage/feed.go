package storage

import (
	"sync"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
)

// Feed fans committed sheet changes out to subscribers filtered by sheet id.
// Delivery is synchronous and in publish order per subscriber; callbacks must
// not block.
type Feed struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string]map[uint64]ChangeFunc
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[uint64]ChangeFunc)}
}

// Subscribe registers fn for changes to the sheet with id.
func (f *Feed) Subscribe(id string, fn ChangeFunc) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	key := f.nextID
	room, ok := f.subscribers[id]
	if !ok {
		room = make(map[uint64]ChangeFunc)
		f.subscribers[id] = room
	}
	room[key] = fn
	return &feedSubscription{feed: f, sheetID: id, key: key}
}

// Publish delivers s to every subscriber of s.ID.
func (f *Feed) Publish(s sheet.Sheet) {
	f.mu.RLock()
	room := f.subscribers[s.ID]
	callbacks := make([]ChangeFunc, 0, len(room))
	for _, fn := range room {
		callbacks = append(callbacks, fn)
	}
	f.mu.RUnlock()

	for _, fn := range callbacks {
		fn(s.Clone())
	}
}

// Subscribers returns how many subscribers watch the sheet with id.
func (f *Feed) Subscribers(id string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[id])
}

func (f *Feed) unsubscribe(id string, key uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.subscribers[id]
	if !ok {
		return
	}
	delete(room, key)
	if len(room) == 0 {
		delete(f.subscribers, id)
	}
}

type feedSubscription struct {
	feed    *Feed
	sheetID string
	key     uint64
	once    sync.Once
}

func (s *feedSubscription) Close() error {
	s.once.Do(func() {
		s.feed.unsubscribe(s.sheetID, s.key)
	})
	return nil
}
