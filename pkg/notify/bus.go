// Package notify delivers account error records to interested subscribers.
//
// Published records are sticky: the bus keeps the latest record per account
// and replays it to every subscriber that registers later, so an error raised
// before the UI attached is still shown.
package notify

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/xconn/xconn-go/pkg/account"
)

// DefaultBuffer is the subscription channel capacity used when none is given.
const DefaultBuffer = 16

// Bus is a sticky notification channel for account errors.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	sticky map[account.ID]account.ErrorRecord
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// NewBus creates a Bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		sticky: make(map[account.ID]account.ErrorRecord),
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// PublishSticky stores rec as the sticky record of its account and delivers
// it to all current subscribers. Delivery never blocks: a subscriber whose
// buffer is full misses the live delivery but can still read Sticky.
func (b *Bus) PublishSticky(rec account.ErrorRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sticky[rec.Account] = rec
	for sub := range b.subs {
		select {
		case sub.ch <- rec:
		default:
			b.logger.Warn("notification dropped, subscriber full", "account", rec.Account)
		}
	}
}

// Sticky returns the sticky record of an account.
func (b *Bus) Sticky(id account.ID) (account.ErrorRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sticky[id]
	return rec, ok
}

// Stickies returns all sticky records ordered by time.
func (b *Bus) Stickies() []account.ErrorRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stickiesLocked()
}

func (b *Bus) stickiesLocked() []account.ErrorRecord {
	recs := make([]account.ErrorRecord, 0, len(b.sticky))
	for _, rec := range b.sticky {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Time.Before(recs[j].Time) })
	return recs
}

// RemoveSticky drops the sticky record of an account, typically once the
// user acknowledged it.
func (b *Bus) RemoveSticky(id account.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sticky[id]
	delete(b.sticky, id)
	return ok
}

// Subscribe registers a subscriber. Current sticky records are queued first,
// oldest first, up to the buffer size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{bus: b, ch: make(chan account.ErrorRecord, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.stickiesLocked() {
		select {
		case sub.ch <- rec:
		default:
		}
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Subscription receives published records on C.
type Subscription struct {
	bus  *Bus
	ch   chan account.ErrorRecord
	once sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan account.ErrorRecord {
	return s.ch
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
