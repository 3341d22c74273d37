package store

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one live feed over a collection. Snapshots are full
// materializations, never diffs; a slow consumer only ever misses
// intermediate states, the latest snapshot is always retained for it.
// The channel closes when the subscription ends; Err distinguishes a
// deliberate Close (nil) from a terminal transport failure.
type Subscription interface {
	Snapshots() <-chan []Record
	Err() error
	// Close ends the subscription. Closing twice is a no-op.
	Close()
}

type liveSubscription struct {
	id     string
	detach func(id string)

	mu     sync.Mutex
	snaps  chan []Record
	err    error
	closed bool
}

func newSubscription(detach func(id string)) *liveSubscription {
	return &liveSubscription{
		id:     uuid.NewString(),
		snaps:  make(chan []Record, 1),
		detach: detach,
	}
}

func (s *liveSubscription) Snapshots() <-chan []Record {
	return s.snaps
}

func (s *liveSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *liveSubscription) Close() {
	s.terminate(nil)
}

func (s *liveSubscription) terminate(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	// Drop any undelivered snapshot so the consumer sees the close, not a
	// stale delivery.
	select {
	case <-s.snaps:
	default:
	}
	close(s.snaps)
	s.mu.Unlock()

	if s.detach != nil {
		s.detach(s.id)
	}
}

// deliver hands a snapshot to the consumer, replacing any undelivered one.
// The channel has capacity one, so the send below can never block while the
// lock is held.
func (s *liveSubscription) deliver(snapshot []Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.snaps <- snapshot:
	default:
		// Drop the stale pending snapshot; only the newest matters.
		select {
		case <-s.snaps:
		default:
		}
		s.snaps <- snapshot
	}
	return true
}

// broadcaster fans full snapshots out to every open subscription of a
// collection. Each driver owns one broadcaster per collection.
type broadcaster struct {
	mu   sync.Mutex
	subs map[string]*liveSubscription
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[string]*liveSubscription)}
}

func (b *broadcaster) subscribe() *liveSubscription {
	sub := newSubscription(b.remove)
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

func (b *broadcaster) remove(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (b *broadcaster) publish(snapshot []Record) {
	b.mu.Lock()
	subs := make([]*liveSubscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	delivered := 0
	for _, sub := range subs {
		if sub.deliver(snapshot) {
			delivered++
		}
	}
	snapshotsFanned.Add(float64(delivered))
}

// fail terminates every open subscription with err.
func (b *broadcaster) fail(err error) {
	b.mu.Lock()
	subs := make([]*liveSubscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(err)
	}
}
