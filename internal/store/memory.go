package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps collections in process memory. It is the reference
// driver: every guarantee the engine relies on (id uniqueness, server
// timestamps, creation-order snapshots, full-snapshot fanout) is easiest to
// read here.
type MemoryStore struct {
	mu     sync.Mutex
	colls  map[string][]Record
	feeds  map[string]*broadcaster
	lastTS time.Time
	closed bool
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls: make(map[string][]Record),
		feeds: make(map[string]*broadcaster),
	}
}

// SubscribeOrdered opens a live feed. The initial snapshot is delivered
// before SubscribeOrdered returns, so a fresh subscriber never observes a
// spurious empty collection.
func (s *MemoryStore) SubscribeOrdered(collection, orderKey string) (Subscription, error) {
	if orderKey != OrderByTimestamp {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrder, orderKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	sub := s.feed(collection).subscribe()
	sub.deliver(s.snapshotLocked(collection))
	return sub, nil
}

// List returns the current ordered snapshot.
func (s *MemoryStore) List(_ context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.snapshotLocked(collection), nil
}

// Create assigns an id and a server timestamp, persists the record, and fans
// the new snapshot out before returning.
func (s *MemoryStore) Create(_ context.Context, collection string, fields Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	ts := s.serverNowLocked()
	fields.Timestamp = &ts

	rec := Record{ID: uuid.NewString(), Fields: fields}
	s.colls[collection] = append(s.colls[collection], rec)
	recordsCreated.Inc()

	s.feed(collection).publish(s.snapshotLocked(collection))
	return rec.ID, nil
}

// DeleteByID removes a record after checking that actorID authored it, then
// fans out the shrunk snapshot.
func (s *MemoryStore) DeleteByID(_ context.Context, collection, id, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	records := s.colls[collection]
	for i, rec := range records {
		if rec.ID != id {
			continue
		}
		if rec.AuthorID != actorID {
			deletesRejected.Inc()
			return ErrNotAuthor
		}
		s.colls[collection] = append(records[:i:i], records[i+1:]...)
		recordsDeleted.Inc()
		s.feed(collection).publish(s.snapshotLocked(collection))
		return nil
	}
	return ErrNotFound
}

// Close terminates every open subscription and rejects further calls.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	feeds := make([]*broadcaster, 0, len(s.feeds))
	for _, b := range s.feeds {
		feeds = append(feeds, b)
	}
	s.mu.Unlock()

	for _, b := range feeds {
		b.fail(nil)
	}
	return nil
}

func (s *MemoryStore) feed(collection string) *broadcaster {
	b, ok := s.feeds[collection]
	if !ok {
		b = newBroadcaster()
		s.feeds[collection] = b
	}
	return b
}

func (s *MemoryStore) snapshotLocked(collection string) []Record {
	records := s.colls[collection]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// serverNowLocked is the store's authoritative clock: wall time forced to be
// strictly increasing, so creation order and timestamp order never disagree.
func (s *MemoryStore) serverNowLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	return now
}
