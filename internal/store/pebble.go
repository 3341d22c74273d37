package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

// PebbleStore is the durable driver. Records live under keys of the form
//
//	rec:<collection>:<seq padded to 20>:<id>
//
// so a plain prefix iteration yields creation order, which is also timestamp
// order because the server clock is forced monotonic.
type PebbleStore struct {
	db *pebble.DB

	mu     sync.Mutex
	seq    uint64
	feeds  map[string]*broadcaster
	lastTS time.Time
	closed bool
}

// OpenPebble opens (or creates) the database at path and restores the
// sequence counter from the highest existing key.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	log.Printf("[store] pebble opened at %s", path)

	s := &PebbleStore{
		db:    db,
		feeds: make(map[string]*broadcaster),
	}
	if err := s.restoreSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PebbleStore) restoreSeq() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.SeekGE([]byte("rec:")); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte("rec:")) {
			break
		}
		// rec:<collection>:<seq>:<id>
		parts := bytes.SplitN(iter.Key(), []byte(":"), 4)
		if len(parts) != 4 {
			continue
		}
		var seq uint64
		if _, err := fmt.Sscanf(string(parts[2]), "%d", &seq); err != nil {
			continue
		}
		if seq > s.seq {
			s.seq = seq
		}
	}
	return iter.Error()
}

func recordKey(collection string, seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("rec:%s:%020d:%s", collection, seq, id))
}

func collectionPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("rec:%s:", collection))
}

// SubscribeOrdered opens a live feed with the current snapshot delivered
// up front, matching the memory driver's semantics.
func (s *PebbleStore) SubscribeOrdered(collection, orderKey string) (Subscription, error) {
	if orderKey != OrderByTimestamp {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrder, orderKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	snapshot, err := s.scanLocked(collection)
	if err != nil {
		return nil, err
	}
	sub := s.feed(collection).subscribe()
	sub.deliver(snapshot)
	return sub, nil
}

// List returns the current ordered snapshot.
func (s *PebbleStore) List(_ context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.scanLocked(collection)
}

// Create persists the record with pebble.Sync so an acknowledged write
// survives a crash, then fans out the fresh snapshot.
func (s *PebbleStore) Create(_ context.Context, collection string, fields Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	ts := s.serverNowLocked()
	fields.Timestamp = &ts

	s.seq++
	rec := Record{ID: uuid.NewString(), Fields: fields}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := s.db.Set(recordKey(collection, s.seq, rec.ID), data, pebble.Sync); err != nil {
		return "", fmt.Errorf("persist record: %w", err)
	}
	recordsCreated.Inc()

	// The write is already durable; failing to scan for fanout only costs
	// subscribers this one snapshot, it must not fail the create.
	snapshot, err := s.scanLocked(collection)
	if err != nil {
		log.Printf("[store] snapshot after create: %v", err)
		return rec.ID, nil
	}
	s.feed(collection).publish(snapshot)
	return rec.ID, nil
}

// DeleteByID scans for the record, enforces authorship, removes it, and
// fans out the shrunk snapshot.
func (s *PebbleStore) DeleteByID(_ context.Context, collection, id, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	key, rec, err := s.findLocked(collection, id)
	if err != nil {
		return err
	}
	if rec.AuthorID != actorID {
		deletesRejected.Inc()
		return ErrNotAuthor
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	recordsDeleted.Inc()

	snapshot, err := s.scanLocked(collection)
	if err != nil {
		log.Printf("[store] snapshot after delete: %v", err)
		return nil
	}
	s.feed(collection).publish(snapshot)
	return nil
}

// Close terminates subscriptions and closes the database.
func (s *PebbleStore) Close() error {
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
	return s.db.Close()
}

func (s *PebbleStore) feed(collection string) *broadcaster {
	b, ok := s.feeds[collection]
	if !ok {
		b = newBroadcaster()
		s.feeds[collection] = b
	}
	return b
}

func (s *PebbleStore) scanLocked(collection string) ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	prefix := collectionPrefix(collection)
	var out []Record
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("invalid record at %s: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

func (s *PebbleStore) findLocked(collection, id string) ([]byte, Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, Record{}, err
	}
	defer iter.Close()

	prefix := collectionPrefix(collection)
	suffix := []byte(":" + id)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), suffix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, Record{}, fmt.Errorf("invalid record at %s: %w", iter.Key(), err)
		}
		key := append([]byte(nil), iter.Key()...)
		return key, rec, nil
	}
	if err := iter.Error(); err != nil {
		return nil, Record{}, err
	}
	return nil, Record{}, ErrNotFound
}

// serverNowLocked mirrors the memory driver: strictly increasing wall time.
func (s *PebbleStore) serverNowLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	return now
}
