package feed

import (
	"sort"
	"sync"

	"github.com/hearthchat/backend/internal/model/chat"
	"github.com/hearthchat/backend/internal/store"
)

// Feed owns the reconciled message sequence for the room. It holds exactly
// one live store subscription; every snapshot replaces the sequence in full,
// so a remotely deleted message can never linger locally.
type Feed struct {
	sub store.Subscription

	mu       sync.RWMutex
	messages []chat.Message
	err      error
	closed   bool

	onChange func([]chat.Message)
	done     chan struct{}
}

// Open subscribes to the message collection and starts applying snapshots.
// onChange, if non-nil, observes every reconciled sequence; it runs on the
// feed's delivery goroutine, synchronously with the update.
func Open(st store.Store, onChange func([]chat.Message)) (*Feed, error) {
	sub, err := st.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	if err != nil {
		return nil, err
	}

	f := &Feed{
		sub:      sub,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (f *Feed) run() {
	for snapshot := range f.sub.Snapshots() {
		messages := Reconcile(snapshot)

		f.mu.Lock()
		if f.closed {
			// A delivery that lands after Close is dropped, not applied.
			f.mu.Unlock()
			return
		}
		f.messages = messages
		cb := f.onChange
		f.mu.Unlock()

		if cb != nil {
			cb(messages)
		}
	}

	// Terminal: keep the last-known-good sequence, record the cause.
	f.mu.Lock()
	if !f.closed {
		f.err = f.sub.Err()
	}
	f.mu.Unlock()
	close(f.done)
}

// Messages returns the current reconciled sequence.
func (f *Feed) Messages() []chat.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]chat.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Err reports the terminal subscription failure, if any. The reconciled
// sequence is left at its last-known-good value rather than cleared.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Close tears the subscription down and waits for the delivery goroutine to
// exit, so no onChange call can land after Close returns. Closing twice is a
// no-op. Must not be called from inside the onChange callback.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.sub.Close()
	<-f.done
}

// Reconcile maps a store snapshot into the feed sequence: records become
// messages, duplicate ids collapse (the later record wins), and the result
// is stably sorted by timestamp ascending. Records the server clock has not
// stamped yet sort after all stamped ones, preserving store order among
// themselves.
func Reconcile(snapshot []store.Record) []chat.Message {
	messages := make([]chat.Message, 0, len(snapshot))
	index := make(map[string]int, len(snapshot))

	for _, rec := range snapshot {
		msg := chat.Message{
			ID:           rec.ID,
			AuthorID:     rec.AuthorID,
			AuthorName:   rec.AuthorName,
			AuthorAvatar: rec.AuthorAvatar,
			Body:         rec.Body,
			Timestamp:    rec.Timestamp,
			ReplyTarget:  rec.ReplyTarget,
		}
		if at, seen := index[rec.ID]; seen {
			messages[at] = msg
			continue
		}
		index[rec.ID] = len(messages)
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i].Timestamp, messages[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return messages
}
