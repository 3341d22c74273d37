package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthchat/backend/internal/feed"
	"github.com/hearthchat/backend/internal/model/chat"
	"github.com/hearthchat/backend/internal/store"
)

func ts(sec int) *time.Time {
	t := time.Date(2024, 3, 1, 12, 0, sec, 0, time.UTC)
	return &t
}

func TestReconcileSortsByTimestamp(t *testing.T) {
	snapshot := []store.Record{
		{ID: "c", Fields: store.Fields{Body: "third", Timestamp: ts(3)}},
		{ID: "a", Fields: store.Fields{Body: "first", Timestamp: ts(1)}},
		{ID: "b", Fields: store.Fields{Body: "second", Timestamp: ts(2)}},
	}

	messages := feed.Reconcile(snapshot)
	require.Len(t, messages, 3)
	assert.Equal(t, "a", messages[0].ID)
	assert.Equal(t, "b", messages[1].ID)
	assert.Equal(t, "c", messages[2].ID)
}

func TestReconcileCollapsesDuplicateIDs(t *testing.T) {
	snapshot := []store.Record{
		{ID: "a", Fields: store.Fields{Body: "stale", Timestamp: ts(1)}},
		{ID: "b", Fields: store.Fields{Body: "other", Timestamp: ts(2)}},
		{ID: "a", Fields: store.Fields{Body: "fresh", Timestamp: ts(1)}},
	}

	messages := feed.Reconcile(snapshot)
	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].ID)
	assert.Equal(t, "fresh", messages[0].Body)
}

func TestReconcileUnstampedRecordsSortLast(t *testing.T) {
	snapshot := []store.Record{
		{ID: "inflight", Fields: store.Fields{Body: "sending"}},
		{ID: "a", Fields: store.Fields{Body: "first", Timestamp: ts(1)}},
	}

	messages := feed.Reconcile(snapshot)
	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].ID)
	assert.Equal(t, "inflight", messages[1].ID)
	assert.True(t, messages[1].Pending())
}

func TestResolve(t *testing.T) {
	messages := []chat.Message{
		{ID: "a", AuthorName: "Alice"},
		{ID: "b", ReplyTarget: "a"},
	}

	got, ok := feed.Resolve(messages, "a")
	require.True(t, ok)
	assert.Equal(t, "Alice", got.AuthorName)

	_, ok = feed.Resolve(messages, "z")
	assert.False(t, ok)

	_, ok = feed.Resolve(messages, "")
	assert.False(t, ok)
}

func createMessage(t *testing.T, st *store.MemoryStore, author, body string) string {
	t.Helper()
	id, err := st.Create(context.Background(), store.MessagesCollection, store.Fields{
		AuthorID:   author,
		AuthorName: author,
		Body:       body,
	})
	require.NoError(t, err)
	return id
}

func TestFeedTotalReplace(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	f, err := feed.Open(st, nil)
	require.NoError(t, err)
	defer f.Close()

	first := createMessage(t, st, "u1", "hello")
	createMessage(t, st, "u1", "world")

	require.Eventually(t, func() bool {
		return len(f.Messages()) == 2
	}, time.Second, 5*time.Millisecond)

	// A snapshot that omits a previously seen id must evict it.
	require.NoError(t, st.DeleteByID(context.Background(), store.MessagesCollection, first, "u1"))

	require.Eventually(t, func() bool {
		messages := f.Messages()
		return len(messages) == 1 && messages[0].Body == "world"
	}, time.Second, 5*time.Millisecond)
}

func TestFeedPublishesToObserver(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	var mu sync.Mutex
	var last []chat.Message
	f, err := feed.Open(st, func(messages []chat.Message) {
		mu.Lock()
		last = messages
		mu.Unlock()
	})
	require.NoError(t, err)
	defer f.Close()

	createMessage(t, st, "u1", "hello")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1 && last[0].Timestamp != nil
	}, time.Second, 5*time.Millisecond)
}

func TestFeedCloseIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	f, err := feed.Open(st, nil)
	require.NoError(t, err)

	f.Close()
	f.Close()
}

// stubSub scripts subscription endings: a deliberate Close or a terminal
// transport failure.
type stubSub struct {
	snaps chan []store.Record
	err   error
	once  sync.Once
}

func (s *stubSub) Snapshots() <-chan []store.Record { return s.snaps }
func (s *stubSub) Err() error                       { return s.err }
func (s *stubSub) Close()                           { s.terminate(nil) }

func (s *stubSub) terminate(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.snaps)
	})
}

type stubStore struct {
	store.Store
	sub *stubSub
}

func (s *stubStore) SubscribeOrdered(string, string) (store.Subscription, error) {
	return s.sub, nil
}

func TestFeedKeepsLastKnownGoodOnTransportFailure(t *testing.T) {
	sub := &stubSub{snaps: make(chan []store.Record, 1)}
	st := &stubStore{sub: sub}

	f, err := feed.Open(st, nil)
	require.NoError(t, err)
	defer f.Close()

	sub.snaps <- []store.Record{{ID: "a", Fields: store.Fields{Body: "hello", Timestamp: ts(1)}}}
	require.Eventually(t, func() bool {
		return len(f.Messages()) == 1
	}, time.Second, 5*time.Millisecond)

	// Terminal failure: the feed reports it but does not clear the view.
	sub.terminate(context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		return f.Err() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.Messages(), 1)
}

func TestFeedCloseWaitsForDeliveryLoop(t *testing.T) {
	sub := &stubSub{snaps: make(chan []store.Record, 1)}
	st := &stubStore{sub: sub}

	delivered := make(chan struct{}, 1)
	f, err := feed.Open(st, func([]chat.Message) {
		delivered <- struct{}{}
	})
	require.NoError(t, err)

	sub.snaps <- []store.Record{{ID: "a", Fields: store.Fields{Body: "hello", Timestamp: ts(1)}}}
	<-delivered

	f.Close()

	// Close returned, so the delivery goroutine has exited and no observer
	// call can land afterwards.
	select {
	case <-delivered:
		t.Fatal("observer fired after Close returned")
	default:
	}
	assert.NoError(t, f.Err())
}
