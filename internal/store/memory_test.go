package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthchat/backend/internal/store"
)

func waitSnapshot(t *testing.T, sub store.Subscription) []store.Record {
	t.Helper()
	select {
	case snapshot, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription ended unexpectedly: %v", sub.Err())
		return snapshot
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestMemoryCreateAssignsIdentityAndTimestamp(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	id, err := st.Create(context.Background(), store.MessagesCollection, store.Fields{
		AuthorID:   "u1",
		AuthorName: "Alice",
		Body:       "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records, err := st.List(context.Background(), store.MessagesCollection)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	require.NotNil(t, records[0].Timestamp)
}

func TestMemoryTimestampsStrictlyIncrease(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	for i := 0; i < 10; i++ {
		_, err := st.Create(context.Background(), store.MessagesCollection, store.Fields{
			AuthorID: "u1", Body: "m",
		})
		require.NoError(t, err)
	}

	records, err := st.List(context.Background(), store.MessagesCollection)
	require.NoError(t, err)
	require.Len(t, records, 10)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i].Timestamp.After(*records[i-1].Timestamp),
			"timestamps must strictly increase with creation order")
	}
}

func TestMemorySubscriptionDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := st.Create(context.Background(), store.MessagesCollection, store.Fields{
		AuthorID: "u1", Body: "before",
	})
	require.NoError(t, err)

	sub, err := st.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	require.NoError(t, err)
	defer sub.Close()

	initial := waitSnapshot(t, sub)
	require.Len(t, initial, 1)
	assert.Equal(t, "before", initial[0].Body)

	_, err = st.Create(context.Background(), store.MessagesCollection, store.Fields{
		AuthorID: "u1", Body: "after",
	})
	require.NoError(t, err)

	next := waitSnapshot(t, sub)
	require.Len(t, next, 2)
	assert.Equal(t, "after", next[1].Body)
}

func TestMemoryDeleteEnforcesAuthorship(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	id, err := st.Create(context.Background(), store.MessagesCollection, store.Fields{
		AuthorID: "u1", Body: "mine",
	})
	require.NoError(t, err)

	err = st.DeleteByID(context.Background(), store.MessagesCollection, id, "u2")
	require.ErrorIs(t, err, store.ErrNotAuthor)

	// The rejected delete changed nothing.
	records, err := st.List(context.Background(), store.MessagesCollection)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, st.DeleteByID(context.Background(), store.MessagesCollection, id, "u1"))
	records, err = st.List(context.Background(), store.MessagesCollection)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryDeleteUnknownID(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	err := st.DeleteByID(context.Background(), store.MessagesCollection, "missing", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemorySubscriptionCloseIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	sub, err := st.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	_, open := <-sub.Snapshots()
	assert.False(t, open)
	assert.NoError(t, sub.Err())
}

func TestMemorySubscriptionCloseDropsBufferedSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	sub, err := st.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	require.NoError(t, err)

	// The initial snapshot is still buffered; Close must discard it rather
	// than let it arrive after the subscription ended.
	sub.Close()

	_, open := <-sub.Snapshots()
	assert.False(t, open)
}

func TestMemoryRejectsUnknownOrderKey(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := st.SubscribeOrdered(store.MessagesCollection, "likes")
	assert.ErrorIs(t, err, store.ErrUnsupportedOrder)
}

func TestMemoryCloseTerminatesSubscriptions(t *testing.T) {
	st := store.NewMemoryStore()

	sub, err := st.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	require.NoError(t, err)
	waitSnapshot(t, sub)

	require.NoError(t, st.Close())

	select {
	case _, open := <-sub.Snapshots():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not terminated by store close")
	}

	_, err = st.Create(context.Background(), store.MessagesCollection, store.Fields{Body: "x"})
	assert.ErrorIs(t, err, store.ErrStoreClosed)
}
