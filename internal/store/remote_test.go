package store_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/handler"
	"github.com/hearthchat/backend/internal/model/identity"
	"github.com/hearthchat/backend/internal/store"
)

func newRemotePair(t *testing.T) (*store.RemoteStore, *store.MemoryStore) {
	t.Helper()
	backend := store.NewMemoryStore()
	tokens := auth.TokenTable{
		"tok-alice": identity.Principal{ID: "u1", DisplayName: "Alice"},
	}
	server := httptest.NewServer(handler.NewRouter(backend, tokens, "*"))
	t.Cleanup(func() {
		server.Close()
		backend.Close()
	})
	return store.NewRemoteStore(server.URL, "tok-alice"), backend
}

func TestRemoteCreateAndList(t *testing.T) {
	remote, _ := newRemotePair(t)
	ctx := context.Background()

	id, err := remote.Create(ctx, store.MessagesCollection, store.Fields{Body: "over the wire"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records, err := remote.List(ctx, store.MessagesCollection)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, "over the wire", records[0].Body)

	// The server stamps the principal from the bearer token.
	assert.Equal(t, "u1", records[0].AuthorID)
	assert.Equal(t, "Alice", records[0].AuthorName)
	require.NotNil(t, records[0].Timestamp)
}

func TestRemoteSubscriptionStreamsSnapshots(t *testing.T) {
	remote, _ := newRemotePair(t)
	ctx := context.Background()

	sub, err := remote.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	require.NoError(t, err)
	defer sub.Close()

	initial := waitSnapshot(t, sub)
	assert.Empty(t, initial)

	_, err = remote.Create(ctx, store.MessagesCollection, store.Fields{Body: "hello"})
	require.NoError(t, err)

	next := waitSnapshot(t, sub)
	require.Len(t, next, 1)
	assert.Equal(t, "hello", next[0].Body)
}

func TestRemoteDeleteMapsStatusCodes(t *testing.T) {
	remote, backend := newRemotePair(t)
	ctx := context.Background()

	err := remote.DeleteByID(ctx, store.MessagesCollection, "missing", "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	theirs, err := backend.Create(ctx, store.MessagesCollection, store.Fields{
		AuthorID: "u2", AuthorName: "Bob", Body: "not alice's",
	})
	require.NoError(t, err)
	err = remote.DeleteByID(ctx, store.MessagesCollection, theirs, "u1")
	require.ErrorIs(t, err, store.ErrNotAuthor)

	mine, err := remote.Create(ctx, store.MessagesCollection, store.Fields{Body: "mine"})
	require.NoError(t, err)
	require.NoError(t, remote.DeleteByID(ctx, store.MessagesCollection, mine, "u1"))

	records, err := remote.List(ctx, store.MessagesCollection)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, theirs, records[0].ID)
}

func TestRemoteRejectsUnknownCollection(t *testing.T) {
	remote, _ := newRemotePair(t)

	_, err := remote.List(context.Background(), "presence")
	require.Error(t, err)
	_, err = remote.SubscribeOrdered("presence", store.OrderByTimestamp)
	require.Error(t, err)
}
