package store

import (
	"context"
	"errors"
	"time"
)

// MessagesCollection is the single collection this deployment serves.
const MessagesCollection = "messages"

// OrderByTimestamp is the only ordering key the drivers support: server
// creation time ascending, ties broken by insertion sequence.
const OrderByTimestamp = "timestamp"

var (
	ErrNotFound         = errors.New("record not found")
	ErrNotAuthor        = errors.New("actor is not the record author")
	ErrStoreClosed      = errors.New("store is closed")
	ErrUnsupportedOrder = errors.New("unsupported order key")
)

// Fields is the payload of a message record, minus its store-assigned id.
// Timestamp is set by the store's server clock on create; a nil value marks
// an in-flight record that has not been stamped yet.
type Fields struct {
	AuthorID     string     `json:"authorId"`
	AuthorName   string     `json:"authorDisplayName"`
	AuthorAvatar string     `json:"authorAvatarRef,omitempty"`
	Body         string     `json:"body"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	ReplyTarget  string     `json:"replyTarget,omitempty"`
}

// Record is a stored document together with its identity.
type Record struct {
	ID string `json:"id"`
	Fields
}

// Store is the document store contract the chat engine runs against. The
// store assigns ids and timestamps; clients never stamp either. Drivers:
// memory (tests, single process), pebble (durable), remote (HTTP/websocket).
type Store interface {
	// SubscribeOrdered opens a live feed over the collection, ordered by
	// orderKey ascending. The subscription delivers a full snapshot of the
	// collection immediately and again after every mutation.
	SubscribeOrdered(collection, orderKey string) (Subscription, error)

	// List returns the current snapshot without opening a subscription.
	List(ctx context.Context, collection string) ([]Record, error)

	// Create persists a new record, assigning its id and server timestamp.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// DeleteByID removes a record. The actor must be the record's author;
	// authorship is enforced here, not in the UI layer.
	DeleteByID(ctx context.Context, collection, id, actorID string) error

	Close() error
}
