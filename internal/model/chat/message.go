package chat

import "time"

// Message is one durable entry in the room feed. The id is assigned by the
// store on creation and never reused. Timestamp stays nil until the store's
// server clock has stamped the record, which can happen a beat after a local
// write; consumers must tolerate the gap.
type Message struct {
	ID           string     `json:"id"`
	AuthorID     string     `json:"authorId"`
	AuthorName   string     `json:"authorDisplayName"`
	AuthorAvatar string     `json:"authorAvatarRef,omitempty"`
	Body         string     `json:"body"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	ReplyTarget  string     `json:"replyTarget,omitempty"`
}

// Pending reports whether the server clock has not yet stamped the message.
func (m Message) Pending() bool {
	return m.Timestamp == nil
}
