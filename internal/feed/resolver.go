package feed

import "github.com/hearthchat/backend/internal/model/chat"

// Resolve looks a reply target up in the reconciled sequence. A false
// result is a normal state, not an error: the target may have been deleted
// or may not have arrived in a snapshot yet, and it can become resolvable
// again as snapshots land. Callers render the absence, they do not fail.
func Resolve(messages []chat.Message, targetID string) (chat.Message, bool) {
	if targetID == "" {
		return chat.Message{}, false
	}
	for _, msg := range messages {
		if msg.ID == targetID {
			return msg, true
		}
	}
	return chat.Message{}, false
}
