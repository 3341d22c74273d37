package composer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hearthchat/backend/internal/feed"
	"github.com/hearthchat/backend/internal/model/chat"
)

var (
	// ErrEmptyDraft means the draft was empty after trimming; the caller
	// simply refuses to send, nothing else changes.
	ErrEmptyDraft = errors.New("draft is empty")

	// ErrReplyTargetUnavailable means the reply target is not in the
	// current feed; starting a reply requires the target to be present.
	ErrReplyTargetUnavailable = errors.New("reply target unavailable")
)

// SendRequest is a validated outgoing message.
type SendRequest struct {
	Body        string
	ReplyTarget string // id of the message being replied to, if any
}

// Composer holds the transient input state of the message box: the draft,
// the active reply target, and which message's options menu is open. It is
// not goroutine-safe; the client engine serializes all access.
type Composer struct {
	draft       string
	replyTarget string
	openMenu    string
}

func New() *Composer {
	return &Composer{}
}

// SetDraft overwrites the draft unconditionally. No validation here; that
// happens at PrepareSend.
func (c *Composer) SetDraft(text string) {
	c.draft = text
}

func (c *Composer) Draft() string {
	return c.draft
}

// ReplyTarget returns the active reply target id, if one is set.
func (c *Composer) ReplyTarget() (string, bool) {
	return c.replyTarget, c.replyTarget != ""
}

// OpenMenu returns the id of the message whose options menu is open.
func (c *Composer) OpenMenu() (string, bool) {
	return c.openMenu, c.openMenu != ""
}

// BeginReply sets the reply target and rewrites the draft to a mention
// prefix for the target's author, as one atomic change: draft and target
// never move independently through this entry point. The target must be
// present in messages.
func (c *Composer) BeginReply(messages []chat.Message, targetID string) error {
	target, ok := feed.Resolve(messages, targetID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrReplyTargetUnavailable, targetID)
	}
	c.replyTarget = targetID
	c.draft = "@" + target.AuthorName + ": "
	return nil
}

// ToggleOptionsMenu opens the menu for id, closing any other; toggling the
// already-open menu closes it. A single field enforces the at-most-one
// invariant.
func (c *Composer) ToggleOptionsMenu(id string) {
	if c.openMenu == id {
		c.openMenu = ""
		return
	}
	c.openMenu = id
}

// PrepareSend validates the draft and returns the send request. It is a
// pure precondition check: no state changes either way.
func (c *Composer) PrepareSend() (SendRequest, error) {
	body := strings.TrimSpace(c.draft)
	if body == "" {
		return SendRequest{}, ErrEmptyDraft
	}
	return SendRequest{Body: body, ReplyTarget: c.replyTarget}, nil
}

// ResetAfterSend clears the draft and reply target together. The open menu
// is an independent axis and stays as it is.
func (c *Composer) ResetAfterSend() {
	c.draft = ""
	c.replyTarget = ""
}
