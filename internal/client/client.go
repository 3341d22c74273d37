package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/composer"
	"github.com/hearthchat/backend/internal/feed"
	"github.com/hearthchat/backend/internal/model/chat"
	"github.com/hearthchat/backend/internal/model/identity"
	"github.com/hearthchat/backend/internal/store"
	"github.com/hearthchat/backend/internal/view"
)

var ErrClientClosed = errors.New("client is closed")

// CommandState tracks an outgoing write from issue to store acknowledgement.
type CommandState string

const (
	CommandPending   CommandState = "pending"
	CommandConfirmed CommandState = "confirmed"
	CommandFailed    CommandState = "failed"
)

// CommandKind names the two durable operations.
type CommandKind string

const (
	CommandSend   CommandKind = "send"
	CommandDelete CommandKind = "delete"
)

// Command is the record of one outgoing write. The composer is reset only
// when a send reaches CommandConfirmed, so a rejected write never costs the
// user their draft.
type Command struct {
	ID       string
	Kind     CommandKind
	State    CommandState
	RecordID string // store id of the created or targeted record
	Err      error
}

// Client is the chat engine: it owns the identity session, the live feed,
// and the composer, and serializes every state transition through a single
// mailbox goroutine. External notifications (snapshots, user actions) never
// interleave mid-update.
type Client struct {
	session  *auth.Session
	store    store.Store
	feed     *feed.Feed
	composer *composer.Composer

	// Everything below is touched only on the mailbox goroutine.
	messages []chat.Message
	commands map[string]Command

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New starts the engine against st. The feed subscription opens immediately;
// its snapshot deliveries are applied through the mailbox like any other
// event.
func New(session *auth.Session, st store.Store) (*Client, error) {
	c := &Client{
		session:  session,
		store:    st,
		composer: composer.New(),
		commands: make(map[string]Command),
		ops:      make(chan func(), 16),
		done:     make(chan struct{}),
	}
	go c.loop()

	f, err := feed.Open(st, func(messages []chat.Message) {
		c.enqueue(func() {
			c.messages = messages
		})
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.feed = f
	return c, nil
}

func (c *Client) loop() {
	for {
		select {
		case fn := <-c.ops:
			fn()
		case <-c.done:
			return
		}
	}
}

// enqueue hands fn to the mailbox; after Close it is dropped, matching the
// rule that deliveries landing after teardown are not applied.
func (c *Client) enqueue(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.done:
	}
}

// do runs fn on the mailbox goroutine and waits for it.
func (c *Client) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(ran) }:
	case <-c.done:
		return ErrClientClosed
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// Close tears down the feed and stops the mailbox. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.feed != nil {
			c.feed.Close()
		}
	})
}

// Session exposes the identity session for sign-in/sign-out flows.
func (c *Client) Session() *auth.Session {
	return c.session
}

// Messages returns the current reconciled sequence.
func (c *Client) Messages() []chat.Message {
	var out []chat.Message
	c.do(func() {
		out = make([]chat.Message, len(c.messages))
		copy(out, c.messages)
	})
	return out
}

// FeedErr reports a terminal subscription failure; the last-known-good
// sequence stays visible regardless.
func (c *Client) FeedErr() error {
	if c.feed == nil {
		return nil
	}
	return c.feed.Err()
}

// SetDraft overwrites the composer draft.
func (c *Client) SetDraft(text string) {
	c.do(func() { c.composer.SetDraft(text) })
}

// Draft returns the current draft text.
func (c *Client) Draft() string {
	var out string
	c.do(func() { out = c.composer.Draft() })
	return out
}

// ReplyTarget returns the active reply target, if any.
func (c *Client) ReplyTarget() (string, bool) {
	var id string
	var ok bool
	c.do(func() { id, ok = c.composer.ReplyTarget() })
	return id, ok
}

// OpenMenu returns the message whose options menu is open, if any.
func (c *Client) OpenMenu() (string, bool) {
	var id string
	var ok bool
	c.do(func() { id, ok = c.composer.OpenMenu() })
	return id, ok
}

// BeginReply starts a reply to targetID, resolved against the feed at this
// moment. Draft and target change together or not at all.
func (c *Client) BeginReply(targetID string) error {
	var err error
	if derr := c.do(func() {
		err = c.composer.BeginReply(c.messages, targetID)
	}); derr != nil {
		return derr
	}
	return err
}

// ToggleOptionsMenu opens the menu for id, closing any other; a second
// toggle closes it.
func (c *Client) ToggleOptionsMenu(id string) {
	c.do(func() { c.composer.ToggleOptionsMenu(id) })
}

// Command returns the state of a previously issued command.
func (c *Client) Command(id string) (Command, bool) {
	var out Command
	var ok bool
	c.do(func() { out, ok = c.commands[id] })
	return out, ok
}

// Send validates the draft and writes the message to the store, stamped
// with the current principal. The record's timestamp is left to the store's
// server clock; clients never stamp their own. The composer resets only on
// acknowledgement, so a failed write keeps the draft intact.
func (c *Client) Send(ctx context.Context) (Command, error) {
	var (
		cmd    Command
		fields store.Fields
		err    error
	)
	if derr := c.do(func() {
		principal, signedIn := c.session.Current()
		if !signedIn {
			err = auth.ErrSignedOut
			return
		}
		var req composer.SendRequest
		req, err = c.composer.PrepareSend()
		if err != nil {
			return
		}
		fields = store.Fields{
			AuthorID:     principal.ID,
			AuthorName:   principal.DisplayName,
			AuthorAvatar: principal.AvatarRef,
			Body:         req.Body,
			ReplyTarget:  req.ReplyTarget,
		}
		cmd = Command{ID: uuid.NewString(), Kind: CommandSend, State: CommandPending}
		c.commands[cmd.ID] = cmd
	}); derr != nil {
		return Command{}, derr
	}
	if err != nil {
		return Command{}, err
	}

	// Suspension point: the durable write happens off the mailbox so
	// snapshots keep flowing while we wait for the acknowledgement.
	recordID, werr := c.store.Create(ctx, store.MessagesCollection, fields)

	if derr := c.do(func() {
		if werr != nil {
			cmd.State = CommandFailed
			cmd.Err = werr
			c.commands[cmd.ID] = cmd
			return
		}
		cmd.State = CommandConfirmed
		cmd.RecordID = recordID
		c.commands[cmd.ID] = cmd
		c.composer.ResetAfterSend()
	}); derr != nil {
		return cmd, derr
	}
	return cmd, werr
}

// Delete removes one of the principal's own messages. There is no
// optimistic local removal: the feed shrinks when the store's next snapshot
// arrives, and a rejected delete leaves it untouched.
func (c *Client) Delete(ctx context.Context, messageID string) (Command, error) {
	var (
		cmd     Command
		actorID string
		err     error
	)
	if derr := c.do(func() {
		principal, signedIn := c.session.Current()
		if !signedIn {
			err = auth.ErrSignedOut
			return
		}
		actorID = principal.ID
		cmd = Command{ID: uuid.NewString(), Kind: CommandDelete, State: CommandPending, RecordID: messageID}
		c.commands[cmd.ID] = cmd
	}); derr != nil {
		return Command{}, derr
	}
	if err != nil {
		return Command{}, err
	}

	werr := c.store.DeleteByID(ctx, store.MessagesCollection, messageID, actorID)

	if derr := c.do(func() {
		if werr != nil {
			cmd.State = CommandFailed
			cmd.Err = werr
		} else {
			cmd.State = CommandConfirmed
		}
		c.commands[cmd.ID] = cmd
	}); derr != nil {
		return cmd, derr
	}
	return cmd, werr
}

// Projection flattens the engine state into the render contract.
func (c *Client) Projection() view.FeedView {
	var out view.FeedView
	c.do(func() {
		var principal *identity.Principal
		if p, ok := c.session.Current(); ok {
			principal = &p
		}
		replyTarget, _ := c.composer.ReplyTarget()
		openMenu, _ := c.composer.OpenMenu()
		out = view.Project(c.messages, principal, c.composer.Draft(), replyTarget, openMenu)
	})
	return out
}
