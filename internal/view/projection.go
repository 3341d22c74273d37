package view

import (
	"github.com/hearthchat/backend/internal/feed"
	"github.com/hearthchat/backend/internal/model/chat"
	"github.com/hearthchat/backend/internal/model/identity"
)

// This package is the render contract only: it names every input a frontend
// needs and flattens engine state into plain structures. How those
// structures are drawn is out of scope.

// ReplyPreview summarizes the message a reply points at. Unavailable marks
// a dangling target (deleted, or not yet arrived); renderers show a
// placeholder instead of failing.
type ReplyPreview struct {
	TargetID    string `json:"targetId"`
	AuthorName  string `json:"authorName,omitempty"`
	Body        string `json:"body,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// MessageView is one renderable feed entry. CanDelete gates the delete
// action in the menu; the store re-enforces authorship on the command
// itself, so the flag is presentation only.
type MessageView struct {
	Message   chat.Message  `json:"message"`
	Own       bool          `json:"own"`
	MenuOpen  bool          `json:"menuOpen"`
	CanDelete bool          `json:"canDelete"`
	Pending   bool          `json:"pending"`
	Reply     *ReplyPreview `json:"reply,omitempty"`
}

// ComposerView is the state of the message box.
type ComposerView struct {
	Draft   string        `json:"draft"`
	ReplyTo *ReplyPreview `json:"replyTo,omitempty"`
}

// FeedView is the full renderable state of the room.
type FeedView struct {
	SignedIn  bool               `json:"signedIn"`
	Principal identity.Principal `json:"principal,omitempty"`
	Messages  []MessageView      `json:"messages"`
	Composer  ComposerView       `json:"composer"`
}

// Project flattens the reconciled feed, session, and composer state into a
// FeedView. Reply targets are resolved against the sequence passed in, so
// previews track snapshot arrival and deletion automatically.
func Project(messages []chat.Message, principal *identity.Principal, draft, replyTarget, openMenu string) FeedView {
	v := FeedView{
		SignedIn: principal != nil,
		Messages: make([]MessageView, 0, len(messages)),
		Composer: ComposerView{Draft: draft},
	}
	if principal != nil {
		v.Principal = *principal
	}

	for _, msg := range messages {
		mv := MessageView{
			Message:  msg,
			MenuOpen: msg.ID == openMenu,
			Pending:  msg.Pending(),
		}
		if principal != nil && msg.AuthorID == principal.ID {
			mv.Own = true
			mv.CanDelete = true
		}
		if msg.ReplyTarget != "" {
			mv.Reply = preview(messages, msg.ReplyTarget)
		}
		v.Messages = append(v.Messages, mv)
	}

	if replyTarget != "" {
		v.Composer.ReplyTo = preview(messages, replyTarget)
	}
	return v
}

func preview(messages []chat.Message, targetID string) *ReplyPreview {
	target, ok := feed.Resolve(messages, targetID)
	if !ok {
		return &ReplyPreview{TargetID: targetID, Unavailable: true}
	}
	return &ReplyPreview{
		TargetID:   targetID,
		AuthorName: target.AuthorName,
		Body:       target.Body,
	}
}
