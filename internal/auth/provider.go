package auth

import (
	"context"
	"errors"

	"github.com/hearthchat/backend/internal/model/identity"
)

var (
	// ErrSignInCancelled is returned when the user abandons the
	// interactive flow; the session is left unchanged.
	ErrSignInCancelled = errors.New("sign-in cancelled")
	ErrSignedOut       = errors.New("no principal signed in")
)

// Provider is the external identity collaborator. Implementations own the
// interactive flow and the canonical session state; the Session component
// only mirrors what the provider reports.
type Provider interface {
	// SignInInteractive runs the provider's flow to completion. On
	// cancellation it returns ErrSignInCancelled; on any error the
	// provider's session state is unchanged.
	SignInInteractive(ctx context.Context) (identity.Principal, error)

	// SignOut clears the provider session. Idempotent.
	SignOut(ctx context.Context) error

	// OnSessionChange registers cb and invokes it immediately with the
	// current state, then again on every change. A nil principal means
	// signed out. The returned func cancels the registration.
	OnSessionChange(cb func(*identity.Principal)) (cancel func())
}
