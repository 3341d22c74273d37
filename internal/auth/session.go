package auth

import (
	"context"
	"sync"

	"github.com/hearthchat/backend/internal/model/identity"
)

// Session tracks the current principal. The provider's change notifications
// are the only write path; SignIn and SignOut merely drive the provider and
// let the notification loop update the mirror.
type Session struct {
	provider Provider

	mu      sync.RWMutex
	current *identity.Principal

	cancel func()
}

// NewSession subscribes to the provider for the lifetime of the session.
func NewSession(p Provider) *Session {
	s := &Session{provider: p}
	s.cancel = p.OnSessionChange(func(principal *identity.Principal) {
		s.mu.Lock()
		s.current = principal
		s.mu.Unlock()
	})
	return s
}

// SignIn runs the interactive flow. On cancellation or provider error the
// session stays as it was; the error is surfaced, never retried here.
func (s *Session) SignIn(ctx context.Context) (identity.Principal, error) {
	return s.provider.SignInInteractive(ctx)
}

// SignOut clears the session unconditionally. Idempotent.
func (s *Session) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// Current returns the latest known principal without blocking.
func (s *Session) Current() (identity.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return identity.Principal{}, false
	}
	return *s.current, true
}

// Close cancels the provider registration.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
