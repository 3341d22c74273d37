package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hearthchat/backend/internal/model/identity"
)

// MemoryProvider is a process-local identity provider for development and
// tests. The interactive flow resolves instantly to the configured user;
// FailNextSignIn scripts a cancellation or provider error.
type MemoryProvider struct {
	mu      sync.Mutex
	user    identity.Principal
	current *identity.Principal
	nextErr error
	subs    map[string]func(*identity.Principal)
}

// NewMemoryProvider returns a signed-out provider whose interactive flow
// yields user.
func NewMemoryProvider(user identity.Principal) *MemoryProvider {
	return &MemoryProvider{
		user: user,
		subs: make(map[string]func(*identity.Principal)),
	}
}

// SignInInteractive resolves to the configured user, or to the scripted
// failure if one is pending.
func (p *MemoryProvider) SignInInteractive(_ context.Context) (identity.Principal, error) {
	p.mu.Lock()
	if err := p.nextErr; err != nil {
		p.nextErr = nil
		p.mu.Unlock()
		return identity.Principal{}, err
	}
	principal := p.user
	p.current = &principal
	subs := p.subscribersLocked()
	p.mu.Unlock()

	notify(subs, &principal)
	return principal, nil
}

// SignOut clears the session and notifies subscribers. Idempotent.
func (p *MemoryProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	subs := p.subscribersLocked()
	p.mu.Unlock()

	if wasSignedIn {
		notify(subs, nil)
	}
	return nil
}

// OnSessionChange registers cb and fires it immediately with the current
// state, matching provider semantics on initial load.
func (p *MemoryProvider) OnSessionChange(cb func(*identity.Principal)) func() {
	id := uuid.NewString()
	p.mu.Lock()
	p.subs[id] = cb
	current := p.current
	p.mu.Unlock()

	cb(current)
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// FailNextSignIn scripts the outcome of the next interactive attempt.
func (p *MemoryProvider) FailNextSignIn(err error) {
	p.mu.Lock()
	p.nextErr = err
	p.mu.Unlock()
}

func (p *MemoryProvider) subscribersLocked() []func(*identity.Principal) {
	subs := make([]func(*identity.Principal), 0, len(p.subs))
	for _, cb := range p.subs {
		subs = append(subs, cb)
	}
	return subs
}

func notify(subs []func(*identity.Principal), principal *identity.Principal) {
	for _, cb := range subs {
		cb(principal)
	}
}
