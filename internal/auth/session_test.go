package auth_test

import (
	"context"
	"testing"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/model/identity"
)

func alice() identity.Principal {
	return identity.Principal{ID: "u1", DisplayName: "Alice", AvatarRef: "https://example.com/a.png"}
}

func TestSessionStartsSignedOut(t *testing.T) {
	session := auth.NewSession(auth.NewMemoryProvider(alice()))
	defer session.Close()

	if _, ok := session.Current(); ok {
		t.Fatal("expected signed-out session before sign-in")
	}
}

func TestSignInUpdatesSession(t *testing.T) {
	session := auth.NewSession(auth.NewMemoryProvider(alice()))
	defer session.Close()

	principal, err := session.SignIn(context.Background())
	if err != nil {
		t.Fatalf("SignIn err: %v", err)
	}
	if principal.DisplayName != "Alice" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	current, ok := session.Current()
	if !ok {
		t.Fatal("expected signed-in session")
	}
	if current.ID != "u1" {
		t.Fatalf("unexpected current principal: %+v", current)
	}
}

func TestCancelledSignInLeavesSessionUnchanged(t *testing.T) {
	provider := auth.NewMemoryProvider(alice())
	session := auth.NewSession(provider)
	defer session.Close()

	provider.FailNextSignIn(auth.ErrSignInCancelled)
	if _, err := session.SignIn(context.Background()); err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, ok := session.Current(); ok {
		t.Fatal("cancelled sign-in must not change the session")
	}

	// The scripted failure is one-shot; the retry succeeds.
	if _, err := session.SignIn(context.Background()); err != nil {
		t.Fatalf("retry SignIn err: %v", err)
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	session := auth.NewSession(auth.NewMemoryProvider(alice()))
	defer session.Close()

	if _, err := session.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn err: %v", err)
	}
	if err := session.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut err: %v", err)
	}
	if _, ok := session.Current(); ok {
		t.Fatal("expected signed-out session")
	}
	if err := session.SignOut(context.Background()); err != nil {
		t.Fatalf("second SignOut err: %v", err)
	}
}

func TestProviderNotifiesExistingSessionState(t *testing.T) {
	provider := auth.NewMemoryProvider(alice())
	if _, err := provider.SignInInteractive(context.Background()); err != nil {
		t.Fatalf("SignInInteractive err: %v", err)
	}

	// A session attached after sign-in sees the current principal
	// immediately, matching on-initial-load provider semantics.
	session := auth.NewSession(provider)
	defer session.Close()

	if _, ok := session.Current(); !ok {
		t.Fatal("expected session to mirror provider state on attach")
	}
}
