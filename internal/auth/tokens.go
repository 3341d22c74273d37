package auth

import "github.com/hearthchat/backend/internal/model/identity"

// TokenTable maps bearer tokens to principals. It is the server-side end of
// the identity collaborator: HTTP commands carry a token, never author
// fields of their own choosing.
type TokenTable map[string]identity.Principal

// Resolve looks a bearer token up.
func (t TokenTable) Resolve(token string) (identity.Principal, bool) {
	principal, ok := t[token]
	return principal, ok
}
