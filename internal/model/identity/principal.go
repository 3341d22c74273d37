package identity

// Principal is the signed-in user as reported by the identity provider.
// It is immutable for the lifetime of a session.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}
