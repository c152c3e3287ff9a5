package domain

// Identity is the authenticated external identity of a participant,
// extracted from a verified call token. It never changes during a
// connection's lifetime.
type Identity struct {
	UserID      UserID `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}
