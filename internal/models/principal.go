package models

// PrincipalKind distinguishes an authenticated user from a pre-auth
// anonymous session.
type PrincipalKind string

const (
	PrincipalUser      PrincipalKind = "user"
	PrincipalAnonymous PrincipalKind = "anonymous"
)

// Principal is the caller identity threaded through every request-scoped
// operation: either an authenticated user id or an anonymous session id.
type Principal struct {
	Kind PrincipalKind
	ID   string // user id, or anonymous session id
}

// UserRef is the identifier used as the key into the token ledger and
// feedback tables, which key on the same string regardless of principal kind.
func (p Principal) UserRef() string { return p.ID }

func (p Principal) IsAnonymous() bool { return p.Kind == PrincipalAnonymous }

func (p Principal) IsUser() bool { return p.Kind == PrincipalUser }

// NewUserPrincipal constructs an authenticated-user principal.
func NewUserPrincipal(userID string) Principal {
	return Principal{Kind: PrincipalUser, ID: userID}
}

// NewAnonymousPrincipal constructs an anonymous-session principal.
func NewAnonymousPrincipal(sessionID string) Principal {
	return Principal{Kind: PrincipalAnonymous, ID: sessionID}
}
