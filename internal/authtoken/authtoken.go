// Package authtoken issues and verifies bearer tokens: user tokens signed
// with JWT_SECRET and anonymous-session tokens signed with ANON_JWT_SECRET,
// distinguished by a "kind" claim so one endpoint can accept either.
package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers any parse, signature, or expiry failure, except an
// expired anonymous-session token, which is reported as ErrAnonTokenExpired.
var ErrInvalidToken = errors.New("invalid token")

// ErrAnonTokenExpired marks a structurally valid anonymous-session token
// whose session TTL has passed, so the HTTP layer can answer "session
// expired" rather than a generic auth failure.
var ErrAnonTokenExpired = errors.New("anonymous session token expired")

// Kind discriminates a user token from an anonymous-session token.
type Kind string

const (
	KindUser Kind = "user"
	KindAnon Kind = "anon"
)

// Claims is the shared claims shape for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"kind"`
}

// Verified is the result of a successful Verify: which kind of principal the
// token names, and the subject (user id or anonymous session id).
type Verified struct {
	Kind    Kind
	Subject string
}

// Issuer mints and verifies both token kinds.
type Issuer struct {
	userKey []byte
	anonKey []byte
	userTTL time.Duration
	anonTTL time.Duration
}

// NewIssuer builds an Issuer. anonTTL is stored but not used when minting:
// anonymous tokens take their expiry from the session passed to
// IssueAnonToken.
func NewIssuer(userSecret, anonSecret []byte, userTTL, anonTTL time.Duration) *Issuer {
	return &Issuer{userKey: userSecret, anonKey: anonSecret, userTTL: userTTL, anonTTL: anonTTL}
}

// IssueUserToken mints a token naming an authenticated user.
func (i *Issuer) IssueUserToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.userTTL)),
		},
		Kind: KindUser,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.userKey)
}

// IssueAnonToken mints a token naming an anonymous session, expiring at
// expiresAt (the session's own TTL, not i.anonTTL, so a token never
// outlives a migrated or otherwise shortened session).
func (i *Issuer) IssueAnonToken(sessionID string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: KindAnon,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.anonKey)
}

// Verify parses and validates tokenString, selecting the signing key by the
// token's own "kind" claim, which is populated before the key function runs.
func (i *Issuer) Verify(tokenString string) (*Verified, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		switch claims.Kind {
		case KindUser:
			return i.userKey, nil
		case KindAnon:
			return i.anonKey, nil
		default:
			return nil, ErrInvalidToken
		}
	})
	if err != nil || token == nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.Kind == KindAnon {
			return nil, ErrAnonTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Verified{Kind: claims.Kind, Subject: claims.Subject}, nil
}
