// Package mw contains HTTP middleware for the study-guide API.
package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/graceverse/study-api/internal/authtoken"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/service"
)

// ContextKey is a type for context keys.
type ContextKey string

const principalKey ContextKey = "principal"

// AnonSessionHeader names the anonymous-session-id request header accepted
// by CORS. No middleware in this package reads it: the principal is taken
// from the bearer token only.
const AnonSessionHeader = "X-Anonymous-Session-Id"

// GetPrincipal retrieves the resolved principal from context, if any.
func GetPrincipal(ctx context.Context) *models.Principal {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	if !ok {
		return nil
	}
	return p
}

func withPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, &p)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

// PrincipalContext resolves the caller's identity: a valid user token
// yields a user principal; a valid anonymous-session token, or no token at
// all, yields an anonymous principal, minting a fresh session on demand. An
// invalid or expired token is treated like an absent one.
func PrincipalContext(issuer *authtoken.Issuer, sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				verified, err := issuer.Verify(token)
				if err == nil {
					switch verified.Kind {
					case authtoken.KindUser:
						ctx := withPrincipal(r.Context(), models.NewUserPrincipal(verified.Subject))
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					case authtoken.KindAnon:
						ctx := withPrincipal(r.Context(), models.NewAnonymousPrincipal(verified.Subject))
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
			}

			session, err := sessions.CreateAnonymous(r.Context(), "")
			if err != nil {
				writeAuthError(w, http.StatusInternalServerError, "failed to create anonymous session")
				return
			}
			token, err := issuer.IssueAnonToken(session.ID, session.ExpiresAt)
			if err != nil {
				writeAuthError(w, http.StatusInternalServerError, "failed to issue session token")
				return
			}
			w.Header().Set("X-Anonymous-Session-Token", token)
			ctx := withPrincipal(r.Context(), models.NewAnonymousPrincipal(session.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalPrincipal resolves a principal when a valid bearer token is
// present and otherwise passes the request through with none, never minting
// a session and never rejecting. Handlers behind it decide what an absent
// principal means.
func OptionalPrincipal(issuer *authtoken.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if verified, err := issuer.Verify(token); err == nil {
					var p models.Principal
					if verified.Kind == authtoken.KindUser {
						p = models.NewUserPrincipal(verified.Subject)
					} else {
						p = models.NewAnonymousPrincipal(verified.Subject)
					}
					r = r.WithContext(withPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser guards endpoints restricted to authenticated users: a missing
// or non-user bearer token is rejected outright, no anonymous session is
// minted.
func RequireUser(issuer *authtoken.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			verified, err := issuer.Verify(token)
			if err != nil || verified.Kind != authtoken.KindUser {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := withPrincipal(r.Context(), models.NewUserPrincipal(verified.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal guards endpoints that need a resolved principal (user or
// anonymous session) but never mint a new session: a
// missing or invalid token is rejected. Used by /study-guides GET, which
// must distinguish "unauthenticated" from "a specific, possibly-empty
// session".
func RequirePrincipal(issuer *authtoken.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			verified, err := issuer.Verify(token)
			if err == authtoken.ErrAnonTokenExpired {
				writeSessionExpired(w)
				return
			}
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			var p models.Principal
			switch verified.Kind {
			case authtoken.KindUser:
				p = models.NewUserPrincipal(verified.Subject)
			default:
				p = models.NewAnonymousPrincipal(verified.Subject)
			}
			ctx := withPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeSessionExpired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"SessionExpired","message":"anonymous session expired"}}`))
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	code := "Unauthorized"
	if status == http.StatusInternalServerError {
		code = "InternalError"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
