package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/authtoken"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/service"
)

// AuthSessionHandler implements POST /auth-session: anonymous-session
// creation and migration to an authenticated user.
type AuthSessionHandler struct {
	sessions *service.SessionService
	issuer   *authtoken.Issuer
}

func NewAuthSessionHandler(sessions *service.SessionService, issuer *authtoken.Issuer) *AuthSessionHandler {
	return &AuthSessionHandler{sessions: sessions, issuer: issuer}
}

type authSessionRequest struct {
	Action             string `json:"action"`
	DeviceFingerprint  string `json:"device_fingerprint"`
	AnonymousSessionID string `json:"anonymous_session_id"`
}

// Handle handles POST /auth-session: {action:"create_anonymous", device_fingerprint?}
// or {action:"migrate_to_authenticated", anonymous_session_id} (user bearer required).
func (h *AuthSessionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req authSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "create_anonymous":
		session, err := h.sessions.CreateAnonymous(r.Context(), req.DeviceFingerprint)
		if err != nil {
			writeError(w, err)
			return
		}
		token, err := h.issuer.IssueAnonToken(session.ID, session.ExpiresAt)
		if err != nil {
			writeError(w, apperror.Wrap(apperror.KindInternal, "failed to issue session token", err))
			return
		}
		writeCreated(w, map[string]any{
			"anonymous_session_id": session.ID,
			"expires_at":           session.ExpiresAt,
			"token":                token,
		})
	case "migrate_to_authenticated":
		principal := mw.GetPrincipal(r.Context())
		if principal == nil || !principal.IsUser() {
			writeError(w, apperror.New(apperror.KindUnauthorized, "authenticated user required"))
			return
		}
		if req.AnonymousSessionID == "" {
			writeError(w, apperror.New(apperror.KindValidation, "anonymous_session_id is required"))
			return
		}
		if err := h.sessions.MigrateToUser(r.Context(), req.AnonymousSessionID, principal.ID); err != nil {
			writeError(w, err)
			return
		}
		token, err := h.issuer.IssueUserToken(principal.ID)
		if err != nil {
			writeError(w, apperror.Wrap(apperror.KindInternal, "failed to issue user token", err))
			return
		}
		writeData(w, map[string]any{
			"migrated_session_id": req.AnonymousSessionID,
			"user_id":             principal.ID,
			"token":               token,
		})
	default:
		writeError(w, apperror.New(apperror.KindValidation, "action must be create_anonymous or migrate_to_authenticated"))
	}
}

type authCallbackRequest struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AuthCallback handles POST /auth-callback: an OAuth code-exchange stub.
// code and state are only checked for presence; the response carries a
// one-shot, non-sortable random exchange_id (unlike the ULIDs used for
// entity ids elsewhere). The actual provider token exchange is out of scope
// for this surface.
func AuthCallback(w http.ResponseWriter, r *http.Request) {
	var req authCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Error != "" {
		writeError(w, apperror.New(apperror.KindUnauthorized, "oauth provider returned an error: "+req.Error).WithDetails(map[string]any{
			"error_description": req.ErrorDescription,
		}))
		return
	}
	if req.Code == "" || req.State == "" {
		writeError(w, apperror.New(apperror.KindValidation, "code and state are required"))
		return
	}

	exchangeID := uuid.New().String()
	writeData(w, map[string]any{
		"exchange_id": exchangeID,
		"exchanged":   true,
	})
}
