package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/service"
)

// WebhookHandler implements POST /webhooks/payments: raw-body capture,
// signature verification, then dispatch to the subscription reconciler.
type WebhookHandler struct {
	subscription *service.SubscriptionService
	logger       *slog.Logger
}

func NewWebhookHandler(subscription *service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{subscription: subscription, logger: logger}
}

// SignatureHeader carries the hex HMAC-SHA256 signature of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// gatewayEventCodes maps the upstream payment gateway's event names onto
// the reconciler's internal taxonomy; the gateway's own names are not reused
// as internal constants so a gateway migration only touches this table.
var gatewayEventCodes = map[string]models.WebhookEvent{
	"subscription_created":        models.EventSubscriptionCreated,
	"subscription_activated":      models.EventSubscriptionActivated,
	"subscription_pending_cancel": models.EventSubscriptionPendingCancel,
	"subscription_cancelled":      models.EventSubscriptionCancelled,
	"subscription_expired":        models.EventSubscriptionExpired,
	"payment_failed":              models.EventSubscriptionPaymentFailed,
}

type webhookPayload struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	ExternalRef string `json:"subscription_id"`
	UserID      string `json:"user_id"`
	Plan        string `json:"plan"`
}

// Handle handles POST /webhooks/payments: verifies the raw-body HMAC
// signature before touching JSON, then dispatches to the reconciler.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "failed to read request body"))
		return
	}

	sig := r.Header.Get(SignatureHeader)
	if sig == "" || !h.subscription.VerifySignature(body, sig) {
		writeError(w, apperror.ErrInvalidSignature)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "malformed webhook body"))
		return
	}

	event, ok := gatewayEventCodes[payload.EventType]
	if !ok {
		writeError(w, apperror.New(apperror.KindValidation, "unrecognized event_type"))
		return
	}
	if payload.EventID == "" || payload.ExternalRef == "" {
		writeError(w, apperror.New(apperror.KindValidation, "event_id and subscription_id are required"))
		return
	}

	plan := models.Plan(payload.Plan)
	if err := h.subscription.ProcessEvent(r.Context(), payload.EventID, payload.ExternalRef, payload.UserID, plan, event); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]any{"processed": true})
}
