package handlers

import (
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/service"
)

// BillingHandler implements the token-ledger HTTP surface:
// GET /token-status and POST /purchase-tokens.
type BillingHandler struct {
	plans  *service.PlanResolver
	ledger *service.LedgerService
	cfg    *config.Config
}

func NewBillingHandler(plans *service.PlanResolver, ledger *service.LedgerService, cfg *config.Config) *BillingHandler {
	return &BillingHandler{plans: plans, ledger: ledger, cfg: cfg}
}

// TokenStatus handles GET /token-status: the caller's effective plan and
// ledger snapshot.
func (h *BillingHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperror.New(apperror.KindUnauthorized, "principal context missing"))
		return
	}

	plan, source, err := h.plans.EffectivePlan(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}
	dailyLimit := h.cfg.DailyLimit(plan)

	acct, err := h.ledger.GetOrCreate(r.Context(), *principal, plan, dailyLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]any{
		"plan":                plan,
		"plan_source":         source,
		"daily_limit":         acct.DailyLimit,
		"daily_available":     acct.DailyAvailable,
		"purchased_available": acct.PurchasedAvailable,
		"consumed_today":      acct.ConsumedToday,
		"last_reset":          acct.LastReset,
	})
}

type purchaseTokensRequest struct {
	TokenAmount     int    `json:"token_amount"`
	PaymentMethodID string `json:"payment_method_id"`
}

// Purchases are priced at tokensPerCurrencyUnit tokens per whole currency
// unit and charged in minor units (1/100th), rounded up.
const (
	tokensPerCurrencyUnit = 10
	minorUnitsPerUnit     = 100
)

// PurchaseTokens handles POST /purchase-tokens: {token_amount, payment_method_id},
// user bearer only. The charge itself is delegated to the payment gateway out
// of band; this endpoint prices the pack and credits the tokens.
func (h *BillingHandler) PurchaseTokens(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil || !principal.IsUser() {
		writeError(w, apperror.New(apperror.KindUnauthorized, "authenticated user required"))
		return
	}

	var req purchaseTokensRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TokenAmount < 1 || req.TokenAmount > 10000 {
		writeError(w, apperror.New(apperror.KindValidation, "token_amount must be between 1 and 10000"))
		return
	}
	if req.PaymentMethodID == "" {
		writeError(w, apperror.New(apperror.KindValidation, "payment_method_id is required"))
		return
	}

	plan, _, err := h.plans.EffectivePlan(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ledger.AddPurchased(r.Context(), *principal, plan, req.TokenAmount); err != nil {
		writeError(w, err)
		return
	}

	// Minor-unit price, rounded up so the gateway never charges less than
	// the tokens actually granted.
	amountMinorUnits := (req.TokenAmount*minorUnitsPerUnit + tokensPerCurrencyUnit - 1) / tokensPerCurrencyUnit

	writeCreated(w, map[string]any{
		"purchase_id":        ulid.Make().String(),
		"tokens_purchased":   req.TokenAmount,
		"amount_minor_units": amountMinorUnits,
		"payment_method_id":  req.PaymentMethodID,
	})
}
