package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-loja/internal/cart"
	"github.com/noah-isme/backend-loja/internal/common"
	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/shipping"
)

// Handler wires checkout submission to HTTP.
type Handler struct {
	Svc *Service
}

// Submit places the order for the cart in the path. Duplicate submissions
// are expected to be filtered upstream by the idempotency-key middleware.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	var userID *uuid.UUID
	if raw, ok := common.UserID(r.Context()); ok && raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
			return
		}
		userID = &parsed
	}
	var anonID *string
	if v := r.Header.Get("X-Anon-Id"); v != "" {
		anonID = &v
	}

	result, err := h.Svc.Submit(r.Context(), userID, anonID, cartID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

// QuoteShipping prices delivery for the cart without starting a checkout.
func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var in struct {
		CEP  string `json:"cep"`
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	view, err := h.Svc.Cart.View(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier := shipping.TierStandard
	if in.Tier == string(shipping.TierExpress) {
		tier = shipping.TierExpress
	}
	q, err := h.Svc.Estimator.Quote(in.CEP, view.Pricing.Subtotal, view.FreeShipping, tier)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid postal code", nil)
		return
	}
	h.Svc.countQuote(q)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"cep":              q.PostalCode,
		"tier":             q.Tier,
		"cost":             q.Cost,
		"costFormatted":    money.FormatBRL(q.Cost),
		"deliveryEstimate": q.DeliveryEstimate,
		"free":             q.Free,
	}})
}

// Abandon drops the pending-checkout slot without placing an order.
func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.Abandon(r.Context(), cartID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to abandon checkout", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
