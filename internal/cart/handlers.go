package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-loja/internal/common"
	"github.com/noah-isme/backend-loja/internal/coupon"
	"github.com/noah-isme/backend-loja/internal/obs"
)

// Handler wires the cart service to HTTP. Issue mints an anonymous identity
// token when a visitor arrives with neither a user nor an anonId.
type Handler struct {
	Svc   *Service
	Issue func(r *http.Request) (string, error)
}

// Resolve returns the caller's active cart, creating one if needed. The
// caller identity is the authenticated user when present, otherwise the
// anonId from the payload; a missing anonId gets a fresh token issued.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	var userID *uuid.UUID
	if uid, ok := common.UserID(r.Context()); ok {
		parsed, err := uuid.Parse(uid)
		if err == nil {
			userID = &parsed
		}
	}

	anonID := strings.TrimSpace(payload.AnonID)
	issued := false
	if userID == nil && anonID == "" {
		if h.Issue == nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "anonId is required", nil)
			return
		}
		token, err := h.Issue(r)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to issue session", nil)
			return
		}
		anonID = token
		issued = true
	}

	var anonPtr *string
	if userID == nil {
		anonPtr = &anonID
	}
	c, err := h.Svc.Resolve(r.Context(), userID, anonPtr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if issued {
		status = http.StatusCreated
	}
	common.JSON(w, status, map[string]any{
		"data": map[string]any{
			"cartId": c.ID,
			"anonId": c.AnonID,
			"coupon": c.AppliedCouponCode,
		},
	})
}

// Get returns the hydrated cart view with the pricing snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	view, err := h.Svc.View(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem adds or merges a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		ProductID string  `json:"productId"`
		Color     *string `json:"color"`
		Size      *string `json:"size"`
		Qty       int     `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := uuid.Parse(strings.TrimSpace(payload.ProductID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if _, err := h.Svc.AddItem(r.Context(), cartID, productID, payload.Color, payload.Size, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMutation("add")
	h.Get(w, r)
}

// UpdateItem changes a line quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if _, err := h.Svc.ChangeQuantity(r.Context(), cartID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMutation("update_qty")
	h.Get(w, r)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMutation("remove")
	h.Get(w, r)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.Clear(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMutation("clear")
	h.Get(w, r)
}

// ApplyCoupon validates and attaches a coupon code.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	ev, err := h.Svc.ApplyCoupon(r.Context(), cartID, payload.Code)
	if err != nil {
		h.countCoupon(err)
		h.writeError(w, err)
		return
	}
	h.countCoupon(nil)
	common.JSON(w, http.StatusOK, map[string]any{"data": ev})
}

// RemoveCoupon clears the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"coupon": nil}})
}

func (h *Handler) countMutation(op string) {
	if obs.CartMutationTotal != nil {
		obs.CartMutationTotal.WithLabelValues(op).Inc()
	}
}

func (h *Handler) countCoupon(err error) {
	if obs.CouponValidationTotal == nil {
		return
	}
	result := "accepted"
	if err != nil {
		result = couponRejection(err)
	}
	obs.CouponValidationTotal.WithLabelValues(result).Inc()
}

func couponRejection(err error) string {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return "not_found"
	case errors.Is(err, coupon.ErrNotYetActive):
		return "not_yet_active"
	case errors.Is(err, coupon.ErrExpired):
		return "expired"
	case errors.Is(err, coupon.ErrMinimumNotMet):
		return "minimum_not_met"
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, coupon.ErrInvalidKind):
		return "invalid_kind"
	default:
		return "error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidQty), errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, coupon.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, coupon.ErrNotYetActive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrMinimumNotMet),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrInvalidKind):
		common.JSONError(w, http.StatusConflict, "ELIGIBILITY", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
