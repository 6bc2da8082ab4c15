package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-loja/internal/common"
	"github.com/noah-isme/backend-loja/internal/money"
	"github.com/noah-isme/backend-loja/internal/repo"
)

// Handler serves the authenticated order history.
type Handler struct {
	Orders repo.Orders
}

// List returns the caller's orders, newest first, with the first line item
// name as a display summary.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := int32((page - 1) * perPage)

	total, err := h.Orders.CountForUser(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Orders.ListForUser(r.Context(), userID, int32(perPage), offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, ord := range orders {
		response = append(response, map[string]any{
			"id":             ord.ID,
			"code":           ord.Code,
			"status":         ord.Status,
			"total":          ord.Total,
			"totalFormatted": money.FormatBRL(ord.Total),
			"firstItem":      ord.FirstItemName,
			"createdAt":      ord.CreatedAt,
		})
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Get returns the full order with frozen lines and the address snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Orders.GetForUser(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Orders.ListItems(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	responseItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		responseItems = append(responseItems, map[string]any{
			"id":        it.ID,
			"productId": it.ProductID,
			"name":      it.Name,
			"color":     it.Color,
			"size":      it.Size,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  it.Subtotal,
		})
	}
	var address json.RawMessage
	if len(ord.ShippingAddress) > 0 {
		address = json.RawMessage(ord.ShippingAddress)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":                ord.ID,
			"code":              ord.Code,
			"status":            ord.Status,
			"subtotal":          ord.Subtotal,
			"discount":          ord.Discount,
			"shipping":          ord.Shipping,
			"total":             ord.Total,
			"totalFormatted":    money.FormatBRL(ord.Total),
			"installments":      ord.Installments,
			"installmentAmount": ord.InstallmentAmount,
			"coupon":            ord.CouponCode,
			"paymentMethod":     ord.PaymentMethod,
			"shippingAddress":   address,
			"items":             responseItems,
			"createdAt":         ord.CreatedAt,
		},
	})
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok || raw == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return uuid.Nil, false
	}
	return userID, true
}
