package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/lineitem"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	logger  *slog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type SetQuantityRequestDTO struct {
	Quantity *float64 `json:"quantity"`
}

type ReplaceItemsRequestDTO struct {
	Products []lineitem.Candidate `json:"products"`
}

// POST /api/v1/carts
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.CreateCart(ctx)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusCreated, cart)
}

// GET /api/v1/carts/{cid}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.GetCartView(ctx, chi.URLParam(r, "cid"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, view)
}

// PUT /api/v1/carts/{cid}
func (h *CartHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ReplaceItemsRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Products == nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "products is required")
		return
	}

	cart, err := h.carts.ReplaceItems(ctx, chi.URLParam(r, "cid"), req.Products)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, cart)
}

// DELETE /api/v1/carts/{cid}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.ClearCart(ctx, chi.URLParam(r, "cid"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, cart)
}

// POST /api/v1/carts/{cid}/products/{pid}
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	cart, err := h.carts.AddItem(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), identity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusCreated, cart)
}

// PUT /api/v1/carts/{cid}/products/{pid}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "quantity is required")
		return
	}

	cart, err := h.carts.SetQuantity(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), *req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, cart)
}

// DELETE /api/v1/carts/{cid}/products/{pid}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, cart)
}
