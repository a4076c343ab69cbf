package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		logger:   logger,
	}
}

// POST /api/v1/carts/{cid}/purchase
func (h *CheckoutHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	ticket, err := h.checkout.Purchase(ctx, chi.URLParam(r, "cid"), identity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusCreated, ticket)
}

// GET /api/v1/tickets/{code}
func (h *CheckoutHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	ticket, err := h.checkout.GetTicket(ctx, chi.URLParam(r, "code"), identity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondSuccess(w, http.StatusOK, ticket)
}
