package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lineitem"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	// nginx's status for a client that hung up before the response
	statusClientClosedRequest = 499
)

// CartService is the part of service.CartService the handlers call.
type CartService interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCartView(ctx context.Context, cartID string) (*domain.CartView, error)
	AddItem(ctx context.Context, cartID, productID, identity string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*domain.Cart, error)
	SetQuantity(ctx context.Context, cartID, productID string, quantity float64) (*domain.Cart, error)
	ReplaceItems(ctx context.Context, cartID string, candidates []lineitem.Candidate) (*domain.Cart, error)
	ClearCart(ctx context.Context, cartID string) (*domain.Cart, error)
}

type CheckoutService interface {
	Purchase(ctx context.Context, cartID, identity string) (*domain.Ticket, error)
	GetTicket(ctx context.Context, code, identity string) (*domain.Ticket, error)
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Payload interface{} `json:"payload"`
}

type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, payload interface{}) {
	respondJSON(w, status, SuccessResponse{Status: "success", Payload: payload})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Status: "error",
		Error:  message,
		Code:   code,
	})
}

// handleServiceError converts a service error into an HTTP status by its
// domain kind. Internal errors are logged and never echoed to the client.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var httpStatus int
	var code string

	switch domain.Classify(err) {
	case domain.KindNotFound:
		httpStatus = http.StatusNotFound
		code = "not_found"
	case domain.KindValidation:
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case domain.KindForbidden:
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case domain.KindConflict:
		httpStatus = http.StatusConflict
		code = "conflict"
	case domain.KindUnavailable:
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case domain.KindTimeout:
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	case domain.KindCanceled:
		httpStatus = statusClientClosedRequest
		code = "canceled"
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
