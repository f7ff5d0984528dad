package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/auth"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/httpx"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes the buyer-facing order lifecycle endpoints.
type OrderHandlers struct {
	verifier *auth.Verifier
	orders   services.OrderService
}

// NewOrderHandlers constructs handlers for the buyer order endpoints.
func NewOrderHandlers(verifier *auth.Verifier, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{verifier: verifier, orders: orders}
}

// Routes wires the buyer-facing /orders endpoints onto the provided router.
// The admin subtree is registered separately so its middleware stack stays
// independent.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.verifier != nil {
			g.Use(h.verifier.Middleware())
		}
		g.Post("/", h.checkout)
		g.Post("/verify-payment", h.verifyPayment)
		g.Post("/retry-payment", h.retryPayment)
		g.Get("/mine", h.listMine)
		g.Get("/{orderID}/status", h.getStatus)
	})
}

type checkoutRequest struct {
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress *addressPayload `json:"shippingAddress,omitempty"`
}

func (h *OrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req checkoutRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	result, err := h.orders.Checkout(ctx, services.CheckoutCommand{
		UserID:          identity.UserID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: addressFromPayload(req.ShippingAddress),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildPaymentIntentPayload(result))
}

type verifyPaymentRequest struct {
	OrderID          string `json:"orderId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

func (h *OrderHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.VerifyPayment(ctx, services.VerifyPaymentCommand{
		UserID:            identity.UserID,
		Admin:             identity.Admin,
		OrderID:           req.OrderID,
		GatewayOrderRef:   req.GatewayOrderID,
		GatewayPaymentRef: req.GatewayPaymentID,
		Signature:         req.Signature,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type retryPaymentRequest struct {
	OrderID string `json:"orderId"`
}

func (h *OrderHandlers) retryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req retryPaymentRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	result, err := h.orders.RetryPayment(ctx, services.RetryPaymentCommand{
		UserID:  identity.UserID,
		Admin:   identity.Admin,
		OrderID: req.OrderID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPaymentIntentPayload(result))
}

func (h *OrderHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orders, err := h.orders.ListMine(ctx, identity.UserID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": payload})
}

type orderStatusPayload struct {
	OrderID       string                `json:"orderId"`
	IsPaid        bool                  `json:"isPaid"`
	PaidAt        *time.Time            `json:"paidAt,omitempty"`
	PaymentMethod string                `json:"paymentMethod,omitempty"`
	PaymentResult *paymentResultPayload `json:"paymentResult,omitempty"`
	TotalPrice    float64               `json:"totalPrice"`
	IsDelivered   bool                  `json:"isDelivered"`
	DeliveredAt   *time.Time            `json:"deliveredAt,omitempty"`
	RetryPath     string                `json:"retryPath,omitempty"`
}

func (h *OrderHandlers) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	status, err := h.orders.GetStatus(ctx, services.OrderStatusQuery{
		UserID:  identity.UserID,
		Admin:   identity.Admin,
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := orderStatusPayload{
		OrderID:       status.OrderID,
		IsPaid:        status.IsPaid,
		PaidAt:        status.PaidAt,
		PaymentMethod: status.PaymentMethod,
		TotalPrice:    status.TotalPrice,
		IsDelivered:   status.IsDelivered,
		DeliveredAt:   status.DeliveredAt,
		RetryPath:     status.RetryPath,
	}
	if status.PaymentResult != nil {
		payload.PaymentResult = &paymentResultPayload{
			PaymentID: status.PaymentResult.PaymentID,
			OrderRef:  status.PaymentResult.OrderRef,
			Status:    status.PaymentResult.Status,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}
