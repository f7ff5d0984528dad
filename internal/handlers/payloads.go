package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/httpx"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/services"
)

type cartItemPayload struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	RefID     string     `json:"refId"`
	Name      string     `json:"name,omitempty"`
	Image     string     `json:"image,omitempty"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unitPrice"`
	AddedAt   time.Time  `json:"addedAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Items      []cartItemPayload `json:"items"`
	TotalPrice float64           `json:"totalPrice"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ID:        item.ID,
			Kind:      string(item.Ref.Kind),
			RefID:     item.Ref.ID,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return cartPayload{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      items,
		TotalPrice: cart.TotalPrice,
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}
}

type addressPayload struct {
	FullName   string  `json:"fullName"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

func buildAddressPayload(address *domain.Address) *addressPayload {
	if address == nil {
		return nil
	}
	return &addressPayload{
		FullName:   address.FullName,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
	}
}

func addressFromPayload(payload *addressPayload) *domain.Address {
	if payload == nil {
		return nil
	}
	return &domain.Address{
		FullName:   payload.FullName,
		Line1:      payload.Line1,
		Line2:      payload.Line2,
		City:       payload.City,
		State:      payload.State,
		PostalCode: payload.PostalCode,
		Country:    payload.Country,
		Phone:      payload.Phone,
	}
}

type orderLinePayload struct {
	Kind      string  `json:"kind"`
	RefID     string  `json:"refId"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

type paymentResultPayload struct {
	PaymentID string `json:"paymentId,omitempty"`
	OrderRef  string `json:"orderRef,omitempty"`
	Status    string `json:"status,omitempty"`
}

type orderNotePayload struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId"`
	Items           []orderLinePayload    `json:"items"`
	ShippingAddress *addressPayload       `json:"shippingAddress,omitempty"`
	PaymentMethod   string                `json:"paymentMethod,omitempty"`
	ItemsPrice      float64               `json:"itemsPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TotalPrice      float64               `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	PaymentResult   *paymentResultPayload `json:"paymentResult,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	Notes           []orderNotePayload    `json:"notes"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderLinePayload, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, orderLinePayload{
			Kind:      string(line.Ref.Kind),
			RefID:     line.Ref.ID,
			Name:      line.Name,
			Image:     line.Image,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total(),
		})
	}

	notes := make([]orderNotePayload, 0, len(order.Notes))
	for _, note := range order.Notes {
		notes = append(notes, orderNotePayload{
			ID:        note.ID,
			Author:    note.Author,
			Content:   note.Content,
			CreatedAt: note.CreatedAt,
		})
	}

	payload := orderPayload{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           items,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		PaymentMethod:   order.PaymentMethod,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		TotalPrice:      order.TotalPrice,
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		Notes:           notes,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.PaymentResult != nil {
		payload.PaymentResult = &paymentResultPayload{
			PaymentID: order.PaymentResult.PaymentID,
			OrderRef:  order.PaymentResult.OrderRef,
			Status:    order.PaymentResult.Status,
		}
	}
	return payload
}

type paymentIntentPayload struct {
	OrderID      string `json:"orderId"`
	IntentID     string `json:"intentId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	GatewayKeyID string `json:"gatewayKeyId,omitempty"`
}

func buildPaymentIntentPayload(result services.PaymentIntentResult) paymentIntentPayload {
	return paymentIntentPayload{
		OrderID:      result.OrderID,
		IntentID:     result.IntentID,
		Amount:       result.Amount,
		Currency:     result.Currency,
		GatewayKeyID: result.GatewayKeyID,
	}
}

// writeOrderError maps order service sentinels onto the HTTP error envelope.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentVerificationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_verification_failed", "payment signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you do not have access to this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cannot checkout an empty cart", http.StatusConflict))
	case errors.Is(err, services.ErrAlreadyPaid):
		httpx.WriteError(ctx, w, httpx.NewError("order_already_paid", "order is already paid", http.StatusConflict))
	case errors.Is(err, services.ErrAlreadyDelivered):
		httpx.WriteError(ctx, w, httpx.NewError("order_already_delivered", "order is already delivered", http.StatusConflict))
	case errors.Is(err, services.ErrNotPaid):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_paid", "order has not been paid", http.StatusConflict))
	case errors.Is(err, services.ErrNoPhysicalItems):
		httpx.WriteError(ctx, w, httpx.NewError("no_physical_items", "order has no items requiring delivery", http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment provider request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	}
}
