package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
)

// Logger is the logging callback services emit structured events through.
type Logger func(ctx context.Context, event string, fields map[string]any)

// AddCartItemCommand describes a catalog entry to add to the user's cart.
type AddCartItemCommand struct {
	UserID   string
	Kind     string
	RefID    string
	Quantity int
}

// CartService manages the per-user cart.
type CartService interface {
	// GetCart returns the user's cart, or an empty cart when none exists.
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error)
	// UpdateQuantity locates the line by product ref, then course ref, then
	// line-item ID, and sets its quantity.
	UpdateQuantity(ctx context.Context, userID, ref string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, ref string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// CheckoutCommand captures everything needed to convert a cart into an order.
type CheckoutCommand struct {
	UserID          string
	PaymentMethod   string
	ShippingAddress *domain.Address
}

// PaymentIntentResult is returned by checkout and payment retry: the handles
// a client needs to complete payment with the gateway.
type PaymentIntentResult struct {
	OrderID      string
	IntentID     string
	Amount       int64
	Currency     string
	GatewayKeyID string
}

// VerifyPaymentCommand carries the gateway callback references the client
// relays after completing payment.
type VerifyPaymentCommand struct {
	UserID            string
	Admin             bool
	OrderID           string
	GatewayOrderRef   string
	GatewayPaymentRef string
	Signature         string
}

// RetryPaymentCommand requests a fresh payment intent for an unpaid order.
type RetryPaymentCommand struct {
	UserID  string
	Admin   bool
	OrderID string
}

// MarkDeliveredCommand records fulfilment of a physical order.
type MarkDeliveredCommand struct {
	OrderID string
	Actor   string
}

// SetPaymentStatusCommand force-sets the paid flag from the admin surface.
type SetPaymentStatusCommand struct {
	OrderID           string
	Paid              bool
	ExternalPaymentID string
	Actor             string
}

// AddNoteCommand appends an audit note to an order.
type AddNoteCommand struct {
	OrderID string
	Author  string
	Content string
}

// OrderStatusQuery identifies the caller and the order whose payment status
// is requested.
type OrderStatusQuery struct {
	UserID  string
	Admin   bool
	OrderID string
}

// OrderStatus is the payment-progress projection returned to buyers.
type OrderStatus struct {
	OrderID       string
	IsPaid        bool
	PaidAt        *time.Time
	PaymentMethod string
	PaymentResult *domain.PaymentResult
	TotalPrice    float64
	IsDelivered   bool
	DeliveredAt   *time.Time
	// RetryPath is set while the order is unpaid so clients know where to
	// request a fresh payment intent.
	RetryPath string
}

// OrderSortKey enumerates the admin listing sort columns.
type OrderSortKey string

const (
	SortByCreatedAt  OrderSortKey = "createdAt"
	SortByTotalPrice OrderSortKey = "totalPrice"
	SortByPaid       OrderSortKey = "isPaid"
	SortByDelivered  OrderSortKey = "isDelivered"
	SortByOwnerName  OrderSortKey = "ownerName"
)

// AdminListQuery captures the admin listing filters, sort, and page number.
type AdminListQuery struct {
	Keyword   string
	Paid      *bool
	Delivered *bool
	Kind      repositories.KindFilter
	SortBy    OrderSortKey
	SortDesc  bool
	Page      int
}

// AdminOrderView pairs an order with its owner projection for admin surfaces.
type AdminOrderView struct {
	Order domain.Order
	Owner domain.UserSummary
}

// OrderSummary is the compact projection used in the stats recent-orders feed.
type OrderSummary struct {
	ID          string
	UserID      string
	TotalPrice  float64
	IsPaid      bool
	IsDelivered bool
	CreatedAt   time.Time
}

// RevenueCount pairs aggregated revenue with the number of contributing rows.
type RevenueCount struct {
	Revenue float64
	Count   int
}

// OrderStats is the admin dashboard aggregate.
type OrderStats struct {
	TotalRevenue           float64
	TodayRevenue           float64
	PaidCount              int
	UnpaidCount            int
	DeliveredCount         int
	PendingPhysicalCount   int
	DigitalOnlyPaidCount   int
	RecentOrders           []OrderSummary
	RevenueByPaymentMethod map[string]RevenueCount
	RevenueByItemKind      map[string]RevenueCount
}

// ContactCustomerCommand sends a free-form admin message to the order's owner.
type ContactCustomerCommand struct {
	OrderID string
	Subject string
	Message string
	Actor   string
}

// OrderService drives the order lifecycle from checkout to delivery.
type OrderService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (PaymentIntentResult, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error)
	RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (PaymentIntentResult, error)
	MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (domain.Order, error)
	SetPaymentStatus(ctx context.Context, cmd SetPaymentStatusCommand) (domain.Order, error)
	AddNote(ctx context.Context, cmd AddNoteCommand) (domain.Order, error)
	DeleteNote(ctx context.Context, orderID, noteID string) (domain.Order, error)
	ListNotes(ctx context.Context, orderID string) ([]domain.OrderNote, error)
	GetStatus(ctx context.Context, query OrderStatusQuery) (OrderStatus, error)
	ListMine(ctx context.Context, userID string) ([]domain.Order, error)
	AdminList(ctx context.Context, query AdminListQuery) (domain.Page[AdminOrderView], error)
	AdminGet(ctx context.Context, orderID string) (AdminOrderView, error)
	AdminDelete(ctx context.Context, orderID string) error
	Stats(ctx context.Context) (OrderStats, error)
	ContactCustomer(ctx context.Context, cmd ContactCustomerCommand) error
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
