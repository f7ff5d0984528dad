package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/notifications"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/payments"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/auth"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: order repository is required")
	errOrderCartsRequired      = errors.New("order service: cart service is required")
	errOrderGatewayRequired    = errors.New("order service: payment gateway is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderUnavailable indicates the order service cannot fulfil the request due to backend issues.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderNotFound indicates the requested order or note does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the order could not be updated due to concurrent modifications.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnauthorized indicates the caller does not own the order and is not an admin.
var ErrOrderUnauthorized = errors.New("order service: unauthorized")

// ErrEmptyCart indicates checkout was attempted with no cart lines.
var ErrEmptyCart = errors.New("order service: cart is empty")

// ErrAlreadyPaid indicates a payment operation on an order that is already paid.
var ErrAlreadyPaid = errors.New("order service: order already paid")

// ErrAlreadyDelivered indicates delivery was recorded twice.
var ErrAlreadyDelivered = errors.New("order service: order already delivered")

// ErrNotPaid indicates a transition that requires payment first.
var ErrNotPaid = errors.New("order service: order not paid")

// ErrNoPhysicalItems indicates a fulfilment operation on a digital-only order.
var ErrNoPhysicalItems = errors.New("order service: order has no physical items")

// ErrPaymentVerificationFailed indicates the gateway callback signature did not match.
var ErrPaymentVerificationFailed = errors.New("order service: payment verification failed")

// ErrOrderGateway indicates the payment provider rejected or failed the request.
var ErrOrderGateway = errors.New("order service: payment gateway error")

const (
	defaultAdminPageSize = 20
	defaultRecentLimit   = 10
	retryPaymentPath     = "/api/v1/orders/retry-payment"
	maxNoteLength        = 2000
)

// OrderServiceDeps wires the collaborators for the order lifecycle.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Carts        CartService
	Users        repositories.UserRepository
	Gateway      payments.Gateway
	Mailer       notifications.Dispatcher
	Sanitizer    *bluemonday.Policy
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       Logger
	Currency     string
	GatewayKeyID string
	TaxRate      float64
	ShippingFee  float64
	PageSize     int
}

type orderService struct {
	orders       repositories.OrderRepository
	carts        CartService
	users        repositories.UserRepository
	gateway      payments.Gateway
	mailer       notifications.Dispatcher
	sanitizer    *bluemonday.Policy
	now          func() time.Time
	newID        func() string
	logger       Logger
	currency     string
	gatewayKeyID string
	taxRate      float64
	shippingFee  float64
	pageSize     int
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Carts == nil {
		return nil, errOrderCartsRequired
	}
	if deps.Gateway == nil {
		return nil, errOrderGatewayRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "INR"
	}

	taxRate := deps.TaxRate
	if taxRate <= 0 {
		taxRate = domain.DefaultTaxRate
	}
	shippingFee := deps.ShippingFee
	if shippingFee <= 0 {
		shippingFee = domain.DefaultShippingFee
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultAdminPageSize
	}

	return &orderService{
		orders:       deps.Orders,
		carts:        deps.Carts,
		users:        deps.Users,
		gateway:      deps.Gateway,
		mailer:       deps.Mailer,
		sanitizer:    sanitizer,
		now:          func() time.Time { return deps.Clock().UTC() },
		newID:        idGen,
		logger:       logger,
		currency:     currency,
		gatewayKeyID: strings.TrimSpace(deps.GatewayKeyID),
		taxRate:      taxRate,
		shippingFee:  shippingFee,
		pageSize:     pageSize,
	}, nil
}

// Checkout snapshots the cart into an unpaid order and opens a payment intent
// with the gateway. The cart is left intact until the payment is verified.
func (s *orderService) Checkout(ctx context.Context, cmd CheckoutCommand) (PaymentIntentResult, error) {
	if s == nil || s.orders == nil {
		return PaymentIntentResult{}, ErrOrderUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return PaymentIntentResult{}, ErrOrderInvalidInput
	}

	// The cart service returns an empty cart (not an error) when the user has
	// never added an item; the empty-line guard below handles both cases.
	cart, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	items := make([]domain.OrderLineItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			continue
		}
		items = append(items, domain.OrderLineItem{
			Ref:       line.Ref,
			Name:      line.Name,
			Image:     line.Image,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if len(items) == 0 {
		return PaymentIntentResult{}, ErrEmptyCart
	}

	breakdown := domain.PriceOrder(items, s.taxRate, s.shippingFee)

	order := domain.Order{
		ID:              s.newID(),
		UserID:          uid,
		Items:           items,
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(cmd.PaymentMethod),
		ItemsPrice:      breakdown.ItemsPrice,
		TaxPrice:        breakdown.TaxPrice,
		ShippingPrice:   breakdown.ShippingPrice,
		TotalPrice:      breakdown.TotalPrice,
		Notes:           []domain.OrderNote{},
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}

	if order.HasPhysicalItems() {
		if cmd.ShippingAddress == nil || strings.TrimSpace(cmd.ShippingAddress.Line1) == "" {
			return PaymentIntentResult{}, fmt.Errorf("%w: shipping address required for physical items", ErrOrderInvalidInput)
		}
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return PaymentIntentResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":    created.ID,
		"userId":     uid,
		"totalPrice": created.TotalPrice,
	})

	s.sendMail(ctx, created, notifications.MailKindOrderConfirmation,
		"Your order has been placed",
		fmt.Sprintf("Order %s was created for a total of %.2f %s. Complete the payment to confirm it.", created.ID, created.TotalPrice, s.currency))

	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentRequest{
		AmountMajor: created.TotalPrice,
		Currency:    s.currency,
		ReceiptID:   created.ID,
	})
	if err != nil {
		s.logger(ctx, "order.payment_intent_failed", map[string]any{
			"orderId": created.ID,
			"error":   err.Error(),
		})
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrOrderGateway, err)
	}

	return PaymentIntentResult{
		OrderID:      created.ID,
		IntentID:     intent.ID,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		GatewayKeyID: s.gatewayKeyID,
	}, nil
}

// VerifyPayment validates the gateway callback signature and, on success,
// marks the order paid, clears the cart, and emits a receipt mail. A forged
// signature leaves the order untouched.
func (s *orderService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" || strings.TrimSpace(cmd.GatewayOrderRef) == "" || strings.TrimSpace(cmd.GatewayPaymentRef) == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	if !s.gateway.VerifySignature(cmd.GatewayOrderRef, cmd.GatewayPaymentRef, cmd.Signature) {
		s.logger(ctx, "order.payment_verification_failed", map[string]any{
			"orderId": orderID,
		})
		return domain.Order{}, ErrPaymentVerificationFailed
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	caller := auth.Identity{UserID: cmd.UserID, Admin: cmd.Admin}
	if !caller.CanAccessOrder(order.UserID) {
		return domain.Order{}, ErrOrderUnauthorized
	}
	if order.IsPaid {
		// Gateway callbacks can be replayed; a verified payment on a paid
		// order is a no-op.
		return order, nil
	}

	expected := order.UpdatedAt
	now := s.now()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = &domain.PaymentResult{
		PaymentID: strings.TrimSpace(cmd.GatewayPaymentRef),
		OrderRef:  strings.TrimSpace(cmd.GatewayOrderRef),
		Signature: strings.TrimSpace(cmd.Signature),
		Status:    "success",
	}
	order.UpdatedAt = now

	saved, err := s.orders.UpdateOrder(ctx, order, &expected)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.paid", map[string]any{
		"orderId":   saved.ID,
		"paymentId": cmd.GatewayPaymentRef,
	})

	if err := s.carts.Clear(ctx, saved.UserID); err != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{
			"orderId": saved.ID,
			"userId":  saved.UserID,
			"error":   err.Error(),
		})
	}

	s.sendMail(ctx, saved, notifications.MailKindPaymentReceipt,
		"Payment received",
		fmt.Sprintf("We received your payment of %.2f %s for order %s.", saved.TotalPrice, s.currency, saved.ID))

	return saved, nil
}

// RetryPayment opens a fresh payment intent for an existing unpaid order.
func (s *orderService) RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (PaymentIntentResult, error) {
	if s == nil || s.orders == nil {
		return PaymentIntentResult{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentIntentResult{}, ErrOrderInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return PaymentIntentResult{}, s.translateRepoError(err)
	}
	caller := auth.Identity{UserID: cmd.UserID, Admin: cmd.Admin}
	if !caller.CanAccessOrder(order.UserID) {
		return PaymentIntentResult{}, ErrOrderUnauthorized
	}
	if order.IsPaid {
		return PaymentIntentResult{}, ErrAlreadyPaid
	}

	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentRequest{
		AmountMajor: order.TotalPrice,
		Currency:    s.currency,
		ReceiptID:   order.ID,
	})
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrOrderGateway, err)
	}

	return PaymentIntentResult{
		OrderID:      order.ID,
		IntentID:     intent.ID,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		GatewayKeyID: s.gatewayKeyID,
	}, nil
}

// MarkDelivered records fulfilment of a paid physical order and appends an
// audit note.
func (s *orderService) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	if !order.HasPhysicalItems() {
		return domain.Order{}, ErrNoPhysicalItems
	}
	if order.IsDelivered {
		return domain.Order{}, ErrAlreadyDelivered
	}
	if !order.IsPaid {
		return domain.Order{}, ErrNotPaid
	}

	expected := order.UpdatedAt
	now := s.now()
	order.IsDelivered = true
	order.DeliveredAt = &now
	order.Notes = append(order.Notes, domain.OrderNote{
		ID:        s.newID(),
		Author:    strings.TrimSpace(cmd.Actor),
		Content:   "Order marked as delivered",
		CreatedAt: now,
	})
	order.UpdatedAt = now

	saved, err := s.orders.UpdateOrder(ctx, order, &expected)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.delivered", map[string]any{
		"orderId": saved.ID,
		"actor":   cmd.Actor,
	})

	s.sendMail(ctx, saved, notifications.MailKindDelivered,
		"Your order has been delivered",
		fmt.Sprintf("Order %s was marked as delivered.", saved.ID))

	return saved, nil
}

// SetPaymentStatus force-sets the paid flag from the admin surface, keeping
// an audit note of the override.
func (s *orderService) SetPaymentStatus(ctx context.Context, cmd SetPaymentStatusCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	expected := order.UpdatedAt
	now := s.now()
	actor := strings.TrimSpace(cmd.Actor)

	if cmd.Paid {
		order.IsPaid = true
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
		if order.PaymentResult == nil {
			order.PaymentResult = &domain.PaymentResult{Status: "success"}
		} else {
			order.PaymentResult.Status = "success"
		}
		if external := strings.TrimSpace(cmd.ExternalPaymentID); external != "" {
			order.PaymentResult.PaymentID = external
		}
		order.Notes = append(order.Notes, domain.OrderNote{
			ID:        s.newID(),
			Author:    actor,
			Content:   "PAID by admin",
			CreatedAt: now,
		})
	} else {
		order.IsPaid = false
		order.PaidAt = nil
		order.Notes = append(order.Notes, domain.OrderNote{
			ID:        s.newID(),
			Author:    actor,
			Content:   "UNPAID by admin",
			CreatedAt: now,
		})
	}
	order.UpdatedAt = now

	saved, err := s.orders.UpdateOrder(ctx, order, &expected)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.payment_status_set", map[string]any{
		"orderId": saved.ID,
		"paid":    cmd.Paid,
		"actor":   actor,
	})
	return saved, nil
}

// AddNote appends a sanitized audit note to the order.
func (s *orderService) AddNote(ctx context.Context, cmd AddNoteCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Content))
	if content == "" || len(content) > maxNoteLength {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	expected := order.UpdatedAt
	now := s.now()
	order.Notes = append(order.Notes, domain.OrderNote{
		ID:        s.newID(),
		Author:    strings.TrimSpace(cmd.Author),
		Content:   content,
		CreatedAt: now,
	})
	order.UpdatedAt = now

	saved, err := s.orders.UpdateOrder(ctx, order, &expected)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	return saved, nil
}

// DeleteNote removes a note from the order. A missing note is NotFound.
func (s *orderService) DeleteNote(ctx context.Context, orderID, noteID string) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	idx := -1
	for i, note := range order.Notes {
		if note.ID == noteID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Order{}, ErrOrderNotFound
	}

	expected := order.UpdatedAt
	order.Notes = append(order.Notes[:idx], order.Notes[idx+1:]...)
	order.UpdatedAt = s.now()

	saved, err := s.orders.UpdateOrder(ctx, order, &expected)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	return saved, nil
}

// ListNotes returns the order's notes, oldest first.
func (s *orderService) ListNotes(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	if s == nil || s.orders == nil {
		return nil, ErrOrderUnavailable
	}
	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	if order.Notes == nil {
		return []domain.OrderNote{}, nil
	}
	return order.Notes, nil
}

// GetStatus returns the payment-progress projection for the order's owner or
// an admin.
func (s *orderService) GetStatus(ctx context.Context, query OrderStatusQuery) (OrderStatus, error) {
	if s == nil || s.orders == nil {
		return OrderStatus{}, ErrOrderUnavailable
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(query.OrderID))
	if err != nil {
		return OrderStatus{}, s.translateRepoError(err)
	}
	caller := auth.Identity{UserID: query.UserID, Admin: query.Admin}
	if !caller.CanAccessOrder(order.UserID) {
		return OrderStatus{}, ErrOrderUnauthorized
	}

	status := OrderStatus{
		OrderID:       order.ID,
		IsPaid:        order.IsPaid,
		PaidAt:        order.PaidAt,
		PaymentMethod: order.PaymentMethod,
		PaymentResult: order.PaymentResult,
		TotalPrice:    order.TotalPrice,
		IsDelivered:   order.IsDelivered,
		DeliveredAt:   order.DeliveredAt,
	}
	if !order.IsPaid {
		status.RetryPath = retryPaymentPath
	}
	return status, nil
}

// ListMine returns the caller's order history, newest first.
func (s *orderService) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	if s == nil || s.orders == nil {
		return nil, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrOrderInvalidInput
	}
	orders, err := s.orders.ListByUser(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// AdminList applies the composition filters at the store, resolves the
// keyword against order IDs and the user search, then hydrates owners, sorts,
// and pages the result.
func (s *orderService) AdminList(ctx context.Context, query AdminListQuery) (domain.Page[AdminOrderView], error) {
	if s == nil || s.orders == nil {
		return domain.Page[AdminOrderView]{}, ErrOrderUnavailable
	}

	orders, err := s.orders.ListOrders(ctx, repositories.OrderQuery{
		Paid:      query.Paid,
		Delivered: query.Delivered,
		Kind:      query.Kind,
	})
	if err != nil {
		return domain.Page[AdminOrderView]{}, s.translateRepoError(err)
	}

	if keyword := strings.TrimSpace(query.Keyword); keyword != "" {
		orders = s.filterByKeyword(ctx, orders, keyword)
	}

	views, err := s.hydrateOwners(ctx, orders)
	if err != nil {
		return domain.Page[AdminOrderView]{}, err
	}

	sortAdminViews(views, query.SortBy, query.SortDesc)

	page := query.Page
	if page < 1 {
		page = 1
	}
	total := len(views)
	totalPages := int(math.Ceil(float64(total) / float64(s.pageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * s.pageSize
	if start > total {
		start = total
	}
	end := start + s.pageSize
	if end > total {
		end = total
	}

	return domain.Page[AdminOrderView]{
		Items:      views[start:end],
		Page:       page,
		TotalPages: totalPages,
		TotalCount: total,
	}, nil
}

// AdminGet loads a single order with its owner projection.
func (s *orderService) AdminGet(ctx context.Context, orderID string) (AdminOrderView, error) {
	if s == nil || s.orders == nil {
		return AdminOrderView{}, ErrOrderUnavailable
	}
	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return AdminOrderView{}, s.translateRepoError(err)
	}
	return AdminOrderView{Order: order, Owner: s.lookupOwner(ctx, order.UserID)}, nil
}

// AdminDelete removes the order permanently. Orders are otherwise never
// physically deleted.
func (s *orderService) AdminDelete(ctx context.Context, orderID string) error {
	if s == nil || s.orders == nil {
		return ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return ErrOrderInvalidInput
	}
	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "order.deleted", map[string]any{"orderId": id})
	return nil
}

// Stats aggregates the admin dashboard figures over all orders.
func (s *orderService) Stats(ctx context.Context) (OrderStats, error) {
	if s == nil || s.orders == nil {
		return OrderStats{}, ErrOrderUnavailable
	}

	orders, err := s.orders.ListOrders(ctx, repositories.OrderQuery{})
	if err != nil {
		return OrderStats{}, s.translateRepoError(err)
	}

	now := s.now()
	stats := OrderStats{
		RevenueByPaymentMethod: make(map[string]RevenueCount),
		RevenueByItemKind:      make(map[string]RevenueCount),
		RecentOrders:           []OrderSummary{},
	}

	for _, order := range orders {
		if !order.IsPaid {
			stats.UnpaidCount++
			continue
		}

		stats.PaidCount++
		stats.TotalRevenue += order.TotalPrice
		if order.PaidAt != nil && sameDay(order.PaidAt.UTC(), now) {
			stats.TodayRevenue += order.TotalPrice
		}
		if order.IsDelivered {
			stats.DeliveredCount++
		} else if order.HasPhysicalItems() {
			stats.PendingPhysicalCount++
		}
		if order.DigitalOnly() {
			stats.DigitalOnlyPaidCount++
		}

		method := order.PaymentMethod
		if method == "" {
			method = "unknown"
		}
		entry := stats.RevenueByPaymentMethod[method]
		entry.Revenue = domain.RoundMoney(entry.Revenue + order.TotalPrice)
		entry.Count++
		stats.RevenueByPaymentMethod[method] = entry

		for _, line := range order.Items {
			kindEntry := stats.RevenueByItemKind[string(line.Ref.Kind)]
			kindEntry.Revenue = domain.RoundMoney(kindEntry.Revenue + line.Total())
			kindEntry.Count++
			stats.RevenueByItemKind[string(line.Ref.Kind)] = kindEntry
		}
	}

	stats.TotalRevenue = domain.RoundMoney(stats.TotalRevenue)
	stats.TodayRevenue = domain.RoundMoney(stats.TodayRevenue)

	recent, err := s.orders.ListRecent(ctx, defaultRecentLimit)
	if err != nil {
		return OrderStats{}, s.translateRepoError(err)
	}
	for _, order := range recent {
		stats.RecentOrders = append(stats.RecentOrders, OrderSummary{
			ID:          order.ID,
			UserID:      order.UserID,
			TotalPrice:  order.TotalPrice,
			IsPaid:      order.IsPaid,
			IsDelivered: order.IsDelivered,
			CreatedAt:   order.CreatedAt,
		})
	}

	return stats, nil
}

// ContactCustomer sends a free-form admin message to the order's owner via
// the notification port. Unlike lifecycle mails this is the operation itself,
// so dispatch failures propagate.
func (s *orderService) ContactCustomer(ctx context.Context, cmd ContactCustomerCommand) error {
	if s == nil || s.orders == nil {
		return ErrOrderUnavailable
	}
	if s.mailer == nil || s.users == nil {
		return ErrOrderUnavailable
	}

	subject := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Subject))
	message := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Message))
	if subject == "" || message == "" {
		return ErrOrderInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return s.translateRepoError(err)
	}

	owner, err := s.users.FindUser(ctx, order.UserID)
	if err != nil || strings.TrimSpace(owner.Email) == "" {
		return ErrOrderUnavailable
	}

	if err := s.mailer.Dispatch(ctx, notifications.MailIntent{
		To:      owner.Email,
		Subject: subject,
		Body:    message,
		Kind:    notifications.MailKindAdminMessage,
		OrderID: order.ID,
	}); err != nil {
		s.logger(ctx, "order.contact_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	s.logger(ctx, "order.contact_sent", map[string]any{
		"orderId": order.ID,
		"actor":   cmd.Actor,
	})
	return nil
}

// sendMail emits a lifecycle mail intent best-effort: failures are logged
// and never surfaced to the caller.
func (s *orderService) sendMail(ctx context.Context, order domain.Order, kind notifications.MailKind, subject, body string) {
	if s.mailer == nil || s.users == nil {
		return
	}

	owner, err := s.users.FindUser(ctx, order.UserID)
	if err != nil || strings.TrimSpace(owner.Email) == "" {
		s.logger(ctx, "order.mail_recipient_unresolved", map[string]any{
			"orderId": order.ID,
			"userId":  order.UserID,
		})
		return
	}

	if err := s.mailer.Dispatch(ctx, notifications.MailIntent{
		To:      owner.Email,
		Subject: subject,
		Body:    body,
		Kind:    kind,
		OrderID: order.ID,
	}); err != nil {
		s.logger(ctx, "order.mail_dispatch_failed", map[string]any{
			"orderId": order.ID,
			"kind":    string(kind),
			"error":   err.Error(),
		})
	}
}

func (s *orderService) hydrateOwners(ctx context.Context, orders []domain.Order) ([]AdminOrderView, error) {
	views := make([]AdminOrderView, 0, len(orders))
	cache := make(map[string]domain.UserSummary)
	for _, order := range orders {
		owner, ok := cache[order.UserID]
		if !ok {
			owner = s.lookupOwner(ctx, order.UserID)
			cache[order.UserID] = owner
		}
		views = append(views, AdminOrderView{Order: order, Owner: owner})
	}
	return views, nil
}

func (s *orderService) lookupOwner(ctx context.Context, userID string) domain.UserSummary {
	if s.users == nil {
		return domain.UserSummary{ID: userID}
	}
	owner, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return domain.UserSummary{ID: userID}
	}
	return owner
}

// filterByKeyword keeps orders whose ID starts with the keyword or whose
// owner matches the user search by name or email. A failed user search
// degrades to the ID-prefix match rather than failing the listing.
func (s *orderService) filterByKeyword(ctx context.Context, orders []domain.Order, keyword string) []domain.Order {
	needle := strings.ToLower(keyword)

	matchedOwners := make(map[string]struct{})
	if s.users != nil {
		owners, err := s.users.SearchUsers(ctx, keyword)
		if err != nil {
			s.logger(ctx, "order.owner_search_failed", map[string]any{
				"keyword": keyword,
				"error":   err.Error(),
			})
		}
		for _, owner := range owners {
			matchedOwners[owner.ID] = struct{}{}
		}
	}

	filtered := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if strings.HasPrefix(strings.ToLower(order.ID), needle) {
			filtered = append(filtered, order)
			continue
		}
		if _, ok := matchedOwners[order.UserID]; ok {
			filtered = append(filtered, order)
		}
	}
	return filtered
}

func sortAdminViews(views []AdminOrderView, key OrderSortKey, desc bool) {
	less := func(a, b AdminOrderView) bool {
		switch key {
		case SortByTotalPrice:
			return a.Order.TotalPrice < b.Order.TotalPrice
		case SortByPaid:
			return !a.Order.IsPaid && b.Order.IsPaid
		case SortByDelivered:
			return !a.Order.IsDelivered && b.Order.IsDelivered
		case SortByOwnerName:
			return strings.ToLower(a.Owner.Name) < strings.ToLower(b.Owner.Name)
		default:
			return a.Order.CreatedAt.Before(b.Order.CreatedAt)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if desc {
			return less(views[j], views[i])
		}
		return less(views[i], views[j])
	})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
		return ErrOrderUnavailable
	}
	return ErrOrderUnavailable
}
