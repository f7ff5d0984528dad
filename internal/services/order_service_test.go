package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/notifications"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/payments"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
)

type stubOrderRepo struct {
	orders  map[string]domain.Order
	created []string
}

func newStubOrderRepo(orders ...domain.Order) *stubOrderRepo {
	repo := &stubOrderRepo{orders: make(map[string]domain.Order)}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (r *stubOrderRepo) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	r.orders[order.ID] = order
	r.created = append(r.created, order.ID)
	return order, nil
}

func (r *stubOrderRepo) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	return order, nil
}

func (r *stubOrderRepo) UpdateOrder(_ context.Context, order domain.Order, expected *time.Time) (domain.Order, error) {
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	if expected != nil && !stored.UpdatedAt.Equal(*expected) {
		return domain.Order{}, errStubConflict
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) DeleteOrder(_ context.Context, orderID string) error {
	if _, ok := r.orders[orderID]; !ok {
		return errStubNotFound
	}
	delete(r.orders, orderID)
	return nil
}

func (r *stubOrderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) ListOrders(_ context.Context, query repositories.OrderQuery) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		if query.UserID != "" && order.UserID != query.UserID {
			continue
		}
		if query.Paid != nil && order.IsPaid != *query.Paid {
			continue
		}
		if query.Delivered != nil && order.IsDelivered != *query.Delivered {
			continue
		}
		switch query.Kind {
		case repositories.KindFilterProduct:
			if !order.HasPhysicalItems() || order.Mixed() {
				continue
			}
		case repositories.KindFilterCourse:
			if !order.DigitalOnly() {
				continue
			}
		case repositories.KindFilterMixed:
			if !order.Mixed() {
				continue
			}
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *stubOrderRepo) ListRecent(_ context.Context, limit int) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		out = append(out, order)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type stubUserRepo struct {
	users       map[string]domain.UserSummary
	searchCalls int
}

func newStubUserRepo(users ...domain.UserSummary) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]domain.UserSummary)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *stubUserRepo) FindUser(_ context.Context, userID string) (domain.UserSummary, error) {
	user, ok := r.users[userID]
	if !ok {
		return domain.UserSummary{}, errStubNotFound
	}
	return user, nil
}

func (r *stubUserRepo) SearchUsers(_ context.Context, keyword string) ([]domain.UserSummary, error) {
	r.searchCalls++
	needle := strings.ToLower(keyword)
	var out []domain.UserSummary
	for _, user := range r.users {
		if strings.Contains(strings.ToLower(user.Name), needle) || strings.Contains(strings.ToLower(user.Email), needle) {
			out = append(out, user)
		}
	}
	return out, nil
}

type stubGateway struct {
	validSignature string
	failCreate     bool
	intents        []payments.CreateIntentRequest
}

func (g *stubGateway) CreateIntent(_ context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
	if g.failCreate {
		return payments.Intent{}, errors.New("provider unreachable")
	}
	g.intents = append(g.intents, req)
	return payments.Intent{
		ID:       "intent-" + req.ReceiptID,
		Amount:   domain.MinorUnits(req.AmountMajor),
		Currency: req.Currency,
	}, nil
}

func (g *stubGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return signature == g.validSignature && orderRef != "" && paymentRef != ""
}

type stubMailer struct {
	intents      []notifications.MailIntent
	failDispatch bool
}

func (m *stubMailer) Dispatch(_ context.Context, intent notifications.MailIntent) error {
	if m.failDispatch {
		return errors.New("topic unavailable")
	}
	m.intents = append(m.intents, intent)
	return nil
}

// countingCartService wraps a CartService so tests can assert the order
// lifecycle goes through the cart port rather than the repository.
type countingCartService struct {
	CartService
	cleared []string
}

func (c *countingCartService) Clear(ctx context.Context, userID string) error {
	c.cleared = append(c.cleared, userID)
	return c.CartService.Clear(ctx, userID)
}

type orderServiceFixture struct {
	orders  *stubOrderRepo
	carts   *stubCartRepo
	cartSvc *countingCartService
	users   *stubUserRepo
	gateway *stubGateway
	mailer  *stubMailer
	clock   time.Time
	service OrderService
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
	t.Helper()
	fixture := &orderServiceFixture{
		orders:  newStubOrderRepo(),
		carts:   newStubCartRepo(),
		users:   newStubUserRepo(domain.UserSummary{ID: "user-1", Name: "Asha Rao", Email: "asha@example.com"}),
		gateway: &stubGateway{validSignature: "valid-signature"},
		mailer:  &stubMailer{},
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	fixture.cartSvc = &countingCartService{
		CartService: newTestCartService(t, fixture.carts, newStubCatalogRepo()),
	}

	svc, err := NewOrderService(OrderServiceDeps{
		Orders:       fixture.orders,
		Carts:        fixture.cartSvc,
		Users:        fixture.users,
		Gateway:      fixture.gateway,
		Mailer:       fixture.mailer,
		Clock:        fixedClock(fixture.clock),
		IDGenerator:  sequentialIDs("id-"),
		Currency:     "INR",
		GatewayKeyID: "key_test",
		PageSize:     2,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	fixture.service = svc
	return fixture
}

func (f *orderServiceFixture) seedCart(userID string, items ...domain.CartItem) {
	f.carts.carts[userID] = domain.Cart{
		ID:         userID,
		UserID:     userID,
		Items:      items,
		TotalPrice: domain.CartTotal(items),
		UpdatedAt:  f.clock.Add(-time.Hour),
	}
}

func productLine(id string, price float64, qty int) domain.CartItem {
	return domain.CartItem{
		ID:        "line-" + id,
		Ref:       domain.CatalogRef{Kind: domain.ItemKindProduct, ID: id},
		Name:      "Product " + id,
		Quantity:  qty,
		UnitPrice: price,
	}
}

func courseLine(id string, price float64, qty int) domain.CartItem {
	return domain.CartItem{
		ID:        "line-" + id,
		Ref:       domain.CatalogRef{Kind: domain.ItemKindCourse, ID: id},
		Name:      "Course " + id,
		Quantity:  qty,
		UnitPrice: price,
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.Checkout(context.Background(), CheckoutCommand{UserID: "user-1"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
	if len(f.orders.created) != 0 {
		t.Fatalf("no order should be written, got %v", f.orders.created)
	}
}

func TestCheckoutPricesAndOpensIntent(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedCart("user-1", productLine("p1", 1000.00, 2), courseLine("c1", 500.00, 1))

	result, err := f.service.Checkout(context.Background(), CheckoutCommand{
		UserID:          "user-1",
		PaymentMethod:   "upi",
		ShippingAddress: &domain.Address{FullName: "Asha Rao", Line1: "12 MG Road", City: "Bengaluru", PostalCode: "560001", Country: "IN"},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	order := f.orders.orders[result.OrderID]
	if order.ItemsPrice != 2500.00 || order.TaxPrice != 450.00 || order.ShippingPrice != 100.00 || order.TotalPrice != 3050.00 {
		t.Fatalf("pricing = %v/%v/%v/%v, want 2500/450/100/3050",
			order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice)
	}
	if order.IsPaid {
		t.Fatal("order must start unpaid")
	}
	if result.Amount != 305000 {
		t.Fatalf("intent amount = %d minor units, want 305000", result.Amount)
	}
	if result.GatewayKeyID != "key_test" {
		t.Fatalf("gateway key id = %q", result.GatewayKeyID)
	}
	if len(f.gateway.intents) != 1 || f.gateway.intents[0].ReceiptID != result.OrderID {
		t.Fatalf("gateway receipt should be the order id, got %+v", f.gateway.intents)
	}
	if len(f.carts.clearedUsers) != 0 {
		t.Fatal("cart must not be cleared at checkout")
	}
	if len(f.mailer.intents) != 1 || f.mailer.intents[0].Kind != notifications.MailKindOrderConfirmation {
		t.Fatalf("expected one confirmation mail, got %+v", f.mailer.intents)
	}
}

func TestCheckoutDigitalOnlySkipsShipping(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedCart("user-1", courseLine("c1", 500.00, 1))

	result, err := f.service.Checkout(context.Background(), CheckoutCommand{UserID: "user-1", PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	order := f.orders.orders[result.OrderID]
	if order.ShippingPrice != 0 || order.TotalPrice != 590.00 {
		t.Fatalf("digital-only pricing = shipping %v total %v, want 0/590", order.ShippingPrice, order.TotalPrice)
	}
}

func TestCheckoutPhysicalRequiresAddress(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedCart("user-1", productLine("p1", 100.00, 1))

	_, err := f.service.Checkout(context.Background(), CheckoutCommand{UserID: "user-1"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("err = %v, want ErrOrderInvalidInput", err)
	}
}

func TestCheckoutGatewayFailure(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.gateway.failCreate = true
	f.seedCart("user-1", courseLine("c1", 100.00, 1))

	_, err := f.service.Checkout(context.Background(), CheckoutCommand{UserID: "user-1"})
	if !errors.Is(err, ErrOrderGateway) {
		t.Fatalf("err = %v, want ErrOrderGateway", err)
	}
	// The order survives so the buyer can retry the payment.
	if len(f.orders.created) != 1 {
		t.Fatalf("order should be persisted before the gateway call, created = %v", f.orders.created)
	}
}

func checkoutOrder(t *testing.T, f *orderServiceFixture, items ...domain.CartItem) domain.Order {
	t.Helper()
	f.seedCart("user-1", items...)
	result, err := f.service.Checkout(context.Background(), CheckoutCommand{
		UserID:          "user-1",
		PaymentMethod:   "upi",
		ShippingAddress: &domain.Address{FullName: "Asha Rao", Line1: "12 MG Road", City: "Bengaluru", PostalCode: "560001", Country: "IN"},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	return f.orders.orders[result.OrderID]
}

func TestVerifyPaymentForgedSignature(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, productLine("p1", 1000.00, 1))

	_, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID:            "user-1",
		OrderID:           order.ID,
		GatewayOrderRef:   "intent-" + order.ID,
		GatewayPaymentRef: "pay-1",
		Signature:         "forged",
	})
	if !errors.Is(err, ErrPaymentVerificationFailed) {
		t.Fatalf("err = %v, want ErrPaymentVerificationFailed", err)
	}
	if f.orders.orders[order.ID].IsPaid {
		t.Fatal("forged signature must leave the order unpaid")
	}
	if len(f.carts.clearedUsers) != 0 {
		t.Fatal("forged signature must leave the cart intact")
	}
}

func TestVerifyPaymentSuccess(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, productLine("p1", 1000.00, 1))
	f.mailer.intents = nil

	saved, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID:            "user-1",
		OrderID:           order.ID,
		GatewayOrderRef:   "intent-" + order.ID,
		GatewayPaymentRef: "pay-1",
		Signature:         "valid-signature",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !saved.IsPaid || saved.PaidAt == nil {
		t.Fatalf("order not marked paid: %+v", saved)
	}
	if saved.PaymentResult == nil || saved.PaymentResult.PaymentID != "pay-1" || saved.PaymentResult.Status != "success" {
		t.Fatalf("payment result = %+v", saved.PaymentResult)
	}
	if len(f.carts.clearedUsers) != 1 || f.carts.clearedUsers[0] != "user-1" {
		t.Fatalf("cart not cleared after payment, cleared = %v", f.carts.clearedUsers)
	}
	if len(f.mailer.intents) != 1 || f.mailer.intents[0].Kind != notifications.MailKindPaymentReceipt {
		t.Fatalf("expected payment receipt mail, got %+v", f.mailer.intents)
	}
}

func TestVerifyPaymentClearsCartViaCartService(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, productLine("p1", 500.00, 1))

	_, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID:            "user-1",
		OrderID:           order.ID,
		GatewayOrderRef:   "intent-" + order.ID,
		GatewayPaymentRef: "pay-1",
		Signature:         "valid-signature",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if len(f.cartSvc.cleared) != 1 || f.cartSvc.cleared[0] != "user-1" {
		t.Fatalf("post-payment clear must go through the cart service, cleared = %v", f.cartSvc.cleared)
	}
}

func TestVerifyPaymentOwnership(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))

	_, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID:            "intruder",
		OrderID:           order.ID,
		GatewayOrderRef:   "ref",
		GatewayPaymentRef: "pay",
		Signature:         "valid-signature",
	})
	if !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("err = %v, want ErrOrderUnauthorized", err)
	}
}

func TestVerifyPaymentReplayIsNoop(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))

	cmd := VerifyPaymentCommand{
		UserID:            "user-1",
		OrderID:           order.ID,
		GatewayOrderRef:   "ref",
		GatewayPaymentRef: "pay",
		Signature:         "valid-signature",
	}
	if _, err := f.service.VerifyPayment(context.Background(), cmd); err != nil {
		t.Fatalf("first VerifyPayment: %v", err)
	}
	cleared := len(f.carts.clearedUsers)

	replayed, err := f.service.VerifyPayment(context.Background(), cmd)
	if err != nil {
		t.Fatalf("replayed VerifyPayment: %v", err)
	}
	if !replayed.IsPaid {
		t.Fatal("replay should return the paid order")
	}
	if len(f.carts.clearedUsers) != cleared {
		t.Fatal("replay must not clear the cart again")
	}
}

func TestVerifyPaymentMailFailureDoesNotFailTransition(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	f.mailer.failDispatch = true

	saved, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID:            "user-1",
		OrderID:           order.ID,
		GatewayOrderRef:   "ref",
		GatewayPaymentRef: "pay",
		Signature:         "valid-signature",
	})
	if err != nil {
		t.Fatalf("VerifyPayment with failing mailer: %v", err)
	}
	if !saved.IsPaid {
		t.Fatal("payment state must persist despite mail failure")
	}
}

func TestRetryPaymentAlreadyPaid(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))

	if _, err := f.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: order.ID, GatewayOrderRef: "ref", GatewayPaymentRef: "pay", Signature: "valid-signature",
	}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	_, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{UserID: "user-1", OrderID: order.ID})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
}

func TestRetryPaymentIssuesFreshIntent(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, productLine("p1", 1000.00, 1))
	before := len(f.gateway.intents)

	result, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{UserID: "user-1", OrderID: order.ID})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if result.OrderID != order.ID {
		t.Fatalf("retry must reuse the order, got %q", result.OrderID)
	}
	if len(f.gateway.intents) != before+1 {
		t.Fatal("expected a fresh gateway intent")
	}
	if len(f.orders.created) != 1 {
		t.Fatal("retry must not create a new order")
	}
}

func TestMarkDeliveredGuards(t *testing.T) {
	f := newOrderServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.MarkDelivered(ctx, MarkDeliveredCommand{OrderID: "missing"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order: err = %v, want ErrOrderNotFound", err)
	}

	digital := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	if _, err := f.service.MarkDelivered(ctx, MarkDeliveredCommand{OrderID: digital.ID}); !errors.Is(err, ErrNoPhysicalItems) {
		t.Fatalf("digital order: err = %v, want ErrNoPhysicalItems", err)
	}

	physical := checkoutOrder(t, f, productLine("p1", 200.00, 1))
	if _, err := f.service.MarkDelivered(ctx, MarkDeliveredCommand{OrderID: physical.ID}); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("unpaid order: err = %v, want ErrNotPaid", err)
	}

	if _, err := f.service.VerifyPayment(ctx, VerifyPaymentCommand{
		UserID: "user-1", OrderID: physical.ID, GatewayOrderRef: "ref", GatewayPaymentRef: "pay", Signature: "valid-signature",
	}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	delivered, err := f.service.MarkDelivered(ctx, MarkDeliveredCommand{OrderID: physical.ID, Actor: "admin-1"})
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !delivered.IsDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("delivery state not set: %+v", delivered)
	}
	if len(delivered.Notes) == 0 || delivered.Notes[len(delivered.Notes)-1].Content != "Order marked as delivered" {
		t.Fatalf("expected delivery audit note, notes = %+v", delivered.Notes)
	}

	if _, err := f.service.MarkDelivered(ctx, MarkDeliveredCommand{OrderID: physical.ID}); !errors.Is(err, ErrAlreadyDelivered) {
		t.Fatalf("second delivery: err = %v, want ErrAlreadyDelivered", err)
	}
}

func TestSetPaymentStatusOverride(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	ctx := context.Background()

	paid, err := f.service.SetPaymentStatus(ctx, SetPaymentStatusCommand{
		OrderID: order.ID, Paid: true, ExternalPaymentID: "bank-txn-9", Actor: "admin-1",
	})
	if err != nil {
		t.Fatalf("SetPaymentStatus paid: %v", err)
	}
	if !paid.IsPaid || paid.PaidAt == nil {
		t.Fatalf("paid state not set: %+v", paid)
	}
	if paid.PaymentResult == nil || paid.PaymentResult.PaymentID != "bank-txn-9" || paid.PaymentResult.Status != "success" {
		t.Fatalf("payment result = %+v", paid.PaymentResult)
	}
	if paid.Notes[len(paid.Notes)-1].Content != "PAID by admin" {
		t.Fatalf("expected PAID audit note, notes = %+v", paid.Notes)
	}

	unpaid, err := f.service.SetPaymentStatus(ctx, SetPaymentStatusCommand{OrderID: order.ID, Paid: false, Actor: "admin-1"})
	if err != nil {
		t.Fatalf("SetPaymentStatus unpaid: %v", err)
	}
	if unpaid.IsPaid || unpaid.PaidAt != nil {
		t.Fatalf("unpaid override did not clear paid state: %+v", unpaid)
	}
	if unpaid.Notes[len(unpaid.Notes)-1].Content != "UNPAID by admin" {
		t.Fatalf("expected UNPAID audit note, notes = %+v", unpaid.Notes)
	}
}

func TestAddNoteSanitizesContent(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	ctx := context.Background()

	saved, err := f.service.AddNote(ctx, AddNoteCommand{
		OrderID: order.ID,
		Author:  "admin-1",
		Content: `Customer called <script>alert("x")</script> about delivery`,
	})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	note := saved.Notes[len(saved.Notes)-1]
	if strings.Contains(note.Content, "<script>") {
		t.Fatalf("markup not stripped: %q", note.Content)
	}
	if !strings.Contains(note.Content, "Customer called") {
		t.Fatalf("text content lost: %q", note.Content)
	}

	if _, err := f.service.AddNote(ctx, AddNoteCommand{OrderID: order.ID, Content: "<script>only markup</script>"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("markup-only note: err = %v, want ErrOrderInvalidInput", err)
	}
}

func TestDeleteNote(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	ctx := context.Background()

	saved, err := f.service.AddNote(ctx, AddNoteCommand{OrderID: order.ID, Author: "admin-1", Content: "check stock"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	noteID := saved.Notes[0].ID

	if _, err := f.service.DeleteNote(ctx, order.ID, "missing-note"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing note: err = %v, want ErrOrderNotFound", err)
	}

	after, err := f.service.DeleteNote(ctx, order.ID, noteID)
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if len(after.Notes) != 0 {
		t.Fatalf("note not removed: %+v", after.Notes)
	}
}

func TestGetStatusRetryHint(t *testing.T) {
	f := newOrderServiceFixture(t)
	order := checkoutOrder(t, f, courseLine("c1", 100.00, 1))
	ctx := context.Background()

	status, err := f.service.GetStatus(ctx, OrderStatusQuery{UserID: "user-1", OrderID: order.ID})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.IsPaid || status.RetryPath == "" {
		t.Fatalf("unpaid status must carry a retry hint: %+v", status)
	}

	if _, err := f.service.VerifyPayment(ctx, VerifyPaymentCommand{
		UserID: "user-1", OrderID: order.ID, GatewayOrderRef: "ref", GatewayPaymentRef: "pay", Signature: "valid-signature",
	}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	status, err = f.service.GetStatus(ctx, OrderStatusQuery{UserID: "user-1", OrderID: order.ID})
	if err != nil {
		t.Fatalf("GetStatus after payment: %v", err)
	}
	if !status.IsPaid || status.RetryPath != "" {
		t.Fatalf("paid status must not carry a retry hint: %+v", status)
	}

	if _, err := f.service.GetStatus(ctx, OrderStatusQuery{UserID: "intruder", OrderID: order.ID}); !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("foreign status read: err = %v, want ErrOrderUnauthorized", err)
	}
	if _, err := f.service.GetStatus(ctx, OrderStatusQuery{UserID: "intruder", Admin: true, OrderID: order.ID}); err != nil {
		t.Fatalf("admin status read: %v", err)
	}
}

func seedAdminOrders(f *orderServiceFixture) {
	now := f.clock
	paidAt := now.Add(-time.Hour)
	f.users.users["user-2"] = domain.UserSummary{ID: "user-2", Name: "Bhavesh Kumar", Email: "bhavesh@example.com"}

	f.orders.orders["ord-physical"] = domain.Order{
		ID: "ord-physical", UserID: "user-1", TotalPrice: 3050,
		Items:     []domain.OrderLineItem{{Ref: domain.CatalogRef{Kind: domain.ItemKindProduct, ID: "p1"}, Quantity: 2, UnitPrice: 1000}},
		IsPaid:    true, PaidAt: &paidAt,
		PaymentMethod: "upi", CreatedAt: now.Add(-3 * time.Hour), UpdatedAt: now,
	}
	f.orders.orders["ord-digital"] = domain.Order{
		ID: "ord-digital", UserID: "user-2", TotalPrice: 590,
		Items:     []domain.OrderLineItem{{Ref: domain.CatalogRef{Kind: domain.ItemKindCourse, ID: "c1"}, Quantity: 1, UnitPrice: 500}},
		IsPaid:    true, PaidAt: &paidAt,
		PaymentMethod: "card", CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now,
	}
	f.orders.orders["ord-mixed"] = domain.Order{
		ID: "ord-mixed", UserID: "user-2", TotalPrice: 1770,
		Items: []domain.OrderLineItem{
			{Ref: domain.CatalogRef{Kind: domain.ItemKindProduct, ID: "p2"}, Quantity: 1, UnitPrice: 1000},
			{Ref: domain.CatalogRef{Kind: domain.ItemKindCourse, ID: "c2"}, Quantity: 1, UnitPrice: 500},
		},
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	}
}

func TestAdminListMixedFilterRequiresBothKinds(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)

	page, err := f.service.AdminList(context.Background(), AdminListQuery{Kind: repositories.KindFilterMixed})
	if err != nil {
		t.Fatalf("AdminList: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].Order.ID != "ord-mixed" {
		t.Fatalf("mixed filter must match only orders with both kinds, got %+v", page.Items)
	}
}

func TestAdminListKeywordAndSort(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)
	ctx := context.Background()

	byOwner, err := f.service.AdminList(ctx, AdminListQuery{Keyword: "bhavesh"})
	if err != nil {
		t.Fatalf("AdminList keyword: %v", err)
	}
	if byOwner.TotalCount != 2 {
		t.Fatalf("keyword by owner matched %d orders, want 2", byOwner.TotalCount)
	}
	if f.users.searchCalls != 1 {
		t.Fatalf("owner keyword must resolve through the user search, calls = %d", f.users.searchCalls)
	}

	byID, err := f.service.AdminList(ctx, AdminListQuery{Keyword: "ord-phys"})
	if err != nil {
		t.Fatalf("AdminList id prefix: %v", err)
	}
	if byID.TotalCount != 1 || byID.Items[0].Order.ID != "ord-physical" {
		t.Fatalf("id prefix match = %+v", byID.Items)
	}

	sorted, err := f.service.AdminList(ctx, AdminListQuery{SortBy: SortByTotalPrice, SortDesc: true})
	if err != nil {
		t.Fatalf("AdminList sorted: %v", err)
	}
	if sorted.Items[0].Order.ID != "ord-physical" {
		t.Fatalf("desc totalPrice sort, first = %q", sorted.Items[0].Order.ID)
	}
}

func TestAdminListPagination(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)

	page, err := f.service.AdminList(context.Background(), AdminListQuery{Page: 2})
	if err != nil {
		t.Fatalf("AdminList page 2: %v", err)
	}
	if page.TotalCount != 3 || page.TotalPages != 2 {
		t.Fatalf("totals = %d/%d, want 3 items over 2 pages", page.TotalCount, page.TotalPages)
	}
	if len(page.Items) != 1 {
		t.Fatalf("page 2 size = %d, want 1", len(page.Items))
	}
}

func TestStatsAggregation(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)

	stats, err := f.service.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.TotalRevenue != 3640.00 {
		t.Fatalf("total revenue = %v, want 3640 (paid orders only)", stats.TotalRevenue)
	}
	if stats.TodayRevenue != 3640.00 {
		t.Fatalf("today revenue = %v, want 3640", stats.TodayRevenue)
	}
	if stats.PaidCount != 2 || stats.UnpaidCount != 1 {
		t.Fatalf("paid/unpaid = %d/%d, want 2/1", stats.PaidCount, stats.UnpaidCount)
	}
	if stats.PendingPhysicalCount != 1 {
		t.Fatalf("pending physical = %d, want 1", stats.PendingPhysicalCount)
	}
	if stats.DigitalOnlyPaidCount != 1 {
		t.Fatalf("digital-only paid = %d, want 1", stats.DigitalOnlyPaidCount)
	}
	if got := stats.RevenueByPaymentMethod["upi"]; got.Revenue != 3050.00 || got.Count != 1 {
		t.Fatalf("upi bucket = %+v", got)
	}
	if got := stats.RevenueByItemKind["product"]; got.Revenue != 2000.00 {
		t.Fatalf("product kind revenue = %v, want 2000", got.Revenue)
	}
	if got := stats.RevenueByItemKind["course"]; got.Revenue != 500.00 {
		t.Fatalf("course kind revenue = %v, want 500", got.Revenue)
	}
	if len(stats.RecentOrders) != 3 {
		t.Fatalf("recent orders = %d, want 3", len(stats.RecentOrders))
	}
}

func TestAdminDelete(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)
	ctx := context.Background()

	if err := f.service.AdminDelete(ctx, "ord-digital"); err != nil {
		t.Fatalf("AdminDelete: %v", err)
	}
	if _, ok := f.orders.orders["ord-digital"]; ok {
		t.Fatal("order not deleted")
	}
	if err := f.service.AdminDelete(ctx, "ord-digital"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("second delete: err = %v, want ErrOrderNotFound", err)
	}
}

func TestContactCustomer(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)
	ctx := context.Background()

	if err := f.service.ContactCustomer(ctx, ContactCustomerCommand{
		OrderID: "ord-physical", Subject: "Delivery delay", Message: "Your parcel is delayed by two days.", Actor: "admin-1",
	}); err != nil {
		t.Fatalf("ContactCustomer: %v", err)
	}
	if len(f.mailer.intents) != 1 || f.mailer.intents[0].To != "asha@example.com" {
		t.Fatalf("mail intents = %+v", f.mailer.intents)
	}
	if f.mailer.intents[0].Kind != notifications.MailKindAdminMessage {
		t.Fatalf("mail kind = %q", f.mailer.intents[0].Kind)
	}

	if err := f.service.ContactCustomer(ctx, ContactCustomerCommand{OrderID: "ord-physical", Subject: "x", Message: "<script></script>"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("empty sanitized message: err = %v, want ErrOrderInvalidInput", err)
	}

	f.mailer.failDispatch = true
	if err := f.service.ContactCustomer(ctx, ContactCustomerCommand{
		OrderID: "ord-physical", Subject: "again", Message: "hello",
	}); !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("dispatch failure: err = %v, want ErrOrderUnavailable", err)
	}
}

func TestListMine(t *testing.T) {
	f := newOrderServiceFixture(t)
	seedAdminOrders(f)

	orders, err := f.service.ListMine(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("user-2 orders = %d, want 2", len(orders))
	}
}
