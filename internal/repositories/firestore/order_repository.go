package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	pfirestore "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/firestore"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
)

const orderCollection = "orders"

type orderDocument struct {
	UserID          string                 `firestore:"userId"`
	Items           []orderLineDocument    `firestore:"items"`
	ShippingAddress *addressDocument       `firestore:"shippingAddress,omitempty"`
	PaymentMethod   string                 `firestore:"paymentMethod"`
	ItemsPrice      float64                `firestore:"itemsPrice"`
	TaxPrice        float64                `firestore:"taxPrice"`
	ShippingPrice   float64                `firestore:"shippingPrice"`
	TotalPrice      float64                `firestore:"totalPrice"`
	IsPaid          bool                   `firestore:"isPaid"`
	PaidAt          *time.Time             `firestore:"paidAt,omitempty"`
	PaymentResult   *paymentResultDocument `firestore:"paymentResult,omitempty"`
	IsDelivered     bool                   `firestore:"isDelivered"`
	DeliveredAt     *time.Time             `firestore:"deliveredAt,omitempty"`
	Notes           []orderNoteDocument    `firestore:"notes"`
	HasProduct      bool                   `firestore:"hasProduct"`
	HasCourse       bool                   `firestore:"hasCourse"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
}

type orderLineDocument struct {
	Kind      string  `firestore:"kind"`
	RefID     string  `firestore:"refId"`
	Name      string  `firestore:"name"`
	Image     string  `firestore:"image,omitempty"`
	Quantity  int     `firestore:"quantity"`
	UnitPrice float64 `firestore:"unitPrice"`
}

type paymentResultDocument struct {
	PaymentID string `firestore:"paymentId"`
	OrderRef  string `firestore:"orderRef,omitempty"`
	Signature string `firestore:"signature,omitempty"`
	Status    string `firestore:"status"`
}

type orderNoteDocument struct {
	ID        string    `firestore:"id"`
	Author    string    `firestore:"author"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type addressDocument struct {
	FullName   string  `firestore:"fullName"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

// OrderRepository persists order documents in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil),
	}, nil
}

// CreateOrder writes a new order document under the pre-generated order ID.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := orderToDocument(order)
	result, err := r.base.Set(ctx, orderID, doc)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(orderID, doc, result.UpdateTime), nil
}

// GetOrder loads an order by ID. The returned UpdatedAt carries the stored
// document's update time for use as an optimistic write precondition.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data, doc.UpdateTime), nil
}

// UpdateOrder rewrites the order document, guarded by the stored update time
// when expectedUpdate is provided.
func (r *OrderRepository) UpdateOrder(ctx context.Context, order domain.Order, expectedUpdate *time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := orderToDocument(order)

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, orderID, doc)
		if err != nil {
			return domain.Order{}, err
		}
		return orderFromDocument(orderID, doc, result.UpdateTime), nil
	}

	updates := []firestore.Update{
		{Path: "isPaid", Value: doc.IsPaid},
		{Path: "isDelivered", Value: doc.IsDelivered},
		{Path: "notes", Value: doc.Notes},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	appendOptional := func(path string, ptr any, present bool) {
		if present {
			updates = append(updates, firestore.Update{Path: path, Value: ptr})
		} else {
			updates = append(updates, firestore.Update{Path: path, Value: firestore.Delete})
		}
	}
	appendOptional("paidAt", doc.PaidAt, doc.PaidAt != nil)
	appendOptional("deliveredAt", doc.DeliveredAt, doc.DeliveredAt != nil)
	appendOptional("paymentResult", doc.PaymentResult, doc.PaymentResult != nil)

	result, err := r.base.Update(ctx, orderID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(orderID, doc, result.UpdateTime), nil
}

// DeleteOrder removes the order document.
func (r *OrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(orderID))
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", strings.TrimSpace(userID)).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return ordersFromDocuments(docs), nil
}

// ListOrders returns orders matching the store-level query constraints,
// newest first. Keyword matching and final ordering happen in the service.
func (r *OrderRepository) ListOrders(ctx context.Context, query repositories.OrderQuery) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(query.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if query.Paid != nil {
			q = q.Where("isPaid", "==", *query.Paid)
		}
		if query.Delivered != nil {
			q = q.Where("isDelivered", "==", *query.Delivered)
		}
		switch query.Kind {
		case repositories.KindFilterProduct:
			q = q.Where("hasProduct", "==", true).Where("hasCourse", "==", false)
		case repositories.KindFilterCourse:
			q = q.Where("hasCourse", "==", true).Where("hasProduct", "==", false)
		case repositories.KindFilterMixed:
			// Intended semantics: both a course item and a product item present.
			q = q.Where("hasProduct", "==", true).Where("hasCourse", "==", true)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return ordersFromDocuments(docs), nil
}

// ListRecent returns the most recently created orders.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if limit <= 0 {
		limit = 10
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	return ordersFromDocuments(docs), nil
}

func ordersFromDocuments(docs []pfirestore.Document[orderDocument]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data, doc.UpdateTime))
	}
	return orders
}

func orderToDocument(order domain.Order) orderDocument {
	now := order.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := order.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	items := make([]orderLineDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineDocument{
			Kind:      string(item.Ref.Kind),
			RefID:     item.Ref.ID,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	notes := make([]orderNoteDocument, 0, len(order.Notes))
	for _, note := range order.Notes {
		notes = append(notes, orderNoteDocument{
			ID:        note.ID,
			Author:    note.Author,
			Content:   note.Content,
			CreatedAt: note.CreatedAt.UTC(),
		})
	}

	doc := orderDocument{
		UserID:        order.UserID,
		Items:         items,
		PaymentMethod: order.PaymentMethod,
		ItemsPrice:    order.ItemsPrice,
		TaxPrice:      order.TaxPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		IsPaid:        order.IsPaid,
		IsDelivered:   order.IsDelivered,
		Notes:         notes,
		HasProduct:    order.HasPhysicalItems(),
		HasCourse:     false,
		CreatedAt:     createdAt,
		UpdatedAt:     now,
	}
	for _, item := range order.Items {
		if item.Ref.Kind == domain.ItemKindCourse {
			doc.HasCourse = true
			break
		}
	}

	if order.PaidAt != nil {
		ts := order.PaidAt.UTC()
		doc.PaidAt = &ts
	}
	if order.DeliveredAt != nil {
		ts := order.DeliveredAt.UTC()
		doc.DeliveredAt = &ts
	}
	if order.PaymentResult != nil {
		doc.PaymentResult = &paymentResultDocument{
			PaymentID: order.PaymentResult.PaymentID,
			OrderRef:  order.PaymentResult.OrderRef,
			Signature: order.PaymentResult.Signature,
			Status:    order.PaymentResult.Status,
		}
	}
	if order.ShippingAddress != nil {
		doc.ShippingAddress = &addressDocument{
			FullName:   order.ShippingAddress.FullName,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
			Phone:      order.ShippingAddress.Phone,
		}
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument, updateTime time.Time) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		kind, _ := domain.ParseItemKind(item.Kind)
		items = append(items, domain.OrderLineItem{
			Ref:       domain.CatalogRef{Kind: kind, ID: item.RefID},
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	notes := make([]domain.OrderNote, 0, len(doc.Notes))
	for _, note := range doc.Notes {
		notes = append(notes, domain.OrderNote{
			ID:        note.ID,
			Author:    note.Author,
			Content:   note.Content,
			CreatedAt: note.CreatedAt,
		})
	}

	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = doc.UpdatedAt
	}

	order := domain.Order{
		ID:            id,
		UserID:        doc.UserID,
		Items:         items,
		PaymentMethod: doc.PaymentMethod,
		ItemsPrice:    doc.ItemsPrice,
		TaxPrice:      doc.TaxPrice,
		ShippingPrice: doc.ShippingPrice,
		TotalPrice:    doc.TotalPrice,
		IsPaid:        doc.IsPaid,
		IsDelivered:   doc.IsDelivered,
		Notes:         notes,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     updatedAt,
	}

	if doc.PaidAt != nil {
		ts := doc.PaidAt.UTC()
		order.PaidAt = &ts
	}
	if doc.DeliveredAt != nil {
		ts := doc.DeliveredAt.UTC()
		order.DeliveredAt = &ts
	}
	if doc.PaymentResult != nil {
		order.PaymentResult = &domain.PaymentResult{
			PaymentID: doc.PaymentResult.PaymentID,
			OrderRef:  doc.PaymentResult.OrderRef,
			Signature: doc.PaymentResult.Signature,
			Status:    doc.PaymentResult.Status,
		}
	}
	if doc.ShippingAddress != nil {
		order.ShippingAddress = &domain.Address{
			FullName:   doc.ShippingAddress.FullName,
			Line1:      doc.ShippingAddress.Line1,
			Line2:      doc.ShippingAddress.Line2,
			City:       doc.ShippingAddress.City,
			State:      doc.ShippingAddress.State,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
			Phone:      doc.ShippingAddress.Phone,
		}
	}
	return order
}
