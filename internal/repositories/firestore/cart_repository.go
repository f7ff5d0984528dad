package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	pfirestore "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/firestore"
)

const cartCollection = "carts"

type cartDocument struct {
	UserID     string             `firestore:"userId"`
	Items      []cartItemDocument `firestore:"items"`
	TotalPrice float64            `firestore:"totalPrice"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID        string     `firestore:"id"`
	Kind      string     `firestore:"kind"`
	RefID     string     `firestore:"refId"`
	Name      string     `firestore:"name,omitempty"`
	Image     string     `firestore:"image,omitempty"`
	Quantity  int        `firestore:"quantity"`
	UnitPrice float64    `firestore:"unitPrice"`
	AddedAt   time.Time  `firestore:"addedAt"`
	UpdatedAt *time.Time `firestore:"updatedAt,omitempty"`
}

// CartRepository persists one cart document per user in Firestore.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil),
	}, nil
}

// GetCart loads the cart document keyed by the user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Cart{}, err
	}
	return cartFromDocument(doc.ID, doc.Data, doc.UpdateTime), nil
}

// UpsertCart writes the full cart document, optionally guarded by the stored
// document's update time so concurrent writers surface as conflicts.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		userID = strings.TrimSpace(cart.ID)
	}
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc := cartToDocument(cart, userID)

	var result pfirestore.MutationResult
	var err error
	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err = r.base.Set(ctx, userID, doc)
	} else {
		updates := []firestore.Update{
			{Path: "items", Value: doc.Items},
			{Path: "totalPrice", Value: doc.TotalPrice},
			{Path: "updatedAt", Value: doc.UpdatedAt},
		}
		result, err = r.base.Update(ctx, userID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	}
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cartFromDocument(userID, doc, result.UpdateTime)
	saved.CreatedAt = doc.CreatedAt
	return saved, nil
}

// ClearCart resets the cart to an empty item list and zero total.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	_, err := r.base.Update(ctx, uid, []firestore.Update{
		{Path: "items", Value: []cartItemDocument{}},
		{Path: "totalPrice", Value: 0.0},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

func cartToDocument(cart domain.Cart, userID string) cartDocument {
	now := cart.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		doc := cartItemDocument{
			ID:        item.ID,
			Kind:      string(item.Ref.Kind),
			RefID:     item.Ref.ID,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt.UTC(),
		}
		if item.UpdatedAt != nil {
			ts := item.UpdatedAt.UTC()
			doc.UpdatedAt = &ts
		}
		items = append(items, doc)
	}

	return cartDocument{
		UserID:     userID,
		Items:      items,
		TotalPrice: cart.TotalPrice,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
}

func cartFromDocument(id string, doc cartDocument, updateTime time.Time) domain.Cart {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		kind, _ := domain.ParseItemKind(item.Kind)
		entry := domain.CartItem{
			ID:        item.ID,
			Ref:       domain.CatalogRef{Kind: kind, ID: item.RefID},
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt,
		}
		if item.UpdatedAt != nil {
			ts := item.UpdatedAt.UTC()
			entry.UpdatedAt = &ts
		}
		items = append(items, entry)
	}

	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = doc.UpdatedAt
	}

	return domain.Cart{
		ID:         id,
		UserID:     firstNonEmpty(doc.UserID, id),
		Items:      items,
		TotalPrice: doc.TotalPrice,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
