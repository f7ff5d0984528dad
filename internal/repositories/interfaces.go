package repositories

import (
	"context"
	"time"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
)

// RepositoryError exposes persistence failure semantics without leaking
// backend specific error types into services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// KindFilter narrows admin order listings by line-item composition.
type KindFilter string

const (
	// KindFilterAny applies no composition constraint.
	KindFilterAny KindFilter = ""
	// KindFilterProduct matches orders containing only physical products.
	KindFilterProduct KindFilter = "product"
	// KindFilterCourse matches orders containing only courses.
	KindFilterCourse KindFilter = "course"
	// KindFilterMixed matches orders containing both a product and a course.
	KindFilterMixed KindFilter = "mixed"
)

// OrderQuery captures the store-level constraints for admin listings. Keyword
// resolution and ordering happen above the repository.
type OrderQuery struct {
	UserID    string
	Paid      *bool
	Delivered *bool
	Kind      KindFilter
}

// CartRepository persists the per-user cart document.
type CartRepository interface {
	// GetCart loads the cart for the user; a NotFound repository error means
	// the user has never added an item.
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	// UpsertCart writes the cart. When expectedUpdate is non-nil the write is
	// conditional on the stored document's update time, surfacing a conflict
	// error when another request won the race.
	UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	// ClearCart resets the cart to no items and zero total.
	ClearCart(ctx context.Context, userID string) error
}

// OrderRepository persists order documents.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	// UpdateOrder rewrites the order conditional on the stored document's
	// update time when expectedUpdate is non-nil.
	UpdateOrder(ctx context.Context, order domain.Order, expectedUpdate *time.Time) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, query OrderQuery) ([]domain.Order, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
}

// CatalogRepository resolves purchasable entries from the product and course
// collaborator collections. Read-only from the order core's perspective.
type CatalogRepository interface {
	FindEntry(ctx context.Context, ref domain.CatalogRef) (domain.CatalogEntry, error)
}

// UserRepository resolves user projections for notifications and admin search.
type UserRepository interface {
	FindUser(ctx context.Context, userID string) (domain.UserSummary, error)
	// SearchUsers returns users whose name or email contains the keyword,
	// case-insensitively. Used by the admin keyword filter.
	SearchUsers(ctx context.Context, keyword string) ([]domain.UserSummary, error)
}
