package domain

import (
	"strings"
	"time"
)

// ItemKind discriminates the two purchasable catalog types.
type ItemKind string

const (
	// ItemKindProduct marks a physical product that requires shipping.
	ItemKindProduct ItemKind = "product"
	// ItemKindCourse marks a digital course with no fulfilment step.
	ItemKindCourse ItemKind = "course"
)

// Valid reports whether the kind is one of the supported catalog types.
func (k ItemKind) Valid() bool {
	return k == ItemKindProduct || k == ItemKindCourse
}

// ParseItemKind normalizes a raw kind string into an ItemKind.
func ParseItemKind(raw string) (ItemKind, bool) {
	kind := ItemKind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", false
	}
	return kind, true
}

// CatalogRef identifies a catalog entry as a (kind, id) pair. Exactly one
// catalog type is addressable per reference, so the both-set/both-empty
// states a pair of optional foreign keys would allow cannot occur.
type CatalogRef struct {
	Kind ItemKind
	ID   string
}

// IsZero reports whether the reference is unset.
func (r CatalogRef) IsZero() bool {
	return strings.TrimSpace(r.ID) == ""
}

// Equal compares two references case-insensitively on the ID.
func (r CatalogRef) Equal(other CatalogRef) bool {
	return r.Kind == other.Kind && strings.EqualFold(strings.TrimSpace(r.ID), strings.TrimSpace(other.ID))
}

// CatalogEntry is the read-model the order core consumes from the product
// and course collaborators: enough to price and denormalize a line item.
type CatalogEntry struct {
	Ref   CatalogRef
	Name  string
	Image string
	Price float64
}

// CartItem stores a single catalog entry within a cart.
type CartItem struct {
	ID        string
	Ref       CatalogRef
	Name      string
	Image     string
	Quantity  int
	UnitPrice float64
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// Cart aggregates the mutable pre-checkout state for a user. The document ID
// is the owning user ID; one cart per user.
type Cart struct {
	ID         string
	UserID     string
	Items      []CartItem
	TotalPrice float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderLineItem is the immutable snapshot of a cart item captured at
// checkout so later catalog edits never alter historical orders.
type OrderLineItem struct {
	Ref       CatalogRef
	Name      string
	Image     string
	Quantity  int
	UnitPrice float64
}

// Total returns the extended line amount.
func (li OrderLineItem) Total() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// PaymentResult records the gateway references attached once a payment is
// confirmed or force-marked by an admin.
type PaymentResult struct {
	PaymentID string
	OrderRef  string
	Signature string
	Status    string
}

// OrderNote is an append-only audit entry on an order.
type OrderNote struct {
	ID        string
	Author    string
	Content   string
	CreatedAt time.Time
}

// Address is the postal address captured for orders containing physical items.
type Address struct {
	FullName   string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// Order is the record of a purchase. Line items and prices are immutable
// once created; payment, delivery, and note sub-state mutate over its life.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderLineItem
	ShippingAddress *Address
	PaymentMethod   string
	ItemsPrice      float64
	TaxPrice        float64
	ShippingPrice   float64
	TotalPrice      float64
	IsPaid          bool
	PaidAt          *time.Time
	PaymentResult   *PaymentResult
	IsDelivered     bool
	DeliveredAt     *time.Time
	Notes           []OrderNote
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPhysicalItems reports whether any line item requires shipping.
func (o Order) HasPhysicalItems() bool {
	for _, item := range o.Items {
		if item.Ref.Kind == ItemKindProduct {
			return true
		}
	}
	return false
}

// DigitalOnly reports whether every line item is a course.
func (o Order) DigitalOnly() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Ref.Kind != ItemKindCourse {
			return false
		}
	}
	return true
}

// Mixed reports whether the order carries both a product and a course item.
func (o Order) Mixed() bool {
	var hasProduct, hasCourse bool
	for _, item := range o.Items {
		switch item.Ref.Kind {
		case ItemKindProduct:
			hasProduct = true
		case ItemKindCourse:
			hasCourse = true
		}
	}
	return hasProduct && hasCourse
}

// UserSummary is the projection of a user the order core needs for admin
// keyword search and notification addressing.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// Page packages page-number based list results for admin surfaces.
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	TotalCount int
}
