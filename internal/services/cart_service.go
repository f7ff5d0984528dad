package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartItemNotFound indicates the referenced catalog entry does not exist.
var ErrCartItemNotFound = errors.New("cart service: catalog entry not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// CartServiceDeps wires the repositories and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
}

type cartService struct {
	repo    repositories.CartRepository
	catalog repositories.CatalogRepository
	newID   func() string
	now     func() time.Time
	logger  Logger
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		newID:   idGen,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}, nil
}

// GetCart loads the user's cart, returning an empty cart when none exists yet.
func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s == nil || s.repo == nil {
		return domain.Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(uid), nil
		}
		return domain.Cart{}, s.translateRepoError(err)
	}
	return s.normalizeCart(cart, uid), nil
}

// AddItem resolves the catalog entry and adds it to the cart, merging with an
// existing line for the same reference.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error) {
	if s == nil || s.repo == nil || s.catalog == nil {
		return domain.Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" || cmd.Quantity < 1 {
		return domain.Cart{}, ErrCartInvalidInput
	}
	kind, ok := domain.ParseItemKind(cmd.Kind)
	if !ok {
		return domain.Cart{}, ErrCartInvalidInput
	}
	refID := strings.TrimSpace(cmd.RefID)
	if refID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	entry, err := s.catalog.FindEntry(ctx, domain.CatalogRef{Kind: kind, ID: refID})
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, ErrCartItemNotFound
		}
		return domain.Cart{}, s.translateRepoError(err)
	}

	return s.mutateCart(ctx, uid, func(cart *domain.Cart) error {
		now := s.now()
		for i := range cart.Items {
			if cart.Items[i].Ref.Equal(entry.Ref) {
				cart.Items[i].Quantity += cmd.Quantity
				ts := now
				cart.Items[i].UpdatedAt = &ts
				return nil
			}
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        s.newID(),
			Ref:       entry.Ref,
			Name:      entry.Name,
			Image:     entry.Image,
			Quantity:  cmd.Quantity,
			UnitPrice: entry.Price,
			AddedAt:   now,
		})
		return nil
	})
}

// UpdateQuantity sets the quantity on the line matching the reference. The
// reference is matched against the product ref, then the course ref, then
// the line-item ID.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, ref string, quantity int) (domain.Cart, error) {
	if s == nil || s.repo == nil {
		return domain.Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" || quantity < 1 {
		return domain.Cart{}, ErrCartInvalidInput
	}
	target := strings.TrimSpace(ref)
	if target == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	return s.mutateCart(ctx, uid, func(cart *domain.Cart) error {
		idx := findCartLine(cart.Items, target)
		if idx < 0 {
			return ErrCartNotFound
		}
		cart.Items[idx].Quantity = quantity
		ts := s.now()
		cart.Items[idx].UpdatedAt = &ts
		return nil
	})
}

// RemoveItem drops the line matching the reference from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID, ref string) (domain.Cart, error) {
	if s == nil || s.repo == nil {
		return domain.Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	target := strings.TrimSpace(ref)
	if target == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	return s.mutateCart(ctx, uid, func(cart *domain.Cart) error {
		idx := findCartLine(cart.Items, target)
		if idx < 0 {
			return ErrCartNotFound
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return nil
	})
}

// Clear empties the cart. Absence of a cart is not an error.
func (s *cartService) Clear(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.ClearCart(ctx, uid); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// mutateCart loads the cart, applies the mutation, recomputes the total, and
// persists under the loaded document's update time. A concurrent write is
// retried once against fresh state before surfacing a conflict.
func (s *cartService) mutateCart(ctx context.Context, userID string, mutate func(*domain.Cart) error) (domain.Cart, error) {
	const attempts = 2

	for attempt := 0; attempt < attempts; attempt++ {
		cart, expected, err := s.loadForUpdate(ctx, userID)
		if err != nil {
			return domain.Cart{}, err
		}

		if err := mutate(&cart); err != nil {
			return domain.Cart{}, err
		}

		cart.TotalPrice = domain.CartTotal(cart.Items)
		cart.UpdatedAt = s.now()

		saved, err := s.repo.UpsertCart(ctx, cart, expected)
		if err == nil {
			return s.normalizeCart(saved, userID), nil
		}
		if !isRepoConflict(err) {
			return domain.Cart{}, s.translateRepoError(err)
		}
		s.logger(ctx, "cart.write_conflict", map[string]any{
			"userId":  userID,
			"attempt": attempt + 1,
		})
	}

	return domain.Cart{}, ErrCartConflict
}

func (s *cartService) loadForUpdate(ctx context.Context, userID string) (domain.Cart, *time.Time, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(userID), nil, nil
		}
		return domain.Cart{}, nil, s.translateRepoError(err)
	}

	cart = s.normalizeCart(cart, userID)
	if cart.UpdatedAt.IsZero() {
		return cart, nil, nil
	}
	expected := cart.UpdatedAt.UTC()
	return cart, &expected, nil
}

func (s *cartService) emptyCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: time.Time{},
	}
}

func (s *cartService) normalizeCart(cart domain.Cart, userID string) domain.Cart {
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	if strings.TrimSpace(cart.UserID) == "" {
		cart.UserID = userID
	}
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = userID
	}
	cart.TotalPrice = domain.CartTotal(cart.Items)
	return cart
}

// findCartLine matches a raw reference against the lines: product refs win
// over course refs, which win over line-item IDs.
func findCartLine(items []domain.CartItem, ref string) int {
	for i, item := range items {
		if item.Ref.Kind == domain.ItemKindProduct && strings.EqualFold(item.Ref.ID, ref) {
			return i
		}
	}
	for i, item := range items {
		if item.Ref.Kind == domain.ItemKindCourse && strings.EqualFold(item.Ref.ID, ref) {
			return i
		}
	}
	for i, item := range items {
		if item.ID == ref {
			return i
		}
	}
	return -1
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}
