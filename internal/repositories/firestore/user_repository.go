package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	pfirestore "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/firestore"
)

const userCollection = "users"

type userDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
}

// UserRepository reads user projections used for notification addressing and
// the admin keyword filter.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user reader.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil),
	}, nil
}

// FindUser loads the user summary by ID.
func (r *UserRepository) FindUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	if r == nil || r.base == nil {
		return domain.UserSummary{}, errors.New("user repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.UserSummary{}, err
	}
	return domain.UserSummary{ID: doc.ID, Name: doc.Data.Name, Email: doc.Data.Email}, nil
}

// SearchUsers returns users whose name or email contains the keyword,
// case-insensitively. Firestore has no substring operator, so the scan
// happens client-side over the (small) user collection.
func (r *UserRepository) SearchUsers(ctx context.Context, keyword string) ([]domain.UserSummary, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return []domain.UserSummary{}, nil
	}

	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.UserSummary, 0)
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Data.Name), needle) ||
			strings.Contains(strings.ToLower(doc.Data.Email), needle) {
			matches = append(matches, domain.UserSummary{ID: doc.ID, Name: doc.Data.Name, Email: doc.Data.Email})
		}
	}
	return matches, nil
}
