package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
	pfirestore "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/firestore"
)

const (
	productCollection = "products"
	courseCollection  = "courses"
)

type productDocument struct {
	Name  string  `firestore:"name"`
	Image string  `firestore:"image,omitempty"`
	Price float64 `firestore:"price"`
}

type courseDocument struct {
	Title string  `firestore:"title"`
	Image string  `firestore:"image,omitempty"`
	Price float64 `firestore:"price"`
}

// CatalogRepository reads product and course entries from their collections.
// The order core treats both catalogs as external collaborators and only
// needs the pricing and display projection.
type CatalogRepository struct {
	products *pfirestore.BaseRepository[productDocument]
	courses  *pfirestore.BaseRepository[courseDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog reader.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		products: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil),
		courses:  pfirestore.NewBaseRepository[courseDocument](provider, courseCollection, nil),
	}, nil
}

// FindEntry resolves the referenced catalog entry by kind.
func (r *CatalogRepository) FindEntry(ctx context.Context, ref domain.CatalogRef) (domain.CatalogEntry, error) {
	if r == nil {
		return domain.CatalogEntry{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(ref.ID)
	if id == "" {
		return domain.CatalogEntry{}, errors.New("catalog repository: entry id is required")
	}

	switch ref.Kind {
	case domain.ItemKindProduct:
		doc, err := r.products.Get(ctx, id)
		if err != nil {
			return domain.CatalogEntry{}, err
		}
		return domain.CatalogEntry{
			Ref:   domain.CatalogRef{Kind: domain.ItemKindProduct, ID: doc.ID},
			Name:  doc.Data.Name,
			Image: doc.Data.Image,
			Price: doc.Data.Price,
		}, nil
	case domain.ItemKindCourse:
		doc, err := r.courses.Get(ctx, id)
		if err != nil {
			return domain.CatalogEntry{}, err
		}
		return domain.CatalogEntry{
			Ref:   domain.CatalogRef{Kind: domain.ItemKindCourse, ID: doc.ID},
			Name:  doc.Data.Title,
			Image: doc.Data.Image,
			Price: doc.Data.Price,
		}, nil
	}
	return domain.CatalogEntry{}, fmt.Errorf("catalog repository: unsupported item kind %q", ref.Kind)
}
