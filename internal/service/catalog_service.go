package service

import (
	"context"
	"strings"

	"shopper-service/internal/models"
	"shopper-service/internal/store"
)

// CatalogService is the read-only product catalog boundary
type CatalogService struct {
	store *store.Store
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{store: store}
}

// ListAll returns the full catalog
func (cs *CatalogService) ListAll(ctx context.Context) ([]models.Product, error) {
	return cs.store.GetProducts(ctx)
}

// GetByID returns one product
func (cs *CatalogService) GetByID(ctx context.Context, productID int64) (*models.Product, error) {
	return cs.store.GetProductByID(ctx, productID)
}

// FindByName returns products whose name contains the substring,
// case-insensitively.
func (cs *CatalogService) FindByName(ctx context.Context, substr string) ([]models.Product, error) {
	return cs.store.SearchProductsByName(ctx, substr)
}

// ListByCategory returns the products in one category
func (cs *CatalogService) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return cs.store.GetProductsByCategory(ctx, category)
}

// ResolveByName resolves a free-text name to exactly one product. An exact
// (case-insensitive) name match wins outright; otherwise the substring match
// must be unique. Zero or several candidates are both ErrProductNotFound.
func (cs *CatalogService) ResolveByName(ctx context.Context, name string) (*models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrProductNotFound
	}

	matches, err := cs.store.SearchProductsByName(ctx, name)
	if err != nil {
		return nil, err
	}

	for i := range matches {
		if strings.EqualFold(matches[i].Name, name) {
			return &matches[i], nil
		}
	}
	if len(matches) != 1 {
		return nil, models.ErrProductNotFound
	}
	return &matches[0], nil
}
