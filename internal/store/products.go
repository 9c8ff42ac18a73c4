package store

import (
	"context"
	"database/sql"
	"errors"

	"shopper-service/internal/models"
)

// GetProducts retrieves the full catalog
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	})
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchProductsByName retrieves products whose name contains the substring,
// case-insensitively.
func (s *Store) SearchProductsByName(ctx context.Context, substr string) ([]models.Product, error) {
	var products []models.Product
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY id", substr)
	})
	return products, err
}

// GetProductsByCategory retrieves products in a category
func (s *Store) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	var products []models.Product
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE category = $1 ORDER BY id", category)
	})
	return products, err
}
