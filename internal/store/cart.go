package store

import (
	"context"

	"shopper-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetCartItems retrieves a user's cart lines in insertion order.
func (s *Store) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &items,
			"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id", userID)
	})
	return items, err
}

// AddCartItem merges a product into the cart: an existing line has the
// quantity added on, a new line is appended.
func (s *Store) AddCartItem(ctx context.Context, item *models.CartItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, name, price, category, image, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		item.UserID, item.ProductID, item.Name, item.Price, item.Category, item.Image, item.Quantity)
	return err
}

// SetCartItemQuantity overwrites a line's quantity. Quantities at or below
// zero remove the line instead of leaving a zero-quantity row.
func (s *Store) SetCartItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveCartItem(ctx, userID, productID)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE user_id = $2 AND product_id = $3",
		quantity, userID, productID)
	return err
}

// RemoveCartItem deletes a line from the cart
func (s *Store) RemoveCartItem(ctx context.Context, userID string, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	return err
}

// ClearCart empties the cart. The cart itself is never deleted, only emptied.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return clearCartTx(ctx, tx, userID)
	})
}

func clearCartTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
