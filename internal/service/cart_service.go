package service

import (
	"context"
	"fmt"

	"shopper-service/internal/models"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// CartService manages the mutable pre-purchase cart. Cart mutations are
// last-write-wins under concurrency; the cart carries no money, so that is
// acceptable and checkout re-reads it anyway.
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Get returns the user's cart lines
func (cs *CartService) Get(ctx context.Context, userID string) ([]models.CartItem, error) {
	return cs.store.GetCartItems(ctx, userID)
}

// Add merges a product into the cart. An existing line for the same product
// has the quantity summed in; otherwise a new line is appended with the
// product's current catalog price.
func (cs *CartService) Add(ctx context.Context, userID string, product *models.Product, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Category:  product.Category,
		Image:     product.Image,
		Quantity:  quantity,
	}
	if err := cs.store.AddCartItem(ctx, item); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}

	cs.logger.Info("Cart item added",
		zap.String("user_id", userID),
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", quantity))
	return nil
}

// SetQuantity overwrites a line's quantity; zero or less removes the line.
func (cs *CartService) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	return cs.store.SetCartItemQuantity(ctx, userID, productID, quantity)
}

// Remove deletes a line
func (cs *CartService) Remove(ctx context.Context, userID string, productID int64) error {
	return cs.store.RemoveCartItem(ctx, userID, productID)
}

// Clear empties the cart
func (cs *CartService) Clear(ctx context.Context, userID string) error {
	return cs.store.ClearCart(ctx, userID)
}

// Total recomputes the cart total from the current lines
func (cs *CartService) Total(ctx context.Context, userID string) (int64, error) {
	items, err := cs.store.GetCartItems(ctx, userID)
	if err != nil {
		return 0, err
	}
	return CartTotal(items), nil
}

// CartTotal sums price*quantity over cart lines
func CartTotal(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
