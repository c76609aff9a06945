package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

// CartService keeps per-user carts in Redis. Carts hold only product id
// and quantity; prices and names are resolved against the live catalog
// on read, and snapshotted into order items at checkout.
type CartService struct {
	backend  CartBackend
	products ProductStore
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(backend CartBackend, products ProductStore) *CartService {
	return &CartService{
		backend:  backend,
		products: products,
		logger:   util.GetLogger(),
	}
}

// CartView is the cart resolved against the current catalog.
type CartView struct {
	Items    []models.CartItem `json:"items"`
	Subtotal float64           `json:"subtotal"`
}

// Get resolves the caller's cart against the catalog. Products that
// have been deleted or hidden since they were added are dropped.
func (c *CartService) Get(ctx context.Context, sess Session) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	cart, err := c.backend.GetCart(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return &CartView{Items: []models.CartItem{}}, nil
	}

	ids := make([]string, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	products, err := c.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: make([]models.CartItem, 0, len(products))}
	for _, p := range products {
		if p.IsHidden {
			continue
		}
		qty := cart[p.ID]
		view.Items = append(view.Items, models.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Unit:      p.Unit,
			Stock:     p.Stock,
			Quantity:  qty,
		})
		view.Subtotal += p.Price * float64(qty)
	}

	sort.Slice(view.Items, func(i, j int) bool {
		return view.Items[i].Name < view.Items[j].Name
	})
	return view, nil
}

// Add puts one more of a product into the caller's cart. The quantity
// is checked against current stock at add time only.
func (c *CartService) Add(ctx context.Context, sess Session, productID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	product, err := c.products.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if product.IsHidden {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}

	cart, err := c.backend.GetCart(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if cart[productID]+1 > product.Stock {
		return fmt.Errorf("%w: only %d of %s in stock", ErrValidation, product.Stock, product.Name)
	}

	if _, err := c.backend.AddCartItem(ctx, sess.UserID, productID, 1); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("add").Inc()
	return nil
}

// SetQuantity sets an absolute quantity for a product already in the
// cart. Quantities below one are clamped to one; use Remove to drop a
// line.
func (c *CartService) SetQuantity(ctx context.Context, sess Session, productID string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartService.SetQuantity")
	defer span.End()

	if quantity < 1 {
		quantity = 1
	}

	product, err := c.products.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if quantity > product.Stock {
		return fmt.Errorf("%w: only %d of %s in stock", ErrValidation, product.Stock, product.Name)
	}

	if err := c.backend.SetCartQuantity(ctx, sess.UserID, productID, quantity); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("set_quantity").Inc()
	return nil
}

// Remove drops a product from the cart
func (c *CartService) Remove(ctx context.Context, sess Session, productID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	if err := c.backend.RemoveCartItem(ctx, sess.UserID, productID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the cart
func (c *CartService) Clear(ctx context.Context, sess Session) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	if err := c.backend.ClearCart(ctx, sess.UserID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// Snapshot freezes the caller's cart into order item snapshots for
// checkout. Prices, names and stock are captured as of this moment and
// never change afterwards, whatever happens to the catalog.
func (c *CartService) Snapshot(ctx context.Context, sess Session) ([]models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Snapshot")
	defer span.End()

	view, err := c.Get(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	items := make([]models.OrderItem, 0, len(view.Items))
	for _, ci := range view.Items {
		items = append(items, models.OrderItem{
			ProductID:  ci.ProductID,
			Name:       ci.Name,
			Price:      ci.Price,
			Unit:       ci.Unit,
			StockAtAdd: ci.Stock,
			Quantity:   ci.Quantity,
		})
	}
	return items, nil
}
