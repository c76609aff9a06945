package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

// CatalogService manages the product inventory. Hidden products stay
// visible to the pharmacy side but never appear to customers.
type CatalogService struct {
	products ProductStore
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ProductStore) *CatalogService {
	return &CatalogService{products: products, logger: util.GetLogger()}
}

// List returns the catalog, optionally filtered by a free-text query
// over name, category and product code.
func (c *CatalogService) List(ctx context.Context, sess Session, query string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	products, err := c.products.ListProducts(ctx, !sess.IsClient())
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}

	filtered := products[:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Category), query) ||
			strings.Contains(strings.ToLower(p.Code), query) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Get returns one product. Hidden products are not found for customers.
func (c *CatalogService) Get(ctx context.Context, sess Session, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	product, err := c.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if product.IsHidden && sess.IsClient() {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return product, nil
}

// Create adds a product to the catalog
func (c *CatalogService) Create(ctx context.Context, sess Session, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if !sess.CanManageInventory() {
		return nil, fmt.Errorf("%w: inventory management required", ErrPermissionDenied)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UpdatedAt = time.Now()

	if err := c.products.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	c.logger.Info("Product created",
		zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update replaces a product's mutable fields
func (c *CatalogService) Update(ctx context.Context, sess Session, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if !sess.CanManageInventory() {
		return nil, fmt.Errorf("%w: inventory management required", ErrPermissionDenied)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if _, err := c.products.GetProductByID(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, p.ID)
	}

	p.UpdatedAt = time.Now()
	if err := c.products.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// SetStock is the stock-only quick update used during stock checks.
func (c *CatalogService) SetStock(ctx context.Context, sess Session, id string, stock int) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.SetStock")
	defer span.End()

	if !sess.CanUpdateStock() {
		return fmt.Errorf("%w: stock update permission required", ErrPermissionDenied)
	}
	if stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	if _, err := c.products.GetProductByID(ctx, id); err != nil {
		return fmt.Errorf("%w: product %s", ErrNotFound, id)
	}

	if err := c.products.UpdateProductStock(ctx, id, stock); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

// Delete removes a product from the catalog. Existing order items keep
// their snapshots.
func (c *CatalogService) Delete(ctx context.Context, sess Session, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	if !sess.IsAdmin() {
		return fmt.Errorf("%w: product deletion requires admin role", ErrPermissionDenied)
	}

	if err := c.products.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	c.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	return nil
}
