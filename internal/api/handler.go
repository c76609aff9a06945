package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/service"
	"pharmacy-service/internal/util"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	engine    *service.Engine
	cart      *service.CartService
	catalog   *service.CatalogService
	notifier  *service.Notifier
	analytics *service.AnalyticsService
	auth      *service.AuthService
	logger    *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(
	engine *service.Engine,
	cart *service.CartService,
	catalog *service.CatalogService,
	notifier *service.Notifier,
	analytics *service.AnalyticsService,
	auth *service.AuthService,
) *Handler {
	return &Handler{
		engine:    engine,
		cart:      cart,
		catalog:   catalog,
		notifier:  notifier,
		analytics: analytics,
		auth:      auth,
		logger:    util.GetLogger(),
	}
}

// respondError maps service errors onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrInvalidPasskey):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// PlaceOrder checks out the caller's cart into a pending order and
// clears the cart on success.
func (h *Handler) PlaceOrder(c *gin.Context) {
	sess := sessionFrom(c)
	ctx := c.Request.Context()

	items, err := h.cart.Snapshot(ctx, sess)
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.engine.PlaceOrder(ctx, sess, items)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.cart.Clear(ctx, sess); err != nil {
		h.logger.Warn("Failed to clear cart after checkout",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder returns one order
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders returns the caller's orders, or all orders for the
// pharmacy side, optionally filtered by ?status= and ?q=.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.engine.ListOrders(c.Request.Context(), sessionFrom(c), c.Query("status"), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdvanceStatus applies one guarded transition
func (h *Handler) AdvanceStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.engine.AdvanceStatus(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ConfirmOrder records the customer's delivery and payment choices
func (h *Handler) ConfirmOrder(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.engine.ConfirmOrder(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ApproveConfirmation moves a customer-confirmed order to processing
func (h *Handler) ApproveConfirmation(c *gin.Context) {
	order, err := h.engine.ApproveConfirmation(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// OverrideStatus is the unguarded admin status write
func (h *Handler) OverrideStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.engine.OverrideStatus(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type editItemsRequest struct {
	Edits []service.ItemEdit `json:"edits" binding:"required"`
}

// EditItems changes line item quantities before customer verification
func (h *Handler) EditItems(c *gin.Context) {
	var req editItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.engine.EditItems(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Edits)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetInvoice renders a billing view of an order
func (h *Handler) GetInvoice(c *gin.Context) {
	invoice, err := h.engine.Invoice(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// GetCart returns the caller's cart resolved against the catalog
func (h *Handler) GetCart(c *gin.Context) {
	view, err := h.cart.Get(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// AddCartItem puts one more of a product into the cart
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.cart.Add(c.Request.Context(), sessionFrom(c), req.ProductID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// SetCartQuantity sets an absolute quantity for a cart line
func (h *Handler) SetCartQuantity(c *gin.Context) {
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.cart.SetQuantity(c.Request.Context(), sessionFrom(c), c.Param("productId"), req.Quantity); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveCartItem drops a product from the cart
func (h *Handler) RemoveCartItem(c *gin.Context) {
	if err := h.cart.Remove(c.Request.Context(), sessionFrom(c), c.Param("productId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCart empties the cart
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), sessionFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListProducts returns the catalog, filtered by ?q=
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), sessionFrom(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// GetProduct returns one product
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateProduct adds a product to the catalog
func (h *Handler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.catalog.Create(c.Request.Context(), sessionFrom(c), &product)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProduct replaces a product's mutable fields
func (h *Handler) UpdateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product.ID = c.Param("id")

	updated, err := h.catalog.Update(c.Request.Context(), sessionFrom(c), &product)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type stockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

// UpdateStock is the stock-only quick update
func (h *Handler) UpdateStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.SetStock(c.Request.Context(), sessionFrom(c), c.Param("id"), *req.Stock); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteProduct removes a product from the catalog
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNotifications returns the caller's notifications, newest first
func (h *Handler) ListNotifications(c *gin.Context) {
	notifications, err := h.notifier.List(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

// UnreadCount returns the caller's unread notification count
func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.notifier.UnreadCount(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkNotificationRead flips the read flag on one notification
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.notifier.MarkRead(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead flips the read flag on every unread
// notification of the caller
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.notifier.MarkAllRead(c.Request.Context(), sessionFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	PhotoURL string `json:"photo_url"`
}

// RegisterSession creates or refreshes the caller's profile on login.
// It sits outside the identity middleware because the user record may
// not exist yet.
func (h *Handler) RegisterSession(c *gin.Context) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-Id header"})
		return
	}

	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.EnsureUser(c.Request.Context(), &models.User{
		ID:       userID,
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type elevateRequest struct {
	Passkey string `json:"passkey" binding:"required"`
}

// Elevate promotes an allowlisted caller to admin
func (h *Handler) Elevate(c *gin.Context) {
	var req elevateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.Elevate(c.Request.Context(), sessionFrom(c), req.Passkey); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": models.RoleAdmin})
}

// AnalyticsSummary computes the pharmacy dashboard
func (h *Handler) AnalyticsSummary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Health is the liveness probe
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
