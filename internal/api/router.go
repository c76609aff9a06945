package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmacy-service/internal/service"
)

// SetupRouter builds the HTTP surface.
func SetupRouter(h *Handler, auth *service.AuthService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware())

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/auth/session", h.RegisterSession)

	api := router.Group("/api", IdentityMiddleware(auth))
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.PlaceOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/status", h.AdvanceStatus)
			orders.POST("/:id/confirm", h.ConfirmOrder)
			orders.POST("/:id/approve", h.ApproveConfirmation)
			orders.POST("/:id/override", h.OverrideStatus)
			orders.PUT("/:id/items", h.EditItems)
			orders.GET("/:id/invoice", h.GetInvoice)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.POST("/items", h.AddCartItem)
			cart.PUT("/items/:productId", h.SetCartQuantity)
			cart.DELETE("/items/:productId", h.RemoveCartItem)
			cart.DELETE("", h.ClearCart)
		}

		products := api.Group("/products")
		{
			products.GET("", h.ListProducts)
			products.GET("/:id", h.GetProduct)
			products.POST("", h.CreateProduct)
			products.PUT("/:id", h.UpdateProduct)
			products.PATCH("/:id/stock", h.UpdateStock)
			products.DELETE("/:id", h.DeleteProduct)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.UnreadCount)
			notifications.POST("/:id/read", h.MarkNotificationRead)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
		}

		api.POST("/auth/elevate", h.Elevate)
		api.GET("/analytics/summary", h.AnalyticsSummary)
	}

	return router
}
