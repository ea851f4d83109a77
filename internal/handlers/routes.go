package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts every API route on the /api/v1 group.
func RegisterRoutes(v1 *gin.RouterGroup, inventory *InventoryHandler, orders *OrderHandler,
	vouchers *VoucherHandler, checkout *CheckoutHandler) {
	inventoryRoutes := v1.Group("/inventory")
	{
		inventoryRoutes.GET("/events", inventory.ListEvents)
		inventoryRoutes.GET("/performances/:performanceId/seats", inventory.ListSeats)
		inventoryRoutes.POST("/seed", inventory.Seed)
	}

	orderRoutes := v1.Group("/orders")
	{
		orderRoutes.POST("/create", orders.CreateOrder)
		orderRoutes.GET("/paid", orders.ListPaid)
		orderRoutes.POST("/:basketId/add-seats", orders.AddSeats)
		orderRoutes.GET("/:basketId/content", orders.GetContent)
		orderRoutes.POST("/:basketId/remove-tickets", orders.RemoveTickets)
		orderRoutes.POST("/:basketId/set-booking-protection", orders.SetBookingProtection)
		orderRoutes.POST("/:basketId/finalize", orders.Finalize)
		orderRoutes.POST("/:basketId/set-paid", orders.SetPaid)
		orderRoutes.POST("/:basketId/set-payment-failed", orders.SetPaymentFailed)
		orderRoutes.POST("/:basketId/refund", orders.Refund)
	}

	voucherRoutes := v1.Group("/vouchers")
	{
		voucherRoutes.POST("/buy", vouchers.Buy)
		voucherRoutes.POST("/validate", vouchers.Validate)
		voucherRoutes.POST("/redeem", vouchers.Redeem)
		voucherRoutes.DELETE("/remove", vouchers.Remove)
	}

	checkoutRoutes := v1.Group("/checkout-session")
	{
		checkoutRoutes.POST("/:basketId/create", checkout.CreateSession)
		checkoutRoutes.GET("/:sessionId/status", checkout.GetStatus)
		checkoutRoutes.PUT("/:basketId/update", checkout.UpdateSession)
	}
}
