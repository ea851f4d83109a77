package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-checkout/internal/models"
	"ticket-checkout/internal/services"
	"ticket-checkout/internal/utils"
)

type OrderHandler struct {
	basketService *services.BasketService
	orderService  *services.OrderService
}

func NewOrderHandler(basketService *services.BasketService, orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		basketService: basketService,
		orderService:  orderService,
	}
}

// CreateOrder reserves seats into the basket named in the body, opening a
// new basket when none is given.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.ReserveSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	h.reserve(c, req.BasketID, req.SeatIDs)
}

func (h *OrderHandler) AddSeats(c *gin.Context) {
	var req models.ReserveSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	h.reserve(c, c.Param("basketId"), req.SeatIDs)
}

func (h *OrderHandler) reserve(c *gin.Context, basketID string, seatIDs []int64) {
	result, err := h.basketService.ReserveSeats(c.Request.Context(), basketID, seatIDs)
	if err != nil {
		respondError(c, "Failed to reserve seats", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Seats reserved", result))
}

func (h *OrderHandler) GetContent(c *gin.Context) {
	content, err := h.basketService.Content(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to load basket", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Basket retrieved", content))
}

func (h *OrderHandler) RemoveTickets(c *gin.Context) {
	var req models.ReleaseSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	status, err := h.basketService.ReleaseSeats(c.Request.Context(), c.Param("basketId"), req.SeatIDs)
	if err != nil {
		respondError(c, "Failed to release seats", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Seats released", gin.H{"status": status}))
}

func (h *OrderHandler) SetBookingProtection(c *gin.Context) {
	var req models.BookingProtectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	status, err := h.basketService.SetBookingProtection(c.Request.Context(), c.Param("basketId"), req.Enabled)
	if err != nil {
		respondError(c, "Failed to update booking protection", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Booking protection updated", gin.H{
		"enabled": req.Enabled,
		"status":  status,
	}))
}

func (h *OrderHandler) Finalize(c *gin.Context) {
	payment, err := h.orderService.Finalize(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to finalize order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment attempt recorded", payment))
}

func (h *OrderHandler) SetPaid(c *gin.Context) {
	result, err := h.orderService.MarkPaid(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to mark order as paid", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order paid", result))
}

func (h *OrderHandler) SetPaymentFailed(c *gin.Context) {
	payment, err := h.orderService.MarkPaymentFailed(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to record payment failure", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment failure recorded", payment))
}

func (h *OrderHandler) Refund(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid refund request", err.Error()))
		return
	}

	result, err := h.orderService.Refund(c.Request.Context(), c.Param("basketId"), req.Amount)
	if err != nil {
		respondError(c, "Refund processing failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Refund processed", result))
}

func (h *OrderHandler) ListPaid(c *gin.Context) {
	orders, err := h.orderService.ListPaid(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list paid orders", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Paid orders retrieved", orders))
}
