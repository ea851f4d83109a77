package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-checkout/internal/services"
	"ticket-checkout/internal/utils"
)

type CheckoutHandler struct {
	checkoutService *services.CheckoutService
}

func NewCheckoutHandler(checkoutService *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	session, err := h.checkoutService.GetOrCreateSession(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to open checkout session", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Checkout session ready", session))
}

func (h *CheckoutHandler) GetStatus(c *gin.Context) {
	status, err := h.checkoutService.SessionStatus(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, "Failed to retrieve session status", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Session status retrieved", status))
}

// UpdateSession reports reconciliation failures in the body with status
// "Error" rather than as an HTTP error.
func (h *CheckoutHandler) UpdateSession(c *gin.Context) {
	status, err := h.checkoutService.UpdateSession(c.Request.Context(), c.Param("basketId"))
	if err != nil {
		respondError(c, "Failed to update checkout session", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Checkout session reconciled", gin.H{"status": status}))
}
