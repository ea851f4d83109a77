package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-checkout/internal/models"
	"ticket-checkout/internal/services"
	"ticket-checkout/internal/utils"
)

type VoucherHandler struct {
	voucherService *services.VoucherService
}

func NewVoucherHandler(voucherService *services.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherService: voucherService}
}

func (h *VoucherHandler) Buy(c *gin.Context) {
	var req models.BuyVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	purchase, err := h.voucherService.Buy(c.Request.Context(), req.BasketID, req.Amount)
	if err != nil {
		respondError(c, "Failed to buy voucher", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Voucher added to basket", purchase))
}

func (h *VoucherHandler) Validate(c *gin.Context) {
	var req models.VoucherCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.voucherService.Validate(c.Request.Context(), req.BasketID, req.Code)
	if err != nil {
		respondError(c, "Voucher is not valid", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Voucher validation result", result))
}

func (h *VoucherHandler) Redeem(c *gin.Context) {
	var req models.VoucherCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.voucherService.Redeem(c.Request.Context(), req.BasketID, req.Code)
	if err != nil {
		respondError(c, "Failed to redeem voucher", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Voucher redeemed", result))
}

func (h *VoucherHandler) Remove(c *gin.Context) {
	var req models.VoucherCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	status, err := h.voucherService.Remove(c.Request.Context(), req.BasketID, req.Code)
	if err != nil {
		respondError(c, "Failed to remove voucher", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Voucher removed", gin.H{"status": status}))
}
