package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticket-checkout/internal/models"
	"ticket-checkout/internal/services"
	"ticket-checkout/internal/utils"
)

// statusFor maps a service error onto the HTTP status the API reports.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, models.ErrPaymentTransition):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrStripeAPIError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	c.JSON(statusFor(err), utils.ErrorResponse(message, err.Error()))
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid "+name, err.Error()))
		return 0, false
	}
	return value, true
}
