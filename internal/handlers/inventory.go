package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-checkout/internal/services"
	"ticket-checkout/internal/utils"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
}

func NewInventoryHandler(inventoryService *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

func (h *InventoryHandler) ListEvents(c *gin.Context) {
	events, err := h.inventoryService.ListEvents(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list events", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Events retrieved", events))
}

func (h *InventoryHandler) ListSeats(c *gin.Context) {
	performanceID, ok := int64Param(c, "performanceId")
	if !ok {
		return
	}

	seats, err := h.inventoryService.ListSeats(c.Request.Context(), performanceID)
	if err != nil {
		respondError(c, "Failed to list seats", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Seats retrieved", seats))
}

// Seed replaces the catalog with demo data and drops every basket.
func (h *InventoryHandler) Seed(c *gin.Context) {
	catalog, err := h.inventoryService.Seed(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to seed catalog", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Catalog seeded", gin.H{
		"events":       len(catalog.Events),
		"performances": len(catalog.Performances),
		"seats":        len(catalog.Seats),
	}))
}
