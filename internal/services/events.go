package services

import (
	"context"
	"fmt"
	"time"

	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
)

// EventPublisher ships order lifecycle events and reconcile retries.
type EventPublisher interface {
	PublishOrderEvent(event *models.OrderEvent) error
	PublishReconcileRequest(req *models.ReconcileRequest) error
}

// ReconcileMarker dedupes reconcile retries per basket.
type ReconcileMarker interface {
	MarkPending(ctx context.Context, basketID string) (bool, error)
	ClearPending(ctx context.Context, basketID string) error
}

func publishOrderEvent(publisher EventPublisher, log *logger.Logger, eventType string, order *models.Order, amount float64, codes []string) {
	if publisher == nil {
		return
	}
	event := &models.OrderEvent{
		Type:         eventType,
		BasketID:     order.BasketID,
		OrderID:      order.ID,
		Status:       order.Status,
		Amount:       amount,
		VoucherCodes: codes,
		Timestamp:    time.Now().UTC(),
	}
	if err := publisher.PublishOrderEvent(event); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for basket %s: %v", eventType, order.BasketID, err))
		return
	}
	log.LogKafka("PUBLISH", eventType, fmt.Sprintf("basket %s", order.BasketID))
}
