package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
	"ticket-checkout/internal/utils"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrStripeAPIError = errors.New("stripe API error")

	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrBasketEmpty         = fmt.Errorf("basket has no items: %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("checkout session %w", ErrNotFound)
	ErrPaymentNotFound     = fmt.Errorf("unresolved payment attempt %w", ErrNotFound)
	ErrPerformanceNotFound = fmt.Errorf("performance %w", ErrNotFound)
	ErrOrderNotEditable    = fmt.Errorf("%w: order can no longer be changed", ErrValidation)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const maxBasketIDLength = 64

func loadOrder(ctx context.Context, store storage.Store, basketID string) (*models.Order, error) {
	if strings.TrimSpace(basketID) == "" {
		return nil, validationError("basket id is required")
	}
	order, err := store.GetOrderByBasketID(ctx, basketID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, basketID)
	}
	return order, err
}

// openOrder returns the order behind basketID, creating it when the handle
// is new. An empty handle gets a freshly generated one.
func openOrder(ctx context.Context, store storage.Store, basketID string, now time.Time) (*models.Order, error) {
	basketID = strings.TrimSpace(basketID)
	if len(basketID) > maxBasketIDLength {
		return nil, validationError("basket id must be at most %d characters", maxBasketIDLength)
	}
	if basketID != "" {
		order, err := store.GetOrderByBasketID(ctx, basketID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	} else {
		basketID = utils.NewBasketID()
	}

	order := &models.Order{BasketID: basketID, Status: models.OrderStatusCreated, CreatedAt: now}
	if err := store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return store.GetOrderByBasketID(ctx, basketID)
		}
		return nil, err
	}
	return order, nil
}
