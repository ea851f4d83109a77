package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransitionTo reports whether the order state machine allows moving
// from s to next. Cancelled and Refunded are final.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        int64       `json:"id" bun:"id,pk,autoincrement"`
	BasketID  string      `json:"basketId" bun:"basket_id,unique,notnull"`
	Status    OrderStatus `json:"status" bun:"status,notnull"`
	CreatedAt time.Time   `json:"createdAt" bun:"created_at,notnull"`
}

func (o *Order) Editable() bool { return o.Status == OrderStatusCreated }

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID      int64 `json:"id" bun:"id,pk,autoincrement"`
	OrderID int64 `json:"orderId" bun:"order_id,notnull"`
}
