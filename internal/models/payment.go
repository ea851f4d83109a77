package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var ErrPaymentTransition = errors.New("illegal payment status transition")

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// Payment is one attempt to pay for an order.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID              int64            `json:"id" bun:"id,pk,autoincrement"`
	OrderID         int64            `json:"orderId" bun:"order_id,notnull"`
	SessionID       string           `json:"sessionId" bun:"session_id,notnull"`
	PaymentIntentID string           `json:"paymentIntentId,omitempty" bun:"payment_intent_id"`
	Status          PaymentStatus    `json:"status" bun:"status,notnull"`
	CreatedAt       time.Time        `json:"createdAt" bun:"created_at,notnull"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty" bun:"updated_at,nullzero"`
	History         []PaymentHistory `json:"history,omitempty" bun:"rel:has-many,join:id=payment_id"`
}

type PaymentHistory struct {
	bun.BaseModel `bun:"table:payment_history"`

	ID        int64         `json:"id" bun:"id,pk,autoincrement"`
	PaymentID int64         `json:"paymentId" bun:"payment_id,notnull"`
	OldStatus PaymentStatus `json:"oldStatus" bun:"old_status,notnull"`
	NewStatus PaymentStatus `json:"newStatus" bun:"new_status,notnull"`
	CreatedAt time.Time     `json:"createdAt" bun:"created_at,notnull"`
}

func NewPayment(orderID int64, sessionID string, now time.Time) *Payment {
	p := &Payment{
		OrderID:   orderID,
		SessionID: sessionID,
		Status:    PaymentStatusCreated,
		CreatedAt: now,
	}
	p.History = append(p.History, PaymentHistory{
		OldStatus: PaymentStatusCreated,
		NewStatus: PaymentStatusCreated,
		CreatedAt: now,
	})
	return p
}

// Unresolved reports whether the attempt is still waiting for an outcome.
func (p *Payment) Unresolved() bool {
	return p.Status == PaymentStatusCreated && p.UpdatedAt == nil
}

// SetStatus records a transition. A Created to Created move is a retry and
// is recorded without touching UpdatedAt; other same-status moves are dropped.
// Terminal attempts never change again.
func (p *Payment) SetStatus(next PaymentStatus, now time.Time) error {
	if p.Status == next {
		if next == PaymentStatusCreated {
			p.History = append(p.History, PaymentHistory{
				PaymentID: p.ID,
				OldStatus: p.Status,
				NewStatus: next,
				CreatedAt: now,
			})
		}
		return nil
	}
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrPaymentTransition, p.Status, next)
	}

	p.History = append(p.History, PaymentHistory{
		PaymentID: p.ID,
		OldStatus: p.Status,
		NewStatus: next,
		CreatedAt: now,
	})
	p.Status = next
	p.UpdatedAt = &now
	return nil
}
