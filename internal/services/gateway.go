package services

import (
	"context"

	"ticket-checkout/internal/models"
)

// PaymentGateway is the hosted checkout provider. All amounts are in minor
// currency units.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*RemoteSession, error)
	GetSession(ctx context.Context, sessionID string) (*RemoteSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]RemoteLineItem, error)
	// ReplaceLineItems sends the complete line item set. Remote items left
	// out of items are deleted. A nil discount clears any discount.
	ReplaceLineItems(ctx context.Context, sessionID string, items []LineItemSpec, discount *Discount) error
	CreateRefund(ctx context.Context, req *RefundRequest) (*RemoteRefund, error)
}

type RemoteSession struct {
	ID              string
	ClientSecret    string
	Status          models.SessionStatus
	PaymentStatus   string
	PaymentIntentID string
	CustomerEmail   string
	DiscountMinor   int64
	Metadata        map[string]string
}

type RemoteLineItem struct {
	ID         string
	Quantity   int64
	UnitAmount int64
	Metadata   map[string]string
}

// LineItemSpec is one entry of a full line item set. Entries with an ID keep
// that remote item and only carry its quantity; entries without one are new.
type LineItemSpec struct {
	ID          string
	Quantity    int64
	Name        string
	Description string
	UnitAmount  int64
	Metadata    map[string]string
}

type Discount struct {
	Name        string
	AmountMinor int64
}

type CreateSessionRequest struct {
	LineItems []LineItemSpec
	ReturnURL string
	Metadata  map[string]string
}

type RefundRequest struct {
	PaymentIntentID string
	AmountMinor     int64
	Reason          string
	Metadata        map[string]string
}

type RemoteRefund struct {
	ID          string
	AmountMinor int64
	Status      string
}
