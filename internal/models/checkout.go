package models

import (
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// CheckoutSession mirrors the remote checkout session of one order.
type CheckoutSession struct {
	bun.BaseModel `bun:"table:checkout_sessions"`

	ID              int64  `json:"id" bun:"id,pk,autoincrement"`
	OrderID         int64  `json:"orderId" bun:"order_id,unique,notnull"`
	SessionID       string `json:"sessionId" bun:"session_id,notnull"`
	ClientSecret    string `json:"clientSecret" bun:"client_secret"`
	PaymentIntentID string `json:"paymentIntentId,omitempty" bun:"payment_intent_id"`
}

// SessionStatus is the remote session lifecycle state. Anything the
// collaborator reports that is not listed here maps to SessionStatusUnknown.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
	SessionStatusUnknown  SessionStatus = "unknown"
)

func ParseSessionStatus(raw string) SessionStatus {
	switch s := SessionStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case SessionStatusOpen, SessionStatusPending, SessionStatusComplete, SessionStatusExpired:
		return s
	default:
		return SessionStatusUnknown
	}
}

// IsActive reports whether a payment can still be confirmed against the
// session. Unknown statuses are not active.
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusOpen || s == SessionStatusPending
}

const RemotePaymentStatusPaid = "paid"

// UpdateStatus is the outcome of one reconciliation.
type UpdateStatus string

const (
	UpdateStatusUpdated UpdateStatus = "Updated"
	UpdateStatusEmptied UpdateStatus = "Emptied"
	UpdateStatusError   UpdateStatus = "Error"
)

// Line item metadata keys.
const (
	MetaEventID       = "eventId"
	MetaPerformanceID = "performanceId"
	MetaPriceID       = "priceId"
	MetaOrderItemID   = "orderItemId"
	MetaBasketID      = "basketId"
	MetaOrderID       = "orderId"
)

// LineItemKey identifies one remote line item: a performance and price band
// of one event.
type LineItemKey struct {
	EventID       int64
	PerformanceID int64
	PriceID       int64
}

func (k LineItemKey) Metadata() map[string]string {
	return map[string]string{
		MetaEventID:       strconv.FormatInt(k.EventID, 10),
		MetaPerformanceID: strconv.FormatInt(k.PerformanceID, 10),
		MetaPriceID:       strconv.FormatInt(k.PriceID, 10),
	}
}

// ParseLineItemKey reads the key back from line item metadata. It returns
// false when any of the three ids is missing or malformed.
func ParseLineItemKey(meta map[string]string) (LineItemKey, bool) {
	var key LineItemKey
	var err error
	if key.EventID, err = strconv.ParseInt(meta[MetaEventID], 10, 64); err != nil {
		return LineItemKey{}, false
	}
	if key.PerformanceID, err = strconv.ParseInt(meta[MetaPerformanceID], 10, 64); err != nil {
		return LineItemKey{}, false
	}
	if key.PriceID, err = strconv.ParseInt(meta[MetaPriceID], 10, 64); err != nil {
		return LineItemKey{}, false
	}
	return key, true
}

type SessionView struct {
	BasketID      string        `json:"basketId"`
	SessionID     string        `json:"sessionId"`
	ClientSecret  string        `json:"clientSecret"`
	Status        SessionStatus `json:"status"`
	Reconciled    UpdateStatus  `json:"reconciled,omitempty"`
	PaymentIntent string        `json:"paymentIntentId,omitempty"`
}

type SessionStatusView struct {
	SessionID     string        `json:"sessionId"`
	Status        SessionStatus `json:"status"`
	PaymentStatus string        `json:"paymentStatus"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	BasketID      string        `json:"basketId,omitempty"`
}
