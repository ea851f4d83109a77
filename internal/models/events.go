package models

import "time"

// Order event types published to Kafka.
const (
	EventOrderPaid       = "order.paid"
	EventOrderCancelled  = "order.cancelled"
	EventOrderRefunded   = "order.refunded"
	EventPaymentFailed   = "payment.failed"
	EventVoucherRedeemed = "voucher.redeemed"
)

type OrderEvent struct {
	Type         string      `json:"type"`
	BasketID     string      `json:"basketId"`
	OrderID      int64       `json:"orderId"`
	Status       OrderStatus `json:"status"`
	Amount       float64     `json:"amount,omitempty"`
	VoucherCodes []string    `json:"voucherCodes,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// ReconcileRequest asks a worker to retry a failed session reconciliation.
type ReconcileRequest struct {
	BasketID  string    `json:"basketId"`
	Reason    string    `json:"reason"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}
