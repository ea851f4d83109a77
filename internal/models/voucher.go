package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Voucher is store credit bought through a voucher pseudo-seat. The code
// lives on the seat row and stays empty until the purchasing order is paid.
type Voucher struct {
	bun.BaseModel `bun:"table:vouchers"`

	ID             int64   `json:"id" bun:"id,pk,autoincrement"`
	SeatID         int64   `json:"seatId" bun:"seat_id,unique,notnull"`
	InitialAmount  float64 `json:"initialAmount" bun:"initial_amount,type:decimal(10,2)"`
	Code           string  `json:"code,omitempty" bun:"-"`
	RedeemedAmount float64 `json:"redeemedAmount" bun:"-"`
}

func (v *Voucher) RemainingMinor() int64 {
	return ToMinor(v.InitialAmount) - ToMinor(v.RedeemedAmount)
}

func (v *Voucher) RemainingAmount() float64 { return FromMinor(v.RemainingMinor()) }

// VoucherHistory is one append-only redemption of a voucher against an order.
type VoucherHistory struct {
	bun.BaseModel `bun:"table:voucher_history"`

	ID        int64     `json:"id" bun:"id,pk,autoincrement"`
	VoucherID int64     `json:"voucherId" bun:"voucher_id,notnull"`
	OrderID   int64     `json:"orderId" bun:"order_id,notnull"`
	Amount    float64   `json:"amount" bun:"amount,type:decimal(10,2)"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at,notnull"`
}

// AppliedVoucher is a redemption as seen from the order that received it.
type AppliedVoucher struct {
	VoucherID int64   `json:"voucherId"`
	Code      string  `json:"code"`
	Amount    float64 `json:"amount"`
}

type VoucherPurchase struct {
	BasketID  string       `json:"basketId"`
	VoucherID int64        `json:"voucherId"`
	SeatID    int64        `json:"seatId"`
	PriceID   int64        `json:"priceId"`
	Amount    float64      `json:"amount"`
	Status    UpdateStatus `json:"status"`
}

type VoucherValidation struct {
	Code            string  `json:"code"`
	RemainingAmount float64 `json:"remainingAmount"`
	Discount        float64 `json:"discount"`
}

type VoucherRedemption struct {
	VoucherValidation
	Status UpdateStatus `json:"status"`
}
