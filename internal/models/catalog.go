package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Sentinel catalog ids for basket entries that are not real inventory.
const (
	VoucherEventID                 int64 = -1
	VoucherPerformanceID           int64 = -1
	BookingProtectionEventID       int64 = -2
	BookingProtectionPerformanceID int64 = -2
	BookingProtectionPriceID       int64 = -1

	BookingProtectionRow = "BookingProtection"
	VoucherPricePrefix   = "VOUCHER-"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           int64         `json:"id" bun:"id,pk"`
	Name         string        `json:"name" bun:"name,notnull"`
	Performances []Performance `json:"performances,omitempty" bun:"rel:has-many,join:id=event_id"`
}

type Performance struct {
	bun.BaseModel `bun:"table:performances"`

	ID              int64     `json:"id" bun:"id,pk"`
	EventID         int64     `json:"eventId" bun:"event_id,notnull"`
	PerformanceDate time.Time `json:"performanceDate" bun:"performance_date,notnull"`
	DurationMinutes int       `json:"durationMinutes" bun:"duration_minutes"`
}

type Price struct {
	bun.BaseModel `bun:"table:prices"`

	ID     int64   `json:"id" bun:"id,pk,autoincrement"`
	Name   string  `json:"name" bun:"name,notnull"`
	Amount float64 `json:"amount" bun:"amount,type:decimal(10,2)"`
}

// Seat is a unit of inventory. A nil OrderItemID means the seat is free.
type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	ID            int64  `json:"id" bun:"id,pk,autoincrement"`
	Row           string `json:"row" bun:"seat_row,notnull"`
	Number        int    `json:"number" bun:"number"`
	PriceID       int64  `json:"priceId" bun:"price_id,notnull"`
	PerformanceID int64  `json:"performanceId" bun:"performance_id,notnull"`
	OrderItemID   *int64 `json:"orderItemId,omitempty" bun:"order_item_id,nullzero"`
}

func (s Seat) IsReserved() bool { return s.OrderItemID != nil }

// IsPseudo reports whether the seat stands for a voucher or add-on rather
// than a place in a venue.
func (s Seat) IsPseudo() bool { return s.PerformanceID <= 0 }

type SeatListing struct {
	Seat
	PriceName string  `json:"priceName"`
	Amount    float64 `json:"amount"`
	Available bool    `json:"available"`
}

// Ticket is the joined read view of one reserved seat.
type Ticket struct {
	EventID         int64     `json:"eventId"`
	EventName       string    `json:"eventName"`
	PerformanceID   int64     `json:"performanceId"`
	PerformanceDate time.Time `json:"performanceDate"`
	PriceID         int64     `json:"priceId"`
	UnitPrice       float64   `json:"unitPrice"`
	SeatID          int64     `json:"seatId"`
	SeatRow         string    `json:"seatRow"`
	SeatNumber      int       `json:"seatNumber"`
	OrderItemID     int64     `json:"orderItemId"`
}

func (t Ticket) IsVoucher() bool { return t.PerformanceID == VoucherPerformanceID }

func (t Ticket) IsBookingProtection() bool {
	return t.PerformanceID == BookingProtectionPerformanceID
}

// Catalog is the full inventory written by a seed.
type Catalog struct {
	Events       []Event
	Performances []Performance
	Prices       []Price
	Seats        []Seat
}
