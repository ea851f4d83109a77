package models

type ReserveSeatsRequest struct {
	BasketID string  `json:"basketId"`
	SeatIDs  []int64 `json:"seatIds" binding:"required,min=1"`
}

type ReleaseSeatsRequest struct {
	SeatIDs []int64 `json:"seatIds" binding:"required,min=1"`
}

type BookingProtectionRequest struct {
	Enabled bool `json:"enabled"`
}

type BuyVoucherRequest struct {
	BasketID string  `json:"basketId"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

type VoucherCodeRequest struct {
	BasketID string `json:"basketId" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type RefundRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type ReserveResult struct {
	BasketID string       `json:"basketId"`
	Total    float64      `json:"total"`
	Status   UpdateStatus `json:"status"`
}

type BasketContent struct {
	BasketID             string           `json:"basketId"`
	Status               OrderStatus      `json:"status"`
	Tickets              []Ticket         `json:"tickets"`
	Vouchers             []AppliedVoucher `json:"vouchers"`
	ItemsTotal           float64          `json:"itemsTotal"`
	VouchersTotal        float64          `json:"vouchersTotal"`
	TotalPrice           float64          `json:"totalPrice"`
	HasBookingProtection bool             `json:"hasBookingProtection"`
}

type MarkPaidResult struct {
	BasketID     string   `json:"basketId"`
	VoucherCodes []string `json:"voucherCodes"`
}

type RefundResult struct {
	BasketID string      `json:"basketId"`
	RefundID string      `json:"refundId"`
	Amount   float64     `json:"amount"`
	Status   OrderStatus `json:"status"`
}
