package storage

import (
	"context"
	"errors"

	"ticket-checkout/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means a row changed underneath a conditional write.
	ErrConflict = errors.New("conflicting update")
)

// Store is the relational state of the catalog, baskets, payments and
// vouchers. Methods called with a context returned inside InTx take part in
// that transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Catalog
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListSeatListings(ctx context.Context, performanceID int64) ([]models.SeatListing, error)
	GetPrice(ctx context.Context, id int64) (*models.Price, error)
	FindPriceByName(ctx context.Context, name string) (*models.Price, error)
	CreatePrice(ctx context.Context, price *models.Price) error
	// ReplaceCatalog wipes every table, baskets included, then writes catalog.
	ReplaceCatalog(ctx context.Context, catalog *models.Catalog) error
	// UpsertCatalog writes catalog rows by id without touching other data.
	UpsertCatalog(ctx context.Context, catalog *models.Catalog) error

	// Seats and order items
	GetSeats(ctx context.Context, ids []int64) ([]models.Seat, error)
	CreateSeat(ctx context.Context, seat *models.Seat) error
	AssignSeats(ctx context.Context, orderItemID int64, seatIDs []int64) error
	ReleaseSeats(ctx context.Context, orderID int64, seatIDs []int64) ([]models.Seat, error)
	SetSeatRow(ctx context.Context, seatID int64, row string) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	PruneOrderItems(ctx context.Context, orderID int64) (int, error)
	OrderTickets(ctx context.Context, orderID int64) ([]models.Ticket, error)

	// Orders
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByBasketID(ctx context.Context, basketID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)

	// Checkout session mirror
	GetCheckoutSession(ctx context.Context, orderID int64) (*models.CheckoutSession, error)
	GetCheckoutSessionBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
	SaveCheckoutSession(ctx context.Context, session *models.CheckoutSession) error

	// Payments
	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	LatestUnresolvedPayment(ctx context.Context, orderID int64) (*models.Payment, error)

	// Vouchers
	CreateVoucher(ctx context.Context, voucher *models.Voucher) error
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	DeleteVouchersBySeatIDs(ctx context.Context, seatIDs []int64) error
	AddVoucherHistory(ctx context.Context, entry *models.VoucherHistory) error
	DeleteVoucherHistory(ctx context.Context, orderID, voucherID int64) (int, error)
	// OrderVoucherHistory lists an order's redemption rows, oldest first.
	OrderVoucherHistory(ctx context.Context, orderID int64) ([]models.VoucherHistory, error)
	// SetVoucherHistoryAmount rewrites one redemption row; a non-positive
	// amount deletes it.
	SetVoucherHistoryAmount(ctx context.Context, id int64, amount float64) error
	OrderVouchers(ctx context.Context, orderID int64) ([]models.AppliedVoucher, error)
}
