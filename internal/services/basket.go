package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

// BasketService owns seat reservations and the booking protection add-on.
// Every mutation is followed by a session reconciliation.
type BasketService struct {
	store     storage.Store
	checkout  *CheckoutService
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewBasketService(store storage.Store, checkout *CheckoutService, publisher EventPublisher, log *logger.Logger) *BasketService {
	return &BasketService{
		store:     store,
		checkout:  checkout,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReserveSeats assigns free seats to the basket, opening the basket when the
// handle is new or empty. Either every seat is reserved or none is.
func (s *BasketService) ReserveSeats(ctx context.Context, basketID string, seatIDs []int64) (*models.ReserveResult, error) {
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return nil, validationError("at least one seat id is required")
	}

	var order *models.Order
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = openOrder(ctx, s.store, basketID, s.now())
		if err != nil {
			return err
		}
		if !order.Editable() {
			return ErrOrderNotEditable
		}

		seats, err := s.store.GetSeats(ctx, ids)
		if err != nil {
			return err
		}
		if missing := missingIDs(ids, seats); len(missing) > 0 {
			return validationError("unknown seats: %s", joinIDs(missing))
		}
		var taken []int64
		for _, seat := range seats {
			if seat.IsPseudo() {
				return validationError("seat %d cannot be reserved directly", seat.ID)
			}
			if seat.IsReserved() {
				taken = append(taken, seat.ID)
			}
		}
		if len(taken) > 0 {
			return validationError("seats already reserved: %s", joinIDs(taken))
		}

		for _, group := range groupSeatsByBand(seats) {
			item := &models.OrderItem{OrderID: order.ID}
			if err := s.store.CreateOrderItem(ctx, item); err != nil {
				return err
			}
			if err := s.store.AssignSeats(ctx, item.ID, group); err != nil {
				if errors.Is(err, storage.ErrConflict) {
					return validationError("seats already reserved: %s", joinIDs(group))
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.LogCheckout("RESERVE", order.BasketID, fmt.Sprintf("reserved seats %s", joinIDs(ids)))

	status, err := s.checkout.UpdateSession(ctx, order.BasketID)
	if err != nil {
		return nil, err
	}
	content, err := s.Content(ctx, order.BasketID)
	if err != nil {
		return nil, err
	}
	return &models.ReserveResult{BasketID: order.BasketID, Total: content.ItemsTotal, Status: status}, nil
}

// ReleaseSeats returns seats of this basket to inventory. Seats the basket
// does not hold are ignored. Releasing the last real seat also drops booking
// protection, and an emptied basket is cancelled.
func (s *BasketService) ReleaseSeats(ctx context.Context, basketID string, seatIDs []int64) (models.UpdateStatus, error) {
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return "", validationError("at least one seat id is required")
	}
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return "", err
	}
	if !order.Editable() {
		return "", ErrOrderNotEditable
	}

	var trimmed int64
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		released, err := s.store.ReleaseSeats(ctx, order.ID, ids)
		if err != nil {
			return err
		}

		var voucherSeats []int64
		for _, seat := range released {
			if seat.PerformanceID == models.VoucherPerformanceID {
				voucherSeats = append(voucherSeats, seat.ID)
			}
		}
		if len(voucherSeats) > 0 {
			if err := s.store.DeleteVouchersBySeatIDs(ctx, voucherSeats); err != nil {
				return err
			}
		}

		remaining, err := s.store.OrderTickets(ctx, order.ID)
		if err != nil {
			return err
		}
		if !hasVenueSeat(remaining) {
			if protection := bookingProtectionSeats(remaining); len(protection) > 0 {
				if _, err := s.store.ReleaseSeats(ctx, order.ID, protection); err != nil {
					return err
				}
			}
		}
		if _, err := s.store.PruneOrderItems(ctx, order.ID); err != nil {
			return err
		}
		trimmed, err = capRedemptions(ctx, s.store, order.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	s.log.LogCheckout("RELEASE", order.BasketID, fmt.Sprintf("released seats %s", joinIDs(ids)))
	s.logTrimmed(order, trimmed)

	return s.reconcile(ctx, order)
}

// SetBookingProtection adds or removes the single booking protection entry.
// Enabling it twice is a no-op.
func (s *BasketService) SetBookingProtection(ctx context.Context, basketID string, enabled bool) (models.UpdateStatus, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return "", err
	}
	if !order.Editable() {
		return "", ErrOrderNotEditable
	}

	var trimmed int64
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.OrderTickets(ctx, order.ID)
		if err != nil {
			return err
		}
		protection := bookingProtectionSeats(tickets)

		if !enabled {
			if len(protection) == 0 {
				return nil
			}
			if _, err := s.store.ReleaseSeats(ctx, order.ID, protection); err != nil {
				return err
			}
			if _, err := s.store.PruneOrderItems(ctx, order.ID); err != nil {
				return err
			}
			trimmed, err = capRedemptions(ctx, s.store, order.ID)
			return err
		}

		if !hasVenueSeat(tickets) {
			return validationError("booking protection needs at least one reserved seat")
		}
		if len(protection) > 0 {
			return nil
		}
		item := &models.OrderItem{OrderID: order.ID}
		if err := s.store.CreateOrderItem(ctx, item); err != nil {
			return err
		}
		return s.store.CreateSeat(ctx, &models.Seat{
			Row:           models.BookingProtectionRow,
			PriceID:       models.BookingProtectionPriceID,
			PerformanceID: models.BookingProtectionPerformanceID,
			OrderItemID:   &item.ID,
		})
	})
	if err != nil {
		return "", err
	}
	s.log.LogCheckout("PROTECTION", order.BasketID, fmt.Sprintf("booking protection enabled=%t", enabled))
	s.logTrimmed(order, trimmed)

	return s.reconcile(ctx, order)
}

// Content lists the basket with its totals. TotalPrice is what is left to
// pay once applied vouchers are deducted.
func (s *BasketService) Content(ctx context.Context, basketID string) (*models.BasketContent, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.OrderTickets(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	applied, err := s.store.OrderVouchers(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	items := ticketsTotalMinor(tickets)
	discount := voucherDiscount(applied).minor()
	content := &models.BasketContent{
		BasketID:             order.BasketID,
		Status:               order.Status,
		Tickets:              tickets,
		Vouchers:             applied,
		ItemsTotal:           models.FromMinor(items),
		VouchersTotal:        models.FromMinor(discount),
		TotalPrice:           models.FromMinor(max(items-discount, 0)),
		HasBookingProtection: len(bookingProtectionSeats(tickets)) > 0,
	}
	if content.Tickets == nil {
		content.Tickets = []models.Ticket{}
	}
	if content.Vouchers == nil {
		content.Vouchers = []models.AppliedVoucher{}
	}
	return content, nil
}

// reconcile pushes the basket to its session and cancels the order when
// nothing is left in it.
func (s *BasketService) reconcile(ctx context.Context, order *models.Order) (models.UpdateStatus, error) {
	status, err := s.checkout.UpdateSession(ctx, order.BasketID)
	if err != nil {
		return "", err
	}
	if status == models.UpdateStatusEmptied && order.Status.CanTransitionTo(models.OrderStatusCancelled) {
		if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
			return "", err
		}
		order.Status = models.OrderStatusCancelled
		s.log.LogCheckout("CANCEL", order.BasketID, "basket emptied")
		publishOrderEvent(s.publisher, s.log, models.EventOrderCancelled, order, 0, nil)
	}
	return status, nil
}

func (s *BasketService) logTrimmed(order *models.Order, trimmed int64) {
	if trimmed > 0 {
		s.log.LogCheckout("VOUCHER_TRIM", order.BasketID,
			fmt.Sprintf("%.2f of voucher redemptions returned to balance", models.FromMinor(trimmed)))
	}
}

func ticketsTotalMinor(tickets []models.Ticket) int64 {
	var total int64
	for _, t := range tickets {
		total += models.ToMinor(t.UnitPrice)
	}
	return total
}

func hasVenueSeat(tickets []models.Ticket) bool {
	for _, t := range tickets {
		if t.PerformanceID > 0 {
			return true
		}
	}
	return false
}

func bookingProtectionSeats(tickets []models.Ticket) []int64 {
	var ids []int64
	for _, t := range tickets {
		if t.IsBookingProtection() {
			ids = append(ids, t.SeatID)
		}
	}
	return ids
}

// groupSeatsByBand splits seats into one id list per (performance, price),
// ordered by performance then price.
func groupSeatsByBand(seats []models.Seat) [][]int64 {
	type band struct{ performanceID, priceID int64 }
	byBand := make(map[band][]int64)
	var bands []band
	for _, seat := range seats {
		b := band{seat.PerformanceID, seat.PriceID}
		if _, ok := byBand[b]; !ok {
			bands = append(bands, b)
		}
		byBand[b] = append(byBand[b], seat.ID)
	}
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].performanceID != bands[j].performanceID {
			return bands[i].performanceID < bands[j].performanceID
		}
		return bands[i].priceID < bands[j].priceID
	})
	groups := make([][]int64, 0, len(bands))
	for _, b := range bands {
		groups = append(groups, byBand[b])
	}
	return groups
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(want []int64, seats []models.Seat) []int64 {
	found := make(map[int64]bool, len(seats))
	for _, seat := range seats {
		found[seat.ID] = true
	}
	var missing []int64
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
