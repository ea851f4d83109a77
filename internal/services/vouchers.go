package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

// VoucherService sells vouchers as basket entries and applies them as
// discounts on other baskets.
type VoucherService struct {
	store     storage.Store
	checkout  *CheckoutService
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewVoucherService(store storage.Store, checkout *CheckoutService, publisher EventPublisher, log *logger.Logger) *VoucherService {
	return &VoucherService{
		store:     store,
		checkout:  checkout,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Buy adds a voucher of the given face value to the basket. Its code is
// assigned once the basket is paid.
func (s *VoucherService) Buy(ctx context.Context, basketID string, amount float64) (*models.VoucherPurchase, error) {
	amount = models.RoundAmount(amount)
	if amount <= 0 {
		return nil, validationError("voucher amount must be positive")
	}

	purchase := &models.VoucherPurchase{Amount: amount}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		order, err := openOrder(ctx, s.store, basketID, s.now())
		if err != nil {
			return err
		}
		if !order.Editable() {
			return ErrOrderNotEditable
		}
		purchase.BasketID = order.BasketID

		price, err := s.voucherPrice(ctx, amount)
		if err != nil {
			return err
		}
		item := &models.OrderItem{OrderID: order.ID}
		if err := s.store.CreateOrderItem(ctx, item); err != nil {
			return err
		}
		seat := &models.Seat{
			PriceID:       price.ID,
			PerformanceID: models.VoucherPerformanceID,
			OrderItemID:   &item.ID,
		}
		if err := s.store.CreateSeat(ctx, seat); err != nil {
			return err
		}
		voucher := &models.Voucher{SeatID: seat.ID, InitialAmount: amount}
		if err := s.store.CreateVoucher(ctx, voucher); err != nil {
			return err
		}
		purchase.VoucherID = voucher.ID
		purchase.SeatID = seat.ID
		purchase.PriceID = price.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.LogCheckout("VOUCHER_BUY", purchase.BasketID, fmt.Sprintf("voucher %d worth %.2f", purchase.VoucherID, amount))

	purchase.Status, err = s.checkout.UpdateSession(ctx, purchase.BasketID)
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// Validate reports the discount a voucher would give the basket right now:
// its remaining balance capped at what is still payable.
func (s *VoucherService) Validate(ctx context.Context, basketID, code string) (*models.VoucherValidation, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	_, validation, err := s.validate(ctx, order, code)
	return validation, err
}

// Redeem applies a voucher to the basket and pushes the discount to the
// checkout session.
func (s *VoucherService) Redeem(ctx context.Context, basketID, code string) (*models.VoucherRedemption, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, ErrOrderNotEditable
	}

	var validation *models.VoucherValidation
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		voucher, v, err := s.validate(ctx, order, code)
		if err != nil {
			return err
		}
		validation = v
		return s.store.AddVoucherHistory(ctx, &models.VoucherHistory{
			VoucherID: voucher.ID,
			OrderID:   order.ID,
			Amount:    v.Discount,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.LogCheckout("VOUCHER_REDEEM", order.BasketID, fmt.Sprintf("voucher %s applied for %.2f", validation.Code, validation.Discount))
	publishOrderEvent(s.publisher, s.log, models.EventVoucherRedeemed, order, validation.Discount, []string{validation.Code})

	status, err := s.checkout.UpdateSession(ctx, order.BasketID)
	if err != nil {
		return nil, err
	}
	return &models.VoucherRedemption{VoucherValidation: *validation, Status: status}, nil
}

// Remove takes every redemption of the voucher off the basket, restoring
// the voucher's balance.
func (s *VoucherService) Remove(ctx context.Context, basketID, code string) (models.UpdateStatus, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return "", err
	}
	if !order.Editable() {
		return "", ErrOrderNotEditable
	}
	voucher, err := s.findVoucher(ctx, code)
	if err != nil {
		return "", err
	}
	removed, err := s.store.DeleteVoucherHistory(ctx, order.ID, voucher.ID)
	if err != nil {
		return "", err
	}
	if removed == 0 {
		return "", validationError("voucher %s is not applied to basket %s", voucher.Code, order.BasketID)
	}
	s.log.LogCheckout("VOUCHER_REMOVE", order.BasketID, fmt.Sprintf("voucher %s removed", voucher.Code))

	return s.checkout.UpdateSession(ctx, order.BasketID)
}

func (s *VoucherService) validate(ctx context.Context, order *models.Order, code string) (*models.Voucher, *models.VoucherValidation, error) {
	voucher, err := s.findVoucher(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	remaining := voucher.RemainingMinor()
	if remaining <= 0 {
		return nil, nil, validationError("voucher %s has no balance left", voucher.Code)
	}

	tickets, err := s.store.OrderTickets(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	applied, err := s.store.OrderVouchers(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	payable := ticketsTotalMinor(tickets) - voucherDiscount(applied).minor()
	discount := min(remaining, payable)
	if discount <= 0 {
		return nil, nil, validationError("basket %s has nothing left to pay", order.BasketID)
	}

	return voucher, &models.VoucherValidation{
		Code:            voucher.Code,
		RemainingAmount: models.FromMinor(remaining),
		Discount:        models.FromMinor(discount),
	}, nil
}

// capRedemptions trims an order's redemptions, newest first, until they do
// not exceed its items total. It returns the amount given back to vouchers.
func capRedemptions(ctx context.Context, store storage.Store, orderID int64) (int64, error) {
	tickets, err := store.OrderTickets(ctx, orderID)
	if err != nil {
		return 0, err
	}
	history, err := store.OrderVoucherHistory(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var applied int64
	for _, h := range history {
		applied += models.ToMinor(h.Amount)
	}

	excess := applied - ticketsTotalMinor(tickets)
	trimmed := int64(0)
	for i := len(history) - 1; i >= 0 && excess > 0; i-- {
		amount := models.ToMinor(history[i].Amount)
		cut := min(amount, excess)
		if err := store.SetVoucherHistoryAmount(ctx, history[i].ID, models.FromMinor(amount-cut)); err != nil {
			return trimmed, err
		}
		excess -= cut
		trimmed += cut
	}
	return trimmed, nil
}

func (s *VoucherService) findVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("voucher code is required")
	}
	voucher, err := s.store.GetVoucherByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, validationError("voucher %s does not exist", code)
	}
	return voucher, err
}

// voucherPrice finds or creates the price band named after the face value.
func (s *VoucherService) voucherPrice(ctx context.Context, amount float64) (*models.Price, error) {
	name := models.VoucherPriceName(amount)
	price, err := s.store.FindPriceByName(ctx, name)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	price = &models.Price{Name: name, Amount: amount}
	if err := s.store.CreatePrice(ctx, price); err != nil {
		return nil, err
	}
	return price, nil
}
