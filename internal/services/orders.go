package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
	"ticket-checkout/internal/utils"
)

const refundReasonRequestedByCustomer = "requested_by_customer"

// OrderService drives an order through payment: attempts, confirmation,
// failure and refunds.
type OrderService struct {
	store     storage.Store
	gateway   PaymentGateway
	publisher EventPublisher
	log       *logger.Logger
	cfg       config.CheckoutConfig
	now       func() time.Time
}

func NewOrderService(store storage.Store, gateway PaymentGateway, publisher EventPublisher, log *logger.Logger, cfg config.CheckoutConfig) *OrderService {
	return &OrderService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Finalize records a payment attempt against the basket's session. A retry
// while the previous attempt is still unresolved reuses that attempt.
func (s *OrderService) Finalize(ctx context.Context, basketID string) (*models.Payment, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	mirror, err := s.mirror(ctx, order)
	if err != nil {
		return nil, err
	}
	remote, err := s.remoteSession(ctx, mirror.SessionID)
	if err != nil {
		return nil, err
	}
	if !remote.Status.IsActive() {
		return nil, validationError("checkout session %s is %s and cannot take a payment", remote.ID, remote.Status)
	}

	var payment *models.Payment
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.LatestUnresolvedPayment(ctx, order.ID)
		switch {
		case err == nil:
			payment = existing
			if err := payment.SetStatus(models.PaymentStatusCreated, s.now()); err != nil {
				return err
			}
			return s.store.UpdatePayment(ctx, payment)
		case errors.Is(err, storage.ErrNotFound):
			payment = models.NewPayment(order.ID, mirror.SessionID, s.now())
			return s.store.CreatePayment(ctx, payment)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.LogPayment("FINALIZE", strconv.FormatInt(payment.ID, 10), fmt.Sprintf("basket %s session %s", order.BasketID, mirror.SessionID))
	return payment, nil
}

// MarkPaid moves the order to Paid, resolves the open payment attempt and
// issues codes for vouchers bought in the basket. Calling it on a paid
// order returns the issued codes again.
func (s *OrderService) MarkPaid(ctx context.Context, basketID string) (*models.MarkPaidResult, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusPaid {
		codes, err := s.voucherCodes(ctx, order)
		if err != nil {
			return nil, err
		}
		return &models.MarkPaidResult{BasketID: order.BasketID, VoucherCodes: codes}, nil
	}
	if !order.Status.CanTransitionTo(models.OrderStatusPaid) {
		return nil, validationError("order %s is %s and cannot be marked paid", order.BasketID, order.Status)
	}

	mirror, err := s.store.GetCheckoutSession(ctx, order.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	var intentID string
	if mirror != nil {
		if remote, err := s.remoteSession(ctx, mirror.SessionID); err != nil {
			s.log.Warn("PAYMENT", fmt.Sprintf("Could not read payment intent for basket %s: %v", order.BasketID, err))
		} else {
			intentID = remote.PaymentIntentID
		}
	}

	var codes []string
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid); err != nil {
			return err
		}

		payment, err := s.store.LatestUnresolvedPayment(ctx, order.ID)
		switch {
		case err == nil:
			if intentID != "" {
				payment.PaymentIntentID = intentID
			}
			if err := payment.SetStatus(models.PaymentStatusSucceeded, s.now()); err != nil {
				return err
			}
			if err := s.store.UpdatePayment(ctx, payment); err != nil {
				return err
			}
		case errors.Is(err, storage.ErrNotFound):
			s.log.Warn("PAYMENT", fmt.Sprintf("Basket %s marked paid without a recorded payment attempt", order.BasketID))
		default:
			return err
		}

		if mirror != nil && intentID != "" && mirror.PaymentIntentID != intentID {
			mirror.PaymentIntentID = intentID
			if err := s.store.SaveCheckoutSession(ctx, mirror); err != nil {
				return err
			}
		}

		tickets, err := s.store.OrderTickets(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if !t.IsVoucher() {
				continue
			}
			code := t.SeatRow
			if code == "" {
				code = utils.NewVoucherCode()
				if err := s.store.SetSeatRow(ctx, t.SeatID, code); err != nil {
					return err
				}
			}
			codes = append(codes, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusPaid
	s.log.LogPayment("PAID", order.BasketID, fmt.Sprintf("order %d paid, %d voucher codes issued", order.ID, len(codes)))
	publishOrderEvent(s.publisher, s.log, models.EventOrderPaid, order, 0, codes)

	if codes == nil {
		codes = []string{}
	}
	return &models.MarkPaidResult{BasketID: order.BasketID, VoucherCodes: codes}, nil
}

// MarkPaymentFailed resolves the open payment attempt as failed. The order
// stays open for another attempt.
func (s *OrderService) MarkPaymentFailed(ctx context.Context, basketID string) (*models.Payment, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	var payment *models.Payment
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.store.LatestUnresolvedPayment(ctx, order.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: basket %s", ErrPaymentNotFound, order.BasketID)
		}
		if err != nil {
			return err
		}
		if err := payment.SetStatus(models.PaymentStatusFailed, s.now()); err != nil {
			return err
		}
		return s.store.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	s.log.LogPayment("FAILED", strconv.FormatInt(payment.ID, 10), fmt.Sprintf("basket %s", order.BasketID))
	publishOrderEvent(s.publisher, s.log, models.EventPaymentFailed, order, 0, nil)
	return payment, nil
}

// Refund returns part or all of a paid basket's payment. The session must
// be complete and paid.
func (s *OrderService) Refund(ctx context.Context, basketID string, amount float64) (*models.RefundResult, error) {
	amount = models.RoundAmount(amount)
	if amount <= 0 {
		return nil, validationError("refund amount must be positive")
	}
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusRefunded {
		return nil, validationError("order %s is %s and cannot be refunded", order.BasketID, order.Status)
	}
	mirror, err := s.mirror(ctx, order)
	if err != nil {
		return nil, err
	}
	remote, err := s.remoteSession(ctx, mirror.SessionID)
	if err != nil {
		return nil, err
	}
	if remote.Status != models.SessionStatusComplete || remote.PaymentStatus != models.RemotePaymentStatusPaid {
		return nil, validationError("checkout session %s is %s with payment %s; only complete paid sessions can be refunded",
			remote.ID, remote.Status, remote.PaymentStatus)
	}
	intentID := remote.PaymentIntentID
	if intentID == "" {
		intentID = mirror.PaymentIntentID
	}
	if intentID == "" {
		return nil, validationError("no payment intent recorded for basket %s", order.BasketID)
	}

	rctx, cancel := s.remoteContext(ctx)
	refund, err := s.gateway.CreateRefund(rctx, &RefundRequest{
		PaymentIntentID: intentID,
		AmountMinor:     models.ToMinor(amount),
		Reason:          refundReasonRequestedByCustomer,
		Metadata: map[string]string{
			models.MetaBasketID: order.BasketID,
			models.MetaOrderID:  strconv.FormatInt(order.ID, 10),
		},
	})
	cancel()
	if err != nil {
		return nil, remoteError("create refund", err)
	}

	if order.Status == models.OrderStatusPaid {
		if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusRefunded); err != nil {
			return nil, err
		}
		order.Status = models.OrderStatusRefunded
	}
	s.log.LogPayment("REFUND", refund.ID, fmt.Sprintf("basket %s refunded %.2f", order.BasketID, amount))
	publishOrderEvent(s.publisher, s.log, models.EventOrderRefunded, order, amount, nil)

	return &models.RefundResult{
		BasketID: order.BasketID,
		RefundID: refund.ID,
		Amount:   models.FromMinor(refund.AmountMinor),
		Status:   order.Status,
	}, nil
}

func (s *OrderService) ListPaid(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByStatus(ctx, models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *OrderService) mirror(ctx context.Context, order *models.Order) (*models.CheckoutSession, error) {
	mirror, err := s.store.GetCheckoutSession(ctx, order.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: basket %s", ErrSessionNotFound, order.BasketID)
	}
	return mirror, err
}

func (s *OrderService) remoteSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()
	remote, err := s.gateway.GetSession(rctx, sessionID)
	if err != nil {
		return nil, remoteError("get session", err)
	}
	return remote, nil
}

func (s *OrderService) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RemoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RemoteTimeout)
}

func (s *OrderService) voucherCodes(ctx context.Context, order *models.Order) ([]string, error) {
	tickets, err := s.store.OrderTickets(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	codes := []string{}
	for _, t := range tickets {
		if t.IsVoucher() && t.SeatRow != "" {
			codes = append(codes, t.SeatRow)
		}
	}
	return codes, nil
}
