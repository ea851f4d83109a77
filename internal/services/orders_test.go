package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

func TestFinalizeRejectsCompleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-e", []int64{1})
	require.NoError(t, err)
	env.gateway.complete(env.sessionID(t, "basket-e"), "pi_1")

	_, err = env.orders.Finalize(ctx, "basket-e")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "complete")
	_, err = env.store.LatestUnresolvedPayment(ctx, env.order(t, "basket-e").ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFinalizeReusesUnresolvedAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-f", []int64{1})
	require.NoError(t, err)

	first, err := env.orders.Finalize(ctx, "basket-f")
	require.NoError(t, err)
	second, err := env.orders.Finalize(ctx, "basket-f")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.PaymentStatusCreated, second.Status)
	assert.Len(t, second.History, 2)
	assert.Equal(t, env.sessionID(t, "basket-f"), second.SessionID)
}

func TestFinalizeWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.failCreate = errGatewayDown
	_, err := env.basket.ReserveSeats(context.Background(), "basket-s", []int64{1})
	require.NoError(t, err)

	_, err = env.orders.Finalize(context.Background(), "basket-s")

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentFailureThenSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-p", []int64{1})
	require.NoError(t, err)

	_, err = env.orders.MarkPaymentFailed(ctx, "basket-p")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	attempt, err := env.orders.Finalize(ctx, "basket-p")
	require.NoError(t, err)
	failed, err := env.orders.MarkPaymentFailed(ctx, "basket-p")
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, failed.ID)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, models.OrderStatusCreated, env.order(t, "basket-p").Status)

	retry, err := env.orders.Finalize(ctx, "basket-p")
	require.NoError(t, err)
	assert.NotEqual(t, attempt.ID, retry.ID)

	env.gateway.complete(env.sessionID(t, "basket-p"), "pi_42")
	paid, err := env.orders.MarkPaid(ctx, "basket-p")
	require.NoError(t, err)
	assert.Empty(t, paid.VoucherCodes)

	order := env.order(t, "basket-p")
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	mirror, err := env.store.GetCheckoutSession(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_42", mirror.PaymentIntentID)
	_, err = env.store.LatestUnresolvedPayment(ctx, order.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	paidOrders, err := env.orders.ListPaid(ctx)
	require.NoError(t, err)
	require.Len(t, paidOrders, 1)
	assert.Equal(t, "basket-p", paidOrders[0].BasketID)

	env.publisher.AssertCalled(t, "PublishOrderEvent", mock.MatchedBy(func(e *models.OrderEvent) bool {
		return e.Type == models.EventPaymentFailed && e.BasketID == "basket-p"
	}))
	env.publisher.AssertCalled(t, "PublishOrderEvent", mock.MatchedBy(func(e *models.OrderEvent) bool {
		return e.Type == models.EventOrderPaid && e.Status == models.OrderStatusPaid
	}))
}

func TestMarkPaidIsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.vouchers.Buy(ctx, "basket-v", 10)
	require.NoError(t, err)

	first, err := env.orders.MarkPaid(ctx, "basket-v")
	require.NoError(t, err)
	second, err := env.orders.MarkPaid(ctx, "basket-v")
	require.NoError(t, err)

	require.Len(t, first.VoucherCodes, 1)
	assert.Equal(t, first.VoucherCodes, second.VoucherCodes)
	assert.Regexp(t, `^VCH-[0-9A-F]{6}-[0-9A-F]{6}$`, first.VoucherCodes[0])
}

func TestMarkPaidRejectsCancelledOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-c", []int64{1})
	require.NoError(t, err)
	_, err = env.basket.ReleaseSeats(ctx, "basket-c", []int64{1})
	require.NoError(t, err)

	_, err = env.orders.MarkPaid(ctx, "basket-c")

	assert.ErrorIs(t, err, ErrValidation)
}

func TestRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-r", []int64{5})
	require.NoError(t, err)

	_, err = env.orders.Refund(ctx, "basket-r", 10)
	assert.ErrorIs(t, err, ErrValidation)

	env.gateway.complete(env.sessionID(t, "basket-r"), "pi_7")
	_, err = env.orders.MarkPaid(ctx, "basket-r")
	require.NoError(t, err)

	_, err = env.orders.Refund(ctx, "basket-r", -1)
	assert.ErrorIs(t, err, ErrValidation)

	result, err := env.orders.Refund(ctx, "basket-r", 40.5)
	require.NoError(t, err)
	assert.Equal(t, 40.5, result.Amount)
	assert.Equal(t, models.OrderStatusRefunded, result.Status)
	assert.NotEmpty(t, result.RefundID)

	require.Len(t, env.gateway.refunds, 1)
	req := env.gateway.refunds[0]
	assert.Equal(t, "pi_7", req.PaymentIntentID)
	assert.Equal(t, int64(4050), req.AmountMinor)
	assert.Equal(t, "requested_by_customer", req.Reason)
	assert.Equal(t, "basket-r", req.Metadata[models.MetaBasketID])

	_, err = env.orders.Refund(ctx, "basket-r", 10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, env.order(t, "basket-r").Status)
}

func TestRefundRejectsUnpaidSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-o", []int64{1})
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateOrderStatus(ctx, env.order(t, "basket-o").ID, models.OrderStatusPaid))

	_, err = env.orders.Refund(ctx, "basket-o", 10)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "open")
	assert.Empty(t, env.gateway.refunds)
}
