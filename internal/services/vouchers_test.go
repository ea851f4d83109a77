package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/models"
)

func TestBuyVoucherOnFreshBasket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	purchase, err := env.vouchers.Buy(ctx, "", 160)

	require.NoError(t, err)
	assert.NotEmpty(t, purchase.BasketID)
	assert.Equal(t, models.UpdateStatusUpdated, purchase.Status)
	order := env.order(t, purchase.BasketID)
	assert.Equal(t, models.OrderStatusCreated, order.Status)

	seats, err := env.store.GetSeats(ctx, []int64{purchase.SeatID})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, models.VoucherPerformanceID, seats[0].PerformanceID)
	assert.Empty(t, seats[0].Row)
	price, err := env.store.GetPrice(ctx, purchase.PriceID)
	require.NoError(t, err)
	assert.Equal(t, 160.0, price.Amount)
	assert.Equal(t, "VOUCHER-160.000", price.Name)

	paid, err := env.orders.MarkPaid(ctx, purchase.BasketID)
	require.NoError(t, err)
	require.Len(t, paid.VoucherCodes, 1)
	voucher, err := env.store.GetVoucherByCode(ctx, paid.VoucherCodes[0])
	require.NoError(t, err)
	assert.Equal(t, 160.0, voucher.RemainingAmount())
}

func TestBuyVoucherReusesPriceBand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.vouchers.Buy(ctx, "basket-v", 25)
	require.NoError(t, err)
	second, err := env.vouchers.Buy(ctx, "basket-v", 25)
	require.NoError(t, err)

	assert.Equal(t, first.PriceID, second.PriceID)
	items := env.gateway.items(env.sessionID(t, "basket-v"))
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].Quantity)

	_, err = env.vouchers.Buy(ctx, "basket-v", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVoucherDiscountIsCappedAtPayable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	small := env.paidVoucher(t, "buy-small", 50)
	large := env.paidVoucher(t, "buy-large", 300)
	_, err := env.basket.ReserveSeats(ctx, "basket-d", []int64{5, 6})
	require.NoError(t, err)

	validation, err := env.vouchers.Validate(ctx, "basket-d", small)
	require.NoError(t, err)
	assert.Equal(t, 50.0, validation.Discount)
	assert.Equal(t, 50.0, validation.RemainingAmount)

	redemption, err := env.vouchers.Redeem(ctx, "basket-d", small)
	require.NoError(t, err)
	assert.Equal(t, models.UpdateStatusUpdated, redemption.Status)
	sessionID := env.sessionID(t, "basket-d")
	assert.Equal(t, int64(5000), env.gateway.discount(sessionID))

	validation, err = env.vouchers.Validate(ctx, "basket-d", large)
	require.NoError(t, err)
	assert.Equal(t, 150.0, validation.Discount)
	assert.Equal(t, 300.0, validation.RemainingAmount)

	_, err = env.vouchers.Redeem(ctx, "basket-d", large)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), env.gateway.discount(sessionID))
	content, err := env.basket.Content(ctx, "basket-d")
	require.NoError(t, err)
	assert.Equal(t, 0.0, content.TotalPrice)
	assert.Equal(t, 200.0, content.VouchersTotal)

	_, err = env.vouchers.Validate(ctx, "basket-d", large)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.vouchers.Validate(ctx, "basket-d", small)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "no balance left")

	env.publisher.AssertCalled(t, "PublishOrderEvent", mock.MatchedBy(func(e *models.OrderEvent) bool {
		return e.Type == models.EventVoucherRedeemed && e.Amount == 150
	}))
}

func TestReleasingSeatsTrimsNewestRedemption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	small := env.paidVoucher(t, "buy-small", 50)
	large := env.paidVoucher(t, "buy-large", 300)
	_, err := env.basket.ReserveSeats(ctx, "basket-t", []int64{5, 6})
	require.NoError(t, err)
	_, err = env.vouchers.Redeem(ctx, "basket-t", small)
	require.NoError(t, err)
	_, err = env.vouchers.Redeem(ctx, "basket-t", large)
	require.NoError(t, err)
	sessionID := env.sessionID(t, "basket-t")
	require.Equal(t, int64(20000), env.gateway.discount(sessionID))

	status, err := env.basket.ReleaseSeats(ctx, "basket-t", []int64{6})

	require.NoError(t, err)
	assert.Equal(t, models.UpdateStatusUpdated, status)
	content, err := env.basket.Content(ctx, "basket-t")
	require.NoError(t, err)
	assert.Equal(t, 100.0, content.ItemsTotal)
	assert.Equal(t, 100.0, content.VouchersTotal)
	require.Len(t, content.Vouchers, 2)
	assert.Equal(t, []models.AppliedVoucher{
		{VoucherID: content.Vouchers[0].VoucherID, Code: small, Amount: 50},
		{VoucherID: content.Vouchers[1].VoucherID, Code: large, Amount: 50},
	}, content.Vouchers)
	assert.Equal(t, int64(10000), env.gateway.discount(sessionID))

	voucher, err := env.store.GetVoucherByCode(ctx, large)
	require.NoError(t, err)
	assert.Equal(t, 250.0, voucher.RemainingAmount())
}

func TestDisablingBookingProtectionTrimsRedemptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.paidVoucher(t, "buy", 100)
	_, err := env.basket.ReserveSeats(ctx, "basket-bp", []int64{1})
	require.NoError(t, err)
	_, err = env.basket.SetBookingProtection(ctx, "basket-bp", true)
	require.NoError(t, err)
	_, err = env.vouchers.Redeem(ctx, "basket-bp", code)
	require.NoError(t, err)
	require.Equal(t, int64(5500), env.gateway.discount(env.sessionID(t, "basket-bp")))

	_, err = env.basket.SetBookingProtection(ctx, "basket-bp", false)

	require.NoError(t, err)
	content, err := env.basket.Content(ctx, "basket-bp")
	require.NoError(t, err)
	assert.Equal(t, 50.0, content.VouchersTotal)
	assert.Equal(t, int64(5000), env.gateway.discount(env.sessionID(t, "basket-bp")))
}

func TestReserveTotalIsSeatSum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.paidVoucher(t, "buy", 50)
	_, err := env.basket.ReserveSeats(ctx, "basket-sum", []int64{1, 2})
	require.NoError(t, err)
	_, err = env.vouchers.Redeem(ctx, "basket-sum", code)
	require.NoError(t, err)

	result, err := env.basket.ReserveSeats(ctx, "basket-sum", []int64{3})

	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Total)
	content, err := env.basket.Content(ctx, "basket-sum")
	require.NoError(t, err)
	assert.Equal(t, 100.0, content.TotalPrice)
}

func TestRemoveVoucherRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.paidVoucher(t, "buy", 40)
	_, err := env.basket.ReserveSeats(ctx, "basket-r", []int64{1})
	require.NoError(t, err)
	_, err = env.vouchers.Redeem(ctx, "basket-r", code)
	require.NoError(t, err)
	sessionID := env.sessionID(t, "basket-r")
	require.Equal(t, int64(4000), env.gateway.discount(sessionID))

	status, err := env.vouchers.Remove(ctx, "basket-r", code)

	require.NoError(t, err)
	assert.Equal(t, models.UpdateStatusUpdated, status)
	assert.Equal(t, int64(0), env.gateway.discount(sessionID))
	voucher, err := env.store.GetVoucherByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 40.0, voucher.RemainingAmount())

	_, err = env.vouchers.Remove(ctx, "basket-r", code)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnknownOrUnpaidVoucherIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-u", []int64{1})
	require.NoError(t, err)

	_, err = env.vouchers.Validate(ctx, "basket-u", "VCH-NOPE")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.vouchers.Redeem(ctx, "basket-u", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.vouchers.Validate(ctx, "missing", "VCH-NOPE")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestNewSessionCarriesAppliedDiscount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.paidVoucher(t, "buy", 30)
	env.gateway.failCreate = errGatewayDown
	result, err := env.basket.ReserveSeats(ctx, "basket-n", []int64{1})
	require.NoError(t, err)
	require.Equal(t, models.UpdateStatusError, result.Status)
	env.gateway.failCreate = nil

	redemption, err := env.vouchers.Redeem(ctx, "basket-n", code)

	require.NoError(t, err)
	assert.Equal(t, models.UpdateStatusUpdated, redemption.Status)
	assert.Equal(t, int64(3000), env.gateway.discount(env.sessionID(t, "basket-n")))
}

func TestReleasingVoucherSeatDropsVoucher(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-mix", []int64{1})
	require.NoError(t, err)
	purchase, err := env.vouchers.Buy(ctx, "basket-mix", 20)
	require.NoError(t, err)

	status, err := env.basket.ReleaseSeats(ctx, "basket-mix", []int64{purchase.SeatID})

	require.NoError(t, err)
	assert.Equal(t, models.UpdateStatusUpdated, status)
	seats, err := env.store.GetSeats(ctx, []int64{purchase.SeatID})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.False(t, seats[0].IsReserved())
	content, err := env.basket.Content(ctx, "basket-mix")
	require.NoError(t, err)
	assert.Len(t, content.Tickets, 1)
	assert.Len(t, env.gateway.items(env.sessionID(t, "basket-mix")), 1)
}
