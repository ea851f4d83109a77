package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/models"
)

func TestDemoCatalog(t *testing.T) {
	now := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

	catalog := DemoCatalog(now, 5)

	assert.Len(t, catalog.Events, 2+len(seedEventNames))
	assert.Len(t, catalog.Performances, 2+len(seedEventNames)*seedPerformancesPerEvent)
	assert.Len(t, catalog.Seats, len(seedEventNames)*seedPerformancesPerEvent*len(seedPrices)*seedSeatsPerRow)
	assert.Equal(t, models.Price{ID: models.BookingProtectionPriceID, Name: "Booking Protection", Amount: 5}, catalog.Prices[0])

	first := catalog.Performances[2]
	assert.Equal(t, int64(10001), first.ID)
	assert.Equal(t, time.Date(2026, time.October, 16, 19, 30, 0, 0, time.UTC), first.PerformanceDate)
	assert.Equal(t, "A", catalog.Seats[0].Row)
	assert.Equal(t, "F", catalog.Seats[len(seedPrices)*seedSeatsPerRow-1].Row)
}

func TestSeedWipesBaskets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.basket.ReserveSeats(ctx, "basket-1", []int64{1})
	require.NoError(t, err)

	_, err = env.inventory.Seed(ctx)
	require.NoError(t, err)

	_, err = env.basket.Content(ctx, "basket-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events, err := env.inventory.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, len(seedEventNames))
	assert.Equal(t, "The Phantom of the Opera", events[0].Name)
	assert.Len(t, events[0].Performances, seedPerformancesPerEvent)

	seats, err := env.inventory.ListSeats(ctx, 30002)
	require.NoError(t, err)
	assert.Len(t, seats, len(seedPrices)*seedSeatsPerRow)
	assert.True(t, seats[0].Available)
	assert.Equal(t, "Standard", seats[0].PriceName)
}

func TestListSeatsErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.inventory.ListSeats(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.inventory.ListSeats(ctx, 99999)
	assert.ErrorIs(t, err, ErrPerformanceNotFound)
}
