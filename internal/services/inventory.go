package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

const (
	seedPerformancesPerEvent = 3
	seedSeatsPerRow          = 12
	seedPerformanceStride    = 10000
)

var seedEventNames = []string{
	"The Phantom of the Opera",
	"Les Misérables",
	"Hamilton",
	"The Lion King",
	"Wicked",
	"Mamma Mia!",
	"Chicago",
}

var seedPrices = []models.Price{
	{ID: 1, Name: "Standard", Amount: 50},
	{ID: 2, Name: "VIP", Amount: 100},
	{ID: 3, Name: "Balcony", Amount: 75},
	{ID: 4, Name: "Box", Amount: 150},
	{ID: 5, Name: "Student Discount", Amount: 30},
	{ID: 6, Name: "Obstructed View", Amount: 30},
}

// sentinelDate keeps the pseudo performances out of any date-ordered listing.
var sentinelDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

type InventoryService struct {
	store storage.Store
	log   *logger.Logger
	cfg   config.CheckoutConfig
	now   func() time.Time
}

func NewInventoryService(store storage.Store, log *logger.Logger, cfg config.CheckoutConfig) *InventoryService {
	return &InventoryService{
		store: store,
		log:   log,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListEvents returns the bookable events with their performances.
func (s *InventoryService) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	bookable := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.ID > 0 {
			bookable = append(bookable, e)
		}
	}
	return bookable, nil
}

func (s *InventoryService) ListSeats(ctx context.Context, performanceID int64) ([]models.SeatListing, error) {
	if performanceID <= 0 {
		return nil, validationError("performance id must be positive")
	}
	listings, err := s.store.ListSeatListings(ctx, performanceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrPerformanceNotFound, performanceID)
	}
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []models.SeatListing{}
	}
	return listings, nil
}

// Seed wipes all data, baskets included, and loads the demo catalog.
func (s *InventoryService) Seed(ctx context.Context) (*models.Catalog, error) {
	catalog := DemoCatalog(s.now(), s.cfg.BookingProtectionAmount)
	if err := s.store.ReplaceCatalog(ctx, catalog); err != nil {
		return nil, err
	}
	s.log.LogProcess("SEED", fmt.Sprintf("Loaded %d events, %d performances, %d seats",
		len(catalog.Events), len(catalog.Performances), len(catalog.Seats)))
	return catalog, nil
}

// EnsureSentinels writes the pseudo events, performances and the booking
// protection price that vouchers and add-ons hang off.
func (s *InventoryService) EnsureSentinels(ctx context.Context) error {
	return s.store.UpsertCatalog(ctx, SentinelCatalog(s.cfg.BookingProtectionAmount))
}

func SentinelCatalog(bookingProtectionAmount float64) *models.Catalog {
	return &models.Catalog{
		Events: []models.Event{
			{ID: models.VoucherEventID, Name: "Voucher"},
			{ID: models.BookingProtectionEventID, Name: "Booking Protection"},
		},
		Performances: []models.Performance{
			{ID: models.VoucherPerformanceID, EventID: models.VoucherEventID, PerformanceDate: sentinelDate},
			{ID: models.BookingProtectionPerformanceID, EventID: models.BookingProtectionEventID, PerformanceDate: sentinelDate},
		},
		Prices: []models.Price{
			{ID: models.BookingProtectionPriceID, Name: "Booking Protection", Amount: models.RoundAmount(bookingProtectionAmount)},
		},
	}
}

// DemoCatalog builds the seed inventory: every event gets evening
// performances on consecutive days after now, and each performance one row
// of seats per price band.
func DemoCatalog(now time.Time, bookingProtectionAmount float64) *models.Catalog {
	catalog := SentinelCatalog(bookingProtectionAmount)
	catalog.Prices = append(catalog.Prices, seedPrices...)

	first := time.Date(now.Year(), now.Month(), now.Day(), 19, 30, 0, 0, time.UTC).AddDate(0, 0, 1)
	for i, name := range seedEventNames {
		eventID := int64(i + 1)
		catalog.Events = append(catalog.Events, models.Event{ID: eventID, Name: name})

		for p := 1; p <= seedPerformancesPerEvent; p++ {
			performance := models.Performance{
				ID:              eventID*seedPerformanceStride + int64(p),
				EventID:         eventID,
				PerformanceDate: first.AddDate(0, 0, i+(p-1)*len(seedEventNames)),
				DurationMinutes: 150,
			}
			catalog.Performances = append(catalog.Performances, performance)

			for r, price := range seedPrices {
				row := string(rune('A' + r))
				for n := 1; n <= seedSeatsPerRow; n++ {
					catalog.Seats = append(catalog.Seats, models.Seat{
						Row:           row,
						Number:        n,
						PriceID:       price.ID,
						PerformanceID: performance.ID,
					})
				}
			}
		}
	}
	return catalog
}
