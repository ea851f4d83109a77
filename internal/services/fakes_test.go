package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

var errGatewayDown = errors.New("gateway unavailable")

// fakeGateway keeps sessions in memory and applies replacements the way the
// hosted provider does: listed ids survive, everything else is dropped.
type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	seq      int
	calls    map[string]int

	failCreate  error
	failGet     error
	failList    error
	failReplace error
	refunds     []*RefundRequest
}

type fakeSession struct {
	remote RemoteSession
	items  []RemoteLineItem
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*fakeSession), calls: make(map[string]int)}
}

func (g *fakeGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *fakeGateway) CreateSession(ctx context.Context, req *CreateSessionRequest) (*RemoteSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["create"]++
	if g.failCreate != nil {
		return nil, g.failCreate
	}
	id := g.next("cs_test")
	sess := &fakeSession{remote: RemoteSession{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       models.SessionStatusOpen,
		Metadata:     req.Metadata,
	}}
	for _, spec := range req.LineItems {
		sess.items = append(sess.items, g.newItem(spec))
	}
	g.sessions[id] = sess
	remote := sess.remote
	return &remote, nil
}

func (g *fakeGateway) newItem(spec LineItemSpec) RemoteLineItem {
	return RemoteLineItem{ID: g.next("li"), Quantity: spec.Quantity, UnitAmount: spec.UnitAmount, Metadata: spec.Metadata}
}

func (g *fakeGateway) GetSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["get"]++
	if g.failGet != nil {
		return nil, g.failGet
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session %s", sessionID)
	}
	remote := sess.remote
	return &remote, nil
}

func (g *fakeGateway) ListLineItems(ctx context.Context, sessionID string) ([]RemoteLineItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["list"]++
	if g.failList != nil {
		return nil, g.failList
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session %s", sessionID)
	}
	return append([]RemoteLineItem(nil), sess.items...), nil
}

func (g *fakeGateway) ReplaceLineItems(ctx context.Context, sessionID string, items []LineItemSpec, discount *Discount) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["replace"]++
	if g.failReplace != nil {
		return g.failReplace
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return fmt.Errorf("no such session %s", sessionID)
	}
	byID := make(map[string]RemoteLineItem, len(sess.items))
	for _, item := range sess.items {
		byID[item.ID] = item
	}
	var next []RemoteLineItem
	for _, spec := range items {
		if spec.ID == "" {
			next = append(next, g.newItem(spec))
			continue
		}
		item, ok := byID[spec.ID]
		if !ok {
			return fmt.Errorf("unknown line item %s", spec.ID)
		}
		item.Quantity = spec.Quantity
		next = append(next, item)
	}
	sess.items = next
	sess.remote.DiscountMinor = discount.minor()
	return nil
}

func (g *fakeGateway) CreateRefund(ctx context.Context, req *RefundRequest) (*RemoteRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["refund"]++
	g.refunds = append(g.refunds, req)
	return &RemoteRefund{ID: g.next("re"), AmountMinor: req.AmountMinor, Status: "succeeded"}, nil
}

func (g *fakeGateway) items(sessionID string) []RemoteLineItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RemoteLineItem(nil), g.sessions[sessionID].items...)
}

func (g *fakeGateway) discount(sessionID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[sessionID].remote.DiscountMinor
}

func (g *fakeGateway) addForeignItem(sessionID string, item RemoteLineItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess := g.sessions[sessionID]
	sess.items = append(sess.items, item)
}

func (g *fakeGateway) complete(sessionID, intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess := g.sessions[sessionID]
	sess.remote.Status = models.SessionStatusComplete
	sess.remote.PaymentStatus = models.RemotePaymentStatusPaid
	sess.remote.PaymentIntentID = intentID
}

func (g *fakeGateway) callCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderEvent(event *models.OrderEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *mockPublisher) PublishReconcileRequest(req *models.ReconcileRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

type memoryMarker struct {
	mu      sync.Mutex
	pending map[string]bool
}

func newMemoryMarker() *memoryMarker {
	return &memoryMarker{pending: make(map[string]bool)}
}

func (m *memoryMarker) MarkPending(ctx context.Context, basketID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[basketID] {
		return false, nil
	}
	m.pending[basketID] = true
	return true, nil
}

func (m *memoryMarker) ClearPending(ctx context.Context, basketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, basketID)
	return nil
}

type testEnv struct {
	store     *storage.InMemoryStore
	gateway   *fakeGateway
	publisher *mockPublisher
	marker    *memoryMarker
	checkout  *CheckoutService
	basket    *BasketService
	vouchers  *VoucherService
	orders    *OrderService
	inventory *InventoryService
}

// Seats 1-4 are Standard (50.00) and 5-6 VIP (100.00) at performance 10001
// of Hamilton; seat 7 is Standard at performance 20001 of Chicago.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.New(io.Discard, false)
	cfg := config.CheckoutConfig{RemoteTimeout: time.Second, BookingProtectionAmount: 5}

	env := &testEnv{
		store:     storage.NewInMemoryStore(),
		gateway:   newFakeGateway(),
		publisher: &mockPublisher{},
		marker:    newMemoryMarker(),
	}
	env.publisher.On("PublishOrderEvent", mock.Anything).Return(nil).Maybe()
	env.publisher.On("PublishReconcileRequest", mock.Anything).Return(nil).Maybe()

	env.checkout = NewCheckoutService(env.store, env.gateway, env.publisher, env.marker, log, cfg, "https://tickets.test/return")
	env.basket = NewBasketService(env.store, env.checkout, env.publisher, log)
	env.vouchers = NewVoucherService(env.store, env.checkout, env.publisher, log)
	env.orders = NewOrderService(env.store, env.gateway, env.publisher, log, cfg)
	env.inventory = NewInventoryService(env.store, log, cfg)

	require.NoError(t, env.inventory.EnsureSentinels(ctx))
	date := time.Date(2030, time.March, 14, 19, 30, 0, 0, time.UTC)
	require.NoError(t, env.store.UpsertCatalog(ctx, &models.Catalog{
		Events: []models.Event{{ID: 1, Name: "Hamilton"}, {ID: 2, Name: "Chicago"}},
		Performances: []models.Performance{
			{ID: 10001, EventID: 1, PerformanceDate: date},
			{ID: 20001, EventID: 2, PerformanceDate: date.AddDate(0, 0, 1)},
		},
		Prices: []models.Price{{ID: 1, Name: "Standard", Amount: 50}, {ID: 2, Name: "VIP", Amount: 100}},
		Seats: []models.Seat{
			{ID: 1, Row: "A", Number: 1, PriceID: 1, PerformanceID: 10001},
			{ID: 2, Row: "A", Number: 2, PriceID: 1, PerformanceID: 10001},
			{ID: 3, Row: "A", Number: 3, PriceID: 1, PerformanceID: 10001},
			{ID: 4, Row: "A", Number: 4, PriceID: 1, PerformanceID: 10001},
			{ID: 5, Row: "B", Number: 1, PriceID: 2, PerformanceID: 10001},
			{ID: 6, Row: "B", Number: 2, PriceID: 2, PerformanceID: 10001},
			{ID: 7, Row: "A", Number: 1, PriceID: 1, PerformanceID: 20001},
		},
	}))
	return env
}

func (e *testEnv) order(t *testing.T, basketID string) *models.Order {
	t.Helper()
	order, err := e.store.GetOrderByBasketID(context.Background(), basketID)
	require.NoError(t, err)
	return order
}

func (e *testEnv) sessionID(t *testing.T, basketID string) string {
	t.Helper()
	mirror, err := e.store.GetCheckoutSession(context.Background(), e.order(t, basketID).ID)
	require.NoError(t, err)
	return mirror.SessionID
}

// paidVoucher buys a voucher in its own basket and pays for it, returning
// the issued code.
func (e *testEnv) paidVoucher(t *testing.T, basketID string, amount float64) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.vouchers.Buy(ctx, basketID, amount)
	require.NoError(t, err)
	paid, err := e.orders.MarkPaid(ctx, basketID)
	require.NoError(t, err)
	require.Len(t, paid.VoucherCodes, 1)
	return paid.VoucherCodes[0]
}
