package storage

import (
	"context"
	"sort"
	"sync"

	"ticket-checkout/internal/models"
)

// InMemoryStore keeps every table in maps. Transactions are serialised and
// roll back by restoring a snapshot taken when they start.
type InMemoryStore struct {
	mutex sync.RWMutex
	txMu  sync.Mutex

	data memoryTables
}

type memoryTables struct {
	events         map[int64]models.Event
	performances   map[int64]models.Performance
	prices         map[int64]models.Price
	seats          map[int64]models.Seat
	orderItems     map[int64]models.OrderItem
	orders         map[int64]models.Order
	sessions       map[int64]models.CheckoutSession
	payments       map[int64]models.Payment
	vouchers       map[int64]models.Voucher
	voucherHistory map[int64]models.VoucherHistory
	lastID         map[string]int64
}

type memoryTxKey struct{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: newMemoryTables()}
}

func newMemoryTables() memoryTables {
	return memoryTables{
		events:         make(map[int64]models.Event),
		performances:   make(map[int64]models.Performance),
		prices:         make(map[int64]models.Price),
		seats:          make(map[int64]models.Seat),
		orderItems:     make(map[int64]models.OrderItem),
		orders:         make(map[int64]models.Order),
		sessions:       make(map[int64]models.CheckoutSession),
		payments:       make(map[int64]models.Payment),
		vouchers:       make(map[int64]models.Voucher),
		voucherHistory: make(map[int64]models.VoucherHistory),
		lastID:         make(map[string]int64),
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (t memoryTables) clone() memoryTables {
	payments := make(map[int64]models.Payment, len(t.payments))
	for id, p := range t.payments {
		p.History = append([]models.PaymentHistory(nil), p.History...)
		payments[id] = p
	}
	return memoryTables{
		events:         cloneMap(t.events),
		performances:   cloneMap(t.performances),
		prices:         cloneMap(t.prices),
		seats:          cloneMap(t.seats),
		orderItems:     cloneMap(t.orderItems),
		orders:         cloneMap(t.orders),
		sessions:       cloneMap(t.sessions),
		payments:       payments,
		vouchers:       cloneMap(t.vouchers),
		voucherHistory: cloneMap(t.voucherHistory),
		lastID:         cloneMap(t.lastID),
	}
}

// nextID hands out ids above anything already used in the table.
func (t memoryTables) nextID(table string, used int64) int64 {
	if used > t.lastID[table] {
		t.lastID[table] = used
	}
	if used != 0 {
		return used
	}
	t.lastID[table]++
	return t.lastID[table]
}

func (s *InMemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mutex.RLock()
	snapshot := s.data.clone()
	s.mutex.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.mutex.Lock()
		s.data = snapshot
		s.mutex.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := make([]models.Event, 0, len(s.data.events))
	for _, e := range s.data.events {
		e.Performances = nil
		for _, p := range s.data.performances {
			if p.EventID == e.ID {
				e.Performances = append(e.Performances, p)
			}
		}
		sort.Slice(e.Performances, func(i, j int) bool { return e.Performances[i].ID < e.Performances[j].ID })
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (s *InMemoryStore) ListSeatListings(ctx context.Context, performanceID int64) ([]models.SeatListing, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, ok := s.data.performances[performanceID]; !ok {
		return nil, ErrNotFound
	}

	var listings []models.SeatListing
	for _, seat := range s.data.seats {
		if seat.PerformanceID != performanceID {
			continue
		}
		price := s.data.prices[seat.PriceID]
		listings = append(listings, models.SeatListing{
			Seat:      seat,
			PriceName: price.Name,
			Amount:    price.Amount,
			Available: !seat.IsReserved(),
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Row != listings[j].Row {
			return listings[i].Row < listings[j].Row
		}
		return listings[i].Number < listings[j].Number
	})
	return listings, nil
}

func (s *InMemoryStore) GetPrice(ctx context.Context, id int64) (*models.Price, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	price, ok := s.data.prices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &price, nil
}

func (s *InMemoryStore) FindPriceByName(ctx context.Context, name string) (*models.Price, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var found *models.Price
	for _, price := range s.data.prices {
		if price.Name == name && (found == nil || price.ID < found.ID) {
			p := price
			found = &p
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *InMemoryStore) CreatePrice(ctx context.Context, price *models.Price) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	price.ID = s.data.nextID("prices", price.ID)
	s.data.prices[price.ID] = *price
	return nil
}

func (s *InMemoryStore) ReplaceCatalog(ctx context.Context, catalog *models.Catalog) error {
	s.mutex.Lock()
	s.data = newMemoryTables()
	s.mutex.Unlock()
	return s.UpsertCatalog(ctx, catalog)
}

func (s *InMemoryStore) UpsertCatalog(ctx context.Context, catalog *models.Catalog) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, e := range catalog.Events {
		e.Performances = nil
		s.data.events[e.ID] = e
	}
	for _, p := range catalog.Performances {
		s.data.performances[p.ID] = p
	}
	for _, p := range catalog.Prices {
		p.ID = s.data.nextID("prices", p.ID)
		s.data.prices[p.ID] = p
	}
	for i := range catalog.Seats {
		seat := &catalog.Seats[i]
		seat.ID = s.data.nextID("seats", seat.ID)
		s.data.seats[seat.ID] = *seat
	}
	return nil
}

func (s *InMemoryStore) GetSeats(ctx context.Context, ids []int64) ([]models.Seat, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seats := make([]models.Seat, 0, len(ids))
	for _, id := range ids {
		if seat, ok := s.data.seats[id]; ok {
			seats = append(seats, seat)
		}
	}
	return seats, nil
}

func (s *InMemoryStore) CreateSeat(ctx context.Context, seat *models.Seat) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seat.ID = s.data.nextID("seats", seat.ID)
	s.data.seats[seat.ID] = *seat
	return nil
}

func (s *InMemoryStore) AssignSeats(ctx context.Context, orderItemID int64, seatIDs []int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.data.orderItems[orderItemID]; !ok {
		return ErrNotFound
	}
	for _, id := range seatIDs {
		seat, ok := s.data.seats[id]
		if !ok {
			return ErrNotFound
		}
		if seat.OrderItemID != nil {
			return ErrConflict
		}
		itemID := orderItemID
		seat.OrderItemID = &itemID
		s.data.seats[id] = seat
	}
	return nil
}

func (s *InMemoryStore) ReleaseSeats(ctx context.Context, orderID int64, seatIDs []int64) ([]models.Seat, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var released []models.Seat
	for _, id := range seatIDs {
		seat, ok := s.data.seats[id]
		if !ok || seat.OrderItemID == nil {
			continue
		}
		if s.data.orderItems[*seat.OrderItemID].OrderID != orderID {
			continue
		}
		seat.OrderItemID = nil
		s.data.seats[id] = seat
		released = append(released, seat)
	}
	return released, nil
}

func (s *InMemoryStore) SetSeatRow(ctx context.Context, seatID int64, row string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seat, ok := s.data.seats[seatID]
	if !ok {
		return ErrNotFound
	}
	seat.Row = row
	s.data.seats[seatID] = seat
	return nil
}

func (s *InMemoryStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item.ID = s.data.nextID("order_items", item.ID)
	s.data.orderItems[item.ID] = *item
	return nil
}

func (s *InMemoryStore) PruneOrderItems(ctx context.Context, orderID int64) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	used := make(map[int64]bool)
	for _, seat := range s.data.seats {
		if seat.OrderItemID != nil {
			used[*seat.OrderItemID] = true
		}
	}
	pruned := 0
	for id, item := range s.data.orderItems {
		if item.OrderID == orderID && !used[id] {
			delete(s.data.orderItems, id)
			pruned++
		}
	}
	return pruned, nil
}

func (s *InMemoryStore) OrderTickets(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var tickets []models.Ticket
	for _, seat := range s.data.seats {
		if seat.OrderItemID == nil {
			continue
		}
		item, ok := s.data.orderItems[*seat.OrderItemID]
		if !ok || item.OrderID != orderID {
			continue
		}
		perf, okPerf := s.data.performances[seat.PerformanceID]
		event, okEvent := s.data.events[perf.EventID]
		price, okPrice := s.data.prices[seat.PriceID]
		if !okPerf || !okEvent || !okPrice {
			continue
		}
		tickets = append(tickets, models.Ticket{
			EventID:         event.ID,
			EventName:       event.Name,
			PerformanceID:   perf.ID,
			PerformanceDate: perf.PerformanceDate,
			PriceID:         price.ID,
			UnitPrice:       price.Amount,
			SeatID:          seat.ID,
			SeatRow:         seat.Row,
			SeatNumber:      seat.Number,
			OrderItemID:     item.ID,
		})
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].SeatID < tickets[j].SeatID })
	return tickets, nil
}

func (s *InMemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.data.orders {
		if existing.BasketID == order.BasketID {
			return ErrDuplicate
		}
	}
	order.ID = s.data.nextID("orders", order.ID)
	s.data.orders[order.ID] = *order
	return nil
}

func (s *InMemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	order, ok := s.data.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &order, nil
}

func (s *InMemoryStore) GetOrderByBasketID(ctx context.Context, basketID string) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, order := range s.data.orders {
		if order.BasketID == basketID {
			o := order
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	order, ok := s.data.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	s.data.orders[id] = order
	return nil
}

func (s *InMemoryStore) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var orders []models.Order
	for _, order := range s.data.orders {
		if order.Status == status {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (s *InMemoryStore) GetCheckoutSession(ctx context.Context, orderID int64) (*models.CheckoutSession, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.data.sessions[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *InMemoryStore) GetCheckoutSessionBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, session := range s.data.sessions {
		if session.SessionID == sessionID {
			cs := session
			return &cs, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) SaveCheckoutSession(ctx context.Context, session *models.CheckoutSession) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.data.sessions[session.OrderID]; ok {
		session.ID = existing.ID
	} else {
		session.ID = s.data.nextID("checkout_sessions", session.ID)
	}
	s.data.sessions[session.OrderID] = *session
	return nil
}

func (s *InMemoryStore) storePayment(payment *models.Payment) {
	for i := range payment.History {
		h := &payment.History[i]
		h.PaymentID = payment.ID
		if h.ID == 0 {
			h.ID = s.data.nextID("payment_history", 0)
		}
	}
	stored := *payment
	stored.History = append([]models.PaymentHistory(nil), payment.History...)
	s.data.payments[payment.ID] = stored
}

func (s *InMemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	payment.ID = s.data.nextID("payments", payment.ID)
	s.storePayment(payment)
	return nil
}

func (s *InMemoryStore) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.data.payments[payment.ID]; !ok {
		return ErrNotFound
	}
	s.storePayment(payment)
	return nil
}

func (s *InMemoryStore) LatestUnresolvedPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var latest *models.Payment
	for _, payment := range s.data.payments {
		if payment.OrderID != orderID || !payment.Unresolved() {
			continue
		}
		if latest == nil || payment.ID > latest.ID {
			p := payment
			p.History = append([]models.PaymentHistory(nil), payment.History...)
			latest = &p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *InMemoryStore) CreateVoucher(ctx context.Context, voucher *models.Voucher) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	voucher.ID = s.data.nextID("vouchers", voucher.ID)
	s.data.vouchers[voucher.ID] = *voucher
	return nil
}

func (s *InMemoryStore) redeemedMinor(voucherID int64) int64 {
	var total int64
	for _, h := range s.data.voucherHistory {
		if h.VoucherID == voucherID {
			total += models.ToMinor(h.Amount)
		}
	}
	return total
}

func (s *InMemoryStore) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if code == "" {
		return nil, ErrNotFound
	}
	for _, voucher := range s.data.vouchers {
		seat, ok := s.data.seats[voucher.SeatID]
		if !ok || seat.PerformanceID != models.VoucherPerformanceID || seat.Row != code {
			continue
		}
		v := voucher
		v.Code = seat.Row
		v.RedeemedAmount = models.FromMinor(s.redeemedMinor(v.ID))
		return &v, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) DeleteVouchersBySeatIDs(ctx context.Context, seatIDs []int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seatSet := make(map[int64]bool, len(seatIDs))
	for _, id := range seatIDs {
		seatSet[id] = true
	}
	for id, voucher := range s.data.vouchers {
		if !seatSet[voucher.SeatID] {
			continue
		}
		for hid, h := range s.data.voucherHistory {
			if h.VoucherID == id {
				delete(s.data.voucherHistory, hid)
			}
		}
		delete(s.data.vouchers, id)
	}
	return nil
}

func (s *InMemoryStore) AddVoucherHistory(ctx context.Context, entry *models.VoucherHistory) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.data.vouchers[entry.VoucherID]; !ok {
		return ErrNotFound
	}
	entry.ID = s.data.nextID("voucher_history", entry.ID)
	s.data.voucherHistory[entry.ID] = *entry
	return nil
}

func (s *InMemoryStore) DeleteVoucherHistory(ctx context.Context, orderID, voucherID int64) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	deleted := 0
	for id, h := range s.data.voucherHistory {
		if h.OrderID == orderID && h.VoucherID == voucherID {
			delete(s.data.voucherHistory, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) OrderVoucherHistory(ctx context.Context, orderID int64) ([]models.VoucherHistory, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var history []models.VoucherHistory
	for _, h := range s.data.voucherHistory {
		if h.OrderID == orderID {
			history = append(history, h)
		}
	}
	sort.Slice(history, func(i, j int) bool { return history[i].ID < history[j].ID })
	return history, nil
}

func (s *InMemoryStore) SetVoucherHistoryAmount(ctx context.Context, id int64, amount float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	h, ok := s.data.voucherHistory[id]
	if !ok {
		return ErrNotFound
	}
	if models.ToMinor(amount) <= 0 {
		delete(s.data.voucherHistory, id)
		return nil
	}
	h.Amount = amount
	s.data.voucherHistory[id] = h
	return nil
}

func (s *InMemoryStore) OrderVouchers(ctx context.Context, orderID int64) ([]models.AppliedVoucher, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	totals := make(map[int64]int64)
	for _, h := range s.data.voucherHistory {
		if h.OrderID == orderID {
			totals[h.VoucherID] += models.ToMinor(h.Amount)
		}
	}
	applied := make([]models.AppliedVoucher, 0, len(totals))
	for voucherID, minor := range totals {
		code := ""
		if v, ok := s.data.vouchers[voucherID]; ok {
			code = s.data.seats[v.SeatID].Row
		}
		applied = append(applied, models.AppliedVoucher{
			VoucherID: voucherID,
			Code:      code,
			Amount:    models.FromMinor(minor),
		})
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i].VoucherID < applied[j].VoucherID })
	return applied, nil
}
