package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"

	"github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type mysqlTxKey struct{}

func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{db: db, log: log}
	if err := store.initTables(ctx); err != nil {
		db.Close()
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

func (s *MySQLStore) initTables(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	s.log.LogDatabase("MIGRATE", "mysql", "Schema ready")
	return nil
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}

func (s *MySQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) conn(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(mysqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *MySQLStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(mysqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, mysqlTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *MySQLStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, name FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	index := make(map[int64]int)
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perfRows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, event_id, performance_date, duration_minutes FROM performances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list performances: %w", err)
	}
	defer perfRows.Close()
	for perfRows.Next() {
		var p models.Performance
		if err := perfRows.Scan(&p.ID, &p.EventID, &p.PerformanceDate, &p.DurationMinutes); err != nil {
			return nil, err
		}
		if i, ok := index[p.EventID]; ok {
			events[i].Performances = append(events[i].Performances, p)
		}
	}
	return events, perfRows.Err()
}

func (s *MySQLStore) ListSeatListings(ctx context.Context, performanceID int64) ([]models.SeatListing, error) {
	var exists int
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT 1 FROM performances WHERE id = ?`, performanceID).Scan(&exists)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT s.id, s.seat_row, s.number, s.price_id, s.performance_id, s.order_item_id, p.name, p.amount
		FROM seats s JOIN prices p ON p.id = s.price_id
		WHERE s.performance_id = ?
		ORDER BY s.seat_row, s.number`, performanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	var listings []models.SeatListing
	for rows.Next() {
		var l models.SeatListing
		var orderItemID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.Row, &l.Number, &l.PriceID, &l.PerformanceID, &orderItemID, &l.PriceName, &l.Amount); err != nil {
			return nil, err
		}
		if orderItemID.Valid {
			l.OrderItemID = &orderItemID.Int64
		}
		l.Available = !l.IsReserved()
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *MySQLStore) GetPrice(ctx context.Context, id int64) (*models.Price, error) {
	price := &models.Price{}
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT id, name, amount FROM prices WHERE id = ?`, id).
		Scan(&price.ID, &price.Name, &price.Amount)
	if err != nil {
		return nil, notFound(err)
	}
	return price, nil
}

func (s *MySQLStore) FindPriceByName(ctx context.Context, name string) (*models.Price, error) {
	price := &models.Price{}
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, amount FROM prices WHERE name = ? ORDER BY id LIMIT 1`, name).
		Scan(&price.ID, &price.Name, &price.Amount)
	if err != nil {
		return nil, notFound(err)
	}
	return price, nil
}

func (s *MySQLStore) CreatePrice(ctx context.Context, price *models.Price) error {
	res, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO prices (name, amount) VALUES (?, ?)`, price.Name, price.Amount)
	if err != nil {
		return fmt.Errorf("failed to create price: %w", err)
	}
	price.ID, err = res.LastInsertId()
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Price %d (%s) created", price.ID, price.Name))
	return err
}

func (s *MySQLStore) ReplaceCatalog(ctx context.Context, catalog *models.Catalog) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		for _, table := range []string{
			"voucher_history", "vouchers", "payment_history", "payments", "checkout_sessions",
			"seats", "order_items", "orders", "performances", "events", "prices",
		} {
			if _, err := s.conn(ctx).ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		s.log.LogDatabase("RESET", "mysql", "All tables cleared for seeding")
		return s.UpsertCatalog(ctx, catalog)
	})
}

func (s *MySQLStore) UpsertCatalog(ctx context.Context, catalog *models.Catalog) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		for _, e := range catalog.Events {
			if _, err := db.ExecContext(ctx,
				`INSERT INTO events (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)`,
				e.ID, e.Name); err != nil {
				return fmt.Errorf("failed to upsert event %d: %w", e.ID, err)
			}
		}
		for _, p := range catalog.Performances {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO performances (id, event_id, performance_date, duration_minutes) VALUES (?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE event_id = VALUES(event_id), performance_date = VALUES(performance_date),
					duration_minutes = VALUES(duration_minutes)`,
				p.ID, p.EventID, p.PerformanceDate, p.DurationMinutes); err != nil {
				return fmt.Errorf("failed to upsert performance %d: %w", p.ID, err)
			}
		}
		for _, p := range catalog.Prices {
			if _, err := db.ExecContext(ctx,
				`INSERT INTO prices (id, name, amount) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE name = VALUES(name), amount = VALUES(amount)`,
				p.ID, p.Name, p.Amount); err != nil {
				return fmt.Errorf("failed to upsert price %d: %w", p.ID, err)
			}
		}
		for i := range catalog.Seats {
			seat := &catalog.Seats[i]
			if err := s.CreateSeat(ctx, seat); err != nil {
				return err
			}
		}
		s.log.LogDatabase("UPSERT", "mysql", fmt.Sprintf("Catalog written: %d events, %d performances, %d prices, %d seats",
			len(catalog.Events), len(catalog.Performances), len(catalog.Prices), len(catalog.Seats)))
		return nil
	})
}

func scanSeat(scan func(dest ...any) error) (models.Seat, error) {
	var seat models.Seat
	var orderItemID sql.NullInt64
	if err := scan(&seat.ID, &seat.Row, &seat.Number, &seat.PriceID, &seat.PerformanceID, &orderItemID); err != nil {
		return seat, err
	}
	if orderItemID.Valid {
		seat.OrderItemID = &orderItemID.Int64
	}
	return seat, nil
}

func (s *MySQLStore) GetSeats(ctx context.Context, ids []int64) ([]models.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, seat_row, number, price_id, performance_id, order_item_id FROM seats WHERE id IN (`+in+`) FOR UPDATE`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		seat, err := scanSeat(rows.Scan)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

func (s *MySQLStore) CreateSeat(ctx context.Context, seat *models.Seat) error {
	var orderItemID any
	if seat.OrderItemID != nil {
		orderItemID = *seat.OrderItemID
	}
	var (
		res sql.Result
		err error
	)
	if seat.ID != 0 {
		res, err = s.conn(ctx).ExecContext(ctx,
			`INSERT INTO seats (id, seat_row, number, price_id, performance_id, order_item_id) VALUES (?, ?, ?, ?, ?, ?)`,
			seat.ID, seat.Row, seat.Number, seat.PriceID, seat.PerformanceID, orderItemID)
	} else {
		res, err = s.conn(ctx).ExecContext(ctx,
			`INSERT INTO seats (seat_row, number, price_id, performance_id, order_item_id) VALUES (?, ?, ?, ?, ?)`,
			seat.Row, seat.Number, seat.PriceID, seat.PerformanceID, orderItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to create seat: %w", err)
	}
	if seat.ID == 0 {
		seat.ID, err = res.LastInsertId()
	}
	return err
}

func (s *MySQLStore) AssignSeats(ctx context.Context, orderItemID int64, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	in, args := inClause(seatIDs)
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE seats SET order_item_id = ? WHERE order_item_id IS NULL AND id IN (`+in+`)`,
		append([]any{orderItemID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to assign seats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		return ErrConflict
	}
	return nil
}

func (s *MySQLStore) ReleaseSeats(ctx context.Context, orderID int64, seatIDs []int64) ([]models.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(seatIDs)
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT s.id, s.seat_row, s.number, s.price_id, s.performance_id, s.order_item_id
		FROM seats s JOIN order_items oi ON oi.id = s.order_item_id
		WHERE oi.order_id = ? AND s.id IN (`+in+`) FOR UPDATE`,
		append([]any{orderID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load seats to release: %w", err)
	}
	var released []models.Seat
	for rows.Next() {
		seat, err := scanSeat(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		seat.OrderItemID = nil
		released = append(released, seat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(released) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(released))
	for i, seat := range released {
		ids[i] = seat.ID
	}
	in, args = inClause(ids)
	if _, err := s.conn(ctx).ExecContext(ctx, `UPDATE seats SET order_item_id = NULL WHERE id IN (`+in+`)`, args...); err != nil {
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Released %d seats from order %d", len(released), orderID))
	return released, nil
}

func (s *MySQLStore) SetSeatRow(ctx context.Context, seatID int64, row string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE seats SET seat_row = ? WHERE id = ?`, row, seatID)
	if err != nil {
		return fmt.Errorf("failed to update seat row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	res, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO order_items (order_id) VALUES (?)`, item.OrderID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) PruneOrderItems(ctx context.Context, orderID int64) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		DELETE oi FROM order_items oi
		LEFT JOIN seats s ON s.order_item_id = oi.id
		WHERE oi.order_id = ? AND s.id IS NULL`, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to prune order items: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) OrderTickets(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT e.id, e.name, p.id, p.performance_date, pr.id, pr.amount, s.id, s.seat_row, s.number, oi.id
		FROM seats s
		JOIN order_items oi ON oi.id = s.order_item_id
		JOIN performances p ON p.id = s.performance_id
		JOIN events e ON e.id = p.event_id
		JOIN prices pr ON pr.id = s.price_id
		WHERE oi.order_id = ?
		ORDER BY s.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.EventID, &t.EventName, &t.PerformanceID, &t.PerformanceDate, &t.PriceID,
			&t.UnitPrice, &t.SeatID, &t.SeatRow, &t.SeatNumber, &t.OrderItemID); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *MySQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO orders (basket_id, status, created_at) VALUES (?, ?, ?)`,
		order.BasketID, order.Status, order.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID, err = res.LastInsertId()
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Order %d created for basket %s", order.ID, order.BasketID))
	return err
}

const orderColumns = `id, basket_id, status, created_at`

func scanOrder(scan func(dest ...any) error) (*models.Order, error) {
	order := &models.Order{}
	if err := scan(&order.ID, &order.BasketID, &order.Status, &order.CreatedAt); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := scanOrder(s.conn(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id).Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return order, nil
}

func (s *MySQLStore) GetOrderByBasketID(ctx context.Context, basketID string) (*models.Order, error) {
	order, err := scanOrder(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE basket_id = ?`, basketID).Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return order, nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return err
		}
	}
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Order %d status set to %s", id, status))
	return nil
}

func (s *MySQLStore) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

const sessionColumns = `id, order_id, session_id, client_secret, payment_intent_id`

func scanSession(row *sql.Row) (*models.CheckoutSession, error) {
	cs := &models.CheckoutSession{}
	if err := row.Scan(&cs.ID, &cs.OrderID, &cs.SessionID, &cs.ClientSecret, &cs.PaymentIntentID); err != nil {
		return nil, notFound(err)
	}
	return cs, nil
}

func (s *MySQLStore) GetCheckoutSession(ctx context.Context, orderID int64) (*models.CheckoutSession, error) {
	return scanSession(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE order_id = ?`, orderID))
}

func (s *MySQLStore) GetCheckoutSessionBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	return scanSession(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE session_id = ?`, sessionID))
}

func (s *MySQLStore) SaveCheckoutSession(ctx context.Context, session *models.CheckoutSession) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO checkout_sessions (order_id, session_id, client_secret, payment_intent_id) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE session_id = VALUES(session_id), client_secret = VALUES(client_secret),
			payment_intent_id = VALUES(payment_intent_id)`,
		session.OrderID, session.SessionID, session.ClientSecret, session.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	stored, err := s.GetCheckoutSession(ctx, session.OrderID)
	if err != nil {
		return err
	}
	session.ID = stored.ID
	s.log.LogDatabase("UPSERT", "mysql", fmt.Sprintf("Checkout session %s mirrored for order %d", session.SessionID, session.OrderID))
	return nil
}

func (s *MySQLStore) insertPaymentHistory(ctx context.Context, payment *models.Payment) error {
	for i := range payment.History {
		h := &payment.History[i]
		h.PaymentID = payment.ID
		if h.ID != 0 {
			continue
		}
		res, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO payment_history (payment_id, old_status, new_status, created_at) VALUES (?, ?, ?, ?)`,
			h.PaymentID, h.OldStatus, h.NewStatus, h.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record payment history: %w", err)
		}
		if h.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *MySQLStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO payments (order_id, session_id, payment_intent_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			payment.OrderID, payment.SessionID, payment.PaymentIntentID, payment.Status, payment.CreatedAt, nullTime(payment.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if payment.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		s.log.LogPayment("CREATE", fmt.Sprintf("%d", payment.ID), fmt.Sprintf("Payment attempt for order %d", payment.OrderID))
		return s.insertPaymentHistory(ctx, payment)
	})
}

func (s *MySQLStore) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE payments SET payment_intent_id = ?, status = ?, updated_at = ? WHERE id = ?`,
			payment.PaymentIntentID, payment.Status, nullTime(payment.UpdatedAt), payment.ID)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			if err := s.conn(ctx).QueryRowContext(ctx, `SELECT 1 FROM payments WHERE id = ?`, payment.ID).Scan(&exists); err != nil {
				return notFound(err)
			}
		}
		s.log.LogPayment("UPDATE", fmt.Sprintf("%d", payment.ID), "Status "+string(payment.Status))
		return s.insertPaymentHistory(ctx, payment)
	})
}

func (s *MySQLStore) LatestUnresolvedPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	payment := &models.Payment{}
	var updatedAt sql.NullTime
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, session_id, payment_intent_id, status, created_at, updated_at
		FROM payments WHERE order_id = ? AND status = ? AND updated_at IS NULL
		ORDER BY id DESC LIMIT 1`, orderID, models.PaymentStatusCreated).
		Scan(&payment.ID, &payment.OrderID, &payment.SessionID, &payment.PaymentIntentID, &payment.Status, &payment.CreatedAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if updatedAt.Valid {
		payment.UpdatedAt = &updatedAt.Time
	}

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, payment_id, old_status, new_status, created_at FROM payment_history WHERE payment_id = ? ORDER BY id`,
		payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h models.PaymentHistory
		if err := rows.Scan(&h.ID, &h.PaymentID, &h.OldStatus, &h.NewStatus, &h.CreatedAt); err != nil {
			return nil, err
		}
		payment.History = append(payment.History, h)
	}
	return payment, rows.Err()
}

func (s *MySQLStore) CreateVoucher(ctx context.Context, voucher *models.Voucher) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO vouchers (seat_id, initial_amount) VALUES (?, ?)`, voucher.SeatID, voucher.InitialAmount)
	if err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	voucher.ID, err = res.LastInsertId()
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Voucher %d created for seat %d", voucher.ID, voucher.SeatID))
	return err
}

func (s *MySQLStore) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	v := &models.Voucher{}
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT v.id, v.seat_id, v.initial_amount, s.seat_row,
			COALESCE((SELECT SUM(h.amount) FROM voucher_history h WHERE h.voucher_id = v.id), 0)
		FROM vouchers v JOIN seats s ON s.id = v.seat_id
		WHERE s.seat_row = ? AND s.performance_id = ?
		LIMIT 1`, code, models.VoucherPerformanceID).
		Scan(&v.ID, &v.SeatID, &v.InitialAmount, &v.Code, &v.RedeemedAmount)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (s *MySQLStore) DeleteVouchersBySeatIDs(ctx context.Context, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	in, args := inClause(seatIDs)
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).ExecContext(ctx, `
			DELETE h FROM voucher_history h JOIN vouchers v ON v.id = h.voucher_id
			WHERE v.seat_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("failed to delete voucher history: %w", err)
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM vouchers WHERE seat_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("failed to delete vouchers: %w", err)
		}
		return nil
	})
}

func (s *MySQLStore) AddVoucherHistory(ctx context.Context, entry *models.VoucherHistory) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO voucher_history (voucher_id, order_id, amount, created_at) VALUES (?, ?, ?, ?)`,
		entry.VoucherID, entry.OrderID, entry.Amount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record voucher redemption: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) DeleteVoucherHistory(ctx context.Context, orderID, voucherID int64) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM voucher_history WHERE order_id = ? AND voucher_id = ?`, orderID, voucherID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete voucher redemption: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) OrderVoucherHistory(ctx context.Context, orderID int64) ([]models.VoucherHistory, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, voucher_id, order_id, amount, created_at
		FROM voucher_history WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher history: %w", err)
	}
	defer rows.Close()

	var history []models.VoucherHistory
	for rows.Next() {
		var h models.VoucherHistory
		if err := rows.Scan(&h.ID, &h.VoucherID, &h.OrderID, &h.Amount, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *MySQLStore) SetVoucherHistoryAmount(ctx context.Context, id int64, amount float64) error {
	var err error
	if models.ToMinor(amount) <= 0 {
		_, err = s.conn(ctx).ExecContext(ctx, `DELETE FROM voucher_history WHERE id = ?`, id)
	} else {
		_, err = s.conn(ctx).ExecContext(ctx, `UPDATE voucher_history SET amount = ? WHERE id = ?`, amount, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update voucher redemption: %w", err)
	}
	return nil
}

func (s *MySQLStore) OrderVouchers(ctx context.Context, orderID int64) ([]models.AppliedVoucher, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT h.voucher_id, COALESCE(MAX(s.seat_row), ''), SUM(h.amount)
		FROM voucher_history h
		LEFT JOIN vouchers v ON v.id = h.voucher_id
		LEFT JOIN seats s ON s.id = v.seat_id
		WHERE h.order_id = ?
		GROUP BY h.voucher_id
		ORDER BY h.voucher_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order vouchers: %w", err)
	}
	defer rows.Close()

	var applied []models.AppliedVoucher
	for rows.Next() {
		var a models.AppliedVoucher
		if err := rows.Scan(&a.VoucherID, &a.Code, &a.Amount); err != nil {
			return nil, err
		}
		applied = append(applied, a)
	}
	return applied, rows.Err()
}
