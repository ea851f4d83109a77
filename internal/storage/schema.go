package storage

const tableOptions = ` ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

// SchemaStatements returns the idempotent DDL for every table, in creation order.
func SchemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS performances (
			id BIGINT PRIMARY KEY,
			event_id BIGINT NOT NULL,
			performance_date DATETIME NOT NULL,
			duration_minutes INT NOT NULL DEFAULT 0,
			INDEX idx_event_id (event_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS prices (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(64) NOT NULL,
			amount DECIMAL(10,2) NOT NULL,
			INDEX idx_name (name)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			basket_id VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE KEY uq_basket_id (basket_id),
			INDEX idx_status (status)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			INDEX idx_order_id (order_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS seats (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			seat_row VARCHAR(64) NOT NULL,
			number INT NOT NULL DEFAULT 0,
			price_id BIGINT NOT NULL,
			performance_id BIGINT NOT NULL,
			order_item_id BIGINT NULL,
			INDEX idx_performance_id (performance_id),
			INDEX idx_order_item_id (order_item_id),
			INDEX idx_seat_row (seat_row)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS checkout_sessions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			client_secret VARCHAR(512) NOT NULL DEFAULT '',
			payment_intent_id VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE KEY uq_order_id (order_id),
			INDEX idx_session_id (session_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			payment_intent_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NULL,
			INDEX idx_order_id (order_id),
			INDEX idx_session_id (session_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS payment_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			payment_id BIGINT NOT NULL,
			old_status VARCHAR(20) NOT NULL,
			new_status VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_payment_id (payment_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS vouchers (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			seat_id BIGINT NOT NULL,
			initial_amount DECIMAL(10,2) NOT NULL,
			UNIQUE KEY uq_seat_id (seat_id)
		)` + tableOptions,
		`CREATE TABLE IF NOT EXISTS voucher_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			voucher_id BIGINT NOT NULL,
			order_id BIGINT NOT NULL,
			amount DECIMAL(10,2) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_voucher_id (voucher_id),
			INDEX idx_order_id (order_id)
		)` + tableOptions,
	}
}
