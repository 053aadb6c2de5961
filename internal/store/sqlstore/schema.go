package sqlstore

import "strings"

// schemaFor renders the migrations for one engine. {money} and {ts} stand for
// the engine's decimal and timestamp column types.
func schemaFor(moneyType string, timestampType string) []string {
	replacer := strings.NewReplacer("{money}", moneyType, "{ts}", timestampType)

	stmts := make([]string, 0, len(schema))
	for _, stmt := range schema {
		stmts = append(stmts, replacer.Replace(stmt))
	}
	return stmts
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		barcode TEXT UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		cost {money} NOT NULL,
		price {money} NOT NULL,
		stock INTEGER NOT NULL CHECK (stock >= 0),
		low_stock_threshold INTEGER NOT NULL DEFAULT 5,
		expiry_date {ts},
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sale_number TEXT NOT NULL UNIQUE,
		subtotal {money} NOT NULL,
		discount_percentage {money} NOT NULL,
		discount_amount {money} NOT NULL,
		grand_total {money} NOT NULL,
		amount_due {money} NOT NULL,
		amount_paid {money} NOT NULL,
		remaining_balance {money} NOT NULL,
		change_amount {money} NOT NULL,
		status TEXT NOT NULL,
		cash_tendered {money} NOT NULL,
		payment_method TEXT NOT NULL,
		total_quantity INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		due_date {ts},
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_status ON sales (status)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products (id),
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		selling_price {money} NOT NULL,
		discount {money} NOT NULL,
		item_total {money} NOT NULL,
		item_discount {money} NOT NULL,
		item_net {money} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		total_purchases INTEGER NOT NULL DEFAULT 0,
		total_amount {money} NOT NULL,
		balance {money} NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL REFERENCES vendors (id),
		user_id TEXT NOT NULL,
		total {money} NOT NULL,
		amount_due {money} NOT NULL,
		amount_paid {money} NOT NULL,
		remaining_balance {money} NOT NULL,
		change_amount {money} NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		due_date {ts},
		purchase_date {ts} NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_vendor ON purchases (vendor_id)`,
	`CREATE TABLE IF NOT EXISTS purchase_lines (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL REFERENCES purchases (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT REFERENCES products (id),
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price {money} NOT NULL,
		line_total {money} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_lines_purchase ON purchase_lines (purchase_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sale_id TEXT REFERENCES sales (id) ON DELETE CASCADE,
		purchase_id TEXT REFERENCES purchases (id) ON DELETE CASCADE,
		amount {money} NOT NULL,
		method TEXT NOT NULL,
		collected_by TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at {ts} NOT NULL,
		CHECK ((sale_id IS NULL) <> (purchase_id IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments (sale_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_purchase ON payments (purchase_id)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		client_phone TEXT NOT NULL DEFAULT '',
		expense_type TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount_due {money} NOT NULL,
		amount_paid {money} NOT NULL,
		remaining_balance {money} NOT NULL,
		change_amount {money} NOT NULL,
		status TEXT NOT NULL,
		due_date {ts},
		user_id TEXT NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {ts} NOT NULL
	)`,
}
