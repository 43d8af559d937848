package storage

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(64) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock_quantity INT NOT NULL,
		min_stock_level INT NOT NULL DEFAULT 5,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_products_sku (sku),
		KEY idx_products_name (name),
		CONSTRAINT chk_products_price CHECK (price >= 0),
		CONSTRAINT chk_products_stock CHECK (stock_quantity >= 0),
		CONSTRAINT chk_products_min_stock CHECK (min_stock_level >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoice_number VARCHAR(64) NOT NULL,
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		subtotal DECIMAL(14,2) NOT NULL,
		tax_amount DECIMAL(14,2) NOT NULL,
		grand_total DECIMAL(14,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_invoices_number (invoice_number),
		KEY idx_invoices_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoice_id BIGINT NOT NULL,
		product_id BIGINT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		line_total DECIMAL(14,2) NOT NULL,
		KEY idx_invoice_items_invoice (invoice_id),
		KEY idx_invoice_items_product (product_id),
		CONSTRAINT fk_invoice_items_invoice FOREIGN KEY (invoice_id) REFERENCES invoices (id),
		CONSTRAINT fk_invoice_items_product FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE SET NULL,
		CONSTRAINT chk_invoice_items_quantity CHECK (quantity > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		event_id CHAR(36) NOT NULL,
		topic VARCHAR(255) NOT NULL,
		msg_key VARCHAR(255) NOT NULL,
		payload JSON NOT NULL,
		created_at DATETIME(6) NOT NULL,
		sent_at DATETIME(6) NULL,
		UNIQUE KEY uq_outbox_event (event_id),
		KEY idx_outbox_pending (sent_at, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(64) NOT NULL,
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
		min_stock_level INTEGER NOT NULL DEFAULT 5 CHECK (min_stock_level >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_products_sku UNIQUE (sku)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products (name)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		invoice_number VARCHAR(64) NOT NULL,
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		subtotal NUMERIC(14,2) NOT NULL,
		tax_amount NUMERIC(14,2) NOT NULL,
		grand_total NUMERIC(14,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_invoices_number UNIQUE (invoice_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices (created_at)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices (id),
		product_id BIGINT NULL REFERENCES products (id) ON DELETE SET NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		line_total NUMERIC(14,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_product ON invoice_items (product_id)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		event_id UUID NOT NULL UNIQUE,
		topic VARCHAR(255) NOT NULL,
		msg_key VARCHAR(255) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE sent_at IS NULL`,
}

// Migrate creates the tables if they do not exist yet.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	statements := mysqlSchema
	if a.postgres {
		statements = postgresSchema
	}
	for i, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
