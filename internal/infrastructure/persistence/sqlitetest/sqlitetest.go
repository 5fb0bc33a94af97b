// Package sqlitetest opens in-memory SQLite databases carrying the storefront
// schema, for repository and diagnostics tests that need real SQL.
package sqlitetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema is the storefront schema in SQLite syntax. It mirrors migrations/
// closely enough for repository queries.
var Schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		subcategory TEXT,
		sku TEXT,
		handle TEXT,
		brand TEXT,
		supplier TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		primary_image TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE products_enhanced (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		subcategory TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		images TEXT,
		size_options TEXT,
		base_price NUMERIC,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		title TEXT,
		sku TEXT,
		size TEXT,
		color TEXT,
		price NUMERIC NOT NULL DEFAULT 0,
		stripe_price_id TEXT,
		stripe_active BOOLEAN NOT NULL DEFAULT 0,
		inventory_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE product_images (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		image_url TEXT NOT NULL,
		image_type TEXT,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE customers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT,
		last_name TEXT,
		name TEXT,
		phone TEXT,
		stripe_customer_id TEXT,
		accepts_email_marketing BOOLEAN NOT NULL DEFAULT 0,
		total_spent NUMERIC NOT NULL DEFAULT 0,
		customer_tier TEXT NOT NULL DEFAULT 'standard',
		vip_status BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		email_confirmed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		customer_id TEXT,
		customer_email TEXT NOT NULL,
		customer_name TEXT,
		phone TEXT,
		stripe_checkout_session_id TEXT UNIQUE,
		stripe_payment_intent_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		subtotal NUMERIC NOT NULL DEFAULT 0,
		tax_amount NUMERIC NOT NULL DEFAULT 0,
		shipping_amount NUMERIC NOT NULL DEFAULT 0,
		total_amount NUMERIC NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'usd',
		items TEXT NOT NULL DEFAULT '[]',
		shipping_address TEXT,
		payment_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE checkout_sessions (
		id TEXT PRIMARY KEY,
		stripe_session_id TEXT NOT NULL UNIQUE,
		user_id TEXT,
		customer_email TEXT,
		status TEXT NOT NULL DEFAULT 'created',
		total_amount NUMERIC NOT NULL DEFAULT 0,
		items TEXT NOT NULL DEFAULT '[]',
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE stock_reservations (
		id TEXT PRIMARY KEY,
		variant_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		session_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE webhook_logs (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'processing',
		error_message TEXT,
		payload TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE email_logs (
		id TEXT PRIMARY KEY,
		recipient_email TEXT NOT NULL,
		email_type TEXT NOT NULL,
		template_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		customer_id TEXT,
		metadata TEXT DEFAULT '{}',
		error_message TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// New opens a single-connection in-memory database with Schema applied
func New(t testing.TB) *gorm.DB {
	t.Helper()
	return NewWithSchema(t, Schema...)
}

// NewWithSchema opens a single-connection in-memory database and runs the
// given DDL statements
func NewWithSchema(t testing.TB, ddl ...string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
