// Package dbtest opens throwaway SQLite databases carrying the billing schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/inkledger-backend/pkg/db"
)

// schema mirrors pkg/migrate/migrations in SQLite syntax.
var schema = []string{
	`CREATE TABLE members (
		id text PRIMARY KEY,
		branch_id text NOT NULL,
		name text NOT NULL,
		primary_artist_id text,
		stored_value_balance integer NOT NULL DEFAULT 0 CHECK (stored_value_balance >= 0),
		total_spent integer NOT NULL DEFAULT 0,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE contacts (
		id text PRIMARY KEY,
		branch_id text NOT NULL,
		cart_snapshot blob,
		created_at datetime
	)`,
	`CREATE TABLE appointments (
		id text PRIMARY KEY,
		branch_id text NOT NULL,
		customer_id text,
		contact_id text,
		artist_id text,
		service_id text,
		service_name text,
		service_price integer,
		cart_snapshot blob,
		starts_at datetime NOT NULL,
		created_at datetime
	)`,
	`CREATE TABLE split_rules (
		id text PRIMARY KEY,
		artist_id text NOT NULL,
		artist_rate_bps integer NOT NULL,
		shop_rate_bps integer NOT NULL,
		created_by text NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE bills (
		id text PRIMARY KEY,
		branch_id text NOT NULL,
		appointment_id text,
		customer_id text,
		artist_id text,
		source_bill_id text,
		created_by text NOT NULL,
		bill_type text NOT NULL,
		status text NOT NULL DEFAULT 'OPEN',
		list_total integer NOT NULL DEFAULT 0,
		discount_total integer NOT NULL DEFAULT 0,
		bill_total integer NOT NULL DEFAULT 0 CHECK (bill_total >= 0),
		currency text NOT NULL,
		notes text,
		voided_at datetime,
		voided_by text,
		void_reason text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX ux_bills_appointment_id ON bills (appointment_id) WHERE appointment_id IS NOT NULL`,
	`CREATE TABLE bill_items (
		id text PRIMARY KEY,
		bill_id text NOT NULL,
		service_id text,
		name_snapshot text NOT NULL,
		base_price_snapshot integer NOT NULL,
		final_price_snapshot integer NOT NULL,
		variants_snapshot text,
		sort_order integer NOT NULL DEFAULT 0,
		created_at datetime
	)`,
	`CREATE TABLE payments (
		id text PRIMARY KEY,
		bill_id text NOT NULL,
		amount integer NOT NULL CHECK (amount <> 0),
		method text NOT NULL,
		paid_at datetime NOT NULL,
		recorded_by text NOT NULL,
		notes text,
		refund_of_payment_id text,
		created_at datetime
	)`,
	`CREATE TABLE payment_allocations (
		id text PRIMARY KEY,
		payment_id text NOT NULL,
		target text NOT NULL,
		amount integer NOT NULL,
		created_at datetime
	)`,
	`CREATE UNIQUE INDEX ux_payment_allocations_payment_target ON payment_allocations (payment_id, target)`,
	`CREATE TABLE wallet_ledger_entries (
		id text PRIMARY KEY,
		member_id text NOT NULL,
		type text NOT NULL,
		amount integer NOT NULL CHECK (amount > 0),
		operator_id text NOT NULL,
		bill_id text,
		note text,
		occurred_at datetime NOT NULL,
		created_at datetime
	)`,
	`CREATE TABLE outbox_events (
		id text PRIMARY KEY,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload blob NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`,
	`CREATE TABLE outbox_dlq (
		id text PRIMARY KEY,
		event_id text NOT NULL UNIQUE,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload_json blob NOT NULL,
		error_reason text NOT NULL,
		error_message text,
		attempt_count integer NOT NULL DEFAULT 0,
		failed_at datetime
	)`,
}

// Open returns a client over a private in-memory database with the billing
// schema applied. The database is closed when the test ends.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=off", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// A single connection keeps the in-memory database alive.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return db.FromGorm(conn)
}
