// Package databasetest opens throwaway sqlite-backed connections for tests.
package databasetest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/entity"
)

// New returns Connections backed by a fresh in-memory sqlite database with
// every table created. The database is torn down when the test finishes.
func New(t *testing.T) *database.Connections {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second connection would see a separate empty in-memory database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	models := []interface{}{
		(*entity.Product)(nil),
		(*entity.Design)(nil),
		(*entity.Order)(nil),
		(*entity.OrderItem)(nil),
		(*entity.PrintJob)(nil),
		(*entity.PrintJobNote)(nil),
		(*entity.WebhookLog)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table for %T: %v", model, err)
		}
	}
	if _, err := db.NewCreateIndex().
		Model((*entity.Order)(nil)).
		Index("idx_orders_external_order_id").
		Unique().
		Column("external_order_id").
		Exec(ctx); err != nil {
		t.Fatalf("create unique order index: %v", err)
	}

	return &database.Connections{Writer: db, Reader: db}
}
