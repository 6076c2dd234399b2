package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is a printable catalog item. Catalog management lives outside this
// service; printmill only reads the print specification columns.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID              int64     `bun:",pk,autoincrement"`
	Name            string    `bun:"name"`
	ProductType     string    `bun:"product_type,nullzero"`
	PrintAreaWidth  float64   `bun:"print_area_width"`
	PrintAreaHeight float64   `bun:"print_area_height"`
	MinDPI          float64   `bun:"min_dpi"`
	IsActive        bool      `bun:"is_active"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero"`
}
