package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Print job statuses. The happy path runs queued through shipped; failed can
// be forced administratively from any state.
const (
	JobStatusQueued    = "queued"
	JobStatusPreparing = "preparing"
	JobStatusPrinting  = "printing"
	JobStatusPrinted   = "printed"
	JobStatusShipped   = "shipped"
	JobStatusFailed    = "failed"
)

// JobStatuses lists every valid print-job status, in lifecycle order.
var JobStatuses = []string{
	JobStatusQueued,
	JobStatusPreparing,
	JobStatusPrinting,
	JobStatusPrinted,
	JobStatusShipped,
	JobStatusFailed,
}

// ValidJobStatus reports whether s is one of the known job statuses.
func ValidJobStatus(s string) bool {
	for _, known := range JobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PrintJob is one unit of production work, created at order-ingestion time
// for each line item that resolved to a design.
type PrintJob struct {
	bun.BaseModel `bun:"table:print_jobs,alias:pj"`

	ID            int64     `bun:",pk,autoincrement"`
	OrderItemID   int64     `bun:"order_item_id"`
	DesignID      int64     `bun:"design_id"`
	Status        string    `bun:"status"`
	Priority      int       `bun:"priority"`
	PrintFilePath string    `bun:"print_file_path,nullzero"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero"`

	OrderItem *OrderItem      `bun:"rel:belongs-to,join:order_item_id=id"`
	Design    *Design         `bun:"rel:belongs-to,join:design_id=id"`
	Notes     []*PrintJobNote `bun:"rel:has-many,join:id=print_job_id"`
}

// PrintJobNote is one append-only annotation on a print job. Notes are never
// updated or deleted; history accumulates oldest-first.
type PrintJobNote struct {
	bun.BaseModel `bun:"table:print_job_notes,alias:pjn"`

	ID         int64     `bun:",pk,autoincrement"`
	PrintJobID int64     `bun:"print_job_id"`
	Note       string    `bun:"note"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
