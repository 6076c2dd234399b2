package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Design statuses.
const (
	DesignStatusPending   = "pending"
	DesignStatusProcessed = "processed"
	DesignStatusApproved  = "approved"
	DesignStatusRejected  = "rejected"
	DesignStatusDeleted   = "deleted"
	DesignStatusArchived  = "archived"
)

// Design is an uploaded print artwork. It is owned by the uploading session
// until an order consumes it through an OrderItem.
type Design struct {
	bun.BaseModel `bun:"table:designs,alias:d"`

	ID               int64     `bun:",pk,autoincrement"`
	SessionID        string    `bun:"session_id"`
	ProductID        int64     `bun:"product_id"`
	OriginalFilename string    `bun:"original_filename"`
	StoredFilename   string    `bun:"stored_filename"`
	FilePath         string    `bun:"file_path"`
	PreviewPath      string    `bun:"preview_path,nullzero"`
	FileSize         int64     `bun:"file_size"`
	MimeType         string    `bun:"mime_type,nullzero"`
	Width            int       `bun:"width"`
	Height           int       `bun:"height"`
	DPI              int       `bun:"dpi"`
	DesignConfig     string    `bun:"design_config,nullzero"`
	Status           string    `bun:"status"`
	ErrorMessage     string    `bun:"error_message,nullzero"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id"`
}
