package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Webhook log statuses.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookLog is one row per inbound webhook delivery. The log is a diagnostic
// audit trail, not authoritative state: status updates target the latest row
// for a (topic, external order id) pair by convention.
type WebhookLog struct {
	bun.BaseModel `bun:"table:webhook_logs,alias:wl"`

	ID              int64     `bun:",pk,autoincrement"`
	Topic           string    `bun:"topic"`
	ExternalOrderID int64     `bun:"external_order_id,nullzero"`
	Payload         string    `bun:"payload"`
	Status          string    `bun:"status"`
	ErrorMessage    string    `bun:"error_message,nullzero"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
