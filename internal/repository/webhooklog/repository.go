package webhooklog

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/entity"
)

var repoTracer = otel.Tracer("github.com/printmill/printmill/repository/webhooklog")

// Repository records the inbound webhook audit trail. The log is best-effort
// diagnostics; failures here must never fail webhook processing.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Record inserts one delivery row in the received state.
func (r *Repository) Record(ctx context.Context, log *entity.WebhookLog) error {
	if log == nil {
		return errors.New("nil webhook log")
	}
	ctx, span := repoTracer.Start(ctx, "WebhookLogRepository.Record",
		trace.WithAttributes(attribute.String("webhook.topic", log.Topic)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(log).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// UpdateLatestStatus marks the most recent delivery row for a topic and
// external order id. Concurrent deliveries of the same event can race on the
// row choice; the log is diagnostic so the last writer winning is acceptable.
func (r *Repository) UpdateLatestStatus(ctx context.Context, topic string, externalOrderID int64, status, errorMessage string) error {
	ctx, span := repoTracer.Start(ctx, "WebhookLogRepository.UpdateLatestStatus",
		trace.WithAttributes(
			attribute.String("webhook.topic", topic),
			attribute.Int64("order.external_id", externalOrderID),
			attribute.String("webhook.status", status),
		))
	defer span.End()

	// The derived table keeps MySQL happy about updating a table referenced
	// in its own subquery.
	q := r.writer.NewUpdate().Model((*entity.WebhookLog)(nil)).
		Set("status = ?", status).
		Where("id = (SELECT id FROM (SELECT MAX(id) AS id FROM webhook_logs WHERE topic = ? AND external_order_id = ?) AS latest)", topic, externalOrderID)
	if errorMessage != "" {
		q = q.Set("error_message = ?", errorMessage)
	}

	_, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// ListRecent returns the newest delivery rows, bounded by limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*entity.WebhookLog, error) {
	ctx, span := repoTracer.Start(ctx, "WebhookLogRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	var logs []*entity.WebhookLog
	err := r.reader.NewSelect().Model(&logs).
		Order("wl.id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return logs, nil
}
