package printjob

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/entity"
)

var repoTracer = otel.Tracer("github.com/printmill/printmill/repository/printjob")

// ErrNotFound is returned when a print job is missing.
var ErrNotFound = errors.New("print job not found")

// ListFilter narrows and bounds a print-job listing.
type ListFilter struct {
	Status string
	Limit  int
}

// Repository encapsulates read/write access for print jobs and their notes.
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

// Create persists a new print job using the write connection.
func (r *Repository) Create(ctx context.Context, job *entity.PrintJob) error {
	if job == nil {
		return errors.New("nil print job")
	}
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.Create",
		trace.WithAttributes(attribute.Int64("printjob.order_item_id", job.OrderItemID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(job).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a print job with its full relation chain: line item, parent
// order, product, design, and notes oldest-first.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.PrintJob, error) {
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.GetByID",
		trace.WithAttributes(attribute.Int64("printjob.id", id)))
	defer span.End()

	job := new(entity.PrintJob)
	err := r.reader.NewSelect().Model(job).
		Relation("OrderItem").
		Relation("OrderItem.Order").
		Relation("OrderItem.Product").
		Relation("Design").
		Relation("Notes", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC", "id ASC")
		}).
		Where("pj.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return job, nil
}

// List returns print jobs ordered for the production floor: highest priority
// first, oldest first within a priority band.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*entity.PrintJob, error) {
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.List",
		trace.WithAttributes(attribute.String("printjob.filter_status", filter.Status)))
	defer span.End()

	var jobs []*entity.PrintJob
	q := r.reader.NewSelect().Model(&jobs).
		Relation("OrderItem").
		Relation("OrderItem.Order").
		Relation("OrderItem.Product").
		Relation("Design").
		Order("pj.priority DESC", "pj.created_at ASC")
	if filter.Status != "" {
		q = q.Where("pj.status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return jobs, nil
}

// UpdateColumns writes the named columns of an existing print job. updated_at
// is always touched.
func (r *Repository) UpdateColumns(ctx context.Context, job *entity.PrintJob, columns ...string) error {
	if job == nil {
		return errors.New("nil print job")
	}
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.UpdateColumns",
		trace.WithAttributes(attribute.Int64("printjob.id", job.ID)))
	defer span.End()

	job.UpdatedAt = time.Now().UTC()
	_, err := r.writer.NewUpdate().Model(job).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// AddNote appends an annotation row to a print job. Notes are never mutated.
func (r *Repository) AddNote(ctx context.Context, note *entity.PrintJobNote) error {
	if note == nil {
		return errors.New("nil note")
	}
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.AddNote",
		trace.WithAttributes(attribute.Int64("printjob.id", note.PrintJobID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(note).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// CascadeStatusForOrder moves every print job belonging to an order into
// newStatus. When fromStates is non-empty only jobs currently in one of those
// states move; otherwise the transition is unconditional. Returns the number
// of jobs updated.
func (r *Repository) CascadeStatusForOrder(ctx context.Context, orderID int64, newStatus string, fromStates []string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "PrintJobRepository.CascadeStatusForOrder",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.String("printjob.new_status", newStatus),
		))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.PrintJob)(nil)).
		Set("status = ?", newStatus).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_item_id IN (SELECT id FROM order_items WHERE order_id = ?)", orderID)
	if len(fromStates) > 0 {
		q = q.Where("status IN (?)", bun.In(fromStates))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("printjob.cascaded", affected))
	return affected, nil
}
