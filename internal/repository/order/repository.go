package order

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

var repoTracer = otel.Tracer("github.com/printmill/printmill/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders.
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

// CreateWithJobs inserts an order, its line items, and one print job per line
// item in a single transaction. jobs must be parallel to order.Items; the
// generated order and item ids are threaded through before each insert. On
// error nothing is persisted.
func (r *Repository) CreateWithJobs(ctx context.Context, order *entity.Order, jobs []*entity.PrintJob) error {
	if order == nil {
		return errors.New("nil order")
	}
	if len(jobs) != len(order.Items) {
		return errors.New("jobs must be parallel to order items")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateWithJobs",
		trace.WithAttributes(attribute.Int64("order.external_id", order.ExternalOrderID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		for i, item := range order.Items {
			item.OrderID = order.ID
			if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
				return err
			}
			job := jobs[i]
			job.OrderItemID = item.ID
			if _, err := tx.NewInsert().Model(job).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

// GetByExternalID fetches an order by its commerce-platform order id.
func (r *Repository) GetByExternalID(ctx context.Context, externalOrderID int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByExternalID",
		trace.WithAttributes(attribute.Int64("order.external_id", externalOrderID)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("o.external_order_id = ?", externalOrderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID",
		trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Items").
		Where("o.id = ?", id).
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
	return order, nil
}

// UpdateColumns writes the named columns of an existing order. updated_at is
// always touched.
func (r *Repository) UpdateColumns(ctx context.Context, order *entity.Order, columns ...string) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateColumns",
		trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	order.UpdatedAt = time.Now().UTC()
	_, err := r.writer.NewUpdate().Model(order).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}
