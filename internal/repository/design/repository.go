package design

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

var repoTracer = otel.Tracer("github.com/printmill/printmill/repository/design")

// ErrNotFound is returned when a design is missing.
var ErrNotFound = errors.New("design not found")

// Repository encapsulates read/write access for designs.
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

// Create persists a new design using the write connection.
func (r *Repository) Create(ctx context.Context, design *entity.Design) error {
	if design == nil {
		return errors.New("nil design")
	}
	ctx, span := repoTracer.Start(ctx, "DesignRepository.Create",
		trace.WithAttributes(attribute.String("design.session_id", design.SessionID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(design).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a design with its product.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Design, error) {
	ctx, span := repoTracer.Start(ctx, "DesignRepository.GetByID",
		trace.WithAttributes(attribute.Int64("design.id", id)))
	defer span.End()

	design := new(entity.Design)
	err := r.reader.NewSelect().Model(design).
		Relation("Product").
		Where("d.id = ?", id).
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
	return design, nil
}

// ListBySession returns a session's designs newest-first, excluding deleted
// ones.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]*entity.Design, error) {
	ctx, span := repoTracer.Start(ctx, "DesignRepository.ListBySession",
		trace.WithAttributes(attribute.String("design.session_id", sessionID)))
	defer span.End()

	var designs []*entity.Design
	err := r.reader.NewSelect().Model(&designs).
		Relation("Product").
		Where("d.session_id = ?", sessionID).
		Where("d.status != ?", entity.DesignStatusDeleted).
		Order("d.created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return designs, nil
}

// UpdateColumns writes the named columns of an existing design. updated_at is
// always touched.
func (r *Repository) UpdateColumns(ctx context.Context, design *entity.Design, columns ...string) error {
	if design == nil {
		return errors.New("nil design")
	}
	ctx, span := repoTracer.Start(ctx, "DesignRepository.UpdateColumns",
		trace.WithAttributes(attribute.Int64("design.id", design.ID)))
	defer span.End()

	design.UpdatedAt = time.Now().UTC()
	_, err := r.writer.NewUpdate().Model(design).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// Delete removes a design row permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "DesignRepository.Delete",
		trace.WithAttributes(attribute.Int64("design.id", id)))
	defer span.End()

	_, err := r.writer.NewDelete().Model((*entity.Design)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}

// ListOlderThan returns abandoned uploads created before cutoff: designs still
// pending or processed that are not referenced by any order item. Approved and
// archived designs are kept regardless of age. Used by periodic cleanup.
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*entity.Design, error) {
	ctx, span := repoTracer.Start(ctx, "DesignRepository.ListOlderThan")
	defer span.End()

	var designs []*entity.Design
	err := r.reader.NewSelect().Model(&designs).
		Where("d.created_at < ?", cutoff).
		Where("d.status IN (?)", bun.In([]string{entity.DesignStatusPending, entity.DesignStatusProcessed})).
		Where("d.id NOT IN (SELECT design_id FROM order_items)").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return designs, nil
}
