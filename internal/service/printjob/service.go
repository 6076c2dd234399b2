package printjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/cache"
	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	"github.com/printmill/printmill/internal/messaging"
	repo "github.com/printmill/printmill/internal/repository/printjob"
	"github.com/printmill/printmill/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/printmill/printmill/service/printjob")

// UpdateRequest is an operator-initiated print-job mutation. Status is
// required; PrintFilePath overwrites the stored path when set; Note is
// appended to the job's annotation history.
type UpdateRequest struct {
	JobID         int64
	Status        string
	PrintFilePath string
	Note          string
}

// Service exposes print-job reads and lifecycle updates for the production
// floor.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Get retrieves a print job with its relations, consulting cache when
// available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.PrintJob, error) {
	ctx, span := serviceTracer.Start(ctx, "PrintJobService.Get",
		trace.WithAttributes(attribute.Int64("printjob.id", id)))
	defer span.End()

	if job, err := s.getFromCache(ctx, id); err == nil {
		return job, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("print job cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("print job not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load print job", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, job); err != nil && s.logger != nil {
		s.logger.Warn("print job cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return job, nil
}

// List returns print jobs for the production floor, optionally narrowed to a
// single status. Jobs come back highest priority first, oldest first within a
// priority band.
func (s *Service) List(ctx context.Context, status string, limit int) ([]*entity.PrintJob, error) {
	ctx, span := serviceTracer.Start(ctx, "PrintJobService.List",
		trace.WithAttributes(attribute.String("printjob.filter_status", status)))
	defer span.End()

	if status != "" && !entity.ValidJobStatus(status) {
		return nil, errorbank.BadRequest("invalid status filter",
			errorbank.WithDetail("allowed_statuses", entity.JobStatuses))
	}
	if limit <= 0 {
		limit = 50
	}

	jobs, err := s.repo.List(ctx, repo.ListFilter{Status: status, Limit: limit})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list print jobs", errorbank.WithCause(err))
	}
	return jobs, nil
}

// Update applies an operator mutation: new status, optional print-file path,
// optional annotation. The status is validated against the lifecycle enum
// before anything is written. Returns the job reloaded with relations.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*entity.PrintJob, error) {
	if req.JobID == 0 {
		return nil, errorbank.BadRequest("job id is required")
	}
	if req.Status == "" {
		return nil, errorbank.BadRequest("status is required")
	}
	if !entity.ValidJobStatus(req.Status) {
		return nil, errorbank.BadRequest("invalid status value",
			errorbank.WithDetail("allowed_statuses", entity.JobStatuses))
	}
	ctx, span := serviceTracer.Start(ctx, "PrintJobService.Update",
		trace.WithAttributes(
			attribute.Int64("printjob.id", req.JobID),
			attribute.String("printjob.status", req.Status),
		))
	defer span.End()

	job, err := s.repo.GetByID(ctx, req.JobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("print job not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load print job", errorbank.WithCause(err))
	}

	previous := job.Status
	job.Status = req.Status
	columns := []string{"status"}
	if req.PrintFilePath != "" {
		job.PrintFilePath = req.PrintFilePath
		columns = append(columns, "print_file_path")
	}

	if err := s.repo.UpdateColumns(ctx, job, columns...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update print job", errorbank.WithCause(err))
	}

	if req.Note != "" {
		note := &entity.PrintJobNote{
			PrintJobID: job.ID,
			Note:       req.Note,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.repo.AddNote(ctx, note); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to add print job note", errorbank.WithCause(err))
		}
	}

	s.invalidateCache(ctx, job.ID)
	s.publishStatusChange(ctx, job, previous)
	s.logger.Info("print job updated",
		zap.Int64("job_id", job.ID),
		zap.String("from", previous),
		zap.String("to", job.Status))

	return s.repo.GetByID(ctx, job.ID)
}

// EventStatusChanged is the envelope type for operator-driven transitions.
const EventStatusChanged = "printjobs.status_changed"

// StatusChangedEvent is emitted when an operator moves a job between states.
type StatusChangedEvent struct {
	Type       string    `json:"type"`
	JobID      int64     `json:"job_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publishStatusChange(ctx context.Context, job *entity.PrintJob, previous string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := StatusChangedEvent{
		Type:       EventStatusChanged,
		JobID:      job.ID,
		From:       previous,
		To:         job.Status,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal status change event", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("job-%d", job.ID))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish status change event", zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("printjobs:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.PrintJob, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var job entity.PrintJob
	if err := json.Unmarshal(bytes, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Service) storeInCache(ctx context.Context, job *entity.PrintJob) error {
	if s.cache == nil || job == nil {
		return nil
	}
	bytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(job.ID), bytes, s.cacheTTL)
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil && s.logger != nil {
		s.logger.Warn("print job cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
