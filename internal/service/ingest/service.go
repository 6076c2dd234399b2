package ingest

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

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	"github.com/printmill/printmill/internal/messaging"
	designrepo "github.com/printmill/printmill/internal/repository/design"
	orderrepo "github.com/printmill/printmill/internal/repository/order"
	printjobrepo "github.com/printmill/printmill/internal/repository/printjob"
	"github.com/printmill/printmill/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/printmill/printmill/service/ingest")

// Outcome distinguishes a fresh materialization from an idempotent replay.
type Outcome string

// Outcomes of OrderCreate.
const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
)

// CreateResult reports what OrderCreate did.
type CreateResult struct {
	Outcome     Outcome
	Order       *entity.Order
	JobsCreated int
}

// Service turns commerce-platform order events into orders and print jobs.
type Service struct {
	orders    *orderrepo.Repository
	designs   *designrepo.Repository
	printJobs *printjobrepo.Repository
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

	Orders    *orderrepo.Repository
	Designs   *designrepo.Repository
	PrintJobs *printjobrepo.Repository
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		designs:   p.Designs,
		printJobs: p.PrintJobs,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// OrderCreate materializes an order event: one order row, one line item per
// resolvable design reference, and one queued print job per line item, all in
// a single transaction. Replays of an already-ingested order id short-circuit
// without touching existing rows.
func (s *Service) OrderCreate(ctx context.Context, p OrderPayload) (*CreateResult, error) {
	if p.ID == 0 {
		return nil, errorbank.BadRequest("order id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "IngestService.OrderCreate",
		trace.WithAttributes(attribute.Int64("order.external_id", p.ID)))
	defer span.End()

	if existing, err := s.orders.GetByExternalID(ctx, p.ID); err == nil {
		s.logger.Info("order already ingested, skipping",
			zap.Int64("external_order_id", p.ID), zap.Int64("order_id", existing.ID))
		span.SetAttributes(attribute.String("ingest.outcome", string(OutcomeAlreadyExists)))
		return &CreateResult{Outcome: OutcomeAlreadyExists, Order: existing}, nil
	} else if !errors.Is(err, orderrepo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to check for existing order", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	order := &entity.Order{
		ExternalOrderID:   p.ID,
		ExternalOrderNum:  p.Number(),
		CustomerEmail:     p.CustomerEmail(),
		TotalAmount:       p.Total(),
		Currency:          defaultCurrency(p.Currency),
		OrderStatus:       entity.OrderStatusPending,
		FulfillmentStatus: entity.FulfillmentUnfulfilled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var jobs []*entity.PrintJob
	for _, item := range p.LineItems {
		designID, ok := item.DesignID()
		if !ok {
			s.logger.Info("line item carries no design reference, skipping",
				zap.Int64("external_line_item_id", item.ID))
			continue
		}

		design, err := s.designs.GetByID(ctx, designID)
		if errors.Is(err, designrepo.ErrNotFound) {
			s.logger.Warn("line item references unknown design, skipping",
				zap.Int64("external_line_item_id", item.ID),
				zap.Int64("design_id", designID))
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to resolve design", errorbank.WithCause(err))
		}

		unitPrice := item.UnitPrice()
		order.Items = append(order.Items, &entity.OrderItem{
			DesignID:           design.ID,
			ProductID:          design.ProductID,
			ExternalLineItemID: item.ID,
			Quantity:           item.Quantity,
			UnitPrice:          unitPrice,
			TotalPrice:         unitPrice * float64(item.Quantity),
		})
		jobs = append(jobs, &entity.PrintJob{
			DesignID:  design.ID,
			Status:    entity.JobStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.orders.CreateWithJobs(ctx, order, jobs); err != nil {
		// A concurrent delivery may have won the unique index race.
		if existing, lookupErr := s.orders.GetByExternalID(ctx, p.ID); lookupErr == nil {
			span.SetAttributes(attribute.String("ingest.outcome", string(OutcomeAlreadyExists)))
			return &CreateResult{Outcome: OutcomeAlreadyExists, Order: existing}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to materialize order", errorbank.WithCause(err))
	}

	s.logger.Info("order ingested",
		zap.Int64("external_order_id", p.ID),
		zap.Int64("order_id", order.ID),
		zap.Int("jobs_created", len(jobs)))
	span.SetAttributes(
		attribute.String("ingest.outcome", string(OutcomeCreated)),
		attribute.Int("ingest.jobs_created", len(jobs)),
	)

	s.publishEvent(ctx, order, EventJobsQueued, jobIDs(jobs))
	return &CreateResult{Outcome: OutcomeCreated, Order: order, JobsCreated: len(jobs)}, nil
}

// OrderUpdate refreshes order and fulfillment status from an update event.
// Paid orders move to processing; everything else stays pending.
func (s *Service) OrderUpdate(ctx context.Context, p OrderPayload) error {
	if p.ID == 0 {
		return errorbank.BadRequest("order id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "IngestService.OrderUpdate",
		trace.WithAttributes(attribute.Int64("order.external_id", p.ID)))
	defer span.End()

	order, err := s.loadOrder(ctx, span, p.ID)
	if err != nil {
		return err
	}

	order.FulfillmentStatus = p.FulfillmentStatus
	if order.FulfillmentStatus == "" {
		order.FulfillmentStatus = entity.FulfillmentUnfulfilled
	}
	if p.FinancialStatus == "paid" {
		order.OrderStatus = entity.OrderStatusProcessing
	} else {
		order.OrderStatus = entity.OrderStatusPending
	}

	if err := s.orders.UpdateColumns(ctx, order, "order_status", "fulfillment_status"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.logger.Info("order updated",
		zap.Int64("external_order_id", p.ID),
		zap.String("order_status", order.OrderStatus),
		zap.String("fulfillment_status", order.FulfillmentStatus))
	return nil
}

// OrderFulfilled completes the order and unconditionally moves every one of
// its print jobs to shipped, whatever state they were in.
func (s *Service) OrderFulfilled(ctx context.Context, p OrderPayload) (int64, error) {
	if p.ID == 0 {
		return 0, errorbank.BadRequest("order id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "IngestService.OrderFulfilled",
		trace.WithAttributes(attribute.Int64("order.external_id", p.ID)))
	defer span.End()

	order, err := s.loadOrder(ctx, span, p.ID)
	if err != nil {
		return 0, err
	}

	order.OrderStatus = entity.OrderStatusCompleted
	order.FulfillmentStatus = entity.FulfillmentFulfilled
	if err := s.orders.UpdateColumns(ctx, order, "order_status", "fulfillment_status"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	cascaded, err := s.printJobs.CascadeStatusForOrder(ctx, order.ID, entity.JobStatusShipped, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to cascade print jobs", errorbank.WithCause(err))
	}

	s.logger.Info("order fulfilled",
		zap.Int64("external_order_id", p.ID),
		zap.Int64("jobs_shipped", cascaded))
	s.publishEvent(ctx, order, EventJobsShipped, nil)
	return cascaded, nil
}

// OrderCancelled cancels the order and fails its print jobs, but only jobs
// still in queued or preparing; work already on a printer keeps its state.
func (s *Service) OrderCancelled(ctx context.Context, p OrderPayload) (int64, error) {
	if p.ID == 0 {
		return 0, errorbank.BadRequest("order id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "IngestService.OrderCancelled",
		trace.WithAttributes(attribute.Int64("order.external_id", p.ID)))
	defer span.End()

	order, err := s.loadOrder(ctx, span, p.ID)
	if err != nil {
		return 0, err
	}

	order.OrderStatus = entity.OrderStatusCancelled
	if err := s.orders.UpdateColumns(ctx, order, "order_status"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	cascaded, err := s.printJobs.CascadeStatusForOrder(ctx, order.ID, entity.JobStatusFailed,
		[]string{entity.JobStatusQueued, entity.JobStatusPreparing})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to cascade print jobs", errorbank.WithCause(err))
	}

	s.logger.Info("order cancelled",
		zap.Int64("external_order_id", p.ID),
		zap.Int64("jobs_failed", cascaded))
	s.publishEvent(ctx, order, EventJobsCancelled, nil)
	return cascaded, nil
}

func (s *Service) loadOrder(ctx context.Context, span trace.Span, externalOrderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByExternalID(ctx, externalOrderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound(fmt.Sprintf("order %d not found", externalOrderID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// Event types published to the print-jobs topic.
const (
	EventJobsQueued    = "printjobs.queued"
	EventJobsShipped   = "printjobs.shipped"
	EventJobsCancelled = "printjobs.cancelled"
)

// JobLifecycleEvent is emitted whenever ingestion creates or cascades jobs.
type JobLifecycleEvent struct {
	Type            string    `json:"type"`
	OrderID         int64     `json:"order_id"`
	ExternalOrderID int64     `json:"external_order_id"`
	JobIDs          []int64   `json:"job_ids,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (s *Service) publishEvent(ctx context.Context, order *entity.Order, eventType string, ids []int64) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := JobLifecycleEvent{
		Type:            eventType,
		OrderID:         order.ID,
		ExternalOrderID: order.ExternalOrderID,
		JobIDs:          ids,
		OccurredAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal job lifecycle event", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", order.ExternalOrderID))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish job lifecycle event", zap.Error(err))
	}
}

func jobIDs(jobs []*entity.PrintJob) []int64 {
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids
}

func defaultCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
