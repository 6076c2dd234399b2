package printjob

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/messaging"
	"github.com/printmill/printmill/internal/service/ingest"
	"github.com/printmill/printmill/internal/service/printfile"
	printjobsvc "github.com/printmill/printmill/internal/service/printjob"
	"github.com/printmill/printmill/internal/worker"
)

var workerTracer = otel.Tracer("github.com/printmill/printmill/worker/printjob")

// Module registers print-job worker handlers.
var Module = fx.Module("worker_printjob",
	fx.Provide(
		fx.Annotate(
			NewJobsQueuedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewJobsCancelledHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewStatusChangedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewJobsQueuedHandler pre-generates print-ready files for freshly queued
// jobs so operators find them waiting. Per-job failures are logged and
// skipped; a job whose design file is missing stays on its uploaded source
// until an operator regenerates it by hand.
func NewJobsQueuedHandler(logger *zap.Logger, files *printfile.Service) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.printjobs.queued", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ingest.JobLifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode job lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		for _, jobID := range event.JobIDs {
			if _, err := files.Generate(ctx, jobID); err != nil {
				logger.Warn("print file pre-generation failed",
					zap.Int64("job_id", jobID),
					zap.Int64("order_id", event.OrderID),
					zap.Error(err),
				)
				continue
			}
			logger.Info("print file pre-generated",
				zap.Int64("job_id", jobID),
				zap.Int64("order_id", event.OrderID),
			)
		}

		return nil
	}

	return worker.HandlerRegistration{
		EventType: ingest.EventJobsQueued,
		Handler:   handler,
	}
}

// NewJobsCancelledHandler logs cancellation cascades for the audit trail.
func NewJobsCancelledHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.printjobs.cancelled", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ingest.JobLifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode job lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("order cancellation processed",
			zap.Int64("order_id", event.OrderID),
			zap.Int64("external_order_id", event.ExternalOrderID),
		)

		return nil
	}

	return worker.HandlerRegistration{
		EventType: ingest.EventJobsCancelled,
		Handler:   handler,
	}
}

// NewStatusChangedHandler logs operator-driven status transitions.
func NewStatusChangedHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.printjobs.statusChanged", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event printjobsvc.StatusChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode status change event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("print job status changed",
			zap.Int64("job_id", event.JobID),
			zap.String("from", event.From),
			zap.String("to", event.To),
		)

		return nil
	}

	return worker.HandlerRegistration{
		EventType: printjobsvc.EventStatusChanged,
		Handler:   handler,
	}
}
