package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/entity"
	"github.com/printmill/printmill/internal/presentation/http/response"
	"github.com/printmill/printmill/internal/repository/webhooklog"
	"github.com/printmill/printmill/internal/service/ingest"
	"github.com/printmill/printmill/internal/webhook"
	"github.com/printmill/printmill/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/printmill/printmill/transport/http/webhook")

// Commerce-platform delivery headers.
const (
	HeaderSignature  = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
)

// Topics dispatched by this handler.
const (
	TopicOrderCreate    = "orders/create"
	TopicOrderUpdated   = "orders/updated"
	TopicOrderFulfilled = "orders/fulfilled"
	TopicOrderCancelled = "orders/cancelled"
)

// Handler receives commerce-platform webhook deliveries.
type Handler struct {
	auth   *webhook.Authenticator
	ingest *ingest.Service
	logs   *webhooklog.Repository
	logger *zap.Logger
}

// NewHandler constructs a webhook Handler.
func NewHandler(auth *webhook.Authenticator, svc *ingest.Service, logs *webhooklog.Repository, logger *zap.Logger) *Handler {
	return &Handler{auth: auth, ingest: svc, logs: logs, logger: logger}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/webhooks/orders", h.receive)
}

// receive authenticates, audits, and dispatches one delivery. Verification
// happens before anything is written: a forged request leaves no trace in the
// audit log.
func (h *Handler) receive(c echo.Context) error {
	b := response.New(c)
	topic := c.Request().Header.Get(HeaderTopic)

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("failed to read request body", errorbank.WithCause(err))).Build()
	}

	h.logger.Info("webhook received",
		zap.String("topic", topic),
		zap.String("shop", c.Request().Header.Get(HeaderShopDomain)),
		zap.Int("size", len(rawBody)))

	if !h.auth.Verify(rawBody, c.Request().Header.Get(HeaderSignature)) {
		h.logger.Error("webhook verification failed", zap.String("topic", topic))
		return b.WithError(errorbank.Unauthorized("webhook verification failed")).Build()
	}

	var payload ingest.OrderPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid JSON", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "webhooks.receive",
		trace.WithAttributes(
			attribute.String("webhook.topic", topic),
			attribute.Int64("order.external_id", payload.ID),
		))
	defer span.End()

	// Audit failures must not reject the delivery.
	if err := h.logs.Record(ctx, &entity.WebhookLog{
		Topic:           topic,
		ExternalOrderID: payload.ID,
		Payload:         string(rawBody),
		Status:          entity.WebhookStatusReceived,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		h.logger.Error("failed to log webhook to database", zap.Error(err))
	}

	var dispatchErr error
	switch topic {
	case TopicOrderCreate:
		_, dispatchErr = h.ingest.OrderCreate(ctx, payload)
	case TopicOrderUpdated:
		dispatchErr = h.ingest.OrderUpdate(ctx, payload)
	case TopicOrderFulfilled:
		_, dispatchErr = h.ingest.OrderFulfilled(ctx, payload)
	case TopicOrderCancelled:
		_, dispatchErr = h.ingest.OrderCancelled(ctx, payload)
	default:
		h.logger.Info("unhandled webhook topic", zap.String("topic", topic))
		return b.WithMessage("Webhook received but not processed").Build()
	}

	if dispatchErr != nil {
		h.markLog(ctx, topic, payload.ID, entity.WebhookStatusFailed, dispatchErr.Error())
		h.logger.Error("webhook processing error",
			zap.String("topic", topic), zap.Error(dispatchErr))
		span.RecordError(dispatchErr)
		return b.WithStatus(http.StatusInternalServerError).
			WithError(errorbank.Internal("failed to process webhook")).Build()
	}

	h.markLog(ctx, topic, payload.ID, entity.WebhookStatusProcessed, "")
	return b.WithMessage("Webhook processed successfully").Build()
}

func (h *Handler) markLog(ctx context.Context, topic string, externalOrderID int64, status, errMsg string) {
	if err := h.logs.UpdateLatestStatus(ctx, topic, externalOrderID, status, errMsg); err != nil {
		h.logger.Error("failed to update webhook status", zap.Error(err))
	}
}
