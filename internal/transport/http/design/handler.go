package design

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/dto"
	"github.com/printmill/printmill/internal/presentation/http/response"
	service "github.com/printmill/printmill/internal/service/design"
	"github.com/printmill/printmill/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/printmill/printmill/transport/http/design")

// HeaderSessionID identifies the uploading browser session.
const HeaderSessionID = "X-Session-ID"

// Handler exposes design endpoints over HTTP.
type Handler struct {
	svc     *service.Service
	storage config.Storage
}

// NewHandler constructs a design Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, storage: cfg.Storage}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/designs")
	g.POST("", h.upload)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) upload(c echo.Context) error {
	b := response.New(c)

	sessionID := sessionID(c)

	fileHeader, err := c.FormFile("design_file")
	if err != nil {
		return b.WithError(errorbank.BadRequest("no file uploaded")).Build()
	}
	productID, err := strconv.ParseInt(c.FormValue("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		return b.WithError(errorbank.BadRequest("product id is required")).Build()
	}

	var placement *service.Placement
	if raw := c.FormValue("design_config"); raw != "" {
		placement = new(service.Placement)
		if err := json.Unmarshal([]byte(raw), placement); err != nil {
			return b.WithError(errorbank.BadRequest("invalid design config", errorbank.WithCause(err))).Build()
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return b.WithError(errorbank.Internal("failed to open upload", errorbank.WithCause(err))).Build()
	}
	defer src.Close()

	ctx, span := httpTracer.Start(c.Request().Context(), "designs.upload",
		trace.WithAttributes(
			attribute.String("design.session_id", sessionID),
			attribute.Int64("product.id", productID),
		))
	defer span.End()

	design, err := h.svc.Upload(ctx, service.UploadInput{
		SessionID:        sessionID,
		ProductID:        productID,
		OriginalFilename: fileHeader.Filename,
		Size:             fileHeader.Size,
		Content:          src,
		Placement:        placement,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).
		WithMessage("Design uploaded successfully").
		WithData(map[string]any{"design": dto.NewDesignResponse(design, h.storage)}).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	sessionID := sessionID(c)
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "designs.getByID",
		trace.WithAttributes(attribute.Int64("design.id", id)))
	defer span.End()

	design, err := h.svc.Get(ctx, id, sessionID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Design retrieved successfully").
		WithData(map[string]any{"design": dto.NewDesignResponse(design, h.storage)}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	sessionID := sessionID(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "designs.list",
		trace.WithAttributes(attribute.String("design.session_id", sessionID)))
	defer span.End()

	designs, err := h.svc.ListBySession(ctx, sessionID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Designs retrieved successfully").
		WithData(dto.NewDesignListResponse(designs, h.storage)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	sessionID := sessionID(c)
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		DesignConfig *service.Placement `json:"design_config"`
		Status       string             `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "designs.update",
		trace.WithAttributes(attribute.Int64("design.id", id)))
	defer span.End()

	design, err := h.svc.Update(ctx, service.UpdateRequest{
		ID:        id,
		SessionID: sessionID,
		Placement: payload.DesignConfig,
		Status:    payload.Status,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Design updated successfully").
		WithData(map[string]any{"design": dto.NewDesignResponse(design, h.storage)}).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	sessionID := sessionID(c)
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	hard, _ := strconv.ParseBool(c.QueryParam("hard"))

	ctx, span := httpTracer.Start(c.Request().Context(), "designs.delete",
		trace.WithAttributes(attribute.Int64("design.id", id), attribute.Bool("design.hard", hard)))
	defer span.End()

	if err := h.svc.Delete(ctx, id, sessionID, hard); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Design deleted successfully").Build()
}

// sessionID reads the caller's session, minting one when absent. The minted
// id is echoed back so the client can carry it on subsequent requests.
func sessionID(c echo.Context) string {
	id := c.Request().Header.Get(HeaderSessionID)
	if id == "" {
		id = uuid.New().String()
	}
	c.Response().Header().Set(HeaderSessionID, id)
	return id
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid design id")
	}
	return id, nil
}
