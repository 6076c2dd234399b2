package printjob

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/dto"
	"github.com/printmill/printmill/internal/presentation/http/response"
	"github.com/printmill/printmill/internal/service/printfile"
	service "github.com/printmill/printmill/internal/service/printjob"
	"github.com/printmill/printmill/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/printmill/printmill/transport/http/printjob")

// Handler exposes print-job endpoints over HTTP.
type Handler struct {
	svc     *service.Service
	files   *printfile.Service
	storage config.Storage
}

// NewHandler constructs a print-job Handler.
func NewHandler(svc *service.Service, files *printfile.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, files: files, storage: cfg.Storage}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/print-jobs")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("", h.post)
	g.GET("/:id/file", h.downloadFile)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	status := c.QueryParam("status")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid limit", errorbank.WithCause(err))).Build()
		}
		limit = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "printjobs.list",
		trace.WithAttributes(attribute.String("printjob.filter_status", status)))
	defer span.End()

	jobs, err := h.svc.List(ctx, status, limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Print jobs retrieved successfully").
		WithData(dto.NewPrintJobListResponse(jobs, h.storage)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "printjobs.getByID",
		trace.WithAttributes(attribute.Int64("printjob.id", id)))
	defer span.End()

	job, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPrintJobResponse(job, h.storage)).Build()
}

// post dispatches mutations: a "generate_file" action materializes the
// print-ready file, anything else is a state-machine update.
func (h *Handler) post(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		JobID         int64  `json:"job_id"`
		Action        string `json:"action"`
		Status        string `json:"status"`
		PrintFilePath string `json:"print_file_path"`
		Notes         string `json:"notes"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.JobID <= 0 {
		return b.WithError(errorbank.BadRequest("job id is required")).Build()
	}

	if payload.Action == "generate_file" {
		return h.generateFile(c, payload.JobID)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "printjobs.update",
		trace.WithAttributes(
			attribute.Int64("printjob.id", payload.JobID),
			attribute.String("printjob.status", payload.Status),
		))
	defer span.End()

	job, err := h.svc.Update(ctx, service.UpdateRequest{
		JobID:         payload.JobID,
		Status:        payload.Status,
		PrintFilePath: payload.PrintFilePath,
		Note:          payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Print job updated successfully").
		WithData(dto.NewPrintJobResponse(job, h.storage)).Build()
}

func (h *Handler) generateFile(c echo.Context, id int64) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "printjobs.generateFile",
		trace.WithAttributes(attribute.Int64("printjob.id", id)))
	defer span.End()

	res, err := h.files.Generate(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	job := dto.NewPrintJobResponse(res.Job, h.storage)
	job.PrintFileURL = res.PrintFileURL
	return b.WithMessage("Print-ready file generated successfully").WithData(job).Build()
}

func (h *Handler) downloadFile(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "printjobs.downloadFile",
		trace.WithAttributes(attribute.Int64("printjob.id", id)))
	defer span.End()

	rc, name, size, err := h.files.Open(ctx, id)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid job id")
	}
	return id, nil
}
