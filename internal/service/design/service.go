// Package design manages uploaded artwork: validation against product print
// requirements, storage, previews, and session-scoped access.
package design

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register decoders for the upload formats we accept.
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/cache"
	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	"github.com/printmill/printmill/internal/printspec"
	designrepo "github.com/printmill/printmill/internal/repository/design"
	productrepo "github.com/printmill/printmill/internal/repository/product"
	"github.com/printmill/printmill/internal/thumbnail"
	"github.com/printmill/printmill/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/printmill/printmill/service/design")

// Placement describes how the artwork sits on the product print area.
type Placement struct {
	Position string  `json:"position"`
	Scale    float64 `json:"scale"`
	Rotation int     `json:"rotation"`
	OffsetX  int     `json:"offset_x"`
	OffsetY  int     `json:"offset_y"`
}

// DefaultPlacement centers the artwork at natural scale.
func DefaultPlacement() Placement {
	return Placement{Position: "center", Scale: 1.0}
}

// UploadInput carries one multipart design upload.
type UploadInput struct {
	SessionID        string
	ProductID        int64
	OriginalFilename string
	Size             int64
	Content          io.Reader
	Placement        *Placement
}

// Service implements the design lifecycle.
type Service struct {
	designs     *designrepo.Repository
	products    *productrepo.Repository
	storage     config.Storage
	upload      config.Upload
	thumbnailer thumbnail.Thumbnailer
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Designs     *designrepo.Repository
	Products    *productrepo.Repository
	Config      config.Config
	Thumbnailer thumbnail.Thumbnailer
	Cache       cache.Store
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		designs:     p.Designs,
		products:    p.Products,
		storage:     p.Config.Storage,
		upload:      p.Config.Upload,
		thumbnailer: p.Thumbnailer,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		logger:      p.Logger,
	}
}

// Upload validates and stores one design: extension and size checks, image
// decoding, product print-requirement validation, then file write, preview
// generation, and the database row. Files written before a failure are
// removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*entity.Design, error) {
	if in.SessionID == "" {
		return nil, errorbank.BadRequest("session id is required")
	}
	if in.ProductID == 0 {
		return nil, errorbank.BadRequest("product id is required")
	}
	if in.Content == nil {
		return nil, errorbank.BadRequest("no file uploaded")
	}
	ctx, span := serviceTracer.Start(ctx, "DesignService.Upload",
		trace.WithAttributes(
			attribute.String("design.session_id", in.SessionID),
			attribute.Int64("product.id", in.ProductID),
		))
	defer span.End()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.OriginalFilename), "."))
	if !s.extensionAllowed(ext) {
		return nil, errorbank.BadRequest("file validation failed",
			errorbank.WithDetail("allowed_extensions", s.upload.AllowedExtensions))
	}
	if in.Size > s.upload.MaxFileBytes {
		return nil, errorbank.BadRequest("file validation failed",
			errorbank.WithDetail("max_file_bytes", s.upload.MaxFileBytes))
	}

	// Read the upload once, bounded one byte past the limit so oversized
	// streams with an unreliable declared size still get rejected.
	content, err := io.ReadAll(io.LimitReader(in.Content, s.upload.MaxFileBytes+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, errorbank.Internal("failed to read upload", errorbank.WithCause(err))
	}
	if int64(len(content)) > s.upload.MaxFileBytes {
		return nil, errorbank.BadRequest("file validation failed",
			errorbank.WithDetail("max_file_bytes", s.upload.MaxFileBytes))
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, errorbank.BadRequest("file is not a valid image")
	}

	product, err := s.products.GetByID(ctx, in.ProductID)
	if errors.Is(err, productrepo.ErrNotFound) {
		return nil, errorbank.NotFound("product not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}

	check := printspec.CheckPrintRequirements(
		float64(imgCfg.Width), float64(imgCfg.Height),
		product.PrintAreaWidth, product.PrintAreaHeight, product.MinDPI)
	if !check.Valid {
		return nil, errorbank.BadRequest("image resolution too low for print quality",
			errorbank.WithDetails(map[string]any{
				"uploaded": check.Uploaded,
				"required": check.Required,
				"message": fmt.Sprintf(
					"Your image is %.0fx%.0f pixels (%.0f DPI). For best print quality, we need at least %.0fx%.0f pixels (%.0f DPI).",
					check.Uploaded.Width, check.Uploaded.Height, check.Uploaded.DPI,
					check.Required.Width, check.Required.Height, check.Required.DPI),
			}))
	}

	storedFilename := uuid.New().String() + "." + ext
	designDir := s.storage.DesignPath()
	previewDir := s.storage.PreviewPath()
	filePath := filepath.Join(designDir, storedFilename)
	previewPath := filepath.Join(previewDir, "thumb_"+storedFilename)

	for _, dir := range []string{designDir, previewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage error")
			return nil, errorbank.Internal("failed to create storage directory", errorbank.WithCause(err))
		}
	}

	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return nil, errorbank.Internal("failed to store uploaded file", errorbank.WithCause(err))
	}

	// Preview generation failure falls back to the original file; a missing
	// thumbnail must never block an otherwise valid upload.
	if s.thumbnailer != nil && s.thumbnailer.Available() {
		if err := s.thumbnailer.Generate(filePath, previewPath); err != nil {
			s.logger.Error("thumbnail generation failed, using original as preview",
				zap.String("file", filePath), zap.Error(err))
			previewPath = filePath
		}
	} else {
		previewPath = filePath
	}

	placement := DefaultPlacement()
	if in.Placement != nil {
		placement = *in.Placement
	}
	placementJSON, err := json.Marshal(placement)
	if err != nil {
		s.cleanupFiles(filePath, previewPath)
		return nil, errorbank.Internal("failed to encode design config", errorbank.WithCause(err))
	}

	design := &entity.Design{
		SessionID:        in.SessionID,
		ProductID:        product.ID,
		OriginalFilename: in.OriginalFilename,
		StoredFilename:   storedFilename,
		FilePath:         filepath.ToSlash(filePath),
		PreviewPath:      filepath.ToSlash(previewPath),
		FileSize:         int64(len(content)),
		MimeType:         "image/" + format,
		Width:            imgCfg.Width,
		Height:           imgCfg.Height,
		DPI:              int(check.Uploaded.DPI),
		DesignConfig:     string(placementJSON),
		Status:           entity.DesignStatusProcessed,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	if err := s.designs.Create(ctx, design); err != nil {
		s.cleanupFiles(filePath, previewPath)
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to save design", errorbank.WithCause(err))
	}

	s.logger.Info("design uploaded",
		zap.Int64("design_id", design.ID),
		zap.String("session_id", in.SessionID),
		zap.Int64("product_id", product.ID),
		zap.String("filename", in.OriginalFilename))
	return design, nil
}

// Get loads a design owned by the session. Other sessions get a forbidden
// error; deleted designs behave as missing.
func (s *Service) Get(ctx context.Context, id int64, sessionID string) (*entity.Design, error) {
	ctx, span := serviceTracer.Start(ctx, "DesignService.Get",
		trace.WithAttributes(attribute.Int64("design.id", id)))
	defer span.End()

	design, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if design.SessionID != sessionID {
		return nil, errorbank.Forbidden("access denied")
	}
	return design, nil
}

// ListBySession returns the session's designs newest-first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*entity.Design, error) {
	ctx, span := serviceTracer.Start(ctx, "DesignService.ListBySession",
		trace.WithAttributes(attribute.String("design.session_id", sessionID)))
	defer span.End()

	designs, err := s.designs.ListBySession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list designs", errorbank.WithCause(err))
	}
	return designs, nil
}

// UpdateRequest mutates a design's placement or status.
type UpdateRequest struct {
	ID        int64
	SessionID string
	Placement *Placement
	Status    string
}

// Update writes placement and status changes for a session-owned design.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*entity.Design, error) {
	if req.ID == 0 {
		return nil, errorbank.BadRequest("design id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "DesignService.Update",
		trace.WithAttributes(attribute.Int64("design.id", req.ID)))
	defer span.End()

	design, err := s.load(ctx, span, req.ID)
	if err != nil {
		return nil, err
	}
	if design.SessionID != req.SessionID {
		return nil, errorbank.Forbidden("access denied")
	}

	var columns []string
	if req.Placement != nil {
		placementJSON, err := json.Marshal(req.Placement)
		if err != nil {
			return nil, errorbank.Internal("failed to encode design config", errorbank.WithCause(err))
		}
		design.DesignConfig = string(placementJSON)
		columns = append(columns, "design_config")
	}
	if req.Status != "" {
		design.Status = req.Status
		columns = append(columns, "status")
	}
	if len(columns) == 0 {
		return design, nil
	}

	if err := s.designs.UpdateColumns(ctx, design, columns...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update design", errorbank.WithCause(err))
	}

	s.invalidateCache(ctx, design.ID)
	s.logger.Info("design updated", zap.Int64("design_id", design.ID))
	return design, nil
}

// Delete removes a session-owned design. Soft deletion marks the row; hard
// deletion removes the row and its files.
func (s *Service) Delete(ctx context.Context, id int64, sessionID string, hard bool) error {
	if id == 0 {
		return errorbank.BadRequest("design id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "DesignService.Delete",
		trace.WithAttributes(attribute.Int64("design.id", id), attribute.Bool("design.hard", hard)))
	defer span.End()

	design, err := s.load(ctx, span, id)
	if err != nil {
		return err
	}
	if design.SessionID != sessionID {
		return errorbank.Forbidden("access denied")
	}

	if !hard {
		design.Status = entity.DesignStatusDeleted
		if err := s.designs.UpdateColumns(ctx, design, "status"); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return errorbank.Internal("failed to delete design", errorbank.WithCause(err))
		}
		s.invalidateCache(ctx, id)
		s.logger.Info("design soft-deleted", zap.Int64("design_id", id))
		return nil
	}

	if err := s.designs.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete design", errorbank.WithCause(err))
	}
	s.invalidateCache(ctx, id)
	s.cleanupFiles(filepath.FromSlash(design.FilePath), filepath.FromSlash(design.PreviewPath))
	s.logger.Info("design hard-deleted", zap.Int64("design_id", id))
	return nil
}

// CleanupOld hard-deletes designs older than maxAge that no order ever
// consumed. Returns how many were removed.
func (s *Service) CleanupOld(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "DesignService.CleanupOld")
	defer span.End()

	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := s.designs.ListOlderThan(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to list stale designs", errorbank.WithCause(err))
	}

	removed := 0
	for _, design := range stale {
		if err := s.designs.Delete(ctx, design.ID); err != nil {
			s.logger.Warn("stale design cleanup failed",
				zap.Int64("design_id", design.ID), zap.Error(err))
			continue
		}
		s.invalidateCache(ctx, design.ID)
		s.cleanupFiles(filepath.FromSlash(design.FilePath), filepath.FromSlash(design.PreviewPath))
		removed++
	}

	s.logger.Info("stale design cleanup finished",
		zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Design, error) {
	if design, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		if design.Status == entity.DesignStatusDeleted {
			return nil, errorbank.NotFound("design not found")
		}
		return design, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("design cache read failed", zap.Int64("design_id", id), zap.Error(err))
	}

	design, err := s.designs.GetByID(ctx, id)
	if errors.Is(err, designrepo.ErrNotFound) {
		return nil, errorbank.NotFound("design not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load design", errorbank.WithCause(err))
	}
	if design.Status == entity.DesignStatusDeleted {
		return nil, errorbank.NotFound("design not found")
	}
	if err := s.storeInCache(ctx, design); err != nil {
		s.logger.Warn("design cache write failed", zap.Int64("design_id", id), zap.Error(err))
	}
	return design, nil
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("designs:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Design, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	design := new(entity.Design)
	if err := json.Unmarshal(raw, design); err != nil {
		return nil, cache.ErrCacheMiss
	}
	return design, nil
}

func (s *Service) storeInCache(ctx context.Context, design *entity.Design) error {
	if s.cache == nil {
		return nil
	}
	raw, err := json.Marshal(design)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(design.ID), raw, s.cacheTTL)
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("design cache invalidation failed", zap.Int64("design_id", id), zap.Error(err))
	}
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.upload.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *Service) cleanupFiles(paths ...string) {
	seen := map[string]bool{}
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("file cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
}
