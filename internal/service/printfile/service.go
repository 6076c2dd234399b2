// Package printfile materializes print-ready files for downstream production
// partners.
package printfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	repo "github.com/printmill/printmill/internal/repository/printjob"
	"github.com/printmill/printmill/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/printmill/printmill/service/printfile")

// Result is a freshly generated print file together with its reloaded job.
type Result struct {
	Job          *entity.PrintJob
	PrintFileURL string
}

// Service copies design sources into the print-ready directory and records
// the resulting path on the job.
type Service struct {
	repo    *repo.Repository
	storage config.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:    p.Repository,
		storage: p.Config.Storage,
		logger:  p.Logger,
		now:     time.Now,
	}
}

// Generate materializes a print-ready file for the job: the design source is
// copied into the print-ready directory under a timestamped name and the
// job's print_file_path is updated. Generation is deliberately not
// idempotent; each call produces a fresh file so operators can re-cut a
// damaged one.
func (s *Service) Generate(ctx context.Context, jobID int64) (*Result, error) {
	if jobID <= 0 {
		return nil, errorbank.BadRequest("job id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "PrintFileService.Generate",
		trace.WithAttributes(attribute.Int64("printjob.id", jobID)))
	defer span.End()

	job, err := s.repo.GetByID(ctx, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound(fmt.Sprintf("print job %d not found", jobID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load print job", errorbank.WithCause(err))
	}

	if job.Design == nil || job.Design.FilePath == "" {
		return nil, errorbank.Unprocessable(fmt.Sprintf("design file path is empty for job %d", jobID))
	}

	sourcePath := s.resolveSourcePath(job.Design.FilePath)
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, errorbank.Unprocessable(fmt.Sprintf("design file not found for job %d", jobID),
			errorbank.WithDetail("looked_for", sourcePath))
	}

	destDir := s.storage.PrintReadyPath()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return nil, errorbank.Internal("failed to create print-ready directory", errorbank.WithCause(err))
	}

	ext := strings.TrimPrefix(filepath.Ext(sourcePath), ".")
	if ext == "" {
		ext = "png"
	}
	destName := fmt.Sprintf("job_%d_design_%d_%s.%s",
		job.ID, job.DesignID, s.now().Format("20060102_150405"), ext)
	destPath := filepath.Join(destDir, destName)

	if err := copyFile(sourcePath, destPath); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return nil, errorbank.Internal("failed to copy design file to print-ready location", errorbank.WithCause(err))
	}

	job.PrintFilePath = filepath.ToSlash(destPath)
	if err := s.repo.UpdateColumns(ctx, job, "print_file_path"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to record print file path", errorbank.WithCause(err))
	}

	reloaded, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to reload print job", errorbank.WithCause(err))
	}

	s.logger.Info("print file generated",
		zap.Int64("job_id", job.ID),
		zap.String("path", reloaded.PrintFilePath))
	span.SetAttributes(attribute.String("printfile.path", reloaded.PrintFilePath))

	return &Result{
		Job:          reloaded,
		PrintFileURL: s.storage.PublicURL(reloaded.PrintFilePath),
	}, nil
}

// Open returns a reader over the job's generated print file plus a suggested
// download filename. The caller closes the reader.
func (s *Service) Open(ctx context.Context, jobID int64) (io.ReadCloser, string, int64, error) {
	ctx, span := serviceTracer.Start(ctx, "PrintFileService.Open",
		trace.WithAttributes(attribute.Int64("printjob.id", jobID)))
	defer span.End()

	job, err := s.repo.GetByID(ctx, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, "", 0, errorbank.NotFound("print job not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, "", 0, errorbank.Internal("failed to load print job", errorbank.WithCause(err))
	}

	if job.PrintFilePath == "" {
		return nil, "", 0, errorbank.NotFound("print file not found for this job")
	}
	path := filepath.FromSlash(job.PrintFilePath)
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", 0, errorbank.NotFound("print file not found for this job")
	}

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return nil, "", 0, errorbank.Internal("failed to open print file", errorbank.WithCause(err))
	}

	downloadName := fmt.Sprintf("job_%d%s", job.ID, filepath.Ext(path))
	if job.OrderItem != nil && job.OrderItem.Order != nil && job.Design != nil {
		downloadName = fmt.Sprintf("order_%s_job_%d_%s",
			job.OrderItem.Order.ExternalOrderNum, job.ID, job.Design.OriginalFilename)
	}
	return f, downloadName, info.Size(), nil
}

// resolveSourcePath turns a stored design path into a filesystem path.
// Stored paths are slash-separated; separators are normalized either way.
// Leading-slash paths are root-relative in the upload contract, so when the
// path does not exist verbatim it is resolved against the storage root.
func (s *Service) resolveSourcePath(stored string) string {
	normalized := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(stored, "\\", "/")))
	if _, err := os.Stat(normalized); err == nil {
		return normalized
	}
	if strings.HasPrefix(stored, "/") {
		rooted := filepath.Join(s.storage.Root, normalized)
		if _, err := os.Stat(rooted); err == nil {
			return rooted
		}
	}
	return normalized
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
