package printjob_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/database/databasetest"
	"github.com/printmill/printmill/internal/entity"
	designrepo "github.com/printmill/printmill/internal/repository/design"
	orderrepo "github.com/printmill/printmill/internal/repository/order"
	printjobrepo "github.com/printmill/printmill/internal/repository/printjob"
	productrepo "github.com/printmill/printmill/internal/repository/product"
	"github.com/printmill/printmill/internal/service/printfile"
	printjobsvc "github.com/printmill/printmill/internal/service/printjob"
	printjobtransport "github.com/printmill/printmill/internal/transport/http/printjob"
)

type fixture struct {
	e     *echo.Echo
	jobs  *printjobrepo.Repository
	jobID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	root := t.TempDir()
	cfg := config.Config{
		Storage: config.Storage{
			Root:          root,
			DesignDir:     "uploads/designs",
			PrintReadyDir: "print-ready",
			PublicBaseURL: "http://localhost:8080/files",
		},
	}

	conns := databasetest.New(t)
	orders := orderrepo.NewRepository(conns)
	designs := designrepo.NewRepository(conns)
	jobs := printjobrepo.NewRepository(conns)
	products := productrepo.NewRepository(conns)

	product := &entity.Product{Name: "Classic Tee", PrintAreaWidth: 12, PrintAreaHeight: 16, MinDPI: 150, IsActive: true}
	require.NoError(t, products.Create(ctx, product))

	sourcePath := filepath.Join(root, "uploads", "designs", "skyline.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(sourcePath), 0o755))
	require.NoError(t, os.WriteFile(sourcePath, []byte("png-bytes"), 0o644))

	design := &entity.Design{
		SessionID:        "sess-1",
		ProductID:        product.ID,
		OriginalFilename: "skyline.png",
		StoredFilename:   "skyline.png",
		FilePath:         sourcePath,
		Width:            2400,
		Height:           3200,
		DPI:              200,
		Status:           entity.DesignStatusProcessed,
	}
	require.NoError(t, designs.Create(ctx, design))

	order := &entity.Order{
		ExternalOrderID:   2002,
		ExternalOrderNum:  "2002",
		OrderStatus:       entity.OrderStatusPending,
		FulfillmentStatus: entity.FulfillmentUnfulfilled,
		Items: []*entity.OrderItem{{
			DesignID:           design.ID,
			ProductID:          product.ID,
			ExternalLineItemID: 1,
			Quantity:           1,
		}},
	}
	job := &entity.PrintJob{DesignID: design.ID, Status: entity.JobStatusQueued}
	require.NoError(t, orders.CreateWithJobs(ctx, order, []*entity.PrintJob{job}))

	svc := printjobsvc.NewService(printjobsvc.Params{
		Repository: jobs,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	files := printfile.NewService(printfile.Params{
		Repository: jobs,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})

	e := echo.New()
	printjobtransport.Register(e, printjobtransport.NewHandler(svc, files, cfg))

	return &fixture{e: e, jobs: jobs, jobID: job.ID}
}

func (f *fixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/print-jobs", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestPostUpdatesStatusAndAppendsNote(t *testing.T) {
	f := newFixture(t)

	rec := f.post(`{"job_id": 1, "status": "preparing", "notes": "loaded on press 3"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Print job updated successfully")

	job, err := f.jobs.GetByID(context.Background(), f.jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPreparing, job.Status)
	require.Len(t, job.Notes, 1)
	assert.Equal(t, "loaded on press 3", job.Notes[0].Note)
}

func TestPostDispatchesGenerateFileAction(t *testing.T) {
	f := newFixture(t)

	rec := f.post(`{"job_id": 1, "action": "generate_file"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Print-ready file generated successfully")

	job, err := f.jobs.GetByID(context.Background(), f.jobID)
	require.NoError(t, err)
	assert.NotEmpty(t, job.PrintFilePath)

	content, err := os.ReadFile(filepath.FromSlash(job.PrintFilePath))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))
}

func TestPostRequiresJobID(t *testing.T) {
	f := newFixture(t)

	rec := f.post(`{"status": "preparing"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/print-jobs?status=melting", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "allowed_statuses")
}

func TestDownloadWithoutGeneratedFileFails(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/print-jobs/1/file", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
