package printfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

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
)

type fixture struct {
	service *Service
	repo    *printjobrepo.Repository
	root    string
	jobID   int64
}

func newFixture(t *testing.T, designFile string) *fixture {
	t.Helper()
	ctx := context.Background()

	conns := databasetest.New(t)
	products := productrepo.NewRepository(conns)
	designs := designrepo.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)
	jobs := printjobrepo.NewRepository(conns)

	root := t.TempDir()

	product := &entity.Product{Name: "Poster", PrintAreaWidth: 18, PrintAreaHeight: 24, MinDPI: 150, IsActive: true}
	require.NoError(t, products.Create(ctx, product))

	design := &entity.Design{
		SessionID:        "sess-1",
		ProductID:        product.ID,
		OriginalFilename: "skyline.png",
		StoredFilename:   "abc.png",
		FilePath:         designFile,
		Status:           entity.DesignStatusProcessed,
	}
	require.NoError(t, designs.Create(ctx, design))

	order := &entity.Order{
		ExternalOrderID:   8001,
		ExternalOrderNum:  "2002",
		OrderStatus:       entity.OrderStatusPending,
		FulfillmentStatus: entity.FulfillmentUnfulfilled,
		Items: []*entity.OrderItem{{
			DesignID:  design.ID,
			ProductID: product.ID,
			Quantity:  1,
		}},
	}
	job := &entity.PrintJob{DesignID: design.ID, Status: entity.JobStatusQueued}
	require.NoError(t, orders.CreateWithJobs(ctx, order, []*entity.PrintJob{job}))

	svc := NewService(Params{
		Repository: jobs,
		Config: config.Config{Storage: config.Storage{
			Root:          root,
			PrintReadyDir: "print-ready",
			PublicBaseURL: "http://localhost:8080/files",
		}},
		Logger: zap.NewNop(),
	})

	return &fixture{service: svc, repo: jobs, root: root, jobID: job.ID}
}

func writeDesignFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc.png")
	require.NoError(t, os.WriteFile(path, []byte("fake-png-bytes"), 0o644))
	return path
}

func TestGenerateCopiesDesignAndRecordsPath(t *testing.T) {
	f := newFixture(t, writeDesignFile(t))
	ctx := context.Background()

	res, err := f.service.Generate(ctx, f.jobID)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Job.PrintFilePath)
	assert.Contains(t, res.Job.PrintFilePath, "print-ready/")
	assert.Contains(t, res.Job.PrintFilePath, "job_")
	assert.Contains(t, res.PrintFileURL, "http://localhost:8080/files/print-ready/")

	data, err := os.ReadFile(filepath.FromSlash(res.Job.PrintFilePath))
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))
}

func TestGenerateIsNotIdempotent(t *testing.T) {
	f := newFixture(t, writeDesignFile(t))
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return t0 }
	first, err := f.service.Generate(ctx, f.jobID)
	require.NoError(t, err)

	f.service.now = func() time.Time { return t0.Add(time.Second) }
	second, err := f.service.Generate(ctx, f.jobID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Job.PrintFilePath, second.Job.PrintFilePath)

	// Both generated files remain on disk.
	_, err = os.Stat(filepath.FromSlash(first.Job.PrintFilePath))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.FromSlash(second.Job.PrintFilePath))
	assert.NoError(t, err)
}

func TestGenerateResolvesRootRelativePath(t *testing.T) {
	// Uploads store root-relative paths like /uploads/designs/abc.png; the
	// file lives under the storage root on disk.
	f := newFixture(t, "/uploads/designs/abc.png")
	ctx := context.Background()

	onDisk := filepath.Join(f.root, "uploads", "designs", "abc.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(onDisk), 0o755))
	require.NoError(t, os.WriteFile(onDisk, []byte("fake-png-bytes"), 0o644))

	res, err := f.service.Generate(ctx, f.jobID)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.FromSlash(res.Job.PrintFilePath))
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))
}

func TestGenerateUnknownJob(t *testing.T) {
	f := newFixture(t, writeDesignFile(t))

	_, err := f.service.Generate(context.Background(), 123456)
	assert.Error(t, err)
}

func TestGenerateMissingDesignFile(t *testing.T) {
	f := newFixture(t, filepath.Join(t.TempDir(), "gone.png"))

	_, err := f.service.Generate(context.Background(), f.jobID)
	assert.Error(t, err)
}

func TestOpenStreamsGeneratedFile(t *testing.T) {
	f := newFixture(t, writeDesignFile(t))
	ctx := context.Background()

	_, err := f.service.Generate(ctx, f.jobID)
	require.NoError(t, err)

	rc, name, size, err := f.service.Open(ctx, f.jobID)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "order_2002_job_"+strconv.FormatInt(f.jobID, 10)+"_skyline.png", name)
	assert.Equal(t, int64(len("fake-png-bytes")), size)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))
}

func TestOpenBeforeGenerate(t *testing.T) {
	f := newFixture(t, writeDesignFile(t))

	_, _, _, err := f.service.Open(context.Background(), f.jobID)
	assert.Error(t, err)
}
