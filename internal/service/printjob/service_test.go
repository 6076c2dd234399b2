package printjob_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/cache"
	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/database/databasetest"
	"github.com/printmill/printmill/internal/entity"
	designrepo "github.com/printmill/printmill/internal/repository/design"
	orderrepo "github.com/printmill/printmill/internal/repository/order"
	printjobrepo "github.com/printmill/printmill/internal/repository/printjob"
	productrepo "github.com/printmill/printmill/internal/repository/product"
	"github.com/printmill/printmill/internal/service/printjob"
)

// mapStore is a trivial in-memory cache.Store for tests.
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fixture struct {
	service *printjob.Service
	repo    *printjobrepo.Repository
	store   *mapStore
	jobID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conns := databasetest.New(t)
	products := productrepo.NewRepository(conns)
	designs := designrepo.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)
	jobs := printjobrepo.NewRepository(conns)

	product := &entity.Product{Name: "Mug", PrintAreaWidth: 8, PrintAreaHeight: 4, MinDPI: 150, IsActive: true}
	require.NoError(t, products.Create(ctx, product))

	design := &entity.Design{
		SessionID:        "sess-1",
		ProductID:        product.ID,
		OriginalFilename: "art.png",
		StoredFilename:   "abc.png",
		FilePath:         "storage/uploads/designs/abc.png",
		Status:           entity.DesignStatusProcessed,
	}
	require.NoError(t, designs.Create(ctx, design))

	order := &entity.Order{
		ExternalOrderID:   7001,
		ExternalOrderNum:  "1001",
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

	store := newMapStore()
	svc := printjob.NewService(printjob.Params{
		Repository: jobs,
		Cache:      store,
		Config:     config.Config{},
		Logger:     zap.NewNop(),
	})

	return &fixture{service: svc, repo: jobs, store: store, jobID: job.ID}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), printjob.UpdateRequest{
		JobID:  f.jobID,
		Status: "teleported",
	})
	require.Error(t, err)

	// Nothing was written.
	job, err := f.repo.GetByID(context.Background(), f.jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, job.Status)
}

func TestUpdateRequiresStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), printjob.UpdateRequest{JobID: f.jobID})
	assert.Error(t, err)
}

func TestUpdateUnknownJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), printjob.UpdateRequest{
		JobID:  99999,
		Status: entity.JobStatusPrinting,
	})
	assert.Error(t, err)
}

func TestUpdateMovesStatusAndAppendsNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.service.Update(ctx, printjob.UpdateRequest{
		JobID:  f.jobID,
		Status: entity.JobStatusPreparing,
		Note:   "plates mounted",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPreparing, updated.Status)
	require.Len(t, updated.Notes, 1)
	assert.Equal(t, "plates mounted", updated.Notes[0].Note)

	// A second note accumulates instead of replacing.
	updated, err = f.service.Update(ctx, printjob.UpdateRequest{
		JobID:  f.jobID,
		Status: entity.JobStatusPrinting,
		Note:   "on press",
	})
	require.NoError(t, err)
	require.Len(t, updated.Notes, 2)
	assert.Equal(t, "plates mounted", updated.Notes[0].Note)
	assert.Equal(t, "on press", updated.Notes[1].Note)
}

func TestUpdateOverwritesPrintFilePath(t *testing.T) {
	f := newFixture(t)

	updated, err := f.service.Update(context.Background(), printjob.UpdateRequest{
		JobID:         f.jobID,
		Status:        entity.JobStatusPrinted,
		PrintFilePath: "storage/print-ready/job_1.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "storage/print-ready/job_1.png", updated.PrintFilePath)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Get(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, first.Status)

	_, err = f.service.Update(ctx, printjob.UpdateRequest{
		JobID:  f.jobID,
		Status: entity.JobStatusPreparing,
	})
	require.NoError(t, err)

	second, err := f.service.Get(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPreparing, second.Status)
}

func TestListFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base, err := f.repo.GetByID(ctx, f.jobID)
	require.NoError(t, err)

	urgent := &entity.PrintJob{
		OrderItemID: base.OrderItemID,
		DesignID:    base.DesignID,
		Status:      entity.JobStatusQueued,
		Priority:    10,
		CreatedAt:   time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, f.repo.Create(ctx, urgent))

	jobs, err := f.service.List(ctx, entity.JobStatusQueued, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, urgent.ID, jobs[0].ID, "higher priority first")

	none, err := f.service.List(ctx, entity.JobStatusShipped, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.service.List(ctx, "bogus", 0)
	assert.Error(t, err)
}
