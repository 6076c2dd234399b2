package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/database/databasetest"
	"github.com/printmill/printmill/internal/entity"
	orderrepo "github.com/printmill/printmill/internal/repository/order"
)

func newOrder(externalID int64) (*entity.Order, []*entity.PrintJob) {
	order := &entity.Order{
		ExternalOrderID:   externalID,
		ExternalOrderNum:  "1001",
		OrderStatus:       entity.OrderStatusPending,
		FulfillmentStatus: entity.FulfillmentUnfulfilled,
		Items: []*entity.OrderItem{
			{DesignID: 1, ProductID: 1, ExternalLineItemID: 1, Quantity: 1},
			{DesignID: 1, ProductID: 1, ExternalLineItemID: 2, Quantity: 2},
		},
	}
	jobs := []*entity.PrintJob{
		{DesignID: 1, Status: entity.JobStatusQueued},
		{DesignID: 1, Status: entity.JobStatusQueued},
	}
	return order, jobs
}

func countRows(t *testing.T, conns *database.Connections, model interface{}) int {
	t.Helper()
	n, err := conns.Reader.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestCreateWithJobsThreadsGeneratedIDs(t *testing.T) {
	conns := databasetest.New(t)
	repo := orderrepo.NewRepository(conns)

	order, jobs := newOrder(500)
	require.NoError(t, repo.CreateWithJobs(context.Background(), order, jobs))

	for i, item := range order.Items {
		assert.Equal(t, order.ID, item.OrderID)
		assert.Equal(t, item.ID, jobs[i].OrderItemID)
	}
}

func TestCreateWithJobsRejectsMismatchedJobs(t *testing.T) {
	conns := databasetest.New(t)
	repo := orderrepo.NewRepository(conns)

	order, jobs := newOrder(500)
	err := repo.CreateWithJobs(context.Background(), order, jobs[:1])
	require.Error(t, err)

	assert.Zero(t, countRows(t, conns, (*entity.Order)(nil)))
}

func TestCreateWithJobsIsAtomic(t *testing.T) {
	conns := databasetest.New(t)
	repo := orderrepo.NewRepository(conns)
	ctx := context.Background()

	first, firstJobs := newOrder(500)
	require.NoError(t, repo.CreateWithJobs(ctx, first, firstJobs))

	// Same external order id violates the unique index; the whole batch must
	// roll back, leaving only the first order's rows behind.
	dup, dupJobs := newOrder(500)
	require.Error(t, repo.CreateWithJobs(ctx, dup, dupJobs))

	assert.Equal(t, 1, countRows(t, conns, (*entity.Order)(nil)))
	assert.Equal(t, 2, countRows(t, conns, (*entity.OrderItem)(nil)))
	assert.Equal(t, 2, countRows(t, conns, (*entity.PrintJob)(nil)))
}
