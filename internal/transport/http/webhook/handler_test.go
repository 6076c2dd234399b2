package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
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
	webhooklogrepo "github.com/printmill/printmill/internal/repository/webhooklog"
	"github.com/printmill/printmill/internal/service/ingest"
	webhooktransport "github.com/printmill/printmill/internal/transport/http/webhook"
	authwebhook "github.com/printmill/printmill/internal/webhook"
)

const testSecret = "hush"

type fixture struct {
	e       *echo.Echo
	orders  *orderrepo.Repository
	designs *designrepo.Repository
	logs    *webhooklogrepo.Repository
	design  *entity.Design
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conns := databasetest.New(t)
	orders := orderrepo.NewRepository(conns)
	designs := designrepo.NewRepository(conns)
	printJobs := printjobrepo.NewRepository(conns)
	products := productrepo.NewRepository(conns)
	logs := webhooklogrepo.NewRepository(conns)

	svc := ingest.NewService(ingest.Params{
		Orders:    orders,
		Designs:   designs,
		PrintJobs: printJobs,
		Config:    config.Config{},
		Logger:    zap.NewNop(),
	})

	product := &entity.Product{Name: "Classic Tee", PrintAreaWidth: 12, PrintAreaHeight: 16, MinDPI: 150, IsActive: true}
	require.NoError(t, products.Create(ctx, product))
	design := &entity.Design{
		SessionID:        "sess-1",
		ProductID:        product.ID,
		OriginalFilename: "art.png",
		StoredFilename:   "abc.png",
		FilePath:         "storage/uploads/designs/abc.png",
		Width:            2400,
		Height:           3200,
		DPI:              200,
		Status:           entity.DesignStatusProcessed,
	}
	require.NoError(t, designs.Create(ctx, design))

	e := echo.New()
	handler := webhooktransport.NewHandler(authwebhook.NewAuthenticator(testSecret), svc, logs, zap.NewNop())
	webhooktransport.Register(e, handler)

	return &fixture{e: e, orders: orders, designs: designs, logs: logs, design: design}
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (f *fixture) deliver(topic, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(webhooktransport.HeaderTopic, topic)
	req.Header.Set(webhooktransport.HeaderSignature, signature)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func orderBody(f *fixture) string {
	return `{
		"id": 7001,
		"order_number": 1001,
		"customer": {"email": "buyer@example.com"},
		"total_price": "24.95",
		"currency": "EUR",
		"line_items": [
			{
				"id": 555001,
				"quantity": 1,
				"price": "24.95",
				"properties": [{"name": "design_id", "value": "` + strconv.FormatInt(f.design.ID, 10) + `"}]
			}
		]
	}`
}

func TestReceiveRejectsForgedSignatureWithoutLogging(t *testing.T) {
	f := newFixture(t)

	rec := f.deliver(webhooktransport.TopicOrderCreate, orderBody(f), "bm90LXRoZS1yZWFsLXNpZ25hdHVyZQ==")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	entries, err := f.logs.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "forged deliveries must leave no audit trail")
}

func TestReceiveRejectsInvalidJSON(t *testing.T) {
	f := newFixture(t)

	body := `{"id": not-json`
	rec := f.deliver(webhooktransport.TopicOrderCreate, body, sign(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveIgnoresUnknownTopic(t *testing.T) {
	f := newFixture(t)

	body := orderBody(f)
	rec := f.deliver("products/update", body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook received but not processed")

	_, err := f.orders.GetByExternalID(context.Background(), 7001)
	assert.ErrorIs(t, err, orderrepo.ErrNotFound)
}

func TestReceiveProcessesOrderCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body := orderBody(f)
	rec := f.deliver(webhooktransport.TopicOrderCreate, body, sign(body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Webhook processed successfully")

	order, err := f.orders.GetByExternalID(ctx, 7001)
	require.NoError(t, err)
	assert.Equal(t, "1001", order.ExternalOrderNum)
	assert.Equal(t, entity.OrderStatusPending, order.OrderStatus)

	entries, err := f.logs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.WebhookStatusProcessed, entries[0].Status)
	assert.Equal(t, int64(7001), entries[0].ExternalOrderID)
}

func TestReceiveMarksLogFailedOnDispatchError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Updating an order that was never ingested fails dispatch.
	body := `{"id": 9999, "financial_status": "paid"}`
	rec := f.deliver(webhooktransport.TopicOrderUpdated, body, sign(body))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries, err := f.logs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.WebhookStatusFailed, entries[0].Status)
	assert.NotEmpty(t, entries[0].ErrorMessage)
}
