package design_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	designrepo "github.com/printmill/printmill/internal/repository/design"
	productrepo "github.com/printmill/printmill/internal/repository/product"
	"github.com/printmill/printmill/internal/service/design"
	"github.com/printmill/printmill/internal/thumbnail"

	"github.com/printmill/printmill/internal/database/databasetest"
)

type fixture struct {
	service   *design.Service
	designs   *designrepo.Repository
	productID int64
	root      string
}

func newFixture(t *testing.T, thumbEnabled bool) *fixture {
	t.Helper()
	ctx := context.Background()

	conns := databasetest.New(t)
	products := productrepo.NewRepository(conns)
	designs := designrepo.NewRepository(conns)

	product := &entity.Product{
		Name:            "Canvas",
		PrintAreaWidth:  10,
		PrintAreaHeight: 10,
		MinDPI:          150,
		IsActive:        true,
	}
	require.NoError(t, products.Create(ctx, product))

	root := t.TempDir()
	cfg := config.Config{
		Storage: config.Storage{
			Root:          root,
			DesignDir:     "uploads/designs",
			PreviewDir:    "uploads/previews",
			PublicBaseURL: "http://localhost:8080/files",
		},
		Upload: config.Upload{
			MaxFileBytes:      10 << 20,
			AllowedExtensions: []string{"png", "jpg", "jpeg"},
			ThumbnailWidth:    300,
			ThumbnailHeight:   300,
			ThumbnailEnabled:  thumbEnabled,
			DefaultMinDPI:     150,
		},
	}

	svc := design.NewService(design.Params{
		Designs:     designs,
		Products:    products,
		Config:      cfg,
		Thumbnailer: thumbnail.New(thumbEnabled, 300, 300),
		Logger:      zap.NewNop(),
	})

	return &fixture{service: svc, designs: designs, productID: product.ID, root: root}
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y += 64 {
		for x := 0; x < width; x += 64 {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, f *fixture, session, filename string, content []byte) (*entity.Design, error) {
	t.Helper()
	return f.service.Upload(context.Background(), design.UploadInput{
		SessionID:        session,
		ProductID:        f.productID,
		OriginalFilename: filename,
		Size:             int64(len(content)),
		Content:          bytes.NewReader(content),
	})
}

func TestUploadStoresDesignAndPreview(t *testing.T) {
	f := newFixture(t, true)

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	assert.Equal(t, "sess-1", d.SessionID)
	assert.Equal(t, "skyline.png", d.OriginalFilename)
	assert.NotEqual(t, "skyline.png", d.StoredFilename)
	assert.Equal(t, 1600, d.Width)
	assert.Equal(t, 1600, d.Height)
	assert.Equal(t, 160, d.DPI)
	assert.Equal(t, entity.DesignStatusProcessed, d.Status)
	assert.Equal(t, "image/png", d.MimeType)
	assert.Contains(t, d.DesignConfig, `"position":"center"`)

	_, err = os.Stat(filepath.FromSlash(d.FilePath))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.FromSlash(d.PreviewPath))
	assert.NoError(t, err)
	assert.NotEqual(t, d.FilePath, d.PreviewPath)
}

func TestUploadWithoutThumbnailerFallsBackToOriginal(t *testing.T) {
	f := newFixture(t, false)

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)
	assert.Equal(t, d.FilePath, d.PreviewPath)
}

func TestUploadRejectsLowResolution(t *testing.T) {
	f := newFixture(t, true)

	// 10x10in at 150 DPI needs 1500x1500.
	_, err := upload(t, f, "sess-1", "tiny.png", pngBytes(t, 800, 800))
	assert.Error(t, err)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	f := newFixture(t, true)

	_, err := upload(t, f, "sess-1", "vector.svg", []byte("<svg/>"))
	assert.Error(t, err)
}

func TestUploadRejectsNonImage(t *testing.T) {
	f := newFixture(t, true)

	_, err := upload(t, f, "sess-1", "fake.png", []byte("not an image"))
	assert.Error(t, err)
}

func TestUploadRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.service.Upload(context.Background(), design.UploadInput{
		SessionID:        "sess-1",
		ProductID:        99999,
		OriginalFilename: "skyline.png",
		Size:             1,
		Content:          bytes.NewReader(pngBytes(t, 1600, 1600)),
	})
	assert.Error(t, err)
}

func TestGetEnforcesSessionOwnership(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	got, err := f.service.Get(ctx, d.ID, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = f.service.Get(ctx, d.ID, "someone-else")
	assert.Error(t, err)
}

func TestSoftDeleteHidesDesign(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, d.ID, "sess-1", false))

	_, err = f.service.Get(ctx, d.ID, "sess-1")
	assert.Error(t, err)

	listed, err := f.service.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Soft deletion keeps the files for ingested orders.
	_, err = os.Stat(filepath.FromSlash(d.FilePath))
	assert.NoError(t, err)
}

func TestHardDeleteRemovesFiles(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, d.ID, "sess-1", true))

	_, err = os.Stat(filepath.FromSlash(d.FilePath))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.FromSlash(d.PreviewPath))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdatePlacementAndStatus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, design.UpdateRequest{
		ID:        d.ID,
		SessionID: "sess-1",
		Placement: &design.Placement{Position: "top", Scale: 0.5, Rotation: 90},
		Status:    entity.DesignStatusApproved,
	})
	require.NoError(t, err)
	assert.Contains(t, updated.DesignConfig, `"position":"top"`)
	assert.Equal(t, entity.DesignStatusApproved, updated.Status)

	_, err = f.service.Update(ctx, design.UpdateRequest{
		ID:        d.ID,
		SessionID: "intruder",
		Status:    entity.DesignStatusRejected,
	})
	assert.Error(t, err)
}

func TestCleanupOldRemovesStaleUnorderedDesigns(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	// Age the row beyond the cleanup horizon.
	d.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, f.designs.UpdateColumns(ctx, d, "created_at"))

	removed, err := f.service.CleanupOld(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.FromSlash(d.FilePath))
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupOldKeepsApprovedDesigns(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	d, err := upload(t, f, "sess-1", "skyline.png", pngBytes(t, 1600, 1600))
	require.NoError(t, err)

	// An approved design the customer signed off on stays put even when old.
	d.Status = entity.DesignStatusApproved
	d.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, f.designs.UpdateColumns(ctx, d, "status", "created_at"))

	removed, err := f.service.CleanupOld(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = os.Stat(filepath.FromSlash(d.FilePath))
	assert.NoError(t, err)

	kept, err := f.service.Get(ctx, d.ID, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, entity.DesignStatusApproved, kept.Status)
}
