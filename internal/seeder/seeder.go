package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/entity"
)

// Module wires the seeder for CLI use.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Products seeds the printable product catalog if it is missing.
func (s *Seeder) Products(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Product{
		{Name: "Classic Tee", ProductType: "apparel", PrintAreaWidth: 12, PrintAreaHeight: 16, MinDPI: 150, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Ceramic Mug", ProductType: "drinkware", PrintAreaWidth: 8.5, PrintAreaHeight: 3.5, MinDPI: 200, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Poster 18x24", ProductType: "wall-art", PrintAreaWidth: 18, PrintAreaHeight: 24, MinDPI: 150, IsActive: true, CreatedAt: now, UpdatedAt: now},
	}

	for _, sample := range samples {
		product := sample
		exists, err := s.db.NewSelect().Model((*entity.Product)(nil)).
			Where("p.name = ?", product.Name).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&product).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}

// Designs seeds one processed demo design against the first product so the
// webhook ingestion flow is exercisable without a prior upload.
func (s *Seeder) Designs(ctx context.Context) error {
	exists, err := s.db.NewSelect().Model((*entity.Design)(nil)).
		Where("d.session_id = ?", "seed-session").
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	product := new(entity.Product)
	if err := s.db.NewSelect().Model(product).Order("p.id ASC").Limit(1).Scan(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	design := &entity.Design{
		SessionID:        "seed-session",
		ProductID:        product.ID,
		OriginalFilename: "demo-art.png",
		StoredFilename:   "demo-art.png",
		FilePath:         "storage/uploads/designs/demo-art.png",
		PreviewPath:      "storage/uploads/previews/demo-art.png",
		FileSize:         1024,
		MimeType:         "image/png",
		Width:            2400,
		Height:           3200,
		DPI:              200,
		Status:           entity.DesignStatusProcessed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.db.NewInsert().Model(design).Exec(ctx); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded demo design", zap.Int64("design_id", design.ID))
	}
	return nil
}
