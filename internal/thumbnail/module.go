package thumbnail

import (
	"go.uber.org/fx"

	"github.com/printmill/printmill/internal/config"
)

// Module provides the configured Thumbnailer to Fx.
var Module = fx.Provide(func(cfg config.Config) Thumbnailer {
	return New(cfg.Upload.ThumbnailEnabled, cfg.Upload.ThumbnailWidth, cfg.Upload.ThumbnailHeight)
})
