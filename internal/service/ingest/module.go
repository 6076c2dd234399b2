package ingest

import "go.uber.org/fx"

// Module provides the ingest service to Fx.
var Module = fx.Provide(NewService)
