package design

import "go.uber.org/fx"

// Module provides the design service to Fx.
var Module = fx.Provide(NewService)
