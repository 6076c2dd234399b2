package design

import "go.uber.org/fx"

// Module provides the design repository to Fx.
var Module = fx.Provide(NewRepository)
