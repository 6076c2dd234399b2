package printjob

import "go.uber.org/fx"

// Module provides the print-job service to Fx.
var Module = fx.Provide(NewService)
