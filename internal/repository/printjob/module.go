package printjob

import "go.uber.org/fx"

// Module provides the print-job repository to Fx.
var Module = fx.Provide(NewRepository)
