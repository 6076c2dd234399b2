package printfile

import "go.uber.org/fx"

// Module provides the print-file generator to Fx.
var Module = fx.Provide(NewService)
