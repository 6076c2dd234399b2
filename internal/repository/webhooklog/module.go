package webhooklog

import "go.uber.org/fx"

// Module provides the webhook-log repository to Fx.
var Module = fx.Provide(NewRepository)
