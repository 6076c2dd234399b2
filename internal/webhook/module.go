package webhook

import (
	"go.uber.org/fx"

	"github.com/printmill/printmill/internal/config"
)

// Module provides the webhook authenticator to Fx.
var Module = fx.Provide(func(cfg config.Config) *Authenticator {
	return NewAuthenticator(cfg.Webhook.Secret)
})
