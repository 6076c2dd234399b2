package http

import (
	"go.uber.org/fx"

	designtransport "github.com/printmill/printmill/internal/transport/http/design"
	printjobtransport "github.com/printmill/printmill/internal/transport/http/printjob"
	webhooktransport "github.com/printmill/printmill/internal/transport/http/webhook"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	webhooktransport.Module,
	printjobtransport.Module,
	designtransport.Module,
)
