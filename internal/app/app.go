package app

import (
	"go.uber.org/fx"

	"github.com/printmill/printmill/internal/cache"
	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/database"
	"github.com/printmill/printmill/internal/logger"
	"github.com/printmill/printmill/internal/messaging"
	"github.com/printmill/printmill/internal/observability"
	repositorydesign "github.com/printmill/printmill/internal/repository/design"
	repositoryorder "github.com/printmill/printmill/internal/repository/order"
	repositoryprintjob "github.com/printmill/printmill/internal/repository/printjob"
	repositoryproduct "github.com/printmill/printmill/internal/repository/product"
	repositorywebhooklog "github.com/printmill/printmill/internal/repository/webhooklog"
	grpcserver "github.com/printmill/printmill/internal/server/grpc"
	httpserver "github.com/printmill/printmill/internal/server/http"
	servicedesign "github.com/printmill/printmill/internal/service/design"
	serviceingest "github.com/printmill/printmill/internal/service/ingest"
	serviceprintfile "github.com/printmill/printmill/internal/service/printfile"
	serviceprintjob "github.com/printmill/printmill/internal/service/printjob"
	"github.com/printmill/printmill/internal/thumbnail"
	transportgrpcprintjob "github.com/printmill/printmill/internal/transport/grpc/printjob"
	transporthttp "github.com/printmill/printmill/internal/transport/http"
	"github.com/printmill/printmill/internal/webhook"
	"github.com/printmill/printmill/internal/worker"
	workerprintjob "github.com/printmill/printmill/internal/worker/printjob"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	webhook.Module,
	thumbnail.Module,
	repositorydesign.Module,
	repositoryorder.Module,
	repositoryprintjob.Module,
	repositoryproduct.Module,
	repositorywebhooklog.Module,
	servicedesign.Module,
	serviceingest.Module,
	serviceprintfile.Module,
	serviceprintjob.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
	transportgrpcprintjob.Module,
)

// Worker exposes background event processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerprintjob.Module,
)

// Module is the default application wiring (HTTP + gRPC).
var Module = HTTP
