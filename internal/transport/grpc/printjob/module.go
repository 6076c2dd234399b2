package printjob

import (
	"go.uber.org/fx"
	"google.golang.org/grpc"
)

// Module wires the print-job feed into the gRPC server.
var Module = fx.Options(
	fx.Provide(NewFeedServer),
	fx.Invoke(func(s *grpc.Server, f *FeedServer) {
		RegisterFeedServer(s, f)
	}),
)
