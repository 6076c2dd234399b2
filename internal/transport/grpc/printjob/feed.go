package printjob

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
	service "github.com/printmill/printmill/internal/service/printjob"
	"github.com/printmill/printmill/pkg/errorbank"
)

var grpcTracer = otel.Tracer("github.com/printmill/printmill/transport/grpc/printjob")

// ListJobsRequest filters the feed. An empty status returns every job.
type ListJobsRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ListJobsResponse carries the station work queue, highest priority first.
type ListJobsResponse struct {
	Jobs  []*JobSummary `json:"jobs"`
	Count int           `json:"count"`
}

// UpdateJobStatusRequest moves a job between states from a print station.
type UpdateJobStatusRequest struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// JobSummary is the station-facing view of one print job.
type JobSummary struct {
	JobID        int64  `json:"job_id"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	PrintFileURL string `json:"print_file_url,omitempty"`
	DesignURL    string `json:"design_url,omitempty"`
	OrderNumber  string `json:"order_number,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
}

// FeedServer streams print-job work to print stations over gRPC.
type FeedServer struct {
	svc     *service.Service
	storage config.Storage
}

// NewFeedServer constructs the feed.
func NewFeedServer(svc *service.Service, cfg config.Config) *FeedServer {
	return &FeedServer{svc: svc, storage: cfg.Storage}
}

// ListJobs returns jobs ordered by priority then age.
func (f *FeedServer) ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResponse, error) {
	ctx, span := grpcTracer.Start(ctx, "feed.listJobs",
		trace.WithAttributes(attribute.String("printjob.filter_status", req.Status)))
	defer span.End()

	jobs, err := f.svc.List(ctx, req.Status, req.Limit)
	if err != nil {
		return nil, toStatusErr(err)
	}

	resp := &ListJobsResponse{Jobs: make([]*JobSummary, 0, len(jobs)), Count: len(jobs)}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, f.summarize(job))
	}
	return resp, nil
}

// UpdateJobStatus records a station-side state transition.
func (f *FeedServer) UpdateJobStatus(ctx context.Context, req *UpdateJobStatusRequest) (*JobSummary, error) {
	ctx, span := grpcTracer.Start(ctx, "feed.updateJobStatus",
		trace.WithAttributes(
			attribute.Int64("printjob.id", req.JobID),
			attribute.String("printjob.status", req.Status),
		))
	defer span.End()

	job, err := f.svc.Update(ctx, service.UpdateRequest{
		JobID:  req.JobID,
		Status: req.Status,
		Note:   req.Note,
	})
	if err != nil {
		return nil, toStatusErr(err)
	}
	return f.summarize(job), nil
}

func (f *FeedServer) summarize(job *entity.PrintJob) *JobSummary {
	s := &JobSummary{
		JobID:    job.ID,
		Status:   job.Status,
		Priority: job.Priority,
	}
	if job.PrintFilePath != "" {
		s.PrintFileURL = f.storage.PublicURL(job.PrintFilePath)
	}
	if job.Design != nil {
		s.DesignURL = f.storage.PublicURL(job.Design.FilePath)
	}
	if job.OrderItem != nil {
		s.Quantity = job.OrderItem.Quantity
		if job.OrderItem.Order != nil {
			s.OrderNumber = job.OrderItem.Order.ExternalOrderNum
		}
		if job.OrderItem.Product != nil {
			s.ProductName = job.OrderItem.Product.Name
		}
	}
	return s
}

func toStatusErr(err error) error {
	appErr := errorbank.From(err)
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

const fullServiceName = "printmill.v1.PrintJobFeed"

// feedServiceDesc registers FeedServer methods by hand; messages travel as
// JSON through the server codec, so no generated protobuf code is involved.
var feedServiceDesc = grpc.ServiceDesc{
	ServiceName: fullServiceName,
	HandlerType: (*feedService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListJobs", Handler: listJobsHandler},
		{MethodName: "UpdateJobStatus", Handler: updateJobStatusHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// feedService is the method set the service descriptor binds against.
type feedService interface {
	ListJobs(context.Context, *ListJobsRequest) (*ListJobsResponse, error)
	UpdateJobStatus(context.Context, *UpdateJobStatusRequest) (*JobSummary, error)
}

func listJobsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListJobsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(feedService).ListJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fullServiceName + "/ListJobs"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(feedService).ListJobs(ctx, req.(*ListJobsRequest))
	})
}

func updateJobStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateJobStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(feedService).UpdateJobStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fullServiceName + "/UpdateJobStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(feedService).UpdateJobStatus(ctx, req.(*UpdateJobStatusRequest))
	})
}

// RegisterFeedServer attaches the feed to a gRPC server.
func RegisterFeedServer(s *grpc.Server, srv *FeedServer) {
	s.RegisterService(&feedServiceDesc, srv)
}
