// Package rpc serves ranking over gRPC. Messages are google.protobuf.Struct
// values carrying the same JSON documents the HTTP API accepts and returns,
// so the service needs no generated code.
package rpc

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/papapumpkin/linkrank/internal/corpus"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/wire"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "linkrank.v1.Ranker"

// RankMethod is the full method path of the Rank call.
const RankMethod = "/" + ServiceName + "/Rank"

// RankerServer is the server API for the Ranker service.
type RankerServer interface {
	Rank(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Ranker service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RankerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Rank", Handler: rankHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkrank/v1/ranker.proto",
}

func rankHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RankerServer).Rank(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RankMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RankerServer).Rank(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Saver persists finished runs.
type Saver interface {
	Save(ctx context.Context, r *report.Report) error
}

// RankRequest is the document carried by a Rank call.
type RankRequest struct {
	engine.Job
	Save bool `json:"save"`
}

// Service implements RankerServer on top of engine.
type Service struct {
	Defaults engine.Request
	Limits   engine.Limits
	History  Saver // optional
}

// Rank decodes the job, runs it and returns the report.
func (s *Service) Rank(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := RankRequest{Job: engine.Job{Request: s.Defaults}}
	if err := wire.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Limits.Check(req.Request); err != nil {
		return nil, toStatus(err)
	}
	if req.Save && s.History == nil {
		return nil, status.Error(codes.FailedPrecondition, "run history is disabled")
	}
	rep, err := req.Execute(ctx, engine.Hooks{})
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Save {
		if err := s.History.Save(ctx, rep); err != nil {
			return nil, toStatus(err)
		}
	}
	out, err := wire.ToStruct(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps ranking errors onto gRPC status codes.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, rank.ErrConvergenceTimeout):
		code = codes.FailedPrecondition
	case errors.Is(err, rank.ErrInvalidParameter),
		errors.Is(err, linkgraph.ErrEmptyGraph),
		errors.Is(err, linkgraph.ErrUnknownPage),
		errors.Is(err, linkgraph.ErrSelfLink),
		errors.Is(err, engine.ErrNoGraph),
		errors.Is(err, engine.ErrConflictingGraph),
		errors.Is(err, corpus.ErrMalformedEdge):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

// NewServer returns a grpc.Server with the Ranker and standard health
// services registered and every unary call logged.
func NewServer(svc RankerServer, logger *logrus.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(UnaryServerInterceptor(logger)))
	s.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// UnaryServerInterceptor logs method, latency and failures of unary calls.
func UnaryServerInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var err error
		var reply any
		defer func(begin time.Time) {
			fields := logrus.Fields{
				"method":        path.Base(info.FullMethod),
				"response_time": time.Since(begin),
			}
			if err != nil {
				fields["code"] = status.Code(err).String()
				logger.WithFields(fields).WithError(err).Error("rpc failed")
			} else {
				logger.WithFields(fields).Info("rpc")
			}
		}(time.Now())
		reply, err = handler(ctx, req)
		return reply, err
	}
}

// Client calls a remote Ranker.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Rank submits job and decodes the returned report.
func (c *Client) Rank(ctx context.Context, job engine.Job, save bool, opts ...grpc.CallOption) (*report.Report, error) {
	in, err := wire.ToStruct(RankRequest{Job: job, Save: save})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RankMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var rep report.Report
	if err := wire.FromStruct(out, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
