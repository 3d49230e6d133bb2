// Package api serves the controller over gRPC. The service descriptor is
// written by hand; every method exchanges rpc payloads wrapped in
// BytesValue messages.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/manager"
	"github.com/cuemby/scontrol/pkg/rpc"
	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Controller is the state the API exposes
type Controller interface {
	LoadConfig(ctx context.Context, since time.Time) (snapshot.Response[types.ConfigEntry], error)
	LoadJobs(ctx context.Context, since time.Time) (snapshot.Response[types.Job], error)
	LoadNodes(ctx context.Context, since time.Time) (snapshot.Response[types.Node], error)
	LoadPartitions(ctx context.Context, since time.Time) (snapshot.Response[types.Partition], error)
	LoadSteps(ctx context.Context, since time.Time, filter types.StepFilter) (snapshot.Response[types.Step], error)

	UpdateJob(ctx context.Context, update *types.JobUpdate) error
	UpdateNode(ctx context.Context, update *types.NodeUpdate) error
	UpdatePartition(ctx context.Context, update *types.PartitionUpdate) error

	Shutdown(ctx context.Context, coreDump bool) error
	Reconfigure(ctx context.Context) error
	PidToJobID(ctx context.Context, pid int32) (uint32, error)
}

// Server implements the controller gRPC service
type Server struct {
	ctl    Controller
	grpc   *grpc.Server
	logger zerolog.Logger
}

// NewServer creates a new API server. A read-only server rejects every
// method that changes controller state.
func NewServer(ctl Controller, readOnly bool) *Server {
	interceptors := []grpc.UnaryServerInterceptor{RequestInterceptor()}
	if readOnly {
		interceptors = append(interceptors, ReadOnlyInterceptor())
	}
	s := &Server{
		ctl:    ctl,
		grpc:   grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...)),
		logger: log.WithComponent("api"),
	}
	s.grpc.RegisterService(&serviceDesc, ctl)
	return s
}

// Start listens on a TCP address and serves until stopped
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC API listening")
	return s.Serve(lis)
}

// StartUnix listens on a Unix socket, replacing a stale socket file
func (s *Server) StartUnix(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	s.logger.Info().Str("socket", path).Msg("gRPC API listening")
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// toStatus maps controller errors to gRPC codes. The message is kept so the
// caller can show the controller's reason as is.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, manager.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, manager.ErrInvalid):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

type call func(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error)

// unary adapts a call to a gRPC method descriptor
func unary(method string, fn call) grpc.MethodDesc {
	run := func(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
		reply, err := fn(ctx, ctl, in)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := rpc.Encode(reply)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			ctl := srv.(Controller)
			if interceptor == nil {
				return run(ctx, ctl, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rpc.FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return run(ctx, ctl, req.(*wrapperspb.BytesValue))
			})
		},
	}
}

func decode(in *wrapperspb.BytesValue, v any) error {
	if err := rpc.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func reply[T any](resp snapshot.Response[T]) (any, error) {
	if resp.Status == snapshot.StatusUnchanged {
		return rpc.LoadReply[T]{Unchanged: true}, nil
	}
	if resp.Snapshot == nil {
		return nil, snapshot.ErrIncomplete
	}
	return rpc.LoadReply[T]{LastUpdate: resp.Snapshot.LastUpdate, Records: resp.Snapshot.Records}, nil
}

// loader adapts a Load method that takes no filter
func loader[T any](load func(Controller, context.Context, time.Time) (snapshot.Response[T], error)) call {
	return func(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error) {
		var req rpc.LoadRequest
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		resp, err := load(ctl, ctx, req.Since)
		if err != nil {
			return nil, err
		}
		return reply(resp)
	}
}

func loadSteps(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error) {
	var req rpc.LoadRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	var filter types.StepFilter
	if req.Filter != nil {
		filter = *req.Filter
	}
	resp, err := ctl.LoadSteps(ctx, req.Since, filter)
	if err != nil {
		return nil, err
	}
	return reply(resp)
}

// updater adapts an Update method
func updater[T any](update func(Controller, context.Context, *T) error) call {
	return func(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error) {
		msg := new(T)
		if err := decode(in, msg); err != nil {
			return nil, err
		}
		if err := update(ctl, ctx, msg); err != nil {
			return nil, err
		}
		return rpc.Empty{}, nil
	}
}

func shutdown(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error) {
	var req rpc.ShutdownRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return rpc.Empty{}, ctl.Shutdown(ctx, req.CoreDump)
}

func reconfigure(ctx context.Context, ctl Controller, _ *wrapperspb.BytesValue) (any, error) {
	return rpc.Empty{}, ctl.Reconfigure(ctx)
}

func pidToJobID(ctx context.Context, ctl Controller, in *wrapperspb.BytesValue) (any, error) {
	var req rpc.PidRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	jobID, err := ctl.PidToJobID(ctx, req.Pid)
	if err != nil {
		return nil, err
	}
	return rpc.PidReply{JobID: jobID}, nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*Controller)(nil),
	Methods: []grpc.MethodDesc{
		unary(rpc.MethodLoadConfig, loader(Controller.LoadConfig)),
		unary(rpc.MethodLoadJobs, loader(Controller.LoadJobs)),
		unary(rpc.MethodLoadNodes, loader(Controller.LoadNodes)),
		unary(rpc.MethodLoadPartitions, loader(Controller.LoadPartitions)),
		unary(rpc.MethodLoadSteps, loadSteps),
		unary(rpc.MethodUpdateJob, updater(Controller.UpdateJob)),
		unary(rpc.MethodUpdateNode, updater(Controller.UpdateNode)),
		unary(rpc.MethodUpdatePartition, updater(Controller.UpdatePartition)),
		unary(rpc.MethodShutdown, shutdown),
		unary(rpc.MethodReconfigure, reconfigure),
		unary(rpc.MethodPidToJobID, pidToJobID),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slurm/v1/controller",
}
