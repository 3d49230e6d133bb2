package api

import (
	"context"
	"strings"

	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/metrics"
	"github.com/cuemby/scontrol/pkg/rpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestInterceptor logs every call with its request id and records API
// metrics. Calls without a request id get a fresh one.
func RequestInterceptor() grpc.UnaryServerInterceptor {
	logger := log.WithComponent("api")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := requestIDFrom(ctx)
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, code.String()).Inc()

		reqLog := log.WithRequestID(logger, requestID)
		event := reqLog.Debug()
		if err != nil {
			event = reqLog.Warn().Err(err)
		}
		event.Str("method", method).
			Str("code", code.String()).
			Dur("duration", timer.Duration()).
			Msg("request handled")
		return resp, err
	}
}

func requestIDFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(rpc.RequestIDKey); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}

// ReadOnlyInterceptor creates a gRPC unary interceptor that only allows read-only operations.
// This is used for the Unix socket listener so local users can query but not change state.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"%s not allowed on the local socket, connect to the controller address instead",
				methodName(info.FullMethod),
			)
		}
		return handler(ctx, req)
	}
}

// methodName extracts the method from a full path such as
// "/slurm.v1.Controller/LoadNodes"
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

// isReadOnlyMethod checks if a gRPC method is read-only
func isReadOnlyMethod(fullMethod string) bool {
	method := methodName(fullMethod)
	return strings.HasPrefix(method, "Load") || method == rpc.MethodPidToJobID
}
