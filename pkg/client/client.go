// Package client talks to slurmctld over gRPC and implements the console's
// controller interface.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/rpc"
	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultTimeout bounds every call when no timeout is configured
const DefaultTimeout = 10 * time.Second

// RemoteError is a failure reported by the controller. Its text is the
// controller's reason, unchanged.
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client wraps the controller gRPC connection for easy CLI usage
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient connects to addr. A path starting with "/" is dialed as a Unix
// socket.
func NewClient(addr string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	target := addr
	if strings.HasPrefix(addr, "/") {
		target = "unix://" + addr
	}

	logger := log.WithComponent("client")
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(requestIDInterceptor(logger)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %w", err)
	}
	return newClient(conn, timeout, logger), nil
}

func newClient(conn *grpc.ClientConn, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout, logger: logger}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// requestIDInterceptor tags every outgoing call with a fresh request id
func requestIDInterceptor(logger zerolog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		id := uuid.NewString()
		ctx = metadata.AppendToOutgoingContext(ctx, rpc.RequestIDKey, id)
		err := invoker(ctx, method, req, reply, cc, opts...)
		callLog := log.WithRequestID(logger, id)
		callLog.Debug().
			Str("method", method).
			Str("code", status.Code(err).String()).
			Msg("controller call")
		return err
	}
}

// fromStatus converts a gRPC status into a RemoteError
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.Unavailable {
		return &RemoteError{Code: st.Code(), Message: "Unable to contact slurm controller (connect failure)"}
	}
	return &RemoteError{Code: st.Code(), Message: st.Message()}
}

// invoke sends req to method and decodes the reply into out
func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	in, err := rpc.Encode(req)
	if err != nil {
		return err
	}
	reply := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), in, reply); err != nil {
		return fromStatus(err)
	}
	if out == nil {
		return nil
	}
	return rpc.Decode(reply, out)
}

func load[T any](c *Client, ctx context.Context, method string, req rpc.LoadRequest) (snapshot.Response[T], error) {
	var reply rpc.LoadReply[T]
	if err := c.invoke(ctx, method, req, &reply); err != nil {
		return snapshot.Response[T]{}, err
	}
	if reply.Unchanged {
		return snapshot.Unchanged[T](), nil
	}
	return snapshot.Fresh(snapshot.New(reply.LastUpdate, reply.Records)), nil
}

func (c *Client) LoadConfig(ctx context.Context, since time.Time) (snapshot.Response[types.ConfigEntry], error) {
	return load[types.ConfigEntry](c, ctx, rpc.MethodLoadConfig, rpc.LoadRequest{Since: since})
}

func (c *Client) LoadJobs(ctx context.Context, since time.Time) (snapshot.Response[types.Job], error) {
	return load[types.Job](c, ctx, rpc.MethodLoadJobs, rpc.LoadRequest{Since: since})
}

func (c *Client) LoadNodes(ctx context.Context, since time.Time) (snapshot.Response[types.Node], error) {
	return load[types.Node](c, ctx, rpc.MethodLoadNodes, rpc.LoadRequest{Since: since})
}

func (c *Client) LoadPartitions(ctx context.Context, since time.Time) (snapshot.Response[types.Partition], error) {
	return load[types.Partition](c, ctx, rpc.MethodLoadPartitions, rpc.LoadRequest{Since: since})
}

func (c *Client) LoadSteps(ctx context.Context, since time.Time, filter types.StepFilter) (snapshot.Response[types.Step], error) {
	return load[types.Step](c, ctx, rpc.MethodLoadSteps, rpc.LoadRequest{Since: since, Filter: &filter})
}

func (c *Client) UpdateJob(ctx context.Context, update *types.JobUpdate) error {
	return c.invoke(ctx, rpc.MethodUpdateJob, update, nil)
}

func (c *Client) UpdateNode(ctx context.Context, update *types.NodeUpdate) error {
	return c.invoke(ctx, rpc.MethodUpdateNode, update, nil)
}

func (c *Client) UpdatePartition(ctx context.Context, update *types.PartitionUpdate) error {
	return c.invoke(ctx, rpc.MethodUpdatePartition, update, nil)
}

func (c *Client) Shutdown(ctx context.Context, coreDump bool) error {
	return c.invoke(ctx, rpc.MethodShutdown, rpc.ShutdownRequest{CoreDump: coreDump}, nil)
}

func (c *Client) Reconfigure(ctx context.Context) error {
	return c.invoke(ctx, rpc.MethodReconfigure, rpc.Empty{}, nil)
}

func (c *Client) PidToJobID(ctx context.Context, pid int32) (uint32, error) {
	var reply rpc.PidReply
	if err := c.invoke(ctx, rpc.MethodPidToJobID, rpc.PidRequest{Pid: pid}, &reply); err != nil {
		return 0, err
	}
	return reply.JobID, nil
}
