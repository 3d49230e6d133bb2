// Package rpc is the wire contract between scontrol and slurmctld. Every
// method carries a JSON payload inside a protobuf BytesValue, so the service
// needs no generated stubs.
package rpc

import (
	"fmt"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServiceName is the fully qualified gRPC service name
const ServiceName = "slurm.v1.Controller"

// Method names
const (
	MethodLoadConfig      = "LoadConfig"
	MethodLoadJobs        = "LoadJobs"
	MethodLoadNodes       = "LoadNodes"
	MethodLoadPartitions  = "LoadPartitions"
	MethodLoadSteps       = "LoadSteps"
	MethodUpdateJob       = "UpdateJob"
	MethodUpdateNode      = "UpdateNode"
	MethodUpdatePartition = "UpdatePartition"
	MethodShutdown        = "Shutdown"
	MethodReconfigure     = "Reconfigure"
	MethodPidToJobID      = "PidToJobID"
)

// RequestIDKey is the metadata key carrying the caller's request id
const RequestIDKey = "x-request-id"

// FullMethod returns the gRPC path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LoadRequest asks for records changed after Since
type LoadRequest struct {
	Since  time.Time         `json:"since"`
	Filter *types.StepFilter `json:"filter,omitempty"`
}

// LoadReply is either Unchanged or a full record set stamped with LastUpdate
type LoadReply[T any] struct {
	Unchanged  bool      `json:"unchanged"`
	LastUpdate time.Time `json:"last_update"`
	Records    []T       `json:"records"`
}

// ShutdownRequest stops the controller
type ShutdownRequest struct {
	CoreDump bool `json:"core_dump"`
}

// PidRequest looks up the job owning a process
type PidRequest struct {
	Pid int32 `json:"pid"`
}

// PidReply carries the job id found by PidRequest
type PidReply struct {
	JobID uint32 `json:"job_id"`
}

// Empty is the payload of calls with no arguments or results
type Empty struct{}

// Encode wraps v as a BytesValue message
func Encode(v any) (*wrapperspb.BytesValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return wrapperspb.Bytes(data), nil
}

// Decode unwraps a BytesValue message into v
func Decode(msg *wrapperspb.BytesValue, v any) error {
	if msg == nil || len(msg.GetValue()) == 0 {
		return fmt.Errorf("decode %T: empty payload", v)
	}
	if err := json.Unmarshal(msg.GetValue(), v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
