package types

import (
	"strings"
	"time"
)

// Sentinel values shared by the console and the controller.
const (
	// NoVal marks a numeric update field that was not supplied
	NoVal uint32 = 0xfffffffe
	// Infinite is the "no limit" value for MaxTime and MaxNodes
	Infinite uint32 = 0xffffffff
	// NoVal16 marks a 16-bit update field that was not supplied
	NoVal16 uint16 = 0xfffe
)

// Kind identifies one of the entity kinds the controller reports on
type Kind string

const (
	KindConfig    Kind = "config"
	KindJob       Kind = "job"
	KindNode      Kind = "node"
	KindPartition Kind = "partition"
	KindStep      Kind = "step"
)

// Kinds lists every entity kind in display order
var Kinds = []Kind{KindConfig, KindJob, KindNode, KindPartition, KindStep}

// ConfigEntry is one controller configuration parameter
type ConfigEntry struct {
	Key   string
	Value string
}

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateComplete  JobState = "COMPLETE"
	JobStateFailed    JobState = "FAILED"
	JobStateTimeout   JobState = "TIMEOUT"
	JobStateCancelled JobState = "CANCELLED"
)

// Job is a batch job known to the controller
type Job struct {
	JobID      uint32
	UserID     uint32
	Name       string
	State      JobState
	Partition  string
	Nodes      string
	TimeLimit  uint32 // minutes, Infinite for none
	Priority   uint32
	NumProcs   uint32
	MinNodes   uint32
	MinProcs   uint32
	MinMemory  uint32 // MB
	MinTmpDisk uint32 // MB
	Shared     uint16
	Contiguous uint16
	ReqNodes   string
	Features   string
	StartTime  time.Time
	EndTime    time.Time
}

// NodeState is an index into the node state name table
type NodeState uint16

const (
	NodeStateDown NodeState = iota
	NodeStateUnknown
	NodeStateIdle
	NodeStateAllocated
	NodeStateDrain
	NodeStateCompleting
)

// nodeStateNames is the authoritative node state table. Its order matches
// the NodeState constants.
var nodeStateNames = []string{
	"DOWN",
	"UNKNOWN",
	"IDLE",
	"ALLOCATED",
	"DRAIN",
	"COMPLETING",
}

// NodeStateNames returns a copy of the valid node state names in table order
func NodeStateNames() []string {
	names := make([]string, len(nodeStateNames))
	copy(names, nodeStateNames)
	return names
}

// ParseNodeState matches name case-insensitively against the state table
func ParseNodeState(name string) (NodeState, bool) {
	for i, n := range nodeStateNames {
		if strings.EqualFold(n, name) {
			return NodeState(i), true
		}
	}
	return 0, false
}

// String returns the table name of the state
func (s NodeState) String() string {
	if int(s) < len(nodeStateNames) {
		return nodeStateNames[s]
	}
	return "INVALID"
}

// Node is a compute node known to the controller
type Node struct {
	Name       string
	State      NodeState
	CPUs       uint32
	RealMemory uint32 // MB
	TmpDisk    uint32 // MB
	Weight     uint32
	Features   string
	Partition  string
	Reason     string
}

// PartitionShared is the partition node sharing policy
type PartitionShared uint16

const (
	SharedNo PartitionShared = iota
	SharedYes
	SharedForce
)

var partitionSharedNames = []string{"NO", "YES", "FORCE"}

// PartitionSharedNames returns the valid Shared= values for partitions
func PartitionSharedNames() []string {
	names := make([]string, len(partitionSharedNames))
	copy(names, partitionSharedNames)
	return names
}

// String returns the table name of the sharing policy
func (s PartitionShared) String() string {
	if int(s) < len(partitionSharedNames) {
		return partitionSharedNames[s]
	}
	return "INVALID"
}

// Partition is a named group of nodes with a scheduling policy
type Partition struct {
	Name        string
	MaxTime     uint32 // minutes, Infinite for none
	MaxNodes    uint32 // Infinite for none
	TotalNodes  uint32
	TotalCPUs   uint32
	Default     bool
	RootOnly    bool
	Shared      PartitionShared
	StateUp     bool
	Nodes       string
	AllowGroups string
}

// Step is a job step running inside a job allocation
type Step struct {
	JobID     uint32
	StepID    uint32
	UserID    uint32
	Partition string
	Nodes     string
	StartTime time.Time
	Pids      []int32
}

// StepFilter selects job steps. A zero JobID selects every job; StepID is
// only consulted when HasStep is set.
type StepFilter struct {
	JobID   uint32
	StepID  uint32
	HasStep bool
}

// Matches reports whether the step satisfies the filter
func (f StepFilter) Matches(s *Step) bool {
	if f.JobID == 0 {
		return true
	}
	if s.JobID != f.JobID {
		return false
	}
	return !f.HasStep || s.StepID == f.StepID
}

// JobUpdate is a job mutation request. Unset numeric fields hold NoVal or
// NoVal16; unset strings are empty.
type JobUpdate struct {
	JobID      uint32
	TimeLimit  uint32
	Priority   uint32
	NumProcs   uint32
	MinNodes   uint32
	MinProcs   uint32
	MinMemory  uint32
	MinTmpDisk uint32
	Shared     uint16
	Contiguous uint16
	Partition  string
	Name       string
	ReqNodes   string
	Features   string
}

// NewJobUpdate returns a job update with every field unset
func NewJobUpdate() *JobUpdate {
	return &JobUpdate{
		JobID:      NoVal,
		TimeLimit:  NoVal,
		Priority:   NoVal,
		NumProcs:   NoVal,
		MinNodes:   NoVal,
		MinProcs:   NoVal,
		MinMemory:  NoVal,
		MinTmpDisk: NoVal,
		Shared:     NoVal16,
		Contiguous: NoVal16,
	}
}

// NodeUpdate is a node mutation request. NodeNames is a hostlist expression.
type NodeUpdate struct {
	NodeNames string
	State     uint16
}

// NewNodeUpdate returns a node update with every field unset
func NewNodeUpdate() *NodeUpdate {
	return &NodeUpdate{State: NoVal16}
}

// PartitionUpdate is a partition mutation request
type PartitionUpdate struct {
	Name        string
	MaxTime     uint32
	MaxNodes    uint32
	Default     uint16
	RootOnly    uint16
	Shared      uint16
	StateUp     uint16
	Nodes       string
	AllowGroups string
}

// NewPartitionUpdate returns a partition update with every field unset
func NewPartitionUpdate() *PartitionUpdate {
	return &PartitionUpdate{
		MaxTime:  NoVal,
		MaxNodes: NoVal,
		Default:  NoVal16,
		RootOnly: NoVal16,
		Shared:   NoVal16,
		StateUp:  NoVal16,
	}
}
