// Package storage persists the reference controller's records so a restart
// keeps job, node and partition changes made through update requests.
package storage

import (
	"errors"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
)

// ErrNotFound is returned when a keyed record is absent
var ErrNotFound = errors.New("record not found")

// Store defines the interface for controller state storage
type Store interface {
	// Jobs
	SaveJob(job *types.Job) error
	GetJob(id uint32) (*types.Job, error)
	ListJobs() ([]types.Job, error)
	DeleteJob(id uint32) error

	// Nodes
	SaveNode(node *types.Node) error
	GetNode(name string) (*types.Node, error)
	ListNodes() ([]types.Node, error)

	// Partitions
	SavePartition(part *types.Partition) error
	ListPartitions() ([]types.Partition, error)

	// Steps
	SaveStep(step *types.Step) error
	ListSteps() ([]types.Step, error)
	DeleteStep(jobID, stepID uint32) error

	// Last update clock per record kind
	SaveClock(kind types.Kind, t time.Time) error
	Clocks() (map[types.Kind]time.Time, error)

	// Utility
	Close() error
}
