package console

import (
	"bytes"
	"context"
	"time"

	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
)

// fakeController serves fixed record sets and answers Unchanged whenever
// since is not older than the stamp
type fakeController struct {
	stamp      time.Time
	config     []types.ConfigEntry
	jobs       []types.Job
	nodes      []types.Node
	partitions []types.Partition
	steps      []types.Step

	loadErr   error
	updateErr error
	pidJob    uint32
	pidErr    error

	loads       map[types.Kind]int
	stepFilters []types.StepFilter
	jobUpdates  []*types.JobUpdate
	nodeUpdates []*types.NodeUpdate
	partUpdates []*types.PartitionUpdate
	shutdowns   []bool
	reconfigs   int
}

func newFakeController() *fakeController {
	return &fakeController{
		stamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		loads: make(map[types.Kind]int),
	}
}

func load[T any](f *fakeController, kind types.Kind, since time.Time, records []T) (snapshot.Response[T], error) {
	f.loads[kind]++
	if f.loadErr != nil {
		return snapshot.Response[T]{}, f.loadErr
	}
	if !since.IsZero() && !since.Before(f.stamp) {
		return snapshot.Unchanged[T](), nil
	}
	out := make([]T, len(records))
	copy(out, records)
	return snapshot.Fresh(snapshot.New(f.stamp, out)), nil
}

func (f *fakeController) LoadConfig(_ context.Context, since time.Time) (snapshot.Response[types.ConfigEntry], error) {
	return load(f, types.KindConfig, since, f.config)
}

func (f *fakeController) LoadJobs(_ context.Context, since time.Time) (snapshot.Response[types.Job], error) {
	return load(f, types.KindJob, since, f.jobs)
}

func (f *fakeController) LoadNodes(_ context.Context, since time.Time) (snapshot.Response[types.Node], error) {
	return load(f, types.KindNode, since, f.nodes)
}

func (f *fakeController) LoadPartitions(_ context.Context, since time.Time) (snapshot.Response[types.Partition], error) {
	return load(f, types.KindPartition, since, f.partitions)
}

func (f *fakeController) LoadSteps(_ context.Context, since time.Time, filter types.StepFilter) (snapshot.Response[types.Step], error) {
	f.stepFilters = append(f.stepFilters, filter)
	return load(f, types.KindStep, since, f.steps)
}

func (f *fakeController) UpdateJob(_ context.Context, u *types.JobUpdate) error {
	f.jobUpdates = append(f.jobUpdates, u)
	return f.updateErr
}

func (f *fakeController) UpdateNode(_ context.Context, u *types.NodeUpdate) error {
	f.nodeUpdates = append(f.nodeUpdates, u)
	return f.updateErr
}

func (f *fakeController) UpdatePartition(_ context.Context, u *types.PartitionUpdate) error {
	f.partUpdates = append(f.partUpdates, u)
	return f.updateErr
}

func (f *fakeController) Shutdown(_ context.Context, coreDump bool) error {
	f.shutdowns = append(f.shutdowns, coreDump)
	return nil
}

func (f *fakeController) Reconfigure(context.Context) error {
	f.reconfigs++
	return nil
}

func (f *fakeController) PidToJobID(_ context.Context, _ int32) (uint32, error) {
	return f.pidJob, f.pidErr
}

func (f *fakeController) mutations() int {
	return len(f.jobUpdates) + len(f.nodeUpdates) + len(f.partUpdates)
}

func nodes(names ...string) []types.Node {
	out := make([]types.Node, len(names))
	for i, n := range names {
		out[i] = types.Node{Name: n, State: types.NodeStateIdle, CPUs: 4}
	}
	return out
}

type harness struct {
	ctl     *fakeController
	session *Session
	out     *bytes.Buffer
	errOut  *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		ctl:    newFakeController(),
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
	h.session = NewSession(h.ctl, Options{
		Version:  "1.0.0",
		Out:      h.out,
		Err:      h.errOut,
		Hostname: func() (string, error) { return "ctl1", nil },
	})
	return h
}

func (h *harness) run(line string) {
	_ = h.session.ExecuteLine(context.Background(), line)
}

func (h *harness) reset() {
	h.out.Reset()
	h.errOut.Reset()
}
