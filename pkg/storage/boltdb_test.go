package storage

import (
	"testing"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobsListInIDOrder(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []uint32{300, 2, 70000} {
		require.NoError(t, store.SaveJob(&types.Job{JobID: id, Name: "j", State: types.JobStatePending}))
	}

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []uint32{2, 300, 70000}, []uint32{jobs[0].JobID, jobs[1].JobID, jobs[2].JobID})

	job, err := store.GetJob(300)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatePending, job.State)

	require.NoError(t, store.DeleteJob(300))
	_, err = store.GetJob(300)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNodeUpsert(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveNode(&types.Node{Name: "lx1", State: types.NodeStateIdle, CPUs: 8}))
	require.NoError(t, store.SaveNode(&types.Node{Name: "lx1", State: types.NodeStateDrain, CPUs: 8, Reason: "maint"}))

	node, err := store.GetNode("lx1")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateDrain, node.State)
	assert.Equal(t, "maint", node.Reason)

	nodes, err := store.ListNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	_, err = store.GetNode("lx2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartitionsAndSteps(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePartition(&types.Partition{Name: "debug", MaxTime: types.Infinite, Shared: types.SharedForce}))
	parts, err := store.ListPartitions()
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, types.SharedForce, parts[0].Shared)
	assert.Equal(t, types.Infinite, parts[0].MaxTime)

	require.NoError(t, store.SaveStep(&types.Step{JobID: 5, StepID: 1, Pids: []int32{100, 101}}))
	require.NoError(t, store.SaveStep(&types.Step{JobID: 5, StepID: 0}))
	steps, err := store.ListSteps()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, uint32(0), steps[0].StepID)
	assert.Equal(t, []int32{100, 101}, steps[1].Pids)

	require.NoError(t, store.DeleteStep(5, 1))
	steps, err = store.ListSteps()
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestClocks(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveClock(types.KindNode, now))
	clocks, err := store.Clocks()
	require.NoError(t, err)
	assert.True(t, now.Equal(clocks[types.KindNode]))
	_, ok := clocks[types.KindJob]
	assert.False(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveJob(&types.Job{JobID: 9}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()
	job, err := store.GetJob(9)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), job.JobID)
}
