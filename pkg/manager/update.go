package manager

import (
	"context"
	"fmt"
	"slices"

	"github.com/cuemby/scontrol/pkg/hostlist"
	"github.com/cuemby/scontrol/pkg/metrics"
	"github.com/cuemby/scontrol/pkg/types"
)

func countUpdate(kind types.Kind, err error) {
	status := "ok"
	if err != nil {
		status = "rejected"
	}
	metrics.UpdatesTotal.WithLabelValues(string(kind), status).Inc()
}

func finished(state types.JobState) bool {
	switch state {
	case types.JobStateComplete, types.JobStateFailed, types.JobStateTimeout, types.JobStateCancelled:
		return true
	}
	return false
}

// UpdateJob applies every set field of u to one job
func (m *Manager) UpdateJob(ctx context.Context, u *types.JobUpdate) (err error) {
	defer func() { countUpdate(types.KindJob, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.jobs, func(j types.Job) bool { return j.JobID == u.JobID })
	if i < 0 {
		return fmt.Errorf("job %d %w", u.JobID, ErrNotFound)
	}
	job := m.jobs[i]
	if finished(job.State) {
		return fmt.Errorf("%w: job %d already completed", ErrInvalid, job.JobID)
	}

	setCount(&job.TimeLimit, u.TimeLimit)
	setCount(&job.Priority, u.Priority)
	setCount(&job.NumProcs, u.NumProcs)
	setCount(&job.MinNodes, u.MinNodes)
	setCount(&job.MinProcs, u.MinProcs)
	setCount(&job.MinMemory, u.MinMemory)
	setCount(&job.MinTmpDisk, u.MinTmpDisk)
	if u.Shared != types.NoVal16 {
		job.Shared = u.Shared
	}
	if u.Contiguous != types.NoVal16 {
		job.Contiguous = u.Contiguous
	}
	if u.Partition != "" {
		if !slices.ContainsFunc(m.partitions, func(p types.Partition) bool { return p.Name == u.Partition }) {
			return fmt.Errorf("%w: partition %s does not exist", ErrInvalid, u.Partition)
		}
		job.Partition = u.Partition
	}
	if u.Name != "" {
		job.Name = u.Name
	}
	if u.ReqNodes != "" {
		if _, err := m.knownNodes(u.ReqNodes); err != nil {
			return err
		}
		job.ReqNodes = u.ReqNodes
	}
	if u.Features != "" {
		job.Features = u.Features
	}

	if m.store != nil {
		if err := m.store.SaveJob(&job); err != nil {
			return fmt.Errorf("failed to save job %d: %w", job.JobID, err)
		}
	}
	m.jobs[i] = job
	m.bump(types.KindJob)
	m.logger.Info().Uint32("job_id", job.JobID).Msg("job updated")
	return nil
}

func setCount(dst *uint32, v uint32) {
	if v != types.NoVal {
		*dst = v
	}
}

// knownNodes expands expr and requires every name to exist
func (m *Manager) knownNodes(expr string) ([]string, error) {
	names, err := hostlist.Expand(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: node list %s: %v", ErrInvalid, expr, err)
	}
	index := nodeIndex(m.nodes)
	for _, name := range names {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("node %s %w", name, ErrNotFound)
		}
	}
	return names, nil
}

// UpdateNode sets the state of every node named by the hostlist. Nothing
// changes unless every name exists.
func (m *Manager) UpdateNode(ctx context.Context, u *types.NodeUpdate) (err error) {
	defer func() { countUpdate(types.KindNode, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.knownNodes(u.NodeNames)
	if err != nil {
		return err
	}
	if u.State == types.NoVal16 {
		return nil
	}
	if int(u.State) >= len(types.NodeStateNames()) {
		return fmt.Errorf("%w: node state %d", ErrInvalid, u.State)
	}

	nodes := slices.Clone(m.nodes)
	index := nodeIndex(nodes)
	for _, name := range names {
		nodes[index[name]].State = types.NodeState(u.State)
	}
	if err := m.persistNodes(nodes, names); err != nil {
		return err
	}
	m.nodes = nodes
	m.bump(types.KindNode)
	m.logger.Info().
		Str("nodes", u.NodeNames).
		Str("state", types.NodeState(u.State).String()).
		Msg("nodes updated")
	return nil
}

// UpdatePartition applies every set field of u to one partition. Setting
// Default=YES clears the flag on every other partition.
func (m *Manager) UpdatePartition(ctx context.Context, u *types.PartitionUpdate) (err error) {
	defer func() { countUpdate(types.KindPartition, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.partitions, func(p types.Partition) bool { return p.Name == u.Name })
	if i < 0 {
		return fmt.Errorf("partition %s %w", u.Name, ErrNotFound)
	}
	parts := slices.Clone(m.partitions)
	p := &parts[i]

	setCount(&p.MaxTime, u.MaxTime)
	setCount(&p.MaxNodes, u.MaxNodes)
	if u.RootOnly != types.NoVal16 {
		p.RootOnly = u.RootOnly == 1
	}
	if u.Shared != types.NoVal16 {
		if int(u.Shared) >= len(types.PartitionSharedNames()) {
			return fmt.Errorf("%w: shared value %d", ErrInvalid, u.Shared)
		}
		p.Shared = types.PartitionShared(u.Shared)
	}
	if u.StateUp != types.NoVal16 {
		p.StateUp = u.StateUp == 1
	}
	if u.AllowGroups != "" {
		p.AllowGroups = u.AllowGroups
	}
	if u.Default != types.NoVal16 {
		p.Default = u.Default == 1
		if p.Default {
			for j := range parts {
				if j != i {
					parts[j].Default = false
				}
			}
		}
	}

	kinds := []types.Kind{types.KindPartition}
	nodes := m.nodes
	var changedNodes []string
	if u.Nodes != "" && u.Nodes != p.Nodes {
		nodes = slices.Clone(m.nodes)
		for j := range nodes {
			nodes[j].Partition = ""
		}
		p.Nodes = u.Nodes
		index := nodeIndex(nodes)
		for j := range parts {
			if err := assignNodes(nodes, index, &parts[j]); err != nil {
				return err
			}
		}
		for j := range nodes {
			if nodes[j].Partition != m.nodes[j].Partition {
				changedNodes = append(changedNodes, nodes[j].Name)
			}
		}
		kinds = append(kinds, types.KindNode)
	}

	if err := m.persistPartitions(parts); err != nil {
		return err
	}
	if err := m.persistNodes(nodes, changedNodes); err != nil {
		return err
	}
	m.partitions = parts
	m.nodes = nodes
	m.bump(kinds...)
	m.logger.Info().Str("partition", u.Name).Msg("partition updated")
	return nil
}
