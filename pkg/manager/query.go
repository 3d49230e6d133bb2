package manager

import (
	"context"
	"time"

	"github.com/cuemby/scontrol/pkg/metrics"
	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
)

// load answers a delta query. A zero since always gets a full snapshot;
// otherwise the caller's copy is current unless since is older than the
// kind's last update.
func load[T any](m *Manager, kind types.Kind, since time.Time, records []T) snapshot.Response[T] {
	last := m.clocks[kind]
	if !since.IsZero() && !since.Before(last) {
		metrics.QueriesTotal.WithLabelValues(string(kind), metrics.OutcomeUnchanged).Inc()
		return snapshot.Unchanged[T]()
	}

	out := make([]T, len(records))
	copy(out, records)
	metrics.QueriesTotal.WithLabelValues(string(kind), metrics.OutcomeSnapshot).Inc()
	return snapshot.Fresh(snapshot.New(last, out))
}

// failed counts a query that could not be answered
func failed[T any](kind types.Kind, err error) (snapshot.Response[T], error) {
	metrics.QueriesTotal.WithLabelValues(string(kind), metrics.OutcomeError).Inc()
	return snapshot.Response[T]{}, err
}

func (m *Manager) LoadConfig(ctx context.Context, since time.Time) (snapshot.Response[types.ConfigEntry], error) {
	if err := ctx.Err(); err != nil {
		return failed[types.ConfigEntry](types.KindConfig, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return load(m, types.KindConfig, since, m.configEntries), nil
}

func (m *Manager) LoadJobs(ctx context.Context, since time.Time) (snapshot.Response[types.Job], error) {
	if err := ctx.Err(); err != nil {
		return failed[types.Job](types.KindJob, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return load(m, types.KindJob, since, m.jobs), nil
}

func (m *Manager) LoadNodes(ctx context.Context, since time.Time) (snapshot.Response[types.Node], error) {
	if err := ctx.Err(); err != nil {
		return failed[types.Node](types.KindNode, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return load(m, types.KindNode, since, m.nodes), nil
}

func (m *Manager) LoadPartitions(ctx context.Context, since time.Time) (snapshot.Response[types.Partition], error) {
	if err := ctx.Err(); err != nil {
		return failed[types.Partition](types.KindPartition, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return load(m, types.KindPartition, since, m.partitions), nil
}

// LoadSteps narrows the result to the filter's job. The step id part of the
// filter is left to the caller.
func (m *Manager) LoadSteps(ctx context.Context, since time.Time, filter types.StepFilter) (snapshot.Response[types.Step], error) {
	if err := ctx.Err(); err != nil {
		return failed[types.Step](types.KindStep, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := m.steps
	if filter.JobID != 0 {
		steps = nil
		for _, s := range m.steps {
			if s.JobID == filter.JobID {
				steps = append(steps, s)
			}
		}
	}
	return load(m, types.KindStep, since, steps), nil
}
