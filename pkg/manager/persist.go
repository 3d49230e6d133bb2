package manager

import (
	"fmt"

	"github.com/cuemby/scontrol/pkg/types"
)

// restore overlays stored records on the configured tables. It reports
// false when the store has never been written.
func (m *Manager) restore() (bool, error) {
	if m.store == nil {
		return false, nil
	}
	clocks, err := m.store.Clocks()
	if err != nil {
		return false, err
	}
	if len(clocks) == 0 {
		return false, nil
	}

	nodes, err := m.store.ListNodes()
	if err != nil {
		return false, err
	}
	index := nodeIndex(m.nodes)
	for _, stored := range nodes {
		if i, ok := index[stored.Name]; ok {
			m.nodes[i].State = stored.State
			m.nodes[i].Reason = stored.Reason
		}
	}

	parts, err := m.store.ListPartitions()
	if err != nil {
		return false, err
	}
	byName := make(map[string]types.Partition, len(parts))
	for _, p := range parts {
		byName[p.Name] = p
	}
	for i := range m.nodes {
		m.nodes[i].Partition = ""
	}
	for i := range m.partitions {
		if stored, ok := byName[m.partitions[i].Name]; ok {
			m.partitions[i] = stored
		}
		if err := assignNodes(m.nodes, index, &m.partitions[i]); err != nil {
			return false, err
		}
	}

	if m.jobs, err = m.store.ListJobs(); err != nil {
		return false, err
	}
	if m.steps, err = m.store.ListSteps(); err != nil {
		return false, err
	}
	sortSteps(m.steps)

	for kind, t := range clocks {
		m.clocks[kind] = t
	}
	for _, kind := range types.Kinds {
		if _, ok := m.clocks[kind]; !ok {
			m.clocks[kind] = m.stamp()
		}
	}
	return true, nil
}

func (m *Manager) persistAll() error {
	if m.store == nil {
		return nil
	}
	for i := range m.nodes {
		if err := m.store.SaveNode(&m.nodes[i]); err != nil {
			return err
		}
	}
	if err := m.persistPartitions(m.partitions); err != nil {
		return err
	}
	for i := range m.jobs {
		if err := m.store.SaveJob(&m.jobs[i]); err != nil {
			return err
		}
	}
	for i := range m.steps {
		if err := m.store.SaveStep(&m.steps[i]); err != nil {
			return err
		}
	}
	for kind, t := range m.clocks {
		if err := m.store.SaveClock(kind, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) persistNodes(nodes []types.Node, names []string) error {
	if m.store == nil {
		return nil
	}
	index := nodeIndex(nodes)
	for _, name := range names {
		if err := m.store.SaveNode(&nodes[index[name]]); err != nil {
			return fmt.Errorf("failed to save node %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) persistPartitions(parts []types.Partition) error {
	if m.store == nil {
		return nil
	}
	for i := range parts {
		if err := m.store.SavePartition(&parts[i]); err != nil {
			return fmt.Errorf("failed to save partition %s: %w", parts[i].Name, err)
		}
	}
	return nil
}
