package manager

import (
	"context"
	"fmt"
	"slices"

	"github.com/cuemby/scontrol/pkg/config"
	"github.com/cuemby/scontrol/pkg/types"
)

// Shutdown asks the daemon to stop. With coreDump set the daemon aborts
// without draining. Only the first request is delivered.
func (m *Manager) Shutdown(ctx context.Context, coreDump bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delivered := false
	m.shutdownOnce.Do(func() {
		m.shutdownCh <- coreDump
		delivered = true
	})
	m.logger.Warn().Bool("core_dump", coreDump).Bool("first", delivered).Msg("shutdown requested")
	return nil
}

// Reconfigure re-reads the config file. Node and partition definitions are
// replaced while node states survive; jobs and steps are left alone.
func (m *Manager) Reconfigure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfgPath == "" {
		return fmt.Errorf("%w: no configuration file to re-read", ErrInvalid)
	}
	cfg, err := config.LoadController(m.cfgPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nodes, parts, err := buildTopology(cfg, m.nodes)
	if err != nil {
		return err
	}
	if err := m.persistPartitions(parts); err != nil {
		return err
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	if err := m.persistNodes(nodes, names); err != nil {
		return err
	}

	m.cfg = cfg
	m.configEntries = buildConfigEntries(cfg)
	m.nodes = nodes
	m.partitions = parts
	m.bump(types.KindConfig, types.KindNode, types.KindPartition)
	m.logger.Info().Str("path", m.cfgPath).Int("nodes", len(nodes)).Msg("reconfigured")
	return nil
}

// ErrNoJob is returned by PidToJobID when no step owns the pid
var ErrNoJob = fmt.Errorf("no job for process: %w", ErrNotFound)

// PidToJobID finds the job whose step runs pid
func (m *Manager) PidToJobID(ctx context.Context, pid int32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: process id %d", ErrInvalid, pid)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.steps {
		if slices.Contains(s.Pids, pid) {
			return s.JobID, nil
		}
	}
	return 0, ErrNoJob
}
