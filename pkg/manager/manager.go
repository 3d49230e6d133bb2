// Package manager is the reference controller behind slurmctld. It owns the
// job, node, partition and step tables, answers delta queries against a
// per-kind last update time, and validates every update before applying it.
package manager

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/scontrol/pkg/config"
	"github.com/cuemby/scontrol/pkg/hostlist"
	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/storage"
	"github.com/cuemby/scontrol/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a named record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a request is rejected by validation
	ErrInvalid = errors.New("invalid request")
)

// Config holds configuration for creating a Manager
type Config struct {
	Controller *config.Controller
	// ConfigPath is re-read by Reconfigure. Empty disables reconfigure.
	ConfigPath string
	// Store persists records. Nil keeps everything in memory.
	Store storage.Store
	// Now overrides the clock
	Now func() time.Time
}

// Manager represents the controller state
type Manager struct {
	mu      sync.RWMutex
	cfgPath string
	cfg     *config.Controller
	store   storage.Store
	now     func() time.Time
	logger  zerolog.Logger

	configEntries []types.ConfigEntry
	jobs          []types.Job
	nodes         []types.Node
	partitions    []types.Partition
	steps         []types.Step
	clocks        map[types.Kind]time.Time

	shutdownCh   chan bool
	shutdownOnce sync.Once
}

// NewManager builds the controller tables from the config, then overlays
// whatever the store kept from a previous run
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller config is required")
	}

	m := &Manager{
		cfgPath:    cfg.ConfigPath,
		cfg:        cfg.Controller,
		store:      cfg.Store,
		now:        cfg.Now,
		logger:     log.WithComponent("manager"),
		clocks:     make(map[types.Kind]time.Time),
		shutdownCh: make(chan bool, 1),
	}
	if m.now == nil {
		m.now = time.Now
	}

	nodes, parts, err := buildTopology(cfg.Controller, nil)
	if err != nil {
		return nil, err
	}
	jobs, err := buildJobs(cfg.Controller, parts)
	if err != nil {
		return nil, err
	}
	m.configEntries = buildConfigEntries(cfg.Controller)
	m.nodes = nodes
	m.partitions = parts
	m.jobs = jobs
	m.steps = buildSteps(cfg.Controller, jobs, m.stamp())

	restored, err := m.restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}
	if !restored {
		start := m.stamp()
		for _, kind := range types.Kinds {
			m.clocks[kind] = start
		}
		if err := m.persistAll(); err != nil {
			return nil, fmt.Errorf("failed to persist initial state: %w", err)
		}
	}

	m.logger.Info().
		Int("nodes", len(m.nodes)).
		Int("partitions", len(m.partitions)).
		Int("jobs", len(m.jobs)).
		Int("steps", len(m.steps)).
		Bool("restored", restored).
		Msg("controller state ready")
	return m, nil
}

// stamp returns the current time without a monotonic reading so it survives
// encoding and compares by wall clock
func (m *Manager) stamp() time.Time {
	return m.now().Round(0)
}

// bump advances the last update time of kind. Successive bumps are strictly
// increasing even when the clock does not move.
func (m *Manager) bump(kinds ...types.Kind) {
	t := m.stamp()
	for _, kind := range kinds {
		next := t
		if prev := m.clocks[kind]; !next.After(prev) {
			next = prev.Add(time.Nanosecond)
		}
		m.clocks[kind] = next
		if m.store != nil {
			if err := m.store.SaveClock(kind, next); err != nil {
				m.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to persist clock")
			}
		}
	}
}

// LastUpdate returns the last update time of kind
func (m *Manager) LastUpdate(kind types.Kind) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clocks[kind]
}

// ShutdownRequested delivers the core dump flag of the first shutdown request
func (m *Manager) ShutdownRequested() <-chan bool {
	return m.shutdownCh
}

// RecordCounts reports the size of every table
func (m *Manager) RecordCounts() map[types.Kind]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[types.Kind]int{
		types.KindConfig:    len(m.configEntries),
		types.KindJob:       len(m.jobs),
		types.KindNode:      len(m.nodes),
		types.KindPartition: len(m.partitions),
		types.KindStep:      len(m.steps),
	}
}

// NodeStateCounts reports how many nodes are in each state
func (m *Manager) NodeStateCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, n := range m.nodes {
		counts[n.State.String()]++
	}
	return counts
}

func buildConfigEntries(cfg *config.Controller) []types.ConfigEntry {
	entries := []types.ConfigEntry{
		{Key: "ClusterName", Value: cfg.ClusterName},
		{Key: "ControlMachine", Value: cfg.ControlMachine},
		{Key: "BackupController", Value: cfg.BackupController},
		{Key: "SlurmctldAddr", Value: cfg.Listen},
		{Key: "StateSaveLocation", Value: cfg.DataDir},
	}
	keys := make([]string, 0, len(cfg.Parameters))
	for k := range cfg.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entries = append(entries, types.ConfigEntry{Key: k, Value: cfg.Parameters[k]})
	}
	return entries
}

// buildTopology expands the node and partition definitions. States of nodes
// already present in prev are kept.
func buildTopology(cfg *config.Controller, prev []types.Node) ([]types.Node, []types.Partition, error) {
	kept := make(map[string]types.Node, len(prev))
	for _, n := range prev {
		kept[n.Name] = n
	}

	var nodes []types.Node
	index := make(map[string]int)
	for _, nc := range cfg.Nodes {
		names, err := hostlist.Expand(nc.Names)
		if err != nil {
			return nil, nil, fmt.Errorf("nodes %s: %w", nc.Names, err)
		}
		state := types.NodeStateUnknown
		if nc.State != "" {
			state, _ = types.ParseNodeState(nc.State)
		}
		for _, name := range names {
			if _, dup := index[name]; dup {
				return nil, nil, fmt.Errorf("node %s defined more than once", name)
			}
			node := types.Node{
				Name:       name,
				State:      state,
				CPUs:       nc.CPUs,
				RealMemory: nc.RealMemory,
				TmpDisk:    nc.TmpDisk,
				Weight:     nc.Weight,
				Features:   nc.Features,
			}
			if old, ok := kept[name]; ok {
				node.State = old.State
				node.Reason = old.Reason
			}
			index[name] = len(nodes)
			nodes = append(nodes, node)
		}
	}

	var parts []types.Partition
	hasDefault := false
	for _, pc := range cfg.Partitions {
		p := types.Partition{
			Name:        pc.Name,
			MaxTime:     types.Infinite,
			MaxNodes:    types.Infinite,
			Default:     pc.Default,
			RootOnly:    pc.RootOnly,
			StateUp:     pc.State == "" || strings.EqualFold(pc.State, "UP"),
			Nodes:       pc.Nodes,
			AllowGroups: pc.AllowGroups,
		}
		if p.AllowGroups == "" {
			p.AllowGroups = "ALL"
		}
		if pc.MaxTime != nil {
			p.MaxTime = uint32(*pc.MaxTime)
		}
		if pc.MaxNodes != nil {
			p.MaxNodes = uint32(*pc.MaxNodes)
		}
		for i, name := range types.PartitionSharedNames() {
			if strings.EqualFold(name, pc.Shared) {
				p.Shared = types.PartitionShared(i)
			}
		}
		if p.Default {
			if hasDefault {
				return nil, nil, fmt.Errorf("partition %s: more than one default partition", p.Name)
			}
			hasDefault = true
		}
		parts = append(parts, p)
	}

	for i := range parts {
		if err := assignNodes(nodes, index, &parts[i]); err != nil {
			return nil, nil, err
		}
	}
	return nodes, parts, nil
}

// assignNodes resolves the partition's node list and recomputes its totals
func assignNodes(nodes []types.Node, index map[string]int, p *types.Partition) error {
	p.TotalNodes, p.TotalCPUs = 0, 0
	if p.Nodes == "" {
		return nil
	}
	names, err := hostlist.Expand(p.Nodes)
	if err != nil {
		return fmt.Errorf("%w: partition %s nodes %s: %v", ErrInvalid, p.Name, p.Nodes, err)
	}
	for _, name := range names {
		i, ok := index[name]
		if !ok {
			return fmt.Errorf("%w: partition %s: node %s does not exist", ErrInvalid, p.Name, name)
		}
		if nodes[i].Partition == "" || nodes[i].Partition == p.Name {
			nodes[i].Partition = p.Name
		}
		p.TotalNodes++
		p.TotalCPUs += nodes[i].CPUs
	}
	return nil
}

func nodeIndex(nodes []types.Node) map[string]int {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.Name] = i
	}
	return index
}

func buildJobs(cfg *config.Controller, parts []types.Partition) ([]types.Job, error) {
	var def string
	for _, p := range parts {
		if p.Default {
			def = p.Name
		}
	}

	jobs := make([]types.Job, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		job := types.Job{
			JobID:     jc.JobID,
			UserID:    jc.UserID,
			Name:      jc.Name,
			State:     types.JobStatePending,
			Partition: jc.Partition,
			Nodes:     jc.Nodes,
			TimeLimit: types.Infinite,
			Priority:  jc.Priority,
			NumProcs:  jc.NumProcs,
			MinNodes:  jc.MinNodes,
		}
		if jc.State != "" {
			job.State = types.JobState(strings.ToUpper(jc.State))
		}
		if jc.TimeLimit != nil {
			job.TimeLimit = uint32(*jc.TimeLimit)
		}
		if job.Partition == "" {
			job.Partition = def
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JobID < jobs[j].JobID })
	for i := 1; i < len(jobs); i++ {
		if jobs[i].JobID == jobs[i-1].JobID {
			return nil, fmt.Errorf("job %d defined more than once", jobs[i].JobID)
		}
	}
	return jobs, nil
}

func buildSteps(cfg *config.Controller, jobs []types.Job, start time.Time) []types.Step {
	partitions := make(map[uint32]string, len(jobs))
	for _, j := range jobs {
		partitions[j.JobID] = j.Partition
	}

	steps := make([]types.Step, 0, len(cfg.Steps))
	for _, sc := range cfg.Steps {
		steps = append(steps, types.Step{
			Partition: partitions[sc.JobID],
			JobID:     sc.JobID,
			StepID:    sc.StepID,
			UserID:    sc.UserID,
			Nodes:     sc.Nodes,
			StartTime: start,
			Pids:      sc.Pids,
		})
	}
	sortSteps(steps)
	return steps
}

func sortSteps(steps []types.Step) {
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].JobID != steps[j].JobID {
			return steps[i].JobID < steps[j].JobID
		}
		return steps[i].StepID < steps[j].StepID
	})
}
