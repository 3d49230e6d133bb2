package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/scontrol/pkg/log"
	"github.com/rs/zerolog"
)

// Nodes is the node table the monitor probes
type Nodes interface {
	// PingTargets maps node names to slurmd addresses
	PingTargets() map[string]string
	// SetNodeResponding records a change in a node's responsiveness
	SetNodeResponding(name string, responding bool, reason string) error
}

// Monitor periodically probes every slurmd and reports transitions
type Monitor struct {
	nodes      Nodes
	config     Config
	newChecker func(node, addr string, timeout time.Duration) Checker
	logger     zerolog.Logger

	mu     sync.Mutex
	status map[string]*Status

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor over nodes
func NewMonitor(nodes Nodes, config Config) *Monitor {
	if config.Retries < 1 {
		config.Retries = 1
	}
	return &Monitor{
		nodes:  nodes,
		config: config,
		newChecker: func(node, addr string, timeout time.Duration) Checker {
			return NewSlurmdChecker(node, addr, timeout)
		},
		logger: log.WithComponent("health"),
		status: make(map[string]*Status),
		stopCh: make(chan struct{}),
	}
}

// Start begins probing in the background
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckAll(context.Background())
			case <-m.stopCh:
				return
			}
		}
	}()
	m.logger.Info().Dur("interval", m.config.Interval).Msg("node monitor started")
}

// Stop halts probing and waits for the loop to exit
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// CheckAll probes every node once, in parallel
func (m *Monitor) CheckAll(ctx context.Context) {
	targets := m.nodes.PingTargets()

	m.mu.Lock()
	for name := range m.status {
		if _, ok := targets[name]; !ok {
			delete(m.status, name)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, addr := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
			defer cancel()
			m.record(name, m.newChecker(name, addr, m.config.Timeout).Check(checkCtx))
		}()
	}
	wg.Wait()
}

func (m *Monitor) record(name string, result Result) {
	m.mu.Lock()
	st, ok := m.status[name]
	if !ok {
		st = NewStatus()
		m.status[name] = st
	}
	changed := st.Update(result, m.config)
	healthy := st.Healthy
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info().
		Str("node", name).
		Bool("responding", healthy).
		Str("result", result.Message).
		Msg("node responsiveness changed")
	if err := m.nodes.SetNodeResponding(name, healthy, result.Message); err != nil {
		m.logger.Warn().Err(err).Str("node", name).Msg("failed to record node responsiveness")
	}
}

// Healthy reports the last known state of a node. Unprobed nodes are
// healthy.
func (m *Monitor) Healthy(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.status[name]; ok {
		return st.Healthy
	}
	return true
}

// Check fails while any probed node is not responding. It is the
// readiness signal for the node table.
func (m *Monitor) Check() error {
	m.mu.Lock()
	total := len(m.status)
	var down []string
	for name, st := range m.status {
		if !st.Healthy {
			down = append(down, name)
		}
	}
	m.mu.Unlock()

	if len(down) == 0 {
		return nil
	}
	sort.Strings(down)
	return fmt.Errorf("%d of %d nodes not responding: %s", len(down), total, strings.Join(down, ","))
}
