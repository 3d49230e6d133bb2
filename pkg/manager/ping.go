package manager

import (
	"fmt"
	"net"
	"slices"
	"strconv"

	"github.com/cuemby/scontrol/pkg/hostlist"
	"github.com/cuemby/scontrol/pkg/types"
)

// ReasonNotResponding is set on nodes taken down by failed slurmd probes
const ReasonNotResponding = "Not responding"

// PingTargets maps every node with a configured slurmd port to its address
func (m *Manager) PingTargets() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make(map[string]string)
	for _, nc := range m.cfg.Nodes {
		if nc.Port == 0 {
			continue
		}
		hl, err := hostlist.Parse(nc.Names)
		if err != nil {
			continue
		}
		port := strconv.Itoa(int(nc.Port))
		for name := range hl.All() {
			targets[name] = net.JoinHostPort(name, port)
		}
	}
	return targets
}

// SetNodeResponding marks a node DOWN when its slurmd stops answering and
// returns it to IDLE when it answers again. Only nodes taken down for not
// responding are brought back; an administrator's DOWN is kept.
func (m *Manager) SetNodeResponding(name string, responding bool, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.nodes, func(n types.Node) bool { return n.Name == name })
	if i < 0 {
		return fmt.Errorf("node %s %w", name, ErrNotFound)
	}
	node := m.nodes[i]

	switch {
	case !responding && node.State != types.NodeStateDown:
		node.State = types.NodeStateDown
		node.Reason = ReasonNotResponding
	case responding && node.State == types.NodeStateDown && node.Reason == ReasonNotResponding:
		node.State = types.NodeStateIdle
		node.Reason = ""
	default:
		return nil
	}

	nodes := slices.Clone(m.nodes)
	nodes[i] = node
	if err := m.persistNodes(nodes, []string{name}); err != nil {
		return err
	}
	m.nodes = nodes
	m.bump(types.KindNode)
	m.logger.Warn().
		Str("node", name).
		Str("state", node.State.String()).
		Str("detail", detail).
		Msg("node responsiveness changed")
	return nil
}
