package health

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNodes struct {
	mu      sync.Mutex
	targets map[string]string
	changes []string
}

func (f *fakeNodes) PingTargets() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.targets))
	for k, v := range f.targets {
		out[k] = v
	}
	return out
}

func (f *fakeNodes) SetNodeResponding(name string, responding bool, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := "down"
	if responding {
		state = "up"
	}
	f.changes = append(f.changes, name+" "+state)
	return nil
}

// scripted answers each check from a per-address result list
type scripted struct {
	mu      sync.Mutex
	results map[string][]bool
}

func (s *scripted) checker(_, addr string, _ time.Duration) Checker {
	return checkFunc(func(context.Context) Result {
		s.mu.Lock()
		defer s.mu.Unlock()
		next := s.results[addr]
		healthy := true
		if len(next) > 0 {
			healthy, s.results[addr] = next[0], next[1:]
		}
		return Result{Healthy: healthy, Message: addr}
	})
}

type checkFunc func(context.Context) Result

func (f checkFunc) Check(ctx context.Context) Result { return f(ctx) }

func TestStatusUpdate(t *testing.T) {
	cfg := Config{Retries: 2}
	st := NewStatus()

	assert.False(t, st.Update(Result{Healthy: false}, cfg))
	assert.True(t, st.Healthy)
	assert.True(t, st.Update(Result{Healthy: false}, cfg))
	assert.False(t, st.Healthy)
	assert.False(t, st.Update(Result{Healthy: false}, cfg))
	assert.Equal(t, 3, st.ConsecutiveFailures)

	assert.True(t, st.Update(Result{Healthy: true}, cfg))
	assert.True(t, st.Healthy)
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestMonitorReportsTransitions(t *testing.T) {
	nodes := &fakeNodes{targets: map[string]string{"lx1": "lx1:6818", "lx2": "lx2:6818"}}
	script := &scripted{results: map[string][]bool{
		"lx1:6818": {false, false, true},
		"lx2:6818": {true, false, true},
	}}

	m := NewMonitor(nodes, Config{Interval: time.Hour, Timeout: time.Second, Retries: 2})
	m.newChecker = script.checker

	ctx := context.Background()
	m.CheckAll(ctx)
	assert.Empty(t, nodes.changes)

	m.CheckAll(ctx)
	assert.Equal(t, []string{"lx1 down"}, nodes.changes)
	assert.False(t, m.Healthy("lx1"))
	assert.True(t, m.Healthy("lx2"))

	m.CheckAll(ctx)
	assert.Equal(t, []string{"lx1 down", "lx1 up"}, nodes.changes)
	assert.True(t, m.Healthy("lx1"))
}

func TestMonitorForgetsRemovedNodes(t *testing.T) {
	nodes := &fakeNodes{targets: map[string]string{"lx1": "lx1:6818"}}
	script := &scripted{results: map[string][]bool{"lx1:6818": {false}}}

	m := NewMonitor(nodes, Config{Interval: time.Hour, Timeout: time.Second, Retries: 0})
	m.newChecker = script.checker
	m.CheckAll(context.Background())
	assert.False(t, m.Healthy("lx1"))

	nodes.targets = map[string]string{}
	m.CheckAll(context.Background())
	assert.True(t, m.Healthy("lx1"))
}

func TestSlurmdChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := lis.Addr().String()
	result := NewSlurmdChecker("lx1", addr, time.Second).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Contains(t, result.Message, "slurmd on lx1 answered")

	require.NoError(t, lis.Close())
	result = NewSlurmdChecker("lx1", addr, time.Second).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "slurmd on lx1 unreachable at "+addr)
}

func TestNewSlurmdCheckerDefaultTimeout(t *testing.T) {
	c := NewSlurmdChecker("lx1", "lx1:6818", 0)
	assert.Equal(t, DefaultSlurmdTimeout, c.Timeout)
}

func TestMonitorCheck(t *testing.T) {
	nodes := &fakeNodes{targets: map[string]string{
		"lx1": "lx1:6818", "lx2": "lx2:6818", "lx3": "lx3:6818",
	}}
	script := &scripted{results: map[string][]bool{
		"lx1:6818": {false, true},
		"lx3:6818": {false, true},
	}}

	m := NewMonitor(nodes, Config{Interval: time.Hour, Timeout: time.Second, Retries: 1})
	m.newChecker = script.checker
	assert.NoError(t, m.Check())

	m.CheckAll(context.Background())
	assert.EqualError(t, m.Check(), "2 of 3 nodes not responding: lx1,lx3")

	m.CheckAll(context.Background())
	assert.NoError(t, m.Check())
}

func TestMonitorStartStop(t *testing.T) {
	m := NewMonitor(&fakeNodes{}, Config{Interval: time.Millisecond, Timeout: time.Second, Retries: 1})
	m.Start()
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
