// Package health probes slurmd daemons and reports nodes that stop
// responding. A node is declared down only after Retries consecutive failed
// checks and comes back on the first successful one.
package health

import (
	"context"
	"time"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	Check(ctx context.Context) Result
}

// Config controls how often nodes are probed and how many failures mark a
// node as not responding
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// Status tracks the health of one node across checks
type Status struct {
	ConsecutiveFailures int
	LastResult          Result
	Healthy             bool
}

// NewStatus creates a Status that assumes the node is healthy
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update folds a new result into the status and reports whether Healthy
// changed
func (s *Status) Update(result Result, config Config) bool {
	s.LastResult = result
	was := s.Healthy

	if result.Healthy {
		s.ConsecutiveFailures = 0
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
	return was != s.Healthy
}
