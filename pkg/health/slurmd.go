package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultSlurmdTimeout bounds a single connect attempt
const DefaultSlurmdTimeout = 5 * time.Second

// SlurmdChecker reports whether the slurmd of one node accepts connections
// on its configured port. The connection is closed without a handshake.
type SlurmdChecker struct {
	Node    string
	Address string
	Timeout time.Duration
}

// NewSlurmdChecker builds a checker for node listening on address
func NewSlurmdChecker(node, address string, timeout time.Duration) *SlurmdChecker {
	if timeout <= 0 {
		timeout = DefaultSlurmdTimeout
	}
	return &SlurmdChecker{Node: node, Address: address, Timeout: timeout}
}

func (s *SlurmdChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := Result{CheckedAt: start}

	dialer := &net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.Address)
	result.Duration = time.Since(start)
	if err != nil {
		result.Message = fmt.Sprintf("slurmd on %s unreachable at %s: %v", s.Node, s.Address, err)
		return result
	}
	_ = conn.Close()

	result.Healthy = true
	result.Message = fmt.Sprintf("slurmd on %s answered in %s", s.Node, result.Duration.Round(time.Millisecond))
	return result
}
