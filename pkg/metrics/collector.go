package metrics

import (
	"time"

	"github.com/cuemby/scontrol/pkg/types"
)

// Source reports current record counts
type Source interface {
	RecordCounts() map[types.Kind]int
	NodeStateCounts() map[string]int
}

// Collector periodically copies record counts into gauges
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect updates the gauges once
func (c *Collector) Collect() {
	for kind, n := range c.source.RecordCounts() {
		RecordsTotal.WithLabelValues(string(kind)).Set(float64(n))
	}

	states := c.source.NodeStateCounts()
	for _, name := range types.NodeStateNames() {
		NodesByState.WithLabelValues(name).Set(float64(states[name]))
	}
}
