package metrics

import (
	"time"
)

// DepthSource exposes per-agent inbox depths for sampling. Implemented by the
// broker; declared here so the collector does not depend on it.
type DepthSource interface {
	InboxDepths() map[string]int
}

// Collector periodically samples gauge-style metrics from the broker
type Collector struct {
	source   DepthSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source DepthSource, interval time.Duration) *Collector {
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
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
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

func (c *Collector) collect() {
	for agent, depth := range c.source.InboxDepths() {
		InboxDepth.WithLabelValues(agent).Set(float64(depth))
	}
}
