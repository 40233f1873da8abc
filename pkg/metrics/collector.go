package metrics

import (
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Source provides the state sampled by the collector
type Source interface {
	Snapshot() (*types.ConfigData, error)
	JobCounts() map[types.JobStatus]int
}

// Collector periodically publishes cluster and queue gauges
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(src Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   src,
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

// Collect samples the source once
func (c *Collector) Collect() {
	if cfg, err := c.source.Snapshot(); err == nil {
		c.collectConfigMetrics(cfg)
	}
	c.collectJobMetrics()
}

func (c *Collector) collectConfigMetrics(cfg *types.ConfigData) {
	roles := map[string]int{
		"master": 0, "candidate": 0, "drained": 0, "offline": 0, "regular": 0,
	}
	for _, n := range cfg.Nodes {
		switch {
		case n.UUID == cfg.Cluster.MasterNode:
			roles["master"]++
		case n.MasterCandidate:
			roles["candidate"]++
		case n.Drained:
			roles["drained"]++
		case n.Offline:
			roles["offline"]++
		default:
			roles["regular"]++
		}
	}
	for role, count := range roles {
		NodesTotal.WithLabelValues(role).Set(float64(count))
	}

	states := map[types.AdminState]int{
		types.AdminStateUp: 0, types.AdminStateDown: 0, types.AdminStateOffline: 0,
	}
	for _, inst := range cfg.Instances {
		states[inst.AdminState]++
	}
	for state, count := range states {
		InstancesTotal.WithLabelValues(string(state)).Set(float64(count))
	}

	GroupsTotal.Set(float64(len(cfg.Groups)))
}

func (c *Collector) collectJobMetrics() {
	counts := c.source.JobCounts()
	for _, st := range types.AllJobStatuses {
		JobsTotal.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
