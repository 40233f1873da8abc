package master

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/jqueue"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// DefaultWaitTimeout caps how long a single WaitForJobChange call blocks
const DefaultWaitTimeout = 30 * time.Second

// Config holds configuration for creating a Master
type Config struct {
	LiveData    bool          // Contact node agents for live fields
	MaxJobs     int           // Hard limit on queued jobs
	WaitTimeout time.Duration // Upper bound for WaitForJobChange
}

// Master answers LUXI calls from the configuration store, the job queue
// and the node agents
type Master struct {
	store     storage.Store
	queue     *jqueue.Queue
	broker    *events.Broker
	executor  *query.Executor
	collector query.Collector
	cfg       Config

	// Serializes read-modify-write of the cluster object
	clusterMu sync.Mutex
}

var _ luxi.Handler = (*Master)(nil)

// New creates a master over store. collector may be nil when live data
// is disabled.
func New(store storage.Store, collector query.Collector, cfg Config) (*Master, error) {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}

	lastID, err := store.LastArchivedJobID()
	if err != nil {
		return nil, fmt.Errorf("failed to read job archive: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	queue := jqueue.New(jqueue.Config{MaxJobs: cfg.MaxJobs, LastID: lastID}, store, broker)

	cluster, err := store.GetCluster()
	switch {
	case err == nil:
		queue.SetDrained(cluster.DrainFlag)
	case !errors.Is(err, storage.ErrNotFound):
		broker.Stop()
		return nil, fmt.Errorf("failed to read cluster: %w", err)
	}

	m := &Master{
		store:     store,
		queue:     queue,
		broker:    broker,
		executor:  query.NewExecutor(collector),
		collector: collector,
		cfg:       cfg,
	}

	logger := log.WithComponent("master")
	logger.Info().
		Bool("live_data", cfg.LiveData).
		Str("next_job_id", (lastID + 1).String()).
		Msg("Master initialized")
	return m, nil
}

// Queue returns the job queue
func (m *Master) Queue() *jqueue.Queue {
	return m.queue
}

// Broker returns the event broker
func (m *Master) Broker() *events.Broker {
	return m.broker
}

// Snapshot returns the current configuration
func (m *Master) Snapshot() (*types.ConfigData, error) {
	return m.store.Snapshot()
}

// JobCounts returns queued jobs per status
func (m *Master) JobCounts() map[types.JobStatus]int {
	return m.queue.JobCounts()
}

// Reload replaces the configuration with the contents of the data
// files. Runtime flags kept in the cluster object survive the reload.
func (m *Master) Reload(nodesPath, instancesPath string) error {
	cfg, err := storage.LoadDataFiles(nodesPath, instancesPath)
	if err != nil {
		return err
	}

	m.clusterMu.Lock()
	defer m.clusterMu.Unlock()
	if cur, err := m.store.GetCluster(); err == nil {
		cfg.Cluster.DrainFlag = cur.DrainFlag
		cfg.Cluster.WatcherPause = cur.WatcherPause
	}
	if err := m.store.Replace(cfg); err != nil {
		return fmt.Errorf("failed to store configuration: %w", err)
	}

	m.broker.Publish(&events.Event{Type: events.EventConfigReloaded, Message: nodesPath})
	logger := log.WithComponent("master")
	logger.Info().
		Int("nodes", len(cfg.Nodes)).
		Int("instances", len(cfg.Instances)).
		Msg("Configuration reloaded")
	return nil
}

// updateCluster applies fn to the stored cluster object
func (m *Master) updateCluster(fn func(c *types.Cluster)) error {
	m.clusterMu.Lock()
	defer m.clusterMu.Unlock()

	cluster, err := m.store.GetCluster()
	if errors.Is(err, storage.ErrNotFound) {
		cluster, err = &types.Cluster{}, nil
	}
	if err != nil {
		return err
	}
	fn(cluster)
	cluster.SerialNo++
	cluster.ModifiedAt = time.Now()
	return m.store.SaveCluster(cluster)
}

// Shutdown stops the event broker
func (m *Master) Shutdown() {
	m.broker.Stop()
}
