package rpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Defaults for the collector
const (
	DefaultAgentPort   = 1811
	DefaultCallTimeout = 10 * time.Second
	DefaultParallelism = 16
)

// CollectorConfig configures a Collector
type CollectorConfig struct {
	Port        int           // Agent port on every node
	Timeout     time.Duration // Per node call timeout
	Parallelism int           // Nodes contacted at once
	DialOptions []grpc.DialOption

	// Address overrides how a node's agent address is derived
	Address func(node *types.Node) string
}

// Collector fetches live node data from the node agents over gRPC
type Collector struct {
	cfg CollectorConfig

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

var _ query.Collector = (*Collector)(nil)

// NewCollector creates a collector. Connections are opened lazily and
// reused across calls.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Port == 0 {
		cfg.Port = DefaultAgentPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if len(cfg.DialOptions) == 0 {
		cfg.DialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	if cfg.Address == nil {
		port := strconv.Itoa(cfg.Port)
		cfg.Address = func(node *types.Node) string {
			return net.JoinHostPort(node.PrimaryIP, port)
		}
	}
	return &Collector{cfg: cfg, conns: make(map[string]*grpc.ClientConn)}
}

// CollectNodes implements query.Collector. Every node gets an entry;
// failures are reported per node.
func (c *Collector) CollectNodes(ctx context.Context, nodes []*types.Node) map[string]query.NodeResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CollectionDuration)

	var mu sync.Mutex
	results := make(map[string]query.NodeResult, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for _, node := range nodes {
		node := node
		g.Go(func() error {
			rt, err := c.nodeInfo(gctx, node)
			mu.Lock()
			results[node.UUID] = query.NodeResult{Data: rt, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger := log.WithComponent("collector")
	logger.Debug().Int("nodes", len(nodes)).Dur("duration", timer.Duration()).Msg("Collected live data")
	return results
}

func (c *Collector) nodeInfo(ctx context.Context, node *types.Node) (*types.NodeRuntime, error) {
	conn, err := c.conn(node)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]interface{}{"node": node.Name})
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, fullNodeInfoName, req, resp); err != nil {
		return nil, fmt.Errorf("node %s: %w", node.Name, err)
	}
	return structToRuntime(resp)
}

func (c *Collector) conn(node *types.Node) (*grpc.ClientConn, error) {
	addr := c.cfg.Address(node)

	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, c.cfg.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node %s at %s: %w", node.Name, addr, err)
	}
	c.conns[addr] = conn
	return conn, nil
}

// Close closes all cached connections
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
	}
	return firstErr
}
