package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Query describes one request against a resource collection
type Query struct {
	Kind   types.ItemType
	Fields []string
	Filter Filter
}

// NodeResult is the outcome of collecting live data from one node
type NodeResult struct {
	Data *types.NodeRuntime
	Err  error
}

// Collector fetches live data from cluster nodes. The returned map is
// keyed by node UUID; a node missing from it counts as failed.
type Collector interface {
	CollectNodes(ctx context.Context, nodes []*types.Node) map[string]NodeResult
}

// ErrNoResult is used for nodes the collector returned nothing for
var ErrNoResult = errors.New("no result from node")

// Executor runs queries against configuration snapshots
type Executor struct {
	Collector Collector
}

// NewExecutor creates an executor collecting live data through c
func NewExecutor(c Collector) *Executor {
	return &Executor{Collector: c}
}

// resource bundles everything the executor needs to query one kind
type resource[T, R any] struct {
	fields FieldMap[T, R]
	items  func(cfg *types.ConfigData) []T
	// collect returns one runtime per item; nil means the kind has no
	// live data
	collect func(ctx context.Context, c Collector, cfg *types.ConfigData, items []T) []Runtime[R]
}

var (
	nodeResource = resource[*types.Node, *types.NodeRuntime]{
		fields:  NodeFields,
		items:   sortedNodes,
		collect: collectNodes,
	}
	groupResource = resource[*types.NodeGroup, GroupRuntime]{
		fields: GroupFields,
		items:  sortedGroups,
	}
	instanceResource = resource[*types.Instance, *types.NodeRuntime]{
		fields:  InstanceFields,
		items:   sortedInstances,
		collect: collectInstances,
	}
)

// Query executes q. live controls whether remote data may be collected;
// when false every live field reports RSUnavail.
func (e *Executor) Query(ctx context.Context, cfg *types.ConfigData, live bool, q Query) (*types.QueryResult, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.QueryDuration, string(q.Kind))
	}()

	switch q.Kind {
	case types.ItemTypeNode:
		return runQuery(ctx, e.Collector, cfg, live, nodeResource, q)
	case types.ItemTypeGroup:
		return runQuery(ctx, e.Collector, cfg, live, groupResource, q)
	case types.ItemTypeInstance:
		return runQuery(ctx, e.Collector, cfg, live, instanceResource, q)
	}
	return nil, &UnsupportedKindError{Kind: q.Kind}
}

// QueryFields describes the named fields of kind. An empty list returns
// every field sorted by name.
func (e *Executor) QueryFields(kind types.ItemType, names []string) (*types.QueryFieldsResult, error) {
	switch kind {
	case types.ItemTypeNode:
		return fieldsResult(NodeFields, names), nil
	case types.ItemTypeGroup:
		return fieldsResult(GroupFields, names), nil
	case types.ItemTypeInstance:
		return fieldsResult(InstanceFields, names), nil
	}
	return nil, &UnsupportedKindError{Kind: kind}
}

func fieldsResult[T, R any](fm FieldMap[T, R], names []string) *types.QueryFieldsResult {
	if len(names) == 0 {
		return &types.QueryFieldsResult{Fields: fm.Definitions()}
	}
	return &types.QueryFieldsResult{Fields: definitions(GetSelectedFields(fm, names))}
}

func definitions[T, R any](fields []FieldData[T, R]) []types.FieldDefinition {
	out := make([]types.FieldDefinition, len(fields))
	for i, f := range fields {
		out[i] = f.Def
	}
	return out
}

func runQuery[T, R any](ctx context.Context, c Collector, cfg *types.ConfigData, live bool,
	res resource[T, R], q Query) (*types.QueryResult, error) {
	selected := GetSelectedFields(res.fields, q.Fields)
	filter, err := CompileFilter(res.fields, q.Filter)
	if err != nil {
		return nil, err
	}

	// Pre-filter without live data
	var candidates []T
	for _, item := range res.items(cfg) {
		if filter.mayMatch(cfg, item) {
			candidates = append(candidates, item)
		}
	}

	var runtimes []Runtime[R]
	needLive := res.collect != nil && (needsLiveData(selected) || filter.NeedsLiveData())
	switch {
	case !needLive:
	case !live:
		runtimes = make([]Runtime[R], len(candidates))
		for i := range runtimes {
			runtimes[i].Err = ErrLiveDataDisabled
		}
	case len(candidates) > 0:
		if c == nil {
			return nil, fmt.Errorf("live data requested but no collector configured")
		}
		runtimes = res.collect(ctx, c, cfg, candidates)
	}

	result := &types.QueryResult{
		Fields: definitions(selected),
		Data:   make([][]types.ResultEntry, 0, len(candidates)),
	}
	for i, item := range candidates {
		var rt *Runtime[R]
		if runtimes != nil {
			rt = &runtimes[i]
		} else if res.collect == nil {
			rt = &Runtime[R]{}
		}
		if filter.NeedsLiveData() && !EvaluateFilter(cfg, rt, item, filter) {
			continue
		}
		row := make([]types.ResultEntry, len(selected))
		for j, f := range selected {
			row[j] = execGetter(cfg, rt, item, f.Getter)
		}
		result.Data = append(result.Data, row)
	}

	logger := log.WithComponent("query")
	logger.Debug().
		Str("kind", string(q.Kind)).
		Int("fields", len(selected)).
		Int("candidates", len(candidates)).
		Int("rows", len(result.Data)).
		Bool("live", needLive && live).
		Msg("Query executed")
	return result, nil
}

// collectNodeResults issues one batched request for the given nodes.
// Offline nodes are not contacted.
func collectNodeResults(ctx context.Context, c Collector, nodes []*types.Node) map[string]NodeResult {
	logger := log.WithComponent("query")
	results := make(map[string]NodeResult, len(nodes))
	var online []*types.Node
	for _, n := range nodes {
		if n.Offline {
			results[n.UUID] = NodeResult{Err: ErrNodeOffline}
			continue
		}
		online = append(online, n)
	}
	if len(online) == 0 {
		return results
	}
	collected := c.CollectNodes(ctx, online)
	for _, n := range online {
		r, ok := collected[n.UUID]
		if !ok {
			r = NodeResult{Err: ErrNoResult}
		}
		if r.Err == nil && r.Data == nil {
			r.Err = ErrNoResult
		}
		if r.Err != nil {
			metrics.CollectionFailures.Inc()
			logger.Warn().
				Str("node", n.Name).
				Err(r.Err).
				Msg("Live data collection failed")
		}
		results[n.UUID] = r
	}
	return results
}

func collectNodes(ctx context.Context, c Collector, _ *types.ConfigData, nodes []*types.Node) []Runtime[*types.NodeRuntime] {
	results := collectNodeResults(ctx, c, nodes)
	out := make([]Runtime[*types.NodeRuntime], len(nodes))
	for i, n := range nodes {
		r := results[n.UUID]
		out[i] = Runtime[*types.NodeRuntime]{Data: r.Data, Err: r.Err}
	}
	return out
}

// collectInstances gathers data from the primary nodes of insts, each
// node at most once
func collectInstances(ctx context.Context, c Collector, cfg *types.ConfigData, insts []*types.Instance) []Runtime[*types.NodeRuntime] {
	seen := make(map[string]bool)
	var nodes []*types.Node
	for _, inst := range insts {
		n, ok := cfg.Nodes[inst.PrimaryNode]
		if !ok || seen[n.UUID] {
			continue
		}
		seen[n.UUID] = true
		nodes = append(nodes, n)
	}

	results := collectNodeResults(ctx, c, nodes)
	out := make([]Runtime[*types.NodeRuntime], len(insts))
	for i, inst := range insts {
		r, ok := results[inst.PrimaryNode]
		if !ok {
			out[i] = Runtime[*types.NodeRuntime]{Err: fmt.Errorf("unknown primary node %q", inst.PrimaryNode)}
			continue
		}
		out[i] = Runtime[*types.NodeRuntime]{Data: r.Data, Err: r.Err}
	}
	return out
}
