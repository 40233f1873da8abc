package master

import (
	"context"
	"fmt"
	"sort"

	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// oldStyleQuery answers the name-list queries. Rows hold bare values in
// the order the names were given; missing data becomes null. With no
// names every item is returned in name order.
func (m *Master) oldStyleQuery(ctx context.Context, kind types.ItemType, names, fields []string) ([][]interface{}, error) {
	cfg, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}

	if err := checkNames(cfg, kind, names); err != nil {
		return nil, err
	}

	var filter query.Filter
	if len(names) > 0 {
		eqs := make([]query.Filter, len(names))
		for i, name := range names {
			eqs[i] = query.Eq("name", name)
		}
		filter = query.Or(eqs...)
	}

	// The leading name column maps rows back to the requested order
	res, err := m.executor.Query(ctx, cfg, m.cfg.LiveData, query.Query{
		Kind:   kind,
		Fields: append([]string{"name"}, fields...),
		Filter: filter,
	})
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]interface{}, len(res.Data))
	rows := make([][]interface{}, 0, len(res.Data))
	for _, entries := range res.Data {
		row := make([]interface{}, len(fields))
		for i, e := range entries[1:] {
			if e.Status == types.RSNormal {
				row[i] = e.Value
			}
		}
		name, _ := entries[0].Value.(string)
		byName[name] = row
		rows = append(rows, row)
	}

	if len(names) == 0 {
		return rows, nil
	}
	ordered := make([][]interface{}, len(names))
	for i, name := range names {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

// checkNames fails on the first name that does not exist
func checkNames(cfg *types.ConfigData, kind types.ItemType, names []string) error {
	if len(names) == 0 {
		return nil
	}
	known := make(map[string]bool)
	switch kind {
	case types.ItemTypeNode:
		for _, n := range cfg.Nodes {
			known[n.Name] = true
		}
	case types.ItemTypeGroup:
		for _, g := range cfg.Groups {
			known[g.Name] = true
		}
	case types.ItemTypeInstance:
		for _, inst := range cfg.Instances {
			known[inst.Name] = true
		}
	}
	for _, name := range names {
		if !known[name] {
			return fmt.Errorf("%s %q not known", kind, name)
		}
	}
	return nil
}

// queryExports lists the exports found on each node. Nodes that could
// not be asked map to false.
func (m *Master) queryExports(ctx context.Context, names []string) (map[string]interface{}, error) {
	cfg, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}

	var nodes []*types.Node
	if len(names) == 0 {
		for _, n := range cfg.Nodes {
			nodes = append(nodes, n)
		}
	} else {
		for _, name := range names {
			n, ok := cfg.NodeByName(name)
			if !ok {
				return nil, fmt.Errorf("node %q not known", name)
			}
			nodes = append(nodes, n)
		}
	}

	out := make(map[string]interface{}, len(nodes))
	var online []*types.Node
	for _, n := range nodes {
		out[n.Name] = false
		if !n.Offline {
			online = append(online, n)
		}
	}
	if !m.cfg.LiveData || m.collector == nil || len(online) == 0 {
		return out, nil
	}

	results := m.collector.CollectNodes(ctx, online)
	for _, n := range online {
		r, ok := results[n.UUID]
		if !ok || r.Err != nil || r.Data == nil {
			continue
		}
		exports := append([]string{}, r.Data.Exports...)
		sort.Strings(exports)
		out[n.Name] = exports
	}
	return out, nil
}

// configValues are the values QueryConfigValues knows besides the
// free-form ones stored in the cluster object
var configValues = map[string]func(cfg *types.ConfigData) interface{}{
	"cluster_name": func(cfg *types.ConfigData) interface{} { return cfg.Cluster.Name },
	"master_node": func(cfg *types.ConfigData) interface{} {
		if n, ok := cfg.Nodes[cfg.Cluster.MasterNode]; ok {
			return n.Name
		}
		return nil
	},
	"drain_flag":          func(cfg *types.ConfigData) interface{} { return cfg.Cluster.DrainFlag },
	"watcher_pause":       watcherPause,
	"default_hypervisor":  func(cfg *types.ConfigData) interface{} { return cfg.Cluster.DefaultHV },
	"enabled_hypervisors": func(cfg *types.ConfigData) interface{} { return cfg.Cluster.EnabledHVs },
	"candidate_pool_size": func(cfg *types.ConfigData) interface{} { return cfg.Cluster.CandidatePool },
}

func watcherPause(cfg *types.ConfigData) interface{} {
	if cfg.Cluster.WatcherPause == nil {
		return nil
	}
	return float64(cfg.Cluster.WatcherPause.UnixNano()) / 1e9
}

func (m *Master) queryConfigValues(fields []string) ([]interface{}, error) {
	cfg, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(fields))
	for i, name := range fields {
		if get, ok := configValues[name]; ok {
			out[i] = get(cfg)
			continue
		}
		v, ok := cfg.Cluster.ConfigValues[name]
		if !ok {
			return nil, fmt.Errorf("unknown configuration value %q", name)
		}
		out[i] = v
	}
	return out, nil
}

func (m *Master) queryClusterInfo() (map[string]interface{}, error) {
	cfg, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}
	c := cfg.Cluster
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"name":                c.Name,
		"uuid":                c.UUID,
		"master":              configValues["master_node"](cfg),
		"default_hypervisor":  c.DefaultHV,
		"enabled_hypervisors": c.EnabledHVs,
		"candidate_pool_size": c.CandidatePool,
		"tags":                tags,
		"serial_no":           c.SerialNo,
		"ctime":               float64(c.CreatedAt.UnixNano()) / 1e9,
		"mtime":               float64(c.ModifiedAt.UnixNano()) / 1e9,
		"node_count":          len(cfg.Nodes),
		"instance_count":      len(cfg.Instances),
	}, nil
}

// Tag object kinds accepted by QueryTags
const (
	TagCluster   = "cluster"
	TagNode      = "node"
	TagNodeGroup = "nodegroup"
	TagInstance  = "instance"
)

func (m *Master) queryTags(kind, name string) ([]string, error) {
	cfg, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}

	var tags []string
	found := false
	switch kind {
	case TagCluster:
		tags, found = cfg.Cluster.Tags, true
	case TagNode:
		var n *types.Node
		if n, found = cfg.NodeByName(name); found {
			tags = n.Tags
		}
	case TagNodeGroup:
		for _, g := range cfg.Groups {
			if g.Name == name {
				tags, found = g.Tags, true
				break
			}
		}
	case TagInstance:
		for _, inst := range cfg.Instances {
			if inst.Name == name {
				tags, found = inst.Tags, true
				break
			}
		}
	default:
		return nil, fmt.Errorf("unknown tag kind %q", kind)
	}
	if !found {
		return nil, fmt.Errorf("%s %q not known", kind, name)
	}

	out := append([]string{}, tags...)
	sort.Strings(out)
	return out, nil
}
