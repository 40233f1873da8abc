package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"gopkg.in/yaml.v3"
)

// Default data file names, looked up in the data directory
const (
	DefaultNodesFile     = "nodes.yaml"
	DefaultInstancesFile = "instances.yaml"
	DefaultGroupName     = "default"
)

// nodesFile is the layout of the nodes data file. References between
// objects may use either names or UUIDs.
type nodesFile struct {
	Cluster types.Cluster      `yaml:"cluster"`
	Groups  []*types.NodeGroup `yaml:"groups"`
	Nodes   []*types.Node      `yaml:"nodes"`
}

type instancesFile struct {
	Instances []*types.Instance `yaml:"instances"`
}

// LoadDataFiles parses the nodes and instances files into a configuration
// snapshot. A missing instances file means no instances.
func LoadDataFiles(nodesPath, instancesPath string) (*types.ConfigData, error) {
	var nf nodesFile
	if err := readYAML(nodesPath, &nf); err != nil {
		return nil, err
	}

	var inf instancesFile
	if instancesPath != "" {
		err := readYAML(instancesPath, &inf)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return buildConfig(&nf, &inf, time.Now())
}

// Import loads the data files and replaces the store contents with them
func Import(store Store, nodesPath, instancesPath string) (*types.ConfigData, error) {
	cfg, err := LoadDataFiles(nodesPath, instancesPath)
	if err != nil {
		return nil, err
	}
	if err := store.Replace(cfg); err != nil {
		return nil, fmt.Errorf("failed to store configuration: %w", err)
	}
	return cfg, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// resolver maps names and UUIDs of one object kind to UUIDs
type resolver map[string]string

func (r resolver) add(name, id string) error {
	if _, dup := r[name]; dup {
		return fmt.Errorf("duplicate name %q", name)
	}
	r[name] = id
	r[id] = id
	return nil
}

func (r resolver) resolve(ref, what string) (string, error) {
	id, ok := r[ref]
	if !ok {
		return "", fmt.Errorf("unknown %s %q", what, ref)
	}
	return id, nil
}

func stamp(created, modified *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	if modified.IsZero() {
		*modified = *created
	}
}

func buildConfig(nf *nodesFile, inf *instancesFile, now time.Time) (*types.ConfigData, error) {
	cfg := types.NewConfigData()
	cfg.Cluster = nf.Cluster
	if cfg.Cluster.UUID == "" {
		cfg.Cluster.UUID = uuid.New().String()
	}
	stamp(&cfg.Cluster.CreatedAt, &cfg.Cluster.ModifiedAt, now)

	groups := resolver{}
	for _, g := range nf.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("node group without name")
		}
		if g.UUID == "" {
			g.UUID = uuid.New().String()
		}
		if g.AllocPolicy == "" {
			g.AllocPolicy = types.AllocPolicyPreferred
		}
		stamp(&g.CreatedAt, &g.ModifiedAt, now)
		if err := groups.add(g.Name, g.UUID); err != nil {
			return nil, fmt.Errorf("node group: %w", err)
		}
		cfg.Groups[g.UUID] = g
	}

	nodes := resolver{}
	for _, n := range nf.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("node without name")
		}
		if n.UUID == "" {
			n.UUID = uuid.New().String()
		}
		if n.Group == "" {
			n.Group = defaultGroup(cfg, groups, now)
		}
		gid, err := groups.resolve(n.Group, "node group")
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Name, err)
		}
		n.Group = gid
		stamp(&n.CreatedAt, &n.ModifiedAt, now)
		if err := nodes.add(n.Name, n.UUID); err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
		cfg.Nodes[n.UUID] = n
	}

	if cfg.Cluster.MasterNode != "" {
		id, err := nodes.resolve(cfg.Cluster.MasterNode, "master node")
		if err != nil {
			return nil, fmt.Errorf("cluster: %w", err)
		}
		cfg.Cluster.MasterNode = id
	}

	names := resolver{}
	for _, inst := range inf.Instances {
		if inst.Name == "" {
			return nil, fmt.Errorf("instance without name")
		}
		if inst.UUID == "" {
			inst.UUID = uuid.New().String()
		}
		if inst.AdminState == "" {
			inst.AdminState = types.AdminStateDown
		}
		pnode, err := nodes.resolve(inst.PrimaryNode, "primary node")
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", inst.Name, err)
		}
		inst.PrimaryNode = pnode
		for i, sn := range inst.SecondaryNodes {
			id, err := nodes.resolve(sn, "secondary node")
			if err != nil {
				return nil, fmt.Errorf("instance %s: %w", inst.Name, err)
			}
			inst.SecondaryNodes[i] = id
		}
		stamp(&inst.CreatedAt, &inst.ModifiedAt, now)
		if err := names.add(inst.Name, inst.UUID); err != nil {
			return nil, fmt.Errorf("instance: %w", err)
		}
		cfg.Instances[inst.UUID] = inst
	}

	return cfg, nil
}

// defaultGroup returns the name of the default node group, creating it
// on first use
func defaultGroup(cfg *types.ConfigData, groups resolver, now time.Time) string {
	if _, ok := groups[DefaultGroupName]; ok {
		return DefaultGroupName
	}
	g := &types.NodeGroup{
		UUID:        uuid.New().String(),
		Name:        DefaultGroupName,
		AllocPolicy: types.AllocPolicyPreferred,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	cfg.Groups[g.UUID] = g
	groups[g.Name] = g.UUID
	groups[g.UUID] = g.UUID
	return DefaultGroupName
}
