package types

import (
	"time"
)

// Cluster holds cluster-wide settings from the configuration
type Cluster struct {
	Name          string            `json:"name" yaml:"name"`
	UUID          string            `json:"uuid" yaml:"uuid"`
	MasterNode    string            `json:"master_node" yaml:"master_node"` // Node UUID
	DefaultHV     string            `json:"default_hypervisor" yaml:"default_hypervisor"`
	EnabledHVs    []string          `json:"enabled_hypervisors" yaml:"enabled_hypervisors"`
	CandidatePool int               `json:"candidate_pool_size" yaml:"candidate_pool_size"`
	Tags          []string          `json:"tags" yaml:"tags"`
	DrainFlag     bool              `json:"drain_flag" yaml:"-"`
	WatcherPause  *time.Time        `json:"watcher_pause,omitempty" yaml:"-"`
	ConfigValues  map[string]string `json:"config_values,omitempty" yaml:"config_values"`
	SerialNo      int               `json:"serial_no" yaml:"serial_no"`
	CreatedAt     time.Time         `json:"ctime" yaml:"ctime"`
	ModifiedAt    time.Time         `json:"mtime" yaml:"mtime"`
}

// Node represents a physical node of the cluster
type Node struct {
	UUID            string    `json:"uuid" yaml:"uuid"`
	Name            string    `json:"name" yaml:"name"`
	PrimaryIP       string    `json:"primary_ip" yaml:"primary_ip"`
	SecondaryIP     string    `json:"secondary_ip" yaml:"secondary_ip"`
	Group           string    `json:"group" yaml:"group"` // Node group UUID
	Offline         bool      `json:"offline" yaml:"offline"`
	Drained         bool      `json:"drained" yaml:"drained"`
	MasterCandidate bool      `json:"master_candidate" yaml:"master_candidate"`
	MasterCapable   bool      `json:"master_capable" yaml:"master_capable"`
	VMCapable       bool      `json:"vm_capable" yaml:"vm_capable"`
	Tags            []string  `json:"tags" yaml:"tags"`
	SerialNo        int       `json:"serial_no" yaml:"serial_no"`
	CreatedAt       time.Time `json:"ctime" yaml:"ctime"`
	ModifiedAt      time.Time `json:"mtime" yaml:"mtime"`
}

// AllocPolicy defines how instances may be allocated to a node group
type AllocPolicy string

const (
	AllocPolicyPreferred   AllocPolicy = "preferred"
	AllocPolicyLastResort  AllocPolicy = "last_resort"
	AllocPolicyUnallocable AllocPolicy = "unallocable"
)

// NodeGroup represents a group of nodes sharing allocation policy
type NodeGroup struct {
	UUID        string      `json:"uuid" yaml:"uuid"`
	Name        string      `json:"name" yaml:"name"`
	AllocPolicy AllocPolicy `json:"alloc_policy" yaml:"alloc_policy"`
	Tags        []string    `json:"tags" yaml:"tags"`
	SerialNo    int         `json:"serial_no" yaml:"serial_no"`
	CreatedAt   time.Time   `json:"ctime" yaml:"ctime"`
	ModifiedAt  time.Time   `json:"mtime" yaml:"mtime"`
}

// AdminState is the administratively requested state of an instance
type AdminState string

const (
	AdminStateUp      AdminState = "up"
	AdminStateDown    AdminState = "down"
	AdminStateOffline AdminState = "offline"
)

// Instance represents a virtual machine
type Instance struct {
	UUID           string     `json:"uuid" yaml:"uuid"`
	Name           string     `json:"name" yaml:"name"`
	OS             string     `json:"os" yaml:"os"`
	PrimaryNode    string     `json:"primary_node" yaml:"primary_node"`       // Node UUID
	SecondaryNodes []string   `json:"secondary_nodes" yaml:"secondary_nodes"` // Node UUIDs
	Hypervisor     string     `json:"hypervisor" yaml:"hypervisor"`
	DiskTemplate   string     `json:"disk_template" yaml:"disk_template"`
	AdminState     AdminState `json:"admin_state" yaml:"admin_state"`
	Memory         int        `json:"memory" yaml:"memory"` // MiB
	VCPUs          int        `json:"vcpus" yaml:"vcpus"`
	DiskSizes      []int      `json:"disk_sizes" yaml:"disk_sizes"` // MiB
	NetworkPort    int        `json:"network_port" yaml:"network_port"`
	Tags           []string   `json:"tags" yaml:"tags"`
	SerialNo       int        `json:"serial_no" yaml:"serial_no"`
	CreatedAt      time.Time  `json:"ctime" yaml:"ctime"`
	ModifiedAt     time.Time  `json:"mtime" yaml:"mtime"`
}

// ConfigData is a read-only snapshot of the cluster configuration.
// Maps are keyed by UUID.
type ConfigData struct {
	Cluster   Cluster
	Nodes     map[string]*Node
	Groups    map[string]*NodeGroup
	Instances map[string]*Instance
}

// NewConfigData returns an empty snapshot with initialised maps
func NewConfigData() *ConfigData {
	return &ConfigData{
		Nodes:     make(map[string]*Node),
		Groups:    make(map[string]*NodeGroup),
		Instances: make(map[string]*Instance),
	}
}

// PrimaryInstances returns the instances whose primary node is nodeUUID
func (c *ConfigData) PrimaryInstances(nodeUUID string) []*Instance {
	var out []*Instance
	for _, inst := range c.Instances {
		if inst.PrimaryNode == nodeUUID {
			out = append(out, inst)
		}
	}
	return out
}

// SecondaryInstances returns the instances using nodeUUID as a secondary
func (c *ConfigData) SecondaryInstances(nodeUUID string) []*Instance {
	var out []*Instance
	for _, inst := range c.Instances {
		for _, sn := range inst.SecondaryNodes {
			if sn == nodeUUID {
				out = append(out, inst)
				break
			}
		}
	}
	return out
}

// GroupNodes returns the nodes belonging to groupUUID
func (c *ConfigData) GroupNodes(groupUUID string) []*Node {
	var out []*Node
	for _, n := range c.Nodes {
		if n.Group == groupUUID {
			out = append(out, n)
		}
	}
	return out
}

// NodeByName looks a node up by name
func (c *ConfigData) NodeByName(name string) (*Node, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}
