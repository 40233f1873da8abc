package types

// NodeRuntime is the live data reported by a node agent
type NodeRuntime struct {
	MemTotal   int    `json:"mem_total" yaml:"mem_total"` // MiB
	MemNode    int    `json:"mem_node" yaml:"mem_node"`   // MiB used by the node OS
	MemFree    int    `json:"mem_free" yaml:"mem_free"`   // MiB
	DiskTotal  int    `json:"disk_total" yaml:"disk_total"`
	DiskFree   int    `json:"disk_free" yaml:"disk_free"`
	CPUTotal   int    `json:"cpu_total" yaml:"cpu_total"`
	CPUNodes   int    `json:"cpu_nodes" yaml:"cpu_nodes"`
	CPUSockets int    `json:"cpu_sockets" yaml:"cpu_sockets"`
	BootID     string `json:"bootid" yaml:"bootid"`

	// Instances running on the node, keyed by instance name
	Instances map[string]InstanceRuntime `json:"instances" yaml:"instances"`

	// Exports holds the names of instance exports stored on the node
	Exports []string `json:"exports" yaml:"exports"`
}

// InstanceRuntime is the live state of one running instance
type InstanceRuntime struct {
	State  string `json:"state" yaml:"state"`
	Memory int    `json:"memory" yaml:"memory"` // MiB
	VCPUs  int    `json:"vcpus" yaml:"vcpus"`
}
