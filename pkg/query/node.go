package query

import (
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

type nodeField = FieldData[*types.Node, *types.NodeRuntime]

// NodeFields is the field registry for node queries
var NodeFields = newFieldMap(nodeFieldList())

// Node roles as reported by the "role" field
const (
	NodeRoleMaster    = "M"
	NodeRoleCandidate = "C"
	NodeRoleDrained   = "D"
	NodeRoleOffline   = "O"
	NodeRoleRegular   = "R"
)

func nodeSimple(d types.FieldDefinition, fn func(*types.Node) types.ResultEntry) nodeField {
	return simpleField[*types.Node, *types.NodeRuntime](d, fn)
}

func nodeConfig(d types.FieldDefinition, fn func(*types.ConfigData, *types.Node) types.ResultEntry) nodeField {
	return configField[*types.Node, *types.NodeRuntime](d, fn)
}

func nodeLive(d types.FieldDefinition, fn func(*types.NodeRuntime) interface{}) nodeField {
	return liveField(d, func(rt *types.NodeRuntime, _ *types.Node) types.ResultEntry {
		if rt == nil {
			return types.StatusEntry(types.RSNoData)
		}
		return types.NormalEntry(fn(rt))
	})
}

// nodeRole computes the one-letter role of a node
func nodeRole(cfg *types.ConfigData, n *types.Node) string {
	switch {
	case cfg.Cluster.MasterNode == n.UUID:
		return NodeRoleMaster
	case n.MasterCandidate:
		return NodeRoleCandidate
	case n.Drained:
		return NodeRoleDrained
	case n.Offline:
		return NodeRoleOffline
	}
	return NodeRoleRegular
}

func instanceNames(insts []*types.Instance) []string {
	names := make([]string, 0, len(insts))
	for _, i := range insts {
		names = append(names, i.Name)
	}
	niceSort(names)
	return names
}

func nodeFieldList() []nodeField {
	return []nodeField{
		nodeSimple(def("name", "Node", types.FieldTypeText, "Node name"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.Name) }),
		nodeSimple(def("uuid", "UUID", types.FieldTypeText, "Node UUID"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.UUID) }),
		nodeSimple(def("pip", "PrimaryIP", types.FieldTypeText, "Primary IP address"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.PrimaryIP) }),
		nodeSimple(def("sip", "SecondaryIP", types.FieldTypeText, "Secondary IP address"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.SecondaryIP) }),
		nodeSimple(def("offline", "Offline", types.FieldTypeBool, "Whether node is marked offline"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.Offline) }),
		nodeSimple(def("drained", "Drained", types.FieldTypeBool, "Whether node is drained"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.Drained) }),
		nodeSimple(def("master_candidate", "MasterC", types.FieldTypeBool, "Whether node is a master candidate"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.MasterCandidate) }),
		nodeSimple(def("master_capable", "MasterCapable", types.FieldTypeBool, "Whether node can become a master candidate"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.MasterCapable) }),
		nodeSimple(def("vm_capable", "VMCapable", types.FieldTypeBool, "Whether node can host instances"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.VMCapable) }),
		nodeSimple(def("group.uuid", "GroupUUID", types.FieldTypeText, "UUID of node group"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.Group) }),
		nodeSimple(def("tags", "Tags", types.FieldTypeOther, "Tags"),
			func(n *types.Node) types.ResultEntry { return tagsEntry(n.Tags) }),
		nodeSimple(def("serial_no", "SerialNo", types.FieldTypeNumber, "Node object serial number"),
			func(n *types.Node) types.ResultEntry { return types.NormalEntry(n.SerialNo) }),
		nodeSimple(def("ctime", "CTime", types.FieldTypeTimestamp, "Creation timestamp"),
			func(n *types.Node) types.ResultEntry { return timestampEntry(n.CreatedAt) }),
		nodeSimple(def("mtime", "MTime", types.FieldTypeTimestamp, "Modification timestamp"),
			func(n *types.Node) types.ResultEntry { return timestampEntry(n.ModifiedAt) }),

		nodeConfig(def("group", "Group", types.FieldTypeText, "Node group"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				g, ok := cfg.Groups[n.Group]
				if !ok {
					return types.StatusEntry(types.RSUnavail)
				}
				return types.NormalEntry(g.Name)
			}),
		nodeConfig(def("master", "IsMaster", types.FieldTypeBool, "Whether node is master"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(cfg.Cluster.MasterNode == n.UUID)
			}),
		nodeConfig(def("role", "Role", types.FieldTypeText,
			`Node role; "M" for master, "C" for master candidate, "R" for regular, "D" for drained, "O" for offline`),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(nodeRole(cfg, n))
			}),
		nodeConfig(def("pinst_cnt", "Pinst", types.FieldTypeNumber, "Number of instances with this node as primary"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(len(cfg.PrimaryInstances(n.UUID)))
			}),
		nodeConfig(def("pinst_list", "PriInstances", types.FieldTypeOther, "List of instances with this node as primary"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(instanceNames(cfg.PrimaryInstances(n.UUID)))
			}),
		nodeConfig(def("sinst_cnt", "Sinst", types.FieldTypeNumber, "Number of instances with this node as secondary"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(len(cfg.SecondaryInstances(n.UUID)))
			}),
		nodeConfig(def("sinst_list", "SecInstances", types.FieldTypeOther, "List of instances with this node as secondary"),
			func(cfg *types.ConfigData, n *types.Node) types.ResultEntry {
				return types.NormalEntry(instanceNames(cfg.SecondaryInstances(n.UUID)))
			}),

		nodeLive(def("mem_total", "MTotal", types.FieldTypeUnit, "Total amount of memory of physical machine"),
			func(rt *types.NodeRuntime) interface{} { return rt.MemTotal }),
		nodeLive(def("mem_node", "MNode", types.FieldTypeUnit, "Amount of memory used by node (dom0 for Xen)"),
			func(rt *types.NodeRuntime) interface{} { return rt.MemNode }),
		nodeLive(def("mem_free", "MFree", types.FieldTypeUnit, "Memory available for instance allocations"),
			func(rt *types.NodeRuntime) interface{} { return rt.MemFree }),
		nodeLive(def("disk_total", "DTotal", types.FieldTypeUnit, "Total disk space in volume group used for instance disk allocation"),
			func(rt *types.NodeRuntime) interface{} { return rt.DiskTotal }),
		nodeLive(def("disk_free", "DFree", types.FieldTypeUnit, "Available disk space in volume group"),
			func(rt *types.NodeRuntime) interface{} { return rt.DiskFree }),
		nodeLive(def("cpu_total", "CTotal", types.FieldTypeNumber, "Number of logical processors"),
			func(rt *types.NodeRuntime) interface{} { return rt.CPUTotal }),
		nodeLive(def("cpu_nodes", "CNodes", types.FieldTypeNumber, "Number of NUMA domains on node (if exported by hypervisor)"),
			func(rt *types.NodeRuntime) interface{} { return rt.CPUNodes }),
		nodeLive(def("cpu_sockets", "CSockets", types.FieldTypeNumber, "Number of physical CPU sockets (if exported by hypervisor)"),
			func(rt *types.NodeRuntime) interface{} { return rt.CPUSockets }),
		nodeLive(def("bootid", "BootID", types.FieldTypeText, "Random UUID renewed for each system reboot"),
			func(rt *types.NodeRuntime) interface{} { return rt.BootID }),
	}
}

func sortedNodes(cfg *types.ConfigData) []*types.Node {
	nodes := make([]*types.Node, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		nodes = append(nodes, n)
	}
	sortByName(nodes, func(n *types.Node) string { return n.Name })
	return nodes
}
