package query

import (
	"errors"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

type instanceField = FieldData[*types.Instance, *types.NodeRuntime]

// InstanceFields is the field registry for instance queries
var InstanceFields = newFieldMap(instanceFieldList())

// Instance status values reported by the "status" field
const (
	InstStatusRunning     = "running"
	InstStatusAdminDown   = "ADMIN_down"
	InstStatusAdminOff    = "ADMIN_offline"
	InstStatusNodeOffline = "ERROR_nodeoffline"
	InstStatusNodeDown    = "ERROR_nodedown"
	InstStatusWrongUp     = "ERROR_up"
	InstStatusWrongDown   = "ERROR_down"
)

func instSimple(d types.FieldDefinition, fn func(*types.Instance) types.ResultEntry) instanceField {
	return simpleField[*types.Instance, *types.NodeRuntime](d, fn)
}

func instConfig(d types.FieldDefinition, fn func(*types.ConfigData, *types.Instance) types.ResultEntry) instanceField {
	return configField[*types.Instance, *types.NodeRuntime](d, fn)
}

// instLive reads the state of the instance from its primary node's data.
// Instances not running on the node report RSUnavail.
func instLive(d types.FieldDefinition, fn func(types.InstanceRuntime) interface{}) instanceField {
	return liveField(d, func(rt *types.NodeRuntime, inst *types.Instance) types.ResultEntry {
		if rt == nil {
			return types.StatusEntry(types.RSNoData)
		}
		ir, ok := rt.Instances[inst.Name]
		if !ok {
			return types.StatusEntry(types.RSUnavail)
		}
		return types.NormalEntry(fn(ir))
	})
}

func nodeName(cfg *types.ConfigData, uuid string) types.ResultEntry {
	n, ok := cfg.Nodes[uuid]
	if !ok {
		return types.StatusEntry(types.RSUnavail)
	}
	return types.NormalEntry(n.Name)
}

// instanceStatus combines the admin state with what the primary node
// reports
func instanceStatus(rt Runtime[*types.NodeRuntime], inst *types.Instance) types.ResultEntry {
	switch {
	case errors.Is(rt.Err, ErrLiveDataDisabled):
		return types.StatusEntry(types.RSUnavail)
	case inst.AdminState == types.AdminStateOffline:
		return types.NormalEntry(InstStatusAdminOff)
	case errors.Is(rt.Err, ErrNodeOffline):
		return types.NormalEntry(InstStatusNodeOffline)
	case rt.Err != nil || rt.Data == nil:
		return types.NormalEntry(InstStatusNodeDown)
	}
	_, running := rt.Data.Instances[inst.Name]
	up := inst.AdminState == types.AdminStateUp
	switch {
	case running && up:
		return types.NormalEntry(InstStatusRunning)
	case running:
		return types.NormalEntry(InstStatusWrongUp)
	case up:
		return types.NormalEntry(InstStatusWrongDown)
	}
	return types.NormalEntry(InstStatusAdminDown)
}

func instanceFieldList() []instanceField {
	return []instanceField{
		instSimple(def("name", "Instance", types.FieldTypeText, "Instance name"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.Name) }),
		instSimple(def("uuid", "UUID", types.FieldTypeText, "Instance UUID"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.UUID) }),
		instSimple(def("os", "OS", types.FieldTypeText, "Operating system"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.OS) }),
		instSimple(def("hypervisor", "Hypervisor", types.FieldTypeText, "Hypervisor name"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.Hypervisor) }),
		instSimple(def("disk_template", "Disk_template", types.FieldTypeText, "Instance disk template"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.DiskTemplate) }),
		instSimple(def("admin_state", "InstanceState", types.FieldTypeText, "Desired state of instance"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(string(i.AdminState)) }),
		instSimple(def("admin_up", "Autostart", types.FieldTypeBool, "Desired state of instance is up"),
			func(i *types.Instance) types.ResultEntry {
				return types.NormalEntry(i.AdminState == types.AdminStateUp)
			}),
		instSimple(def("memory", "ConfigMemory", types.FieldTypeUnit, "Configured memory"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.Memory) }),
		instSimple(def("vcpus", "ConfigVCPUs", types.FieldTypeNumber, "Configured number of VCPUs"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.VCPUs) }),
		instSimple(def("disk_sizes", "Disk_sizes", types.FieldTypeOther, "List of disk sizes"),
			func(i *types.Instance) types.ResultEntry {
				sizes := make([]int, len(i.DiskSizes))
				copy(sizes, i.DiskSizes)
				return types.NormalEntry(sizes)
			}),
		instSimple(def("disk_usage", "DiskUsage", types.FieldTypeUnit, "Total disk space used by instance"),
			func(i *types.Instance) types.ResultEntry {
				total := 0
				for _, s := range i.DiskSizes {
					total += s
				}
				return types.NormalEntry(total)
			}),
		instSimple(def("network_port", "Network_port", types.FieldTypeOther, "Instance network port if available"),
			func(i *types.Instance) types.ResultEntry {
				if i.NetworkPort == 0 {
					return types.StatusEntry(types.RSUnavail)
				}
				return types.NormalEntry(i.NetworkPort)
			}),
		instSimple(def("tags", "Tags", types.FieldTypeOther, "Tags"),
			func(i *types.Instance) types.ResultEntry { return tagsEntry(i.Tags) }),
		instSimple(def("serial_no", "SerialNo", types.FieldTypeNumber, "Instance object serial number"),
			func(i *types.Instance) types.ResultEntry { return types.NormalEntry(i.SerialNo) }),
		instSimple(def("ctime", "CTime", types.FieldTypeTimestamp, "Creation timestamp"),
			func(i *types.Instance) types.ResultEntry { return timestampEntry(i.CreatedAt) }),
		instSimple(def("mtime", "MTime", types.FieldTypeTimestamp, "Modification timestamp"),
			func(i *types.Instance) types.ResultEntry { return timestampEntry(i.ModifiedAt) }),

		instConfig(def("pnode", "Primary_node", types.FieldTypeText, "Primary node"),
			func(cfg *types.ConfigData, i *types.Instance) types.ResultEntry {
				return nodeName(cfg, i.PrimaryNode)
			}),
		instConfig(def("snodes", "Secondary_Nodes", types.FieldTypeOther, "Secondary nodes"),
			func(cfg *types.ConfigData, i *types.Instance) types.ResultEntry {
				names := make([]string, 0, len(i.SecondaryNodes))
				for _, uuid := range i.SecondaryNodes {
					if n, ok := cfg.Nodes[uuid]; ok {
						names = append(names, n.Name)
					}
				}
				return types.NormalEntry(names)
			}),
		instConfig(def("pnode.group", "PrimaryNodeGroup", types.FieldTypeText, "Primary node's group"),
			func(cfg *types.ConfigData, i *types.Instance) types.ResultEntry {
				n, ok := cfg.Nodes[i.PrimaryNode]
				if !ok {
					return types.StatusEntry(types.RSUnavail)
				}
				g, ok := cfg.Groups[n.Group]
				if !ok {
					return types.StatusEntry(types.RSUnavail)
				}
				return types.NormalEntry(g.Name)
			}),

		liveField(def("oper_state", "Running", types.FieldTypeBool, "Actual state of instance"),
			func(rt *types.NodeRuntime, i *types.Instance) types.ResultEntry {
				if rt == nil {
					return types.StatusEntry(types.RSNoData)
				}
				_, running := rt.Instances[i.Name]
				return types.NormalEntry(running)
			}),
		instLive(def("oper_ram", "Memory", types.FieldTypeUnit, "Actual memory usage as seen by hypervisor"),
			func(ir types.InstanceRuntime) interface{} { return ir.Memory }),
		instLive(def("oper_vcpus", "VCPUs", types.FieldTypeNumber, "Actual number of VCPUs as seen by hypervisor"),
			func(ir types.InstanceRuntime) interface{} { return ir.VCPUs }),
		runtimeField(def("status", "Status", types.FieldTypeText,
			`Instance status; "running" if instance is set to be running and actually is, "ADMIN_down" if instance is stopped and is not running, "ERROR_nodeoffline" if instance's primary node is marked offline, "ERROR_nodedown" if instance's primary node is down/unreachable, "ERROR_up" if instance is running while it should be stopped, "ERROR_down" if instance is stopped while it should be running, "ADMIN_offline" if instance is marked offline`),
			instanceStatus),
	}
}

func sortedInstances(cfg *types.ConfigData) []*types.Instance {
	insts := make([]*types.Instance, 0, len(cfg.Instances))
	for _, i := range cfg.Instances {
		insts = append(insts, i)
	}
	sortByName(insts, func(i *types.Instance) string { return i.Name })
	return insts
}
