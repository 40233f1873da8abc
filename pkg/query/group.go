package query

import (
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// GroupRuntime is the empty live context of node groups
type GroupRuntime struct{}

type groupField = FieldData[*types.NodeGroup, GroupRuntime]

// GroupFields is the field registry for node group queries
var GroupFields = newFieldMap(groupFieldList())

func groupSimple(d types.FieldDefinition, fn func(*types.NodeGroup) types.ResultEntry) groupField {
	return simpleField[*types.NodeGroup, GroupRuntime](d, fn)
}

func groupConfig(d types.FieldDefinition, fn func(*types.ConfigData, *types.NodeGroup) types.ResultEntry) groupField {
	return configField[*types.NodeGroup, GroupRuntime](d, fn)
}

func groupPrimaryInstances(cfg *types.ConfigData, g *types.NodeGroup) []*types.Instance {
	var out []*types.Instance
	for _, n := range cfg.GroupNodes(g.UUID) {
		out = append(out, cfg.PrimaryInstances(n.UUID)...)
	}
	return out
}

func groupFieldList() []groupField {
	return []groupField{
		groupSimple(def("name", "Group", types.FieldTypeText, "Group name"),
			func(g *types.NodeGroup) types.ResultEntry { return types.NormalEntry(g.Name) }),
		groupSimple(def("uuid", "UUID", types.FieldTypeText, "Group UUID"),
			func(g *types.NodeGroup) types.ResultEntry { return types.NormalEntry(g.UUID) }),
		groupSimple(def("alloc_policy", "AllocPolicy", types.FieldTypeText,
			"Allocation policy for group"),
			func(g *types.NodeGroup) types.ResultEntry { return types.NormalEntry(string(g.AllocPolicy)) }),
		groupSimple(def("tags", "Tags", types.FieldTypeOther, "Tags"),
			func(g *types.NodeGroup) types.ResultEntry { return tagsEntry(g.Tags) }),
		groupSimple(def("serial_no", "SerialNo", types.FieldTypeNumber, "Group object serial number"),
			func(g *types.NodeGroup) types.ResultEntry { return types.NormalEntry(g.SerialNo) }),
		groupSimple(def("ctime", "CTime", types.FieldTypeTimestamp, "Creation timestamp"),
			func(g *types.NodeGroup) types.ResultEntry { return timestampEntry(g.CreatedAt) }),
		groupSimple(def("mtime", "MTime", types.FieldTypeTimestamp, "Modification timestamp"),
			func(g *types.NodeGroup) types.ResultEntry { return timestampEntry(g.ModifiedAt) }),

		groupConfig(def("node_cnt", "Nodes", types.FieldTypeNumber, "Number of nodes"),
			func(cfg *types.ConfigData, g *types.NodeGroup) types.ResultEntry {
				return types.NormalEntry(len(cfg.GroupNodes(g.UUID)))
			}),
		groupConfig(def("node_list", "NodeList", types.FieldTypeOther, "List of nodes"),
			func(cfg *types.ConfigData, g *types.NodeGroup) types.ResultEntry {
				nodes := cfg.GroupNodes(g.UUID)
				names := make([]string, 0, len(nodes))
				for _, n := range nodes {
					names = append(names, n.Name)
				}
				niceSort(names)
				return types.NormalEntry(names)
			}),
		groupConfig(def("pinst_cnt", "Instances", types.FieldTypeNumber,
			"Number of primary instances"),
			func(cfg *types.ConfigData, g *types.NodeGroup) types.ResultEntry {
				return types.NormalEntry(len(groupPrimaryInstances(cfg, g)))
			}),
		groupConfig(def("pinst_list", "InstanceList", types.FieldTypeOther,
			"List of primary instances"),
			func(cfg *types.ConfigData, g *types.NodeGroup) types.ResultEntry {
				return types.NormalEntry(instanceNames(groupPrimaryInstances(cfg, g)))
			}),
	}
}

func sortedGroups(cfg *types.ConfigData) []*types.NodeGroup {
	groups := make([]*types.NodeGroup, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups = append(groups, g)
	}
	sortByName(groups, func(g *types.NodeGroup) string { return g.Name })
	return groups
}
