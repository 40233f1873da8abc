package query

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	mu    sync.Mutex
	data  map[string]*types.NodeRuntime
	calls [][]string
}

func (f *fakeCollector) CollectNodes(ctx context.Context, nodes []*types.Node) map[string]NodeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(nodes))
	out := make(map[string]NodeResult, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
		if rt, ok := f.data[n.UUID]; ok {
			out[n.UUID] = NodeResult{Data: rt}
		} else {
			out[n.UUID] = NodeResult{Err: errors.New("connection refused")}
		}
	}
	f.calls = append(f.calls, names)
	return out
}

func (f *fakeCollector) requests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// cluster with node10 listed before node2 to exercise the natural order.
// node3 is offline and node2 is unreachable.
func testConfig() *types.ConfigData {
	cfg := types.NewConfigData()
	cfg.Cluster = types.Cluster{Name: "cluster.example.com", MasterNode: "n1"}
	cfg.Groups["g1"] = &types.NodeGroup{UUID: "g1", Name: "default"}
	cfg.Groups["g2"] = &types.NodeGroup{UUID: "g2", Name: "empty"}
	cfg.Nodes["n10"] = &types.Node{UUID: "n10", Name: "node10", Group: "g1"}
	cfg.Nodes["n1"] = &types.Node{UUID: "n1", Name: "node1", Group: "g1", MasterCandidate: true}
	cfg.Nodes["n2"] = &types.Node{UUID: "n2", Name: "node2", Group: "g1"}
	cfg.Nodes["n3"] = &types.Node{UUID: "n3", Name: "node3", Group: "g1", Offline: true}
	cfg.Instances["i1"] = &types.Instance{UUID: "i1", Name: "inst1", PrimaryNode: "n1", AdminState: types.AdminStateUp}
	cfg.Instances["i2"] = &types.Instance{UUID: "i2", Name: "inst2", PrimaryNode: "n1", AdminState: types.AdminStateDown}
	cfg.Instances["i3"] = &types.Instance{UUID: "i3", Name: "inst3", PrimaryNode: "n2", AdminState: types.AdminStateUp}
	cfg.Instances["i4"] = &types.Instance{UUID: "i4", Name: "inst4", PrimaryNode: "n3", AdminState: types.AdminStateUp}
	cfg.Instances["i5"] = &types.Instance{UUID: "i5", Name: "inst5", PrimaryNode: "n10", AdminState: types.AdminStateOffline}
	return cfg
}

func testCollector() *fakeCollector {
	return &fakeCollector{data: map[string]*types.NodeRuntime{
		"n1": {
			CPUTotal: 8,
			MemFree:  2048,
			Instances: map[string]types.InstanceRuntime{
				"inst1": {State: "running", Memory: 512, VCPUs: 2},
				"inst2": {State: "running", Memory: 256, VCPUs: 1},
			},
		},
		"n10": {CPUTotal: 2, MemFree: 128},
	}}
}

// column extracts one column of a result as status/value pairs
func column(res *types.QueryResult, idx int) []types.ResultEntry {
	out := make([]types.ResultEntry, len(res.Data))
	for i, row := range res.Data {
		out[i] = row[idx]
	}
	return out
}

func names(res *types.QueryResult) []interface{} {
	out := make([]interface{}, len(res.Data))
	for i, row := range res.Data {
		out[i] = row[0].Value
	}
	return out
}

func TestQueryNodesConfigOnly(t *testing.T) {
	fc := testCollector()
	e := NewExecutor(fc)

	res, err := e.Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeNode,
		Fields: []string{"name", "role", "pinst_cnt"},
	})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"node1", "node2", "node3", "node10"}, names(res))
	assert.Equal(t, []types.ResultEntry{
		types.NormalEntry(NodeRoleMaster),
		types.NormalEntry(NodeRoleRegular),
		types.NormalEntry(NodeRoleOffline),
		types.NormalEntry(NodeRoleRegular),
	}, column(res, 1))
	assert.Equal(t, types.NormalEntry(2), res.Data[0][2])
	assert.Empty(t, fc.requests(), "config-only queries must not contact nodes")

	require.Len(t, res.Fields, 3)
	assert.Equal(t, "Node", res.Fields[0].Title)
}

func TestQueryNodesLiveStatuses(t *testing.T) {
	tests := []struct {
		name string
		live bool
		want []types.ResultEntry
	}{
		{
			name: "live data enabled",
			live: true,
			want: []types.ResultEntry{
				types.NormalEntry(8),
				types.StatusEntry(types.RSNoData),
				types.StatusEntry(types.RSOffline),
				types.NormalEntry(2),
			},
		},
		{
			name: "live data disabled",
			live: false,
			want: []types.ResultEntry{
				types.StatusEntry(types.RSUnavail),
				types.StatusEntry(types.RSUnavail),
				types.StatusEntry(types.RSUnavail),
				types.StatusEntry(types.RSUnavail),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := testCollector()
			res, err := NewExecutor(fc).Query(context.Background(), testConfig(), tt.live, Query{
				Kind:   types.ItemTypeNode,
				Fields: []string{"name", "cpu_total"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, column(res, 1))

			if tt.live {
				require.Len(t, fc.requests(), 1)
				assert.ElementsMatch(t, []string{"node1", "node2", "node10"}, fc.requests()[0],
					"offline nodes are not contacted")
			} else {
				assert.Empty(t, fc.requests())
			}
		})
	}
}

func TestQueryUnknownField(t *testing.T) {
	res, err := NewExecutor(testCollector()).Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeGroup,
		Fields: []string{"name", "bogus"},
	})
	require.NoError(t, err)

	require.Len(t, res.Fields, 2)
	assert.Equal(t, types.FieldTypeUnknown, res.Fields[1].Kind)
	assert.Equal(t, "bogus", res.Fields[1].Name)
	for _, row := range res.Data {
		assert.Equal(t, types.StatusEntry(types.RSUnknown), row[1])
	}
}

func TestQueryFilterPrefilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		want     []interface{}
		contacts []string
	}{
		{
			name:   "config filter only",
			filter: Regexp("name", "^node1"),
			want:   []interface{}{"node1", "node10"},
		},
		{
			name:     "live filter refines after collection",
			filter:   Gt("cpu_total", 4),
			want:     []interface{}{"node1"},
			contacts: []string{"node1", "node2", "node10"},
		},
		{
			name:     "config conjunct limits collection",
			filter:   And(Eq("name", "node10"), Gt("cpu_total", 1)),
			want:     []interface{}{"node10"},
			contacts: []string{"node10"},
		},
		{
			name:   "always false skips collection",
			filter: And(Eq("name", "missing"), Gt("cpu_total", 1)),
			want:   []interface{}{},
		},
		{
			name:     "negated config leaf with live conjunct",
			filter:   And(Not(True("offline")), Ge("cpu_total", 2)),
			want:     []interface{}{"node1", "node10"},
			contacts: []string{"node1", "node2", "node10"},
		},
		{
			// missing live data never satisfies a comparison
			name:     "unreachable node does not match",
			filter:   And(Eq("name", "node2"), Ge("cpu_total", 0)),
			want:     []interface{}{},
			contacts: []string{"node2"},
		},
		{
			name:   "or with decided config leaf",
			filter: Or(True("master_candidate"), Gt("cpu_total", 100)),
			want:   []interface{}{"node1"},
			// node1 is decided true without live data, the rest stay unknown
			contacts: []string{"node1", "node2", "node10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := testCollector()
			res, err := NewExecutor(fc).Query(context.Background(), testConfig(), true, Query{
				Kind:   types.ItemTypeNode,
				Fields: []string{"name"},
				Filter: tt.filter,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(res))

			if tt.contacts == nil {
				assert.Empty(t, fc.requests())
				return
			}
			require.Len(t, fc.requests(), 1)
			assert.ElementsMatch(t, tt.contacts, fc.requests()[0])
		})
	}
}

func TestQueryFilterError(t *testing.T) {
	_, err := NewExecutor(testCollector()).Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeNode,
		Fields: []string{"name"},
		Filter: Eq("nope", "x"),
	})
	var fe *FilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "nope", fe.Field)
}

func TestQueryInstances(t *testing.T) {
	fc := testCollector()
	res, err := NewExecutor(fc).Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeInstance,
		Fields: []string{"name", "pnode", "status", "oper_ram"},
	})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"inst1", "inst2", "inst3", "inst4", "inst5"}, names(res))
	assert.Equal(t, []types.ResultEntry{
		types.NormalEntry(InstStatusRunning),
		types.NormalEntry(InstStatusWrongUp),
		types.NormalEntry(InstStatusNodeDown),
		types.NormalEntry(InstStatusNodeOffline),
		types.NormalEntry(InstStatusAdminOff),
	}, column(res, 2))
	assert.Equal(t, types.NormalEntry(512), res.Data[0][3])
	assert.Equal(t, types.StatusEntry(types.RSNoData), res.Data[2][3])
	assert.Equal(t, types.StatusEntry(types.RSOffline), res.Data[3][3])

	// inst1 and inst2 share a primary node that is asked only once
	require.Len(t, fc.requests(), 1)
	assert.ElementsMatch(t, []string{"node1", "node2", "node10"}, fc.requests()[0])
}

func TestQueryInstancesLiveDisabled(t *testing.T) {
	fc := testCollector()
	res, err := NewExecutor(fc).Query(context.Background(), testConfig(), false, Query{
		Kind:   types.ItemTypeInstance,
		Fields: []string{"name", "status", "oper_state"},
	})
	require.NoError(t, err)

	for _, row := range res.Data {
		assert.Equal(t, types.StatusEntry(types.RSUnavail), row[1])
		assert.Equal(t, types.StatusEntry(types.RSUnavail), row[2])
	}
	assert.Empty(t, fc.requests())
}

func TestQueryGroups(t *testing.T) {
	res, err := NewExecutor(nil).Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeGroup,
		Fields: []string{"name", "node_cnt", "node_list"},
		Filter: Gt("node_cnt", 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Data, 1)
	assert.Equal(t, types.NormalEntry("default"), res.Data[0][0])
	assert.Equal(t, types.NormalEntry(4), res.Data[0][1])
	assert.Equal(t, types.NormalEntry([]string{"node1", "node2", "node3", "node10"}), res.Data[0][2])
}

func TestQueryLiveWithoutCollector(t *testing.T) {
	_, err := NewExecutor(nil).Query(context.Background(), testConfig(), true, Query{
		Kind:   types.ItemTypeNode,
		Fields: []string{"cpu_total"},
	})
	assert.Error(t, err)
}

func TestQueryUnsupportedKind(t *testing.T) {
	e := NewExecutor(nil)

	_, err := e.Query(context.Background(), testConfig(), true, Query{Kind: types.ItemType("lock")})
	var uk *UnsupportedKindError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, types.ItemType("lock"), uk.Kind)

	_, err = e.QueryFields(types.ItemType("lock"), nil)
	assert.ErrorAs(t, err, &uk)
}

func TestQueryFields(t *testing.T) {
	e := NewExecutor(nil)

	all, err := e.QueryFields(types.ItemTypeNode, nil)
	require.NoError(t, err)
	require.Len(t, all.Fields, len(NodeFields))
	for i := 1; i < len(all.Fields); i++ {
		assert.Less(t, all.Fields[i-1].Name, all.Fields[i].Name)
	}

	some, err := e.QueryFields(types.ItemTypeInstance, []string{"status", "nope", "name"})
	require.NoError(t, err)
	require.Len(t, some.Fields, 3)
	assert.Equal(t, "status", some.Fields[0].Name)
	assert.Equal(t, types.FieldTypeUnknown, some.Fields[1].Kind)
	assert.Equal(t, "name", some.Fields[2].Name)
}
