package luxi

import (
	"encoding/json"
	"testing"

	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }

func testOpCode(id string) types.OpCode {
	return types.OpCode{"OP_ID": id, "duration": float64(10)}
}

func allOps() []Op {
	return []Op{
		QueryNodes{Names: []string{"node1", "node2"}, Fields: []string{"name", "pip"}, UseLocking: true},
		QueryNodes{Fields: []string{"name"}},
		QueryGroups{Names: []string{"default"}, Fields: []string{"name", "node_cnt"}},
		QueryInstances{Fields: []string{"name", "status"}, UseLocking: true},
		QueryJobs{JobIDs: []types.JobID{1, 2, 3}, Fields: []string{"status"}},
		QueryJobs{Fields: []string{"id", "status"}},
		QueryExports{Nodes: []string{"node1"}, UseLocking: false},
		QueryConfigValues{Fields: []string{"cluster_name", "drain_flag"}},
		QueryClusterInfo{},
		QueryTags{Kind: "node", Name: "node1"},
		Query{What: types.ItemTypeNode, Fields: []string{"name", "cpu_total"}},
		Query{
			What:   types.ItemTypeInstance,
			Fields: []string{"name"},
			Filter: query.And(query.Eq("pnode", "node1"), query.Not(query.Gt("memory", 512))),
		},
		QueryFields{What: types.ItemTypeGroup},
		QueryFields{What: types.ItemTypeNode, Fields: []string{"name", "mem_free"}},
		SubmitJob{Ops: []types.OpCode{testOpCode("OP_TEST_DELAY"), testOpCode("OP_CLUSTER_VERIFY")}},
		SubmitManyJobs{Jobs: [][]types.OpCode{
			{testOpCode("OP_TEST_DELAY")},
			{testOpCode("OP_INSTANCE_STARTUP"), testOpCode("OP_INSTANCE_SHUTDOWN")},
		}},
		WaitForJobChange{JobID: 42, Fields: []string{"status"}, Timeout: 60},
		WaitForJobChange{
			JobID:         42,
			Fields:        []string{"status", "opstatus"},
			PrevJobInfo:   []interface{}{"running", []interface{}{"success", "running"}},
			PrevLogSerial: int64Ptr(7),
			Timeout:       30,
		},
		ArchiveJob{JobID: 9},
		AutoArchiveJobs{Age: 3600, Timeout: 10},
		CancelJob{JobID: 11},
		SetDrainFlag{Flag: true},
		SetWatcherPause{},
		SetWatcherPause{Until: float64Ptr(1700000000.5)},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, op := range allOps() {
		t.Run(op.Method(), func(t *testing.T) {
			method, args := Encode(op)
			assert.Equal(t, op.Method(), method)

			raw, err := json.Marshal(args)
			require.NoError(t, err)

			got, err := Decode(method, raw)
			require.NoError(t, err)
			assert.Equal(t, op, got)
		})
	}
}

func TestDecodeCanonicalForm(t *testing.T) {
	serial := int64(4)
	tests := []struct {
		name string
		op   Op
		want Op
	}{
		{
			name: "empty names become nil",
			op:   QueryNodes{Names: []string{}, Fields: []string{"name"}},
			want: QueryNodes{Fields: []string{"name"}},
		},
		{
			name: "empty fields become nil",
			op:   QueryFields{What: types.ItemTypeGroup, Fields: []string{}},
			want: QueryFields{What: types.ItemTypeGroup},
		},
		{
			name: "previous job info numbers become float64",
			op: WaitForJobChange{
				JobID:         9,
				Fields:        []string{"status", "id"},
				PrevJobInfo:   []interface{}{"running", 9},
				PrevLogSerial: &serial,
				Timeout:       10,
			},
			want: WaitForJobChange{
				JobID:         9,
				Fields:        []string{"status", "id"},
				PrevJobInfo:   []interface{}{"running", float64(9)},
				PrevLogSerial: &serial,
				Timeout:       10,
			},
		},
		{
			name: "opcode parameters become float64",
			op:   SubmitJob{Ops: []types.OpCode{{"OP_ID": "OP_TEST_DELAY", "duration": 2}}},
			want: SubmitJob{Ops: []types.OpCode{{"OP_ID": "OP_TEST_DELAY", "duration": float64(2)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.op)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, roundTrip(t, got))
		})
	}
}

func roundTrip(t *testing.T, op Op) Op {
	t.Helper()
	method, args := Encode(op)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	got, err := Decode(method, raw)
	require.NoError(t, err)
	return got
}

func TestEveryMethodHasAnOp(t *testing.T) {
	seen := make(map[string]bool)
	for _, op := range allOps() {
		seen[op.Method()] = true
	}
	for _, m := range Methods {
		assert.True(t, seen[m], "no test operation for %s", m)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   string
	}{
		{"unknown method", "QueryEverything", `[]`},
		{"args not a list", MethodQueryNodes, `{"names": []}`},
		{"too few args", MethodQueryNodes, `[["node1"], ["name"]]`},
		{"too many args", MethodQueryClusterInfo, `[1]`},
		{"names not strings", MethodQueryNodes, `[[1, 2], ["name"], false]`},
		{"locking not bool", MethodQueryInstances, `[[], ["name"], "yes"]`},
		{"negative job id", MethodCancelJob, `[-1]`},
		{"job id not numeric", MethodArchiveJob, `["abc"]`},
		{"null job id", MethodCancelJob, `[null]`},
		{"fractional age", MethodAutoArchiveJobs, `[1.5, 10]`},
		{"drain flag missing", MethodSetDrainFlag, `[]`},
		{"watcher pause not a number", MethodSetWatcherPause, `["tomorrow"]`},
		{"watcher pause too many", MethodSetWatcherPause, `[1, 2]`},
		{"empty job", MethodSubmitJob, `[]`},
		{"opcode without OP_ID", MethodSubmitJob, `[{"duration": 1}]`},
		{"opcode not an object", MethodSubmitJob, `["OP_TEST_DELAY"]`},
		{"many jobs row not a list", MethodSubmitManyJobs, `[{"OP_ID": "OP_TEST_DELAY"}]`},
		{"many jobs empty row", MethodSubmitManyJobs, `[[]]`},
		{"invalid filter", MethodQuery, `["node", ["name"], ["~~", "name", "x"]]`},
		{"query kind not string", MethodQuery, `[1, ["name"], null]`},
		{"query fields kind missing", MethodQueryFields, `[null, null]`},
		{"wait short tuple", MethodWaitForJobChange, `[1, ["status"], null, null]`},
		{"wait bad job id", MethodWaitForJobChange, `[true, ["status"], null, null, 10]`},
		{"wait bad fields", MethodWaitForJobChange, `[1, "status", null, null, 10]`},
		{"wait bad prev info", MethodWaitForJobChange, `[1, ["status"], "running", null, 10]`},
		{"wait bad prev serial", MethodWaitForJobChange, `[1, ["status"], null, "7", 10]`},
		{"wait bad timeout", MethodWaitForJobChange, `[1, ["status"], null, null, null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := Decode(tt.method, json.RawMessage(tt.args))
			require.Error(t, err)
			assert.Nil(t, op)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, tt.method, decErr.Method)
			assert.Contains(t, err.Error(), tt.method)
		})
	}
}

func TestDecodeNullAndEmptyLists(t *testing.T) {
	for _, args := range []string{`[null, null, false]`, `[[], [], false]`} {
		op, err := Decode(MethodQueryNodes, json.RawMessage(args))
		require.NoError(t, err)
		assert.Equal(t, QueryNodes{}, op)
	}

	op, err := Decode(MethodQueryExports, json.RawMessage(`[null, true]`))
	require.NoError(t, err)
	assert.Equal(t, QueryExports{UseLocking: true}, op)

	op, err = Decode(MethodQueryJobs, json.RawMessage(`[null, ["id"]]`))
	require.NoError(t, err)
	assert.Equal(t, QueryJobs{Fields: []string{"id"}}, op)
}

func TestDecodeWatcherPauseOptional(t *testing.T) {
	for _, args := range []string{`[]`, `[null]`, ``, `null`} {
		op, err := Decode(MethodSetWatcherPause, json.RawMessage(args))
		require.NoError(t, err, "args %q", args)
		assert.Equal(t, SetWatcherPause{}, op)
	}

	op, err := Decode(MethodSetWatcherPause, json.RawMessage(`[1700000000]`))
	require.NoError(t, err)
	require.NotNil(t, op.(SetWatcherPause).Until)
	assert.Equal(t, float64(1700000000), *op.(SetWatcherPause).Until)
}

func TestDecodeJobIDAsString(t *testing.T) {
	op, err := Decode(MethodCancelJob, json.RawMessage(`["123"]`))
	require.NoError(t, err)
	assert.Equal(t, CancelJob{JobID: 123}, op)
}

func TestDecodeFilterAlias(t *testing.T) {
	op, err := Decode(MethodQuery, json.RawMessage(`["node", ["name"], ["=", "name", "node1"]]`))
	require.NoError(t, err)
	assert.Equal(t, query.Eq("name", "node1"), op.(Query).Filter)
}

func TestEncodeSubmitJobArgsAreOps(t *testing.T) {
	_, args := Encode(SubmitJob{Ops: []types.OpCode{testOpCode("OP_TEST_DELAY")}})
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"OP_ID": "OP_TEST_DELAY", "duration": 10}]`, string(raw))
}

func TestEncodeNilLists(t *testing.T) {
	_, args := Encode(QueryNodes{})
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	assert.JSONEq(t, `[[], [], false]`, string(raw))

	_, args = Encode(QueryFields{What: types.ItemTypeNode})
	raw, err = json.Marshal(args)
	require.NoError(t, err)
	assert.JSONEq(t, `["node", null]`, string(raw))
}

func TestIsReadOnly(t *testing.T) {
	readOnly := map[string]bool{
		MethodQueryNodes:       true,
		MethodQuery:            true,
		MethodQueryFields:      true,
		MethodWaitForJobChange: true,
		MethodSubmitJob:        false,
		MethodCancelJob:        false,
		MethodSetDrainFlag:     false,
		MethodSetWatcherPause:  false,
		MethodAutoArchiveJobs:  false,
	}
	for method, want := range readOnly {
		assert.Equal(t, want, IsReadOnly(method), method)
	}
}
