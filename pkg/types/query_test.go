package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultEntryJSON(t *testing.T) {
	tests := []struct {
		name  string
		entry ResultEntry
		want  string
	}{
		{name: "normal", entry: NormalEntry("node1"), want: `[0, "node1"]`},
		{name: "no data", entry: StatusEntry(RSNoData), want: `[2, null]`},
		{name: "offline", entry: StatusEntry(RSOffline), want: `[4, null]`},
		{name: "list value", entry: NormalEntry([]string{"a", "b"}), want: `[0, ["a", "b"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.entry)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestResultEntryUnmarshalErrors(t *testing.T) {
	for _, input := range []string{`[0]`, `[5, null]`, `[-1, null]`, `["0", 1]`, `{}`} {
		var e ResultEntry
		assert.Error(t, json.Unmarshal([]byte(input), &e), input)
	}

	var e ResultEntry
	require.NoError(t, json.Unmarshal([]byte(`[3, null]`), &e))
	assert.Equal(t, StatusEntry(RSUnavail), e)
}

func TestResultStatusString(t *testing.T) {
	assert.Equal(t, "nodata", RSNoData.String())
	assert.Equal(t, "unavail", RSUnavail.String())
	assert.Equal(t, "status(9)", ResultStatus(9).String())
}

func TestConfigDataLookups(t *testing.T) {
	cfg := NewConfigData()
	cfg.Nodes["n1"] = &Node{UUID: "n1", Name: "node1", Group: "g1"}
	cfg.Nodes["n2"] = &Node{UUID: "n2", Name: "node2", Group: "g2"}
	cfg.Instances["i1"] = &Instance{UUID: "i1", Name: "inst1", PrimaryNode: "n1", SecondaryNodes: []string{"n2"}}
	cfg.Instances["i2"] = &Instance{UUID: "i2", Name: "inst2", PrimaryNode: "n2"}

	assert.Len(t, cfg.PrimaryInstances("n1"), 1)
	assert.Len(t, cfg.PrimaryInstances("n2"), 1)
	assert.Len(t, cfg.SecondaryInstances("n2"), 1)
	assert.Empty(t, cfg.SecondaryInstances("n1"))
	assert.Len(t, cfg.GroupNodes("g1"), 1)

	n, ok := cfg.NodeByName("node2")
	require.True(t, ok)
	assert.Equal(t, "n2", n.UUID)
	_, ok = cfg.NodeByName("node9")
	assert.False(t, ok)
}
