package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Filter
		wantErr string
	}{
		{name: "null", input: `null`, want: nil},
		{name: "equal", input: `["==", "name", "node1"]`, want: Eq("name", "node1")},
		{name: "single equals alias", input: `["=", "name", "node1"]`, want: Eq("name", "node1")},
		{name: "number", input: `[">", "cpu_total", 4]`, want: Gt("cpu_total", 4)},
		{name: "regexp", input: `["=~", "name", "^node[0-9]$"]`, want: Regexp("name", "^node[0-9]$")},
		{name: "contains", input: `["=[]", "tags", "rack:1"]`, want: Contains("tags", "rack:1")},
		{name: "truth", input: `["?", "offline"]`, want: True("offline")},
		{
			name:  "nested",
			input: `["&", ["!", ["?", "offline"]], ["|", ["<", "pinst_cnt", 2], ["!=", "role", "M"]]]`,
			want: And(
				Not(True("offline")),
				Or(Lt("pinst_cnt", 2), Ne("role", "M")),
			),
		},
		{name: "empty and", input: `["&"]`, want: AndFilter{Children: []Filter{}}},
		{name: "bad json", input: `[`, wantErr: "invalid filter"},
		{name: "not a list", input: `"name"`, wantErr: "expected non-empty list"},
		{name: "empty list", input: `[]`, wantErr: "expected non-empty list"},
		{name: "unknown operator", input: `["~~", "name", "x"]`, wantErr: `invalid filter operator "~~"`},
		{name: "operator not a string", input: `[1, "name"]`, wantErr: "invalid filter operator"},
		{name: "missing value", input: `["==", "name"]`, wantErr: "takes a field and a value"},
		{name: "field not a string", input: `["==", 1, "x"]`, wantErr: "field name must be a string"},
		{name: "bool value", input: `["==", "offline", true]`, wantErr: "invalid filter value"},
		{name: "null operand", input: `["&", null]`, wantErr: "null operand"},
		{name: "negation arity", input: `["!", ["?", "a"], ["?", "b"]]`, wantErr: "takes one operand"},
		{name: "truth arity", input: `["?"]`, wantErr: "takes one field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterToJSON(t *testing.T) {
	f := And(
		Eq("name", "node1"),
		Not(True("offline")),
		Or(Ge("cpu_total", 4), Contains("tags", "rack:1")),
	)

	data, err := json.Marshal(FilterToJSON(f))
	require.NoError(t, err)
	assert.JSONEq(t,
		`["&", ["==", "name", "node1"], ["!", ["?", "offline"]], ["|", [">=", "cpu_total", 4], ["=[]", "tags", "rack:1"]]]`,
		string(data))

	back, err := ParseFilter(data)
	require.NoError(t, err)
	assert.Equal(t, f, back)

	assert.Nil(t, FilterToJSON(nil))
}

func TestFilterFields(t *testing.T) {
	f := And(Eq("name", "a"), Or(True("offline"), Not(Gt("cpu_total", 1))))
	assert.Equal(t, []string{"name", "offline", "cpu_total"}, FilterFields(f))
	assert.Empty(t, FilterFields(nil))
}

func TestCompileFilterErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		field  string
		reason string
	}{
		{name: "unknown field", filter: Eq("nope", "x"), field: "nope", reason: "unknown field"},
		{name: "unknown field in truth test", filter: True("nope"), field: "nope", reason: "unknown field"},
		{name: "text against number", filter: Eq("name", 1), field: "name", reason: "text field compared with a number"},
		{name: "number against text", filter: Gt("cpu_total", "many"), field: "cpu_total", reason: "numeric field compared with a string"},
		{name: "ordered bool", filter: Lt("offline", 1), field: "offline", reason: "boolean field only supports equality"},
		{name: "bad regexp", filter: Regexp("name", "("), field: "name", reason: "invalid regular expression"},
		{name: "numeric regexp", filter: CompareFilter{Op: OpRegexp, Field: "name", Value: Number(1)}, field: "name", reason: "must be a string"},
		{name: "nested", filter: And(Eq("name", "a"), Or(Eq("missing", "b"))), field: "missing", reason: "unknown field"},
		{name: "empty negation", filter: NotFilter{}, reason: "negation without operand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(NodeFields, tt.filter)
			require.Error(t, err)
			var fe *FilterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Contains(t, fe.Reason, tt.reason)
		})
	}
}

func TestCompileFilterNeedsLiveData(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "nil", filter: nil, want: false},
		{name: "config field", filter: Eq("name", "node1"), want: false},
		{name: "live field", filter: Gt("cpu_total", 2), want: true},
		{name: "live field nested", filter: And(True("offline"), Not(Lt("mem_free", 10))), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := CompileFilter(NodeFields, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cf.NeedsLiveData())
		})
	}
}
