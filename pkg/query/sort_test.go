package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNiceLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"node2", "node10", true},
		{"node10", "node2", false},
		{"node1", "node1", false},
		{"node1", "node1a", true},
		{"a", "b", true},
		{"node01", "node1", true},
		{"10.0.0.2", "10.0.0.10", true},
		{"inst9.example.com", "inst10.example.com", true},
		{"", "a", true},
		{"a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, niceLess(tt.a, tt.b))
		})
	}
}

func TestNiceSort(t *testing.T) {
	names := []string{"node10", "node2", "node1", "alpha", "node2a"}
	niceSort(names)
	assert.Equal(t, []string{"alpha", "node1", "node2", "node2a", "node10"}, names)
}
