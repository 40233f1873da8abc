package query

import (
	"fmt"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// FilterError reports a filter that cannot be compiled against a field
// registry
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	if e.Field == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter on field %q: %s", e.Field, e.Reason)
}

// UnsupportedKindError reports a query on a resource kind that has no
// field registry
type UnsupportedKindError struct {
	Kind types.ItemType
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("query on resource kind %q is not supported", string(e.Kind))
}
