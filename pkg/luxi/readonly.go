package luxi

import (
	"strings"
)

// IsReadOnly reports whether a method leaves cluster and queue state
// untouched. Only these methods are served on a read-only socket.
func IsReadOnly(method string) bool {
	readOnlyPrefixes := []string{
		"Query",
		"WaitFor",
	}

	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}

	// Default: block
	return false
}
