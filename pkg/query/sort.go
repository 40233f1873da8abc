package query

import (
	"sort"
	"strconv"
)

// niceSort sorts names so that embedded numbers compare numerically:
// node2 sorts before node10.
func niceSort(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return niceLess(names[i], names[j]) })
}

func sortByName[T any](items []T, name func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return niceLess(name(items[i]), name(items[j])) })
}

func niceLess(a, b string) bool {
	for a != "" && b != "" {
		ca, ra := chunk(a)
		cb, rb := chunk(b)
		if ca != cb {
			na, errA := strconv.ParseUint(ca, 10, 64)
			nb, errB := strconv.ParseUint(cb, 10, 64)
			if errA == nil && errB == nil && na != nb {
				return na < nb
			}
			return ca < cb
		}
		a, b = ra, rb
	}
	return len(a) < len(b)
}

// chunk splits off the leading run of digits or non-digits
func chunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
