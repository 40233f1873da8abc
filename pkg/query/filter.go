package query

import (
	"fmt"
	"regexp"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// CompiledFilter is a filter bound to the getters of one field registry.
// A nil root matches every item.
type CompiledFilter[T, R any] struct {
	root     cnode[T, R]
	needLive bool
}

type cnode[T, R any] interface {
	eval(cfg *types.ConfigData, rt *Runtime[R], item T) bool
	maybe(cfg *types.ConfigData, item T) tristate
}

// tristate is the outcome of evaluating a filter before live data exists.
// Live leaves evaluate to unknown and propagate through the combinators.
type tristate int

const (
	triFalse tristate = iota
	triTrue
	triUnknown
)

type cand[T, R any] struct{ children []cnode[T, R] }

type cor[T, R any] struct{ children []cnode[T, R] }

type cnot[T, R any] struct{ child cnode[T, R] }

type cleaf[T, R any] struct {
	getter FieldGetter[T, R]
	test   func(v interface{}) bool
}

func (n cand[T, R]) eval(cfg *types.ConfigData, rt *Runtime[R], item T) bool {
	for _, c := range n.children {
		if !c.eval(cfg, rt, item) {
			return false
		}
	}
	return true
}

func (n cor[T, R]) eval(cfg *types.ConfigData, rt *Runtime[R], item T) bool {
	for _, c := range n.children {
		if c.eval(cfg, rt, item) {
			return true
		}
	}
	return false
}

func (n cnot[T, R]) eval(cfg *types.ConfigData, rt *Runtime[R], item T) bool {
	return !n.child.eval(cfg, rt, item)
}

func (n cand[T, R]) maybe(cfg *types.ConfigData, item T) tristate {
	out := triTrue
	for _, c := range n.children {
		switch c.maybe(cfg, item) {
		case triFalse:
			return triFalse
		case triUnknown:
			out = triUnknown
		}
	}
	return out
}

func (n cor[T, R]) maybe(cfg *types.ConfigData, item T) tristate {
	out := triFalse
	for _, c := range n.children {
		switch c.maybe(cfg, item) {
		case triTrue:
			return triTrue
		case triUnknown:
			out = triUnknown
		}
	}
	return out
}

func (n cnot[T, R]) maybe(cfg *types.ConfigData, item T) tristate {
	switch n.child.maybe(cfg, item) {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	}
	return triUnknown
}

func (n cleaf[T, R]) maybe(cfg *types.ConfigData, item T) tristate {
	if n.getter.Kind == GetterRuntime {
		return triUnknown
	}
	if n.eval(cfg, nil, item) {
		return triTrue
	}
	return triFalse
}

func (n cleaf[T, R]) eval(cfg *types.ConfigData, rt *Runtime[R], item T) bool {
	// Without a runtime context a live leaf cannot be decided; it does
	// not match.
	if n.getter.Kind == GetterRuntime && rt == nil {
		return false
	}
	entry := execGetter(cfg, rt, item, n.getter)
	if entry.Status != types.RSNormal {
		return false
	}
	return n.test(entry.Value)
}

// NeedsLiveData reports whether any leaf uses a runtime getter
func (f *CompiledFilter[T, R]) NeedsLiveData() bool {
	return f != nil && f.needLive
}

// CompileFilter validates filter against fm and binds every leaf to its
// getter. A nil filter compiles to a filter matching everything.
func CompileFilter[T, R any](fm FieldMap[T, R], filter Filter) (*CompiledFilter[T, R], error) {
	cf := &CompiledFilter[T, R]{}
	if filter == nil {
		return cf, nil
	}
	root, err := compileNode(fm, filter, &cf.needLive)
	if err != nil {
		return nil, err
	}
	cf.root = root
	return cf, nil
}

func compileNode[T, R any](fm FieldMap[T, R], filter Filter, needLive *bool) (cnode[T, R], error) {
	switch f := filter.(type) {
	case AndFilter:
		children, err := compileChildren(fm, f.Children, needLive)
		if err != nil {
			return nil, err
		}
		return cand[T, R]{children: children}, nil
	case OrFilter:
		children, err := compileChildren(fm, f.Children, needLive)
		if err != nil {
			return nil, err
		}
		return cor[T, R]{children: children}, nil
	case NotFilter:
		if f.Child == nil {
			return nil, &FilterError{Reason: "negation without operand"}
		}
		child, err := compileNode(fm, f.Child, needLive)
		if err != nil {
			return nil, err
		}
		return cnot[T, R]{child: child}, nil
	case TrueFilter:
		fd, err := lookupField(fm, f.Field)
		if err != nil {
			return nil, err
		}
		markLive(fd, needLive)
		return cleaf[T, R]{getter: fd.Getter, test: isTruthy}, nil
	case CompareFilter:
		fd, err := lookupField(fm, f.Field)
		if err != nil {
			return nil, err
		}
		test, err := compileComparison(fd.Def, f)
		if err != nil {
			return nil, err
		}
		markLive(fd, needLive)
		return cleaf[T, R]{getter: fd.Getter, test: test}, nil
	case nil:
		return nil, &FilterError{Reason: "null operand"}
	}
	return nil, &FilterError{Reason: fmt.Sprintf("unsupported filter node %T", filter)}
}

func compileChildren[T, R any](fm FieldMap[T, R], children []Filter, needLive *bool) ([]cnode[T, R], error) {
	out := make([]cnode[T, R], 0, len(children))
	for _, c := range children {
		n, err := compileNode(fm, c, needLive)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func lookupField[T, R any](fm FieldMap[T, R], name string) (FieldData[T, R], error) {
	fd, ok := fm[name]
	if !ok {
		return fd, &FilterError{Field: name, Reason: "unknown field"}
	}
	return fd, nil
}

func markLive[T, R any](fd FieldData[T, R], needLive *bool) {
	if fd.Getter.Kind == GetterRuntime {
		*needLive = true
	}
}

func compileComparison(d types.FieldDefinition, f CompareFilter) (func(interface{}) bool, error) {
	switch f.Op {
	case OpRegexp:
		if f.Value.IsNum {
			return nil, &FilterError{Field: f.Field, Reason: "regular expression must be a string"}
		}
		re, err := regexp.Compile(f.Value.Str)
		if err != nil {
			return nil, &FilterError{Field: f.Field, Reason: fmt.Sprintf("invalid regular expression: %v", err)}
		}
		return func(v interface{}) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}, nil
	case OpContains:
		want := f.Value
		return func(v interface{}) bool {
			return listContains(v, want)
		}, nil
	}

	if err := checkValueKind(d, f); err != nil {
		return nil, err
	}
	want := f.Value
	switch f.Op {
	case OpEqual:
		return func(v interface{}) bool { return equalValue(v, want) }, nil
	case OpNotEqual:
		return func(v interface{}) bool { return !equalValue(v, want) }, nil
	case OpLess:
		return ordered(want, func(c int) bool { return c < 0 }), nil
	case OpLessEqual:
		return ordered(want, func(c int) bool { return c <= 0 }), nil
	case OpGreater:
		return ordered(want, func(c int) bool { return c > 0 }), nil
	case OpGreaterEqual:
		return ordered(want, func(c int) bool { return c >= 0 }), nil
	}
	return nil, &FilterError{Field: f.Field, Reason: fmt.Sprintf("unknown operator %q", f.Op)}
}

// checkValueKind rejects comparisons whose constant cannot match the
// declared type of the field
func checkValueKind(d types.FieldDefinition, f CompareFilter) error {
	switch d.Kind {
	case types.FieldTypeText:
		if f.Value.IsNum {
			return &FilterError{Field: f.Field, Reason: "text field compared with a number"}
		}
	case types.FieldTypeNumber, types.FieldTypeUnit, types.FieldTypeTimestamp:
		if !f.Value.IsNum {
			return &FilterError{Field: f.Field, Reason: "numeric field compared with a string"}
		}
	case types.FieldTypeBool:
		if f.Op != OpEqual && f.Op != OpNotEqual {
			return &FilterError{Field: f.Field, Reason: "boolean field only supports equality"}
		}
	}
	return nil
}

func isTruthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	case []interface{}:
		return len(x) > 0
	}
	if n, ok := toFloat(v); ok {
		return n != 0
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case types.JobID:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func equalValue(v interface{}, want FilterValue) bool {
	if want.IsNum {
		n, ok := toFloat(v)
		return ok && n == want.Num
	}
	switch x := v.(type) {
	case string:
		return x == want.Str
	case bool:
		return (want.Str == "true" && x) || (want.Str == "false" && !x)
	}
	return false
}

func ordered(want FilterValue, accept func(int) bool) func(interface{}) bool {
	return func(v interface{}) bool {
		c, ok := compareValue(v, want)
		return ok && accept(c)
	}
}

func compareValue(v interface{}, want FilterValue) (int, bool) {
	if want.IsNum {
		n, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		switch {
		case n < want.Num:
			return -1, true
		case n > want.Num:
			return 1, true
		}
		return 0, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	switch {
	case s < want.Str:
		return -1, true
	case s > want.Str:
		return 1, true
	}
	return 0, true
}

func listContains(v interface{}, want FilterValue) bool {
	switch x := v.(type) {
	case []string:
		for _, e := range x {
			if equalValue(e, want) {
				return true
			}
		}
	case []interface{}:
		for _, e := range x {
			if equalValue(e, want) {
				return true
			}
		}
	}
	return false
}

// mayMatch reports whether item can still match once live data is known.
// Items for which it returns false are never collected.
func (f *CompiledFilter[T, R]) mayMatch(cfg *types.ConfigData, item T) bool {
	if f == nil || f.root == nil {
		return true
	}
	return f.root.maybe(cfg, item) != triFalse
}

// EvaluateFilter runs a compiled filter against one item. rt is nil when
// no live data has been collected yet.
func EvaluateFilter[T, R any](cfg *types.ConfigData, rt *Runtime[R], item T, f *CompiledFilter[T, R]) bool {
	if f == nil || f.root == nil {
		return true
	}
	return f.root.eval(cfg, rt, item)
}
