package query

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Filter is a node of a query filter expression. The set of node types is
// closed: AndFilter, OrFilter, NotFilter, TrueFilter and CompareFilter.
type Filter interface {
	filterNode()
}

// AndFilter matches when every child matches; an empty And matches all
type AndFilter struct {
	Children []Filter
}

// OrFilter matches when at least one child matches
type OrFilter struct {
	Children []Filter
}

// NotFilter negates its child
type NotFilter struct {
	Child Filter
}

// TrueFilter matches when the field value is truthy
type TrueFilter struct {
	Field string
}

// CompareOp is a leaf comparison operator
type CompareOp string

const (
	OpEqual        CompareOp = "=="
	OpNotEqual     CompareOp = "!="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpRegexp       CompareOp = "=~"
	OpContains     CompareOp = "=[]"
)

// CompareFilter compares a field against a constant
type CompareFilter struct {
	Op    CompareOp
	Field string
	Value FilterValue
}

func (AndFilter) filterNode()     {}
func (OrFilter) filterNode()      {}
func (NotFilter) filterNode()     {}
func (TrueFilter) filterNode()    {}
func (CompareFilter) filterNode() {}

// FilterValue is the constant side of a comparison: a string or a number
type FilterValue struct {
	Str   string
	Num   float64
	IsNum bool
}

// String builds a string filter value
func String(s string) FilterValue {
	return FilterValue{Str: s}
}

// Number builds a numeric filter value
func Number(n float64) FilterValue {
	return FilterValue{Num: n, IsNum: true}
}

func (v FilterValue) toJSON() interface{} {
	if v.IsNum {
		return v.Num
	}
	return v.Str
}

func (v FilterValue) String() string {
	if v.IsNum {
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
	return strconv.Quote(v.Str)
}

func valueOf(v interface{}) FilterValue {
	switch x := v.(type) {
	case FilterValue:
		return x
	case string:
		return String(x)
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case bool:
		if x {
			return Number(1)
		}
		return Number(0)
	}
	return String(fmt.Sprint(v))
}

// And combines filters with a logical and
func And(children ...Filter) Filter { return AndFilter{Children: children} }

// Or combines filters with a logical or
func Or(children ...Filter) Filter { return OrFilter{Children: children} }

// Not negates a filter
func Not(child Filter) Filter { return NotFilter{Child: child} }

// True tests a field for truthiness
func True(field string) Filter { return TrueFilter{Field: field} }

// Eq builds an equality comparison. v may be a string, a number or a bool.
func Eq(field string, v interface{}) Filter {
	return CompareFilter{Op: OpEqual, Field: field, Value: valueOf(v)}
}

// Ne builds an inequality comparison
func Ne(field string, v interface{}) Filter {
	return CompareFilter{Op: OpNotEqual, Field: field, Value: valueOf(v)}
}

// Lt, Le, Gt and Ge build ordering comparisons
func Lt(field string, v interface{}) Filter {
	return CompareFilter{Op: OpLess, Field: field, Value: valueOf(v)}
}

func Le(field string, v interface{}) Filter {
	return CompareFilter{Op: OpLessEqual, Field: field, Value: valueOf(v)}
}

func Gt(field string, v interface{}) Filter {
	return CompareFilter{Op: OpGreater, Field: field, Value: valueOf(v)}
}

func Ge(field string, v interface{}) Filter {
	return CompareFilter{Op: OpGreaterEqual, Field: field, Value: valueOf(v)}
}

// Regexp matches a text field against a regular expression
func Regexp(field, re string) Filter {
	return CompareFilter{Op: OpRegexp, Field: field, Value: String(re)}
}

// Contains tests a list field for membership of v
func Contains(field string, v interface{}) Filter {
	return CompareFilter{Op: OpContains, Field: field, Value: valueOf(v)}
}

// FilterToJSON converts a filter into its list-based wire form. A nil
// filter becomes nil (JSON null).
func FilterToJSON(f Filter) interface{} {
	switch x := f.(type) {
	case nil:
		return nil
	case AndFilter:
		return append([]interface{}{"&"}, childrenToJSON(x.Children)...)
	case OrFilter:
		return append([]interface{}{"|"}, childrenToJSON(x.Children)...)
	case NotFilter:
		return []interface{}{"!", FilterToJSON(x.Child)}
	case TrueFilter:
		return []interface{}{"?", x.Field}
	case CompareFilter:
		return []interface{}{string(x.Op), x.Field, x.Value.toJSON()}
	}
	panic(fmt.Sprintf("unhandled filter type %T", f))
}

func childrenToJSON(children []Filter) []interface{} {
	out := make([]interface{}, 0, len(children))
	for _, c := range children {
		out = append(out, FilterToJSON(c))
	}
	return out
}

// ParseFilter decodes the list-based wire form. JSON null yields a nil
// filter, meaning "match everything".
func ParseFilter(data []byte) (Filter, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return FilterFromJSON(raw)
}

// FilterFromJSON converts an already decoded JSON value into a Filter
func FilterFromJSON(raw interface{}) (Filter, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("invalid filter: expected non-empty list, got %v", raw)
	}
	op, ok := list[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid filter operator %v", list[0])
	}
	args := list[1:]

	switch op {
	case "&", "|":
		children := make([]Filter, 0, len(args))
		for _, a := range args {
			c, err := FilterFromJSON(a)
			if err != nil {
				return nil, err
			}
			if c == nil {
				return nil, fmt.Errorf("invalid filter: null operand in %q", op)
			}
			children = append(children, c)
		}
		if op == "&" {
			return AndFilter{Children: children}, nil
		}
		return OrFilter{Children: children}, nil
	case "!":
		if len(args) != 1 {
			return nil, fmt.Errorf("invalid filter: %q takes one operand, got %d", op, len(args))
		}
		c, err := FilterFromJSON(args[0])
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("invalid filter: null operand in %q", op)
		}
		return NotFilter{Child: c}, nil
	case "?":
		if len(args) != 1 {
			return nil, fmt.Errorf("invalid filter: %q takes one field, got %d", op, len(args))
		}
		field, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid filter: field name must be a string, got %v", args[0])
		}
		return TrueFilter{Field: field}, nil
	}

	cmp := CompareOp(op)
	if op == "=" {
		cmp = OpEqual
	}
	switch cmp {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpRegexp, OpContains:
	default:
		return nil, fmt.Errorf("invalid filter operator %q", op)
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("invalid filter: %q takes a field and a value, got %d operands", op, len(args))
	}
	field, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid filter: field name must be a string, got %v", args[0])
	}
	var value FilterValue
	switch v := args[1].(type) {
	case string:
		value = String(v)
	case float64:
		value = Number(v)
	default:
		return nil, fmt.Errorf("invalid filter value %v for field %q", args[1], field)
	}
	return CompareFilter{Op: cmp, Field: field, Value: value}, nil
}

// FilterFields returns every field name referenced by f, in order of
// appearance
func FilterFields(f Filter) []string {
	var out []string
	var walk func(Filter)
	walk = func(f Filter) {
		switch x := f.(type) {
		case AndFilter:
			for _, c := range x.Children {
				walk(c)
			}
		case OrFilter:
			for _, c := range x.Children {
				walk(c)
			}
		case NotFilter:
			walk(x.Child)
		case TrueFilter:
			out = append(out, x.Field)
		case CompareFilter:
			out = append(out, x.Field)
		}
	}
	walk(f)
	return out
}
