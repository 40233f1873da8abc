package query

import (
	"errors"
	"sort"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

var (
	// ErrLiveDataDisabled marks runtime data that was not collected
	// because the caller disabled live collection
	ErrLiveDataDisabled = errors.New("live data disabled")

	// ErrNodeOffline marks runtime data of an offline node
	ErrNodeOffline = errors.New("node is offline")
)

// GetterKind classifies what a field getter needs to compute its value
type GetterKind int

const (
	GetterSimple  GetterKind = iota // Item only
	GetterConfig                    // Item and configuration snapshot
	GetterRuntime                   // Item and collected live data
	GetterUnknown                   // Placeholder for unknown fields
)

// Runtime is the live data collected for one item. Err is set when the
// collection was disabled or failed for that item.
type Runtime[R any] struct {
	Data R
	Err  error
}

// FieldGetter computes one field value. Exactly one function matching Kind
// is set.
type FieldGetter[T, R any] struct {
	Kind    GetterKind
	Simple  func(item T) types.ResultEntry
	Config  func(cfg *types.ConfigData, item T) types.ResultEntry
	Runtime func(rt Runtime[R], item T) types.ResultEntry
}

// FieldData pairs a field definition with its getter
type FieldData[T, R any] struct {
	Def    types.FieldDefinition
	Getter FieldGetter[T, R]
}

// FieldMap is the field registry of one resource kind. It is built during
// package initialisation and never modified afterwards.
type FieldMap[T, R any] map[string]FieldData[T, R]

func newFieldMap[T, R any](fields []FieldData[T, R]) FieldMap[T, R] {
	fm := make(FieldMap[T, R], len(fields))
	for _, f := range fields {
		if _, dup := fm[f.Def.Name]; dup {
			panic("duplicate query field " + f.Def.Name)
		}
		fm[f.Def.Name] = f
	}
	return fm
}

// Definitions returns all field definitions sorted by name
func (fm FieldMap[T, R]) Definitions() []types.FieldDefinition {
	out := make([]types.FieldDefinition, 0, len(fm))
	for _, f := range fm {
		out = append(out, f.Def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetSelectedFields resolves the requested names, in order. Unknown names
// yield a placeholder of kind "unknown" whose getter always reports
// RSUnknown, so the result has exactly len(names) entries.
func GetSelectedFields[T, R any](fm FieldMap[T, R], names []string) []FieldData[T, R] {
	out := make([]FieldData[T, R], 0, len(names))
	for _, name := range names {
		if f, ok := fm[name]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, unknownField[T, R](name))
	}
	return out
}

func unknownField[T, R any](name string) FieldData[T, R] {
	return FieldData[T, R]{
		Def: types.FieldDefinition{
			Name:  name,
			Title: name,
			Kind:  types.FieldTypeUnknown,
			Doc:   "Unknown field '" + name + "'",
		},
		Getter: FieldGetter[T, R]{Kind: GetterUnknown},
	}
}

// needsLiveData reports whether any of the fields uses a runtime getter
func needsLiveData[T, R any](fields []FieldData[T, R]) bool {
	for _, f := range fields {
		if f.Getter.Kind == GetterRuntime {
			return true
		}
	}
	return false
}

// execGetter runs a getter. rt may be nil when no runtime context exists,
// in which case runtime getters report RSUnavail.
func execGetter[T, R any](cfg *types.ConfigData, rt *Runtime[R], item T, g FieldGetter[T, R]) types.ResultEntry {
	switch g.Kind {
	case GetterSimple:
		return g.Simple(item)
	case GetterConfig:
		return g.Config(cfg, item)
	case GetterRuntime:
		if rt == nil {
			return types.StatusEntry(types.RSUnavail)
		}
		return g.Runtime(*rt, item)
	default:
		return types.StatusEntry(types.RSUnknown)
	}
}

// runtimeErrorStatus maps a collection error onto a result status
func runtimeErrorStatus(err error) types.ResultStatus {
	switch {
	case errors.Is(err, ErrLiveDataDisabled):
		return types.RSUnavail
	case errors.Is(err, ErrNodeOffline):
		return types.RSOffline
	default:
		return types.RSNoData
	}
}

// Field construction helpers

func def(name, title string, kind types.FieldType, doc string) types.FieldDefinition {
	return types.FieldDefinition{Name: name, Title: title, Kind: kind, Doc: doc}
}

func simpleField[T, R any](d types.FieldDefinition, fn func(T) types.ResultEntry) FieldData[T, R] {
	return FieldData[T, R]{Def: d, Getter: FieldGetter[T, R]{Kind: GetterSimple, Simple: fn}}
}

func configField[T, R any](d types.FieldDefinition, fn func(*types.ConfigData, T) types.ResultEntry) FieldData[T, R] {
	return FieldData[T, R]{Def: d, Getter: FieldGetter[T, R]{Kind: GetterConfig, Config: fn}}
}

func runtimeField[T, R any](d types.FieldDefinition, fn func(Runtime[R], T) types.ResultEntry) FieldData[T, R] {
	return FieldData[T, R]{Def: d, Getter: FieldGetter[T, R]{Kind: GetterRuntime, Runtime: fn}}
}

// liveField wraps an extractor so that collection errors become statuses
func liveField[T, R any](d types.FieldDefinition, fn func(R, T) types.ResultEntry) FieldData[T, R] {
	return runtimeField(d, func(rt Runtime[R], item T) types.ResultEntry {
		if rt.Err != nil {
			return types.StatusEntry(runtimeErrorStatus(rt.Err))
		}
		return fn(rt.Data, item)
	})
}

func timestampEntry(t time.Time) types.ResultEntry {
	if t.IsZero() {
		return types.StatusEntry(types.RSUnavail)
	}
	return types.NormalEntry(float64(t.UnixNano()) / 1e9)
}

func tagsEntry(tags []string) types.ResultEntry {
	out := make([]string, len(tags))
	copy(out, tags)
	sort.Strings(out)
	return types.NormalEntry(out)
}
