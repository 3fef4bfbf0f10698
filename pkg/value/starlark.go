package value

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// ToStarlark converts a Var to the Starlark value handed to the evaluator.
// Mapping keys are inserted in sorted order so the result is deterministic.
func ToStarlark(v Var) starlark.Value {
	switch t := v.(type) {
	case nil:
		return starlark.None
	case Uint:
		return starlark.MakeUint64(uint64(t))
	case Int:
		return starlark.MakeInt64(int64(t))
	case String:
		return starlark.String(string(t))
	case UintList:
		items := make([]starlark.Value, len(t))
		for i, n := range t {
			items[i] = starlark.MakeUint64(n)
		}
		return starlark.NewList(items)
	case IntList:
		items := make([]starlark.Value, len(t))
		for i, n := range t {
			items[i] = starlark.MakeInt64(n)
		}
		return starlark.NewList(items)
	case StringList:
		items := make([]starlark.Value, len(t))
		for i, s := range t {
			items[i] = starlark.String(s)
		}
		return starlark.NewList(items)
	case UintMap:
		dict := starlark.NewDict(len(t))
		for _, k := range sortedKeys(t) {
			dict.SetKey(starlark.String(k), starlark.MakeUint64(t[k]))
		}
		return dict
	case IntMap:
		dict := starlark.NewDict(len(t))
		for _, k := range sortedKeys(t) {
			dict.SetKey(starlark.String(k), starlark.MakeInt64(t[k]))
		}
		return dict
	case StringMap:
		dict := starlark.NewDict(len(t))
		for _, k := range sortedKeys(t) {
			dict.SetKey(starlark.String(k), starlark.String(t[k]))
		}
		return dict
	default:
		return starlark.String(v.String())
	}
}

// FromStarlark converts a Starlark value back into a Var. Integers come back
// as Int unless they only fit an unsigned 64-bit value.
func FromStarlark(v starlark.Value) (Var, error) {
	switch t := v.(type) {
	case starlark.String:
		return String(string(t)), nil
	case starlark.Int:
		if n, ok := t.Int64(); ok {
			return Int(n), nil
		}
		if n, ok := t.Uint64(); ok {
			return Uint(n), nil
		}
		return nil, fmt.Errorf("integer %s does not fit 64 bits", t)
	case *starlark.List:
		items := make([]any, t.Len())
		for i := 0; i < t.Len(); i++ {
			item, err := FromStarlark(t.Index(i))
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = item
		}
		return FromGo(items)
	case *starlark.Dict:
		items := make(map[string]any, t.Len())
		for _, kv := range t.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", kv[0])
			}
			item, err := FromStarlark(kv[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", string(key), err)
			}
			items[string(key)] = item
		}
		return FromGo(items)
	}
	return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
}

// Table builds the predeclared environment for the evaluator.
func (m UserMap) Table() starlark.StringDict {
	table := make(starlark.StringDict, len(m))
	for name, v := range m {
		table[name] = ToStarlark(v)
	}
	return table
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
