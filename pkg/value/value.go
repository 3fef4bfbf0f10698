package value

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Var is a value a template variable may hold: a 64-bit integer, a string,
// or a homogeneous sequence or string-keyed mapping of one of those.
type Var interface {
	String() string
	Truth() bool
}

// Uint wraps an unsigned 64-bit integer.
type Uint uint64

func (u Uint) String() string { return fmt.Sprintf("%d", uint64(u)) }
func (u Uint) Truth() bool    { return u != 0 }

// Int wraps a signed 64-bit integer.
type Int int64

func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }
func (i Int) Truth() bool    { return i != 0 }

// String wraps a string.
type String string

func (s String) String() string { return string(s) }
func (s String) Truth() bool    { return len(s) > 0 }

type UintList []uint64

func (l UintList) String() string { return joinList(l) }
func (l UintList) Truth() bool    { return len(l) > 0 }

type IntList []int64

func (l IntList) String() string { return joinList(l) }
func (l IntList) Truth() bool    { return len(l) > 0 }

type StringList []string

func (l StringList) String() string { return strings.Join(l, " ") }
func (l StringList) Truth() bool    { return len(l) > 0 }

type UintMap map[string]uint64

func (m UintMap) String() string { return "{...}" }
func (m UintMap) Truth() bool    { return len(m) > 0 }

type IntMap map[string]int64

func (m IntMap) String() string { return "{...}" }
func (m IntMap) Truth() bool    { return len(m) > 0 }

type StringMap map[string]string

func (m StringMap) String() string { return "{...}" }
func (m StringMap) Truth() bool    { return len(m) > 0 }

// UserMap holds the variables a caller supplies to a template, by name.
type UserMap map[string]Var

// Names returns the variable names in sorted order.
func (m UserMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewUserMap converts a decoded document (for instance YAML) into a UserMap.
func NewUserMap(m map[string]any) (UserMap, error) {
	out := make(UserMap, len(m))
	for k, v := range m {
		val, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// FromGo converts a Go value to a Var. Sequences and mappings must be
// homogeneous; anything else is rejected.
func FromGo(v any) (Var, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not supported")
	case Var:
		return t, nil
	case string:
		return String(t), nil
	case []byte:
		return String(string(t)), nil
	case []string:
		return StringList(t), nil
	case map[string]string:
		return StringMap(t), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Var, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := scalar(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return makeList(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("mapping keys must be strings, got %s", rv.Type().Key())
		}
		items := make(map[string]Var, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			key := it.Key().String()
			item, err := scalar(it.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			items[key] = item
		}
		return makeMap(items)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, fmt.Errorf("null values are not supported")
		}
		return FromGo(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// scalar converts v and rejects nested containers.
func scalar(v any) (Var, error) {
	val, err := FromGo(v)
	if err != nil {
		return nil, err
	}
	switch val.(type) {
	case Uint, Int, String:
		return val, nil
	}
	return nil, fmt.Errorf("nested containers are not supported")
}

// makeList picks the narrowest list type for items. Mixing signed and
// unsigned integers yields IntList when every value fits.
func makeList(items []Var) (Var, error) {
	k, err := commonKind(items)
	if err != nil {
		return nil, err
	}
	switch k {
	case kindString:
		out := make(StringList, len(items))
		for i, item := range items {
			out[i] = string(item.(String))
		}
		return out, nil
	case kindUint:
		out := make(UintList, len(items))
		for i, item := range items {
			out[i] = uint64(item.(Uint))
		}
		return out, nil
	default:
		out := make(IntList, len(items))
		for i, item := range items {
			n, err := asInt(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
}

func makeMap(items map[string]Var) (Var, error) {
	vals := make([]Var, 0, len(items))
	for _, item := range items {
		vals = append(vals, item)
	}
	k, err := commonKind(vals)
	if err != nil {
		return nil, err
	}
	switch k {
	case kindString:
		out := make(StringMap, len(items))
		for key, item := range items {
			out[key] = string(item.(String))
		}
		return out, nil
	case kindUint:
		out := make(UintMap, len(items))
		for key, item := range items {
			out[key] = uint64(item.(Uint))
		}
		return out, nil
	default:
		out := make(IntMap, len(items))
		for key, item := range items {
			n, err := asInt(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = n
		}
		return out, nil
	}
}

type kind int

const (
	kindInt kind = iota
	kindUint
	kindString
)

// commonKind reports the element kind shared by items. An empty container
// is treated as a list of strings.
func commonKind(items []Var) (kind, error) {
	if len(items) == 0 {
		return kindString, nil
	}
	var sawInt, sawUint, sawString bool
	for _, item := range items {
		switch item.(type) {
		case Int:
			sawInt = true
		case Uint:
			sawUint = true
		case String:
			sawString = true
		}
	}
	switch {
	case sawString && (sawInt || sawUint):
		return 0, fmt.Errorf("heterogeneous container mixes strings and integers")
	case sawString:
		return kindString, nil
	case sawUint && !sawInt:
		return kindUint, nil
	}
	return kindInt, nil
}

func asInt(v Var) (int64, error) {
	switch t := v.(type) {
	case Int:
		return int64(t), nil
	case Uint:
		if uint64(t) > 1<<63-1 {
			return 0, fmt.Errorf("%d does not fit a signed 64-bit integer", uint64(t))
		}
		return int64(t), nil
	}
	return 0, fmt.Errorf("not an integer: %T", v)
}

func joinList[T any](l []T) string {
	var sb strings.Builder
	for i, v := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprint(&sb, v)
	}
	return sb.String()
}
