// Package starlark bridges Go values and the Starlark runtime used to
// evaluate formatter expressions.
package starlark

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/gridweaver/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ColumnToStarlark converts a column spec to the struct exposed as colDef.
// Known keys and extra hints are all readable as attributes.
func ColumnToStarlark(c *core.SerializedColumnSpec) (starlark.Value, error) {
	if c == nil {
		return starlark.None, nil
	}
	fields := make(starlark.StringDict)
	for k, v := range c.ToMap() {
		sv, err := GoToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("column key %q: %w", k, err)
		}
		fields[k] = sv
	}
	return starlarkstruct.FromStringDict(starlark.String("colDef"), fields), nil
}

// NodeToStarlark converts a row node to the struct exposed as node.
// Row data is a dict: node.data["name"].
func NodeToStarlark(n *core.RowNode) (starlark.Value, error) {
	if n == nil {
		return starlark.None, nil
	}
	data, err := GoToStarlark(n.Data)
	if err != nil {
		return nil, fmt.Errorf("row data: %w", err)
	}
	if n.Data == nil {
		data = starlark.NewDict(0)
	}
	return starlarkstruct.FromStringDict(starlark.String("node"), starlark.StringDict{
		"id":       starlark.String(n.ID),
		"rowIndex": starlark.MakeInt(n.RowIndex),
		"data":     data,
	}), nil
}

// GoToStarlark converts a Go value to a Starlark value.
// Scalars, slices, string-keyed maps and time.Time are converted directly;
// other values are converted through their JSON representation.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case int:
		return starlark.MakeInt(val), nil
	case int8:
		return starlark.MakeInt64(int64(val)), nil
	case int16:
		return starlark.MakeInt64(int64(val)), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint:
		return starlark.MakeUint64(uint64(val)), nil
	case uint32:
		return starlark.MakeUint64(uint64(val)), nil
	case uint64:
		return starlark.MakeUint64(val), nil

	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil

	case json.Number:
		if i, err := val.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return starlark.Float(f), nil

	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		// Sorted insertion keeps dict iteration order deterministic.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return viaJSON(v)
	}
}

// viaJSON converts arbitrary values (structs, typed maps and slices) through
// their JSON encoding, so only exported data is ever visible to expressions.
func viaJSON(v any) (starlark.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported type %T: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("unsupported type %T: %w", v, err)
	}
	return GoToStarlark(generic)
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Very large integers are rendered as their decimal string
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case *starlarkstruct.Struct:
		d := make(starlark.StringDict)
		val.ToStringDict(d)
		result := make(map[string]any, len(d))
		for k, fv := range d {
			gv, err := ToGo(fv)
			if err != nil {
				return nil, fmt.Errorf("struct field %q: %w", k, err)
			}
			result[k] = gv
		}
		return result, nil

	default:
		return nil, fmt.Errorf("cannot convert %s value to Go", v.Type())
	}
}
