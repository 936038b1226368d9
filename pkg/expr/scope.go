package expr

import (
	"fmt"
	"time"

	starctx "github.com/leapstack-labs/gridweaver/internal/starlark"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// binding is a scope converted once to Starlark and shared by every entry
// of a chain evaluation.
type binding struct {
	args starlark.Tuple // api, colDef, node, cellValue, dates
	cell starlark.Value
	raw  any
}

func bind(scope core.Scope) (*binding, error) {
	api, err := starctx.GoToStarlark(scope.API)
	if err != nil {
		// The grid handle is opaque to most expressions.
		api = starlark.None
	}
	col, err := starctx.ColumnToStarlark(scope.Column)
	if err != nil {
		return nil, fmt.Errorf("colDef: %w", err)
	}
	node, err := starctx.NodeToStarlark(scope.Node)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	cell, err := starctx.GoToStarlark(scope.CellValue)
	if err != nil {
		return nil, fmt.Errorf("cellValue: %w", err)
	}

	args := starlark.Tuple{api, col, node, cell, datesModule}
	args.Freeze()
	return &binding{args: args, cell: cell, raw: scope.CellValue}, nil
}

// toGo converts a result back to Go. The untouched cell value is returned
// in its original Go form, so `$cellValue` is an exact identity.
func (b *binding) toGo(v starlark.Value) (any, error) {
	if sameValue(v, b.cell) {
		return b.raw, nil
	}
	return starctx.ToGo(v)
}

func sameValue(v, cell starlark.Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return v == cell
}

// datesModule is the dates namespace. It holds only builtins and is frozen.
var datesModule = func() starlark.Value {
	m := starlarkstruct.FromStringDict(starlark.String("dates"), starlark.StringDict{
		"now":    starlark.NewBuiltin("dates.now", datesNow),
		"parse":  starlark.NewBuiltin("dates.parse", datesParse),
		"format": starlark.NewBuiltin("dates.format", datesFormat),
	})
	m.Freeze()
	return m
}()

func datesNow(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.String(time.Now().UTC().Format(time.RFC3339)), nil
}

func datesParse(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	gv, err := starctx.ToGo(v)
	if err != nil {
		return nil, err
	}
	t, ok := ParseTime(gv)
	if !ok {
		return starlark.None, nil
	}
	return starlark.String(t.Format(time.RFC3339)), nil
}

func datesFormat(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		v       starlark.Value
		pattern string
	)
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v, &pattern); err != nil {
		return nil, err
	}
	gv, err := starctx.ToGo(v)
	if err != nil {
		return nil, err
	}
	return starctx.GoToStarlark(formatDate(gv, pattern))
}
