// Package hydrate turns serialized table definitions into live, render-ready
// definitions.
//
// Hydration is a pure function of its inputs: it performs no I/O, keeps no
// global state and never mutates the serialized definition, so one
// definition may be hydrated concurrently for consumers with different
// registries and callbacks.
package hydrate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/datasource"
	"github.com/leapstack-labs/gridweaver/pkg/expr"
	"github.com/mitchellh/copystructure"
)

// SourceFactory binds a fetch spec to a paged data source.
type SourceFactory func(spec core.FetchSpec) core.PagedDataSource

// Option configures a Hydrate call.
type Option func(*options)

type options struct {
	onAction core.ActionFunc
	logger   *slog.Logger
	sources  SourceFactory
	strict   bool
}

// WithActionCallback supplies the callback merged into the renderer
// parameters of columns that declare them.
func WithActionCallback(fn core.ActionFunc) Option {
	return func(o *options) {
		o.onAction = fn
	}
}

// WithLogger sets the sink for hydration diagnostics and per-cell
// evaluation failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSourceFactory replaces the default HTTP data source.
func WithSourceFactory(f SourceFactory) Option {
	return func(o *options) {
		if f != nil {
			o.sources = f
		}
	}
}

// WithStrict makes renderer misses and formatter compile errors fail the
// hydration instead of degrading the column.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

func defaultSource(spec core.FetchSpec) core.PagedDataSource {
	return datasource.NewHTTPSource(spec)
}

// Hydrate builds a live definition from def. Renderer names resolve against
// renderers; a name missing from the registry leaves that column without a
// custom renderer and is recorded in Diagnostics.
func Hydrate(def *core.SerializedTableDefinition, renderers core.RendererRegistry, opts ...Option) (*core.LiveTableDefinition, error) {
	if def == nil {
		return nil, errors.New("hydrate: nil definition")
	}
	o := &options{
		logger:  slog.New(slog.DiscardHandler),
		sources: defaultSource,
	}
	for _, opt := range opts {
		opt(o)
	}

	live := &core.LiveTableDefinition{
		Columns: make([]*core.LiveColumnSpec, 0, len(def.ColumnDefs)),
	}
	for i := range def.ColumnDefs {
		col, diags, err := hydrateColumn(i, &def.ColumnDefs[i], renderers, o)
		if err != nil {
			return nil, err
		}
		live.Columns = append(live.Columns, col)
		live.Diagnostics = append(live.Diagnostics, diags...)
	}

	spec, err := deepCopy(def.HTTP)
	if err != nil {
		return nil, fmt.Errorf("hydrate: copy fetch spec: %w", err)
	}
	live.DataSource = o.sources(spec)

	if def.DefaultSort != nil {
		sort := *def.DefaultSort
		live.DefaultSort = &sort
	}

	o.logger.Debug("definition hydrated",
		"columns", len(live.Columns),
		"diagnostics", len(live.Diagnostics),
	)
	return live, nil
}

func hydrateColumn(i int, src *core.SerializedColumnSpec, renderers core.RendererRegistry, o *options) (*core.LiveColumnSpec, []error, error) {
	spec, err := deepCopy(*src)
	if err != nil {
		return nil, nil, fmt.Errorf("hydrate: copy column %d: %w", i, err)
	}
	params, err := deepCopy(spec.RendererParams)
	if err != nil {
		return nil, nil, fmt.Errorf("hydrate: copy column %d params: %w", i, err)
	}

	col := &core.LiveColumnSpec{
		Field:          spec.Field,
		HeaderName:     spec.HeaderName,
		Width:          spec.Width,
		Flex:           spec.Flex,
		RendererName:   spec.Renderer,
		RendererParams: params,
		Extra:          spec.Extra,
		Spec:           &spec,
	}

	var diags []error
	degrade := func(cause error) error {
		cerr := &core.ColumnError{Index: i, Field: spec.Field, Err: cause}
		if o.strict {
			return cerr
		}
		o.logger.Warn("column degraded", "column", spec.Field, "index", i, "error", cause)
		diags = append(diags, cerr)
		return nil
	}

	if spec.Renderer != "" {
		if r, ok := renderers[spec.Renderer]; ok {
			col.Renderer = r
			if o.onAction != nil && col.RendererParams != nil {
				col.RendererParams[core.ActionParam] = o.onAction
			}
		} else if err := degrade(&core.RendererResolutionMiss{Column: spec.Field, Renderer: spec.Renderer}); err != nil {
			return nil, nil, err
		}
	}

	if spec.HasFormatter() {
		chain, err := expr.CompileChain(spec.Formatter)
		if err != nil {
			if err := degrade(err); err != nil {
				return nil, nil, err
			}
		} else {
			col.Format = formatter(chain, spec.Field, o.logger)
		}
	}

	return col, diags, nil
}

// formatter binds a compiled chain. The last entry's result is the cell's
// display value; when it fails the raw value is shown.
func formatter(chain expr.Chain, field string, logger *slog.Logger) core.FormatFunc {
	return func(scope core.Scope) any {
		v, ok := chain.Eval(scope, func(i int, err error) {
			logger.Warn("formatter evaluation failed", "column", field, "entry", i, "error", err)
		})
		if !ok {
			return scope.CellValue
		}
		return v
	}
}

func deepCopy[T any](v T) (T, error) {
	out, err := copystructure.Copy(v)
	if err != nil {
		var zero T
		return zero, err
	}
	if out == nil {
		var zero T
		return zero, nil
	}
	return out.(T), nil
}
