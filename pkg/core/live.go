package core

import (
	"context"
)

// =============================================================================
// Expression scope
// =============================================================================

// RowNode is the row a cell belongs to.
type RowNode struct {
	ID       string
	RowIndex int
	Data     map[string]any
}

// Scope is the closed set of values a formatter expression may read.
// The date/time namespace is supplied by the expression engine itself.
type Scope struct {
	API       any                   // Grid API handle supplied by the rendering layer
	Column    *SerializedColumnSpec // Originating column spec
	Node      *RowNode              // Originating row
	CellValue any                   // Raw cell value
}

// FormatFunc produces the display value of a cell from its scope.
type FormatFunc func(scope Scope) any

// =============================================================================
// Renderers
// =============================================================================

// Cell is what a renderer receives when the grid draws a cell.
type Cell struct {
	Value     any // Raw value
	Formatted any // Value after the column formatter, or the raw value
	Row       *RowNode
	Column    *LiveColumnSpec
	Params    map[string]any
}

// Renderer is a host-provided cell component referenced by name from
// serialized definitions.
type Renderer interface {
	Render(cell Cell) string
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(cell Cell) string

// Render calls f(cell).
func (f RendererFunc) Render(cell Cell) string {
	return f(cell)
}

// RendererRegistry maps renderer names to host components. It is supplied
// at hydration time and never persisted.
type RendererRegistry map[string]Renderer

// ActionFunc is invoked by renderers when the user triggers a row action.
type ActionFunc func(action string, row map[string]any)

// ActionParam is the renderer parameter key the action callback is merged under.
const ActionParam = "onAction"

// =============================================================================
// Paged data
// =============================================================================

// PageResult is one page of rows plus the total row count.
type PageResult struct {
	Rows  []map[string]any `json:"data"`
	Count int64            `json:"count"`
}

// PagedDataSource yields one page of rows per request. Each call produces
// exactly one outcome. Overlapping calls have no ordering guarantee; callers
// discard stale results themselves.
type PagedDataSource interface {
	GetRows(ctx context.Context, q NormalizedQuery) (*PageResult, error)
}

// PagedDataSourceFunc adapts a function to the PagedDataSource interface.
type PagedDataSourceFunc func(ctx context.Context, q NormalizedQuery) (*PageResult, error)

// GetRows calls f(ctx, q).
func (f PagedDataSourceFunc) GetRows(ctx context.Context, q NormalizedQuery) (*PageResult, error) {
	return f(ctx, q)
}

// =============================================================================
// Live definition
// =============================================================================

// LiveColumnSpec is the hydrated counterpart of SerializedColumnSpec.
type LiveColumnSpec struct {
	Field          string
	HeaderName     string
	Width          *float64
	Flex           *float64
	RendererName   string         // Name from the serialized column, kept for diagnostics
	Renderer       Renderer       // Nil when absent or unresolved
	RendererParams map[string]any // Deep copy, with ActionParam merged when requested
	Format         FormatFunc     // Nil when the column has no usable formatter
	Extra          map[string]any

	// Spec is a private copy of the originating column, exposed to
	// expressions as colDef.
	Spec *SerializedColumnSpec
}

// FormatCell returns the display value for a raw cell value.
func (c *LiveColumnSpec) FormatCell(api any, node *RowNode, value any) any {
	if c.Format == nil {
		return value
	}
	return c.Format(Scope{API: api, Column: c.Spec, Node: node, CellValue: value})
}

// RenderCell formats the value and passes it through the column renderer.
// Without a renderer the formatted value is returned as is.
func (c *LiveColumnSpec) RenderCell(api any, node *RowNode, value any) any {
	formatted := c.FormatCell(api, node, value)
	if c.Renderer == nil {
		return formatted
	}
	return c.Renderer.Render(Cell{
		Value:     value,
		Formatted: formatted,
		Row:       node,
		Column:    c,
		Params:    c.RendererParams,
	})
}

// LiveTableDefinition is a render-ready table. It is ephemeral: built per
// hydration call and discarded by the rendering layer.
type LiveTableDefinition struct {
	Columns     []*LiveColumnSpec
	DataSource  PagedDataSource
	DefaultSort *SortSpec

	// Diagnostics holds per-column issues that were degraded rather than
	// failed: compile errors and renderer misses, wrapped in ColumnError.
	Diagnostics []error
}

// Column returns the first live column with the given key.
func (d *LiveTableDefinition) Column(field string) (*LiveColumnSpec, bool) {
	for _, c := range d.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return nil, false
}
