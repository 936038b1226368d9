// Package query translates grid-native page requests into normalized
// queries and encodes them for paged-data endpoints.
package query

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/gridweaver/pkg/core"
)

// Native filter types with dedicated operators. Any other type is an
// exact-equality match.
const (
	FilterContains    = "contains"
	FilterNotContains = "notContains"
)

// DefaultSortField and DefaultSortDirection apply when a request carries
// no sort model.
const (
	DefaultSortField     = "createdAt"
	DefaultSortDirection = core.SortDesc
)

// idField is never substring-matched.
const idField = "id"

// SortModelItem is one native sort entry.
type SortModelItem struct {
	ColID string `json:"colId" mapstructure:"colId"`
	Sort  string `json:"sort" mapstructure:"sort"`
}

// FilterModelItem is one native filter entry, keyed by field in the
// filter model.
type FilterModelItem struct {
	Type       string `json:"type" mapstructure:"type"`
	Filter     any    `json:"filter" mapstructure:"filter"`
	FilterType string `json:"filterType,omitempty" mapstructure:"filterType"`
}

// NativePageRequest is the page request issued by the grid engine.
type NativePageRequest struct {
	StartRow    *int                       `json:"startRow,omitempty" mapstructure:"startRow"`
	EndRow      *int                       `json:"endRow,omitempty" mapstructure:"endRow"`
	SortModel   []SortModelItem            `json:"sortModel" mapstructure:"sortModel"`
	FilterModel map[string]FilterModelItem `json:"filterModel" mapstructure:"filterModel"`
}

// Translate converts a native request into a NormalizedQuery. It is pure
// and total: every request, including the zero value, has a translation.
func Translate(req NativePageRequest) core.NormalizedQuery {
	start, end := 0, 0
	if req.StartRow != nil {
		start = *req.StartRow
	}
	if req.EndRow != nil {
		end = *req.EndRow
	}

	return core.NormalizedQuery{
		Offset:  start,
		Limit:   end - start,
		OrderBy: translateSort(req.SortModel),
		Filter:  translateFilter(req.FilterModel),
	}
}

func translateSort(model []SortModelItem) []core.OrderTerm {
	if len(model) == 0 {
		return []core.OrderTerm{{Field: DefaultSortField, Direction: DefaultSortDirection}}
	}

	terms := make([]core.OrderTerm, 0, len(model))
	for _, item := range model {
		dir := core.SortDirection(strings.ToLower(item.Sort))
		if rel, field, ok := strings.Cut(item.ColID, "."); ok {
			terms = append(terms, core.OrderTerm{
				Relation:  &core.RelationRef{Model: capitalize(rel), As: rel},
				Field:     field,
				Direction: dir,
			})
			continue
		}
		terms = append(terms, core.OrderTerm{Field: item.ColID, Direction: dir})
	}
	return terms
}

func translateFilter(model map[string]FilterModelItem) map[string]core.Predicate {
	out := make(map[string]core.Predicate, len(model))
	for field, item := range model {
		if field == idField {
			out[field] = core.Predicate{Op: core.OpEq, Value: item.Filter}
			continue
		}
		switch item.Type {
		case FilterContains:
			out[field] = core.Predicate{Op: core.OpILike, Value: wildcard(item.Filter)}
		case FilterNotContains:
			out[field] = core.Predicate{Op: core.OpNotILike, Value: wildcard(item.Filter)}
		default:
			out[field] = core.Predicate{Op: core.OpEq, Value: item.Filter}
		}
	}
	return out
}

func wildcard(v any) string {
	s := ""
	if v != nil {
		s = fmt.Sprint(v)
	}
	return core.Wildcard + s + core.Wildcard
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// DecodeNativeRequest decodes a loosely typed request, such as one parsed
// from JSON or YAML. Numeric strings are accepted for row bounds.
func DecodeNativeRequest(raw map[string]any) (NativePageRequest, error) {
	var req NativePageRequest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return req, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return req, fmt.Errorf("invalid page request: %w", err)
	}
	return req, nil
}

// Fetch translates req and pulls one page from src.
func Fetch(ctx context.Context, src core.PagedDataSource, req NativePageRequest) (*core.PageResult, error) {
	return src.GetRows(ctx, Translate(req))
}
