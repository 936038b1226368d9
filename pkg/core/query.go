package core

import (
	"encoding/json"
)

// Operator is a filter predicate operator understood by data endpoints.
type Operator string

// Predicate operators.
const (
	OpEq       Operator = "eq"       // Exact equality
	OpILike    Operator = "iLike"    // Case-insensitive substring, value carries wildcards
	OpNotILike Operator = "notILike" // Negated OpILike
)

// Wildcard is the marker wrapped around substring filter values.
const Wildcard = "%"

// Predicate is a single filter condition on one field.
type Predicate struct {
	Op    Operator
	Value any
}

// MarshalJSON encodes the predicate as {"<op>": value}.
func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{string(p.Op): p.Value})
}

// RelationRef names a related entity in an order-by entry.
type RelationRef struct {
	Model string `json:"model"` // Capitalized relation name
	As    string `json:"as"`    // Relation name as written
}

// OrderTerm is one order-by entry. Relation is set for dotted field paths.
type OrderTerm struct {
	Relation  *RelationRef
	Field     string
	Direction SortDirection
}

// MarshalJSON encodes the term as ["field","dir"] or
// [{"model":"Rel","as":"rel"},"field","dir"].
func (o OrderTerm) MarshalJSON() ([]byte, error) {
	if o.Relation != nil {
		return json.Marshal([]any{o.Relation, o.Field, o.Direction})
	}
	return json.Marshal([]any{o.Field, o.Direction})
}

// NormalizedQuery is the transport-agnostic page request issued to a
// PagedDataSource.
type NormalizedQuery struct {
	Offset  int                  `json:"offset"`
	Limit   int                  `json:"limit"`
	OrderBy []OrderTerm          `json:"orderBy"`
	Filter  map[string]Predicate `json:"filter"`
}
