package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedQuery_JSONShape(t *testing.T) {
	q := NormalizedQuery{
		Offset: 10,
		Limit:  20,
		OrderBy: []OrderTerm{
			{Field: "createdAt", Direction: SortDesc},
			{Relation: &RelationRef{Model: "Account", As: "account"}, Field: "name", Direction: SortAsc},
		},
		Filter: map[string]Predicate{
			"name": {Op: OpILike, Value: "%ann%"},
			"id":   {Op: OpEq, Value: "42"},
		},
	}

	out, err := json.Marshal(q)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"offset": 10,
		"limit": 20,
		"orderBy": [["createdAt","desc"], [{"model":"Account","as":"account"},"name","asc"]],
		"filter": {"name": {"iLike": "%ann%"}, "id": {"eq": "42"}}
	}`, string(out))
}
