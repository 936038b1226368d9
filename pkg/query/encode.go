package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/leapstack-labs/gridweaver/pkg/core"
)

// Query parameter names of the paged-data endpoint contract.
const (
	ParamFilter  = "filter"
	ParamOrderBy = "orderBy"
	ParamLimit   = "limit"
	ParamOffset  = "offset"
)

// Encode serializes q into endpoint query parameters. Static parameters
// from the fetch spec are written first; query parameters win on conflict.
func Encode(q core.NormalizedQuery, static map[string]any) (url.Values, error) {
	values := url.Values{}

	keys := make([]string, 0, len(static))
	for k := range static {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := paramString(static[k])
		if err != nil {
			return nil, fmt.Errorf("static param %q: %w", k, err)
		}
		values.Set(k, s)
	}

	filter := q.Filter
	if filter == nil {
		filter = map[string]core.Predicate{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	orderBy := q.OrderBy
	if orderBy == nil {
		orderBy = []core.OrderTerm{}
	}
	orderJSON, err := json.Marshal(orderBy)
	if err != nil {
		return nil, fmt.Errorf("encode orderBy: %w", err)
	}

	values.Set(ParamFilter, string(filterJSON))
	values.Set(ParamOrderBy, string(orderJSON))
	values.Set(ParamLimit, strconv.Itoa(q.Limit))
	values.Set(ParamOffset, strconv.Itoa(q.Offset))
	return values, nil
}

// paramString renders a static parameter: scalars as text, anything
// structured as JSON.
func paramString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
