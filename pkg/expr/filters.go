package expr

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// filterFunc transforms a pipeline value. Filters are pure.
type filterFunc func(input any, args []any) (any, error)

type filterDef struct {
	minArgs int
	maxArgs int
	apply   filterFunc
}

// filters is the fixed filter library. It is populated once at package
// initialization and only read afterwards.
var filters = map[string]filterDef{
	"capitalize": {apply: capitalizeFilter},
	"split":      {minArgs: 1, maxArgs: 1, apply: splitFilter},
	"toUpper":    {apply: toUpperFilter},
	"join":       {minArgs: 1, maxArgs: 1, apply: joinFilter},
	"default":    {minArgs: 1, maxArgs: 1, apply: defaultFilter},
	"date":       {maxArgs: 1, apply: dateFilter},
	"length":     {apply: lengthFilter},
}

// Filters returns the names of the available filters, sorted.
func Filters() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func capitalizeFilter(input any, _ []any) (any, error) {
	switch v := input.(type) {
	case string:
		return capitalize(v), nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = capitalize(s)
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = capitalize(s)
			} else {
				out[i] = item
			}
		}
		return out, nil
	default:
		return input, nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func splitFilter(input any, args []any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	parts := strings.Split(s, toString(args[0]))
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func toUpperFilter(input any, _ []any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	// Casers carry state and are not shared.
	return cases.Upper(language.Und).String(s), nil
}

func joinFilter(input any, args []any) (any, error) {
	sep := toString(args[0])
	switch v := input.(type) {
	case []string:
		return strings.Join(v, sep), nil
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = toString(item)
		}
		return strings.Join(parts, sep), nil
	default:
		return input, nil
	}
}

func defaultFilter(input any, args []any) (any, error) {
	if isEmpty(input) {
		return args[0], nil
	}
	return input, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	default:
		return false
	}
}

func dateFilter(input any, args []any) (any, error) {
	pattern := ""
	if len(args) > 0 && args[0] != nil {
		p, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("date pattern must be a string, got %T", args[0])
		}
		pattern = p
	}
	return formatDate(input, pattern), nil
}

func lengthFilter(input any, _ []any) (any, error) {
	switch v := input.(type) {
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	case []any:
		return int64(len(v)), nil
	case []string:
		return int64(len(v)), nil
	default:
		return int64(0), nil
	}
}

// toString renders a value the way it reads in a table cell.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = toString(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
