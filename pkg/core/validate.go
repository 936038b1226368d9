package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// rendererNamePattern restricts renderer references to data-safe names.
var rendererNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:-]*$`)

// knownHTTPKeys are the only keys accepted inside the fetch spec.
var knownHTTPKeys = map[string]bool{"url": true, "params": true}

// validator accumulates field errors while walking a document.
type validator struct {
	errs []FieldError
}

func (v *validator) add(path, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// validateDocument checks a generic definition document and returns every
// violation found, in document order.
func validateDocument(doc map[string]any) []FieldError {
	v := &validator{}

	httpVal, ok := doc["http"]
	if !ok || httpVal == nil {
		v.add("http", "is required")
	} else {
		v.fetchSpec("http", httpVal)
	}

	colsVal, ok := doc["columnDefs"]
	if !ok || colsVal == nil {
		v.add("columnDefs", "is required")
	} else {
		v.columnDefs("columnDefs", colsVal)
	}

	if sortVal, ok := doc["defaultSort"]; ok && sortVal != nil {
		v.sortSpec("defaultSort", sortVal)
	}

	return v.errs
}

// validatePatch checks the keys present in a partial document.
func validatePatch(patch map[string]any) []FieldError {
	v := &validator{}
	if len(patch) == 0 {
		v.add("$", "patch must contain at least one key")
		return v.errs
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := patch[k]
		switch k {
		case "http":
			if val == nil {
				v.add("http", "cannot be removed")
				continue
			}
			v.fetchSpec("http", val)
		case "columnDefs":
			if val == nil {
				v.add("columnDefs", "cannot be removed")
				continue
			}
			v.columnDefs("columnDefs", val)
		case "defaultSort":
			if val != nil {
				v.sortSpec("defaultSort", val)
			}
		}
	}
	return v.errs
}

func (v *validator) fetchSpec(path string, val any) {
	m, ok := val.(map[string]any)
	if !ok {
		v.add(path, "must be an object")
		return
	}

	rawURL, ok := m["url"].(string)
	switch {
	case m["url"] == nil:
		v.add(path+".url", "is required")
	case !ok:
		v.add(path+".url", "must be a string")
	case strings.TrimSpace(rawURL) == "":
		v.add(path+".url", "must not be empty")
	default:
		if _, err := url.Parse(rawURL); err != nil {
			v.add(path+".url", "is not a valid URL: %v", err)
		}
	}

	if params, ok := m["params"]; ok && params != nil {
		if _, isMap := params.(map[string]any); !isMap {
			v.add(path+".params", "must be an object")
		}
	}

	for _, k := range sortedKeys(m) {
		if !knownHTTPKeys[k] {
			v.add(path+"."+k, "unknown key")
		}
	}
}

func (v *validator) columnDefs(path string, val any) {
	cols, ok := val.([]any)
	if !ok {
		v.add(path, "must be an array")
		return
	}
	if len(cols) == 0 {
		v.add(path, "must contain at least one column")
		return
	}
	for i, c := range cols {
		v.column(fmt.Sprintf("%s[%d]", path, i), c)
	}
}

func (v *validator) column(path string, val any) {
	col, ok := val.(map[string]any)
	if !ok {
		v.add(path, "must be an object")
		return
	}

	field, ok := col["field"].(string)
	switch {
	case col["field"] == nil:
		v.add(path+".field", "is required")
	case !ok:
		v.add(path+".field", "must be a string")
	case field == "":
		v.add(path+".field", "must not be empty")
	}

	if h, ok := col["headerName"]; ok && h != nil {
		if _, isStr := h.(string); !isStr {
			v.add(path+".headerName", "must be a string")
		}
	}

	for _, hint := range []string{"width", "flex"} {
		raw, ok := col[hint]
		if !ok || raw == nil {
			continue
		}
		n, isNum := toFloat(raw)
		if !isNum {
			v.add(path+"."+hint, "must be a number")
		} else if n < 0 {
			v.add(path+"."+hint, "must not be negative")
		}
	}

	if r, ok := col["renderer"]; ok && r != nil {
		name, isStr := r.(string)
		switch {
		case !isStr:
			v.add(path+".renderer", "must be a renderer name")
		case !rendererNamePattern.MatchString(name):
			v.add(path+".renderer", "%q is not a valid renderer name", name)
		}
	}

	if p, ok := col["rendererParams"]; ok && p != nil {
		if _, isMap := p.(map[string]any); !isMap {
			v.add(path+".rendererParams", "must be an object")
		}
	}

	if f, ok := col["formatter"]; ok && f != nil {
		list, isList := f.([]any)
		if !isList {
			v.add(path+".formatter", "must be an array of expression strings")
			return
		}
		for i, entry := range list {
			src, isStr := entry.(string)
			entryPath := fmt.Sprintf("%s.formatter[%d]", path, i)
			if !isStr {
				v.add(entryPath, "must be a string")
			} else if strings.TrimSpace(src) == "" {
				v.add(entryPath, "must not be empty")
			}
		}
	}
}

func (v *validator) sortSpec(path string, val any) {
	m, ok := val.(map[string]any)
	if !ok {
		v.add(path, "must be an object")
		return
	}
	if colID, ok := m["colId"].(string); !ok || colID == "" {
		v.add(path+".colId", "must be a non-empty string")
	}
	dir, _ := m["sort"].(string)
	if SortDirection(dir) != SortAsc && SortDirection(dir) != SortDesc {
		v.add(path+".sort", "must be \"asc\" or \"desc\"")
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
