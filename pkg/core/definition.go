package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-viper/mapstructure/v2"
)

// =============================================================================
// Serialized definition
// =============================================================================

// SortDirection is the direction of a sort entry.
type SortDirection string

// Sort directions accepted in definitions and native requests.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// FetchSpec describes where a table's rows come from.
// URL may be absolute or relative to the data source base URL; Params is
// merged into every page query.
type FetchSpec struct {
	URL    string         `json:"url" mapstructure:"url"`
	Params map[string]any `json:"params,omitempty" mapstructure:"params"`
}

// SortSpec is the initial sort of a table.
type SortSpec struct {
	ColID string        `json:"colId" mapstructure:"colId"`
	Sort  SortDirection `json:"sort" mapstructure:"sort"`
}

// SerializedColumnSpec is one column's static configuration.
//
// Renderer is a registry name, never code. Formatter is an ordered list of
// expression sources; each is evaluated against the same scope and only the
// last result is emitted. Any key not modelled here is kept in Extra and
// survives storage round-trips.
type SerializedColumnSpec struct {
	Field          string         `mapstructure:"field"`
	HeaderName     string         `mapstructure:"headerName"`
	Width          *float64       `mapstructure:"width"`
	Flex           *float64       `mapstructure:"flex"`
	Renderer       string         `mapstructure:"renderer"`
	RendererParams map[string]any `mapstructure:"rendererParams"`
	Formatter      []string       `mapstructure:"formatter"`
	Extra          map[string]any `mapstructure:",remain"`
}

// HasFormatter reports whether the column carries at least one expression.
func (c *SerializedColumnSpec) HasFormatter() bool {
	return len(c.Formatter) > 0
}

// SerializedTableDefinition is the persisted, code-free form of a table.
//
// Column keys should be unique: duplicates make column-state persistence
// ambiguous. This is not enforced.
type SerializedTableDefinition struct {
	HTTP        FetchSpec              `mapstructure:"http"`
	ColumnDefs  []SerializedColumnSpec `mapstructure:"columnDefs"`
	DefaultSort *SortSpec              `mapstructure:"defaultSort"`
	Extra       map[string]any         `mapstructure:",remain"`
}

// ParseDefinition decodes and validates a JSON definition document.
func ParseDefinition(data []byte) (*SerializedTableDefinition, error) {
	var doc map[string]any
	if err := decodeJSON(data, &doc); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "malformed JSON: " + err.Error()}}}
	}
	if doc == nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "document must be an object"}}}
	}
	return DefinitionFromMap(doc)
}

// DefinitionFromMap validates a generic document (as produced by JSON or
// YAML decoding) and converts it into a SerializedTableDefinition.
func DefinitionFromMap(doc map[string]any) (*SerializedTableDefinition, error) {
	if errs := validateDocument(doc); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return decodeDefinition(doc)
}

// Validate checks the definition against the schema.
func (d *SerializedTableDefinition) Validate() error {
	if errs := validateDocument(d.ToMap()); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ColumnByField returns the first column with the given key.
func (d *SerializedTableDefinition) ColumnByField(field string) (*SerializedColumnSpec, bool) {
	for i := range d.ColumnDefs {
		if d.ColumnDefs[i].Field == field {
			return &d.ColumnDefs[i], true
		}
	}
	return nil, false
}

// DuplicateFields returns column keys that appear more than once, in first-seen order.
func (d *SerializedTableDefinition) DuplicateFields() []string {
	seen := make(map[string]int, len(d.ColumnDefs))
	var dups []string
	for _, c := range d.ColumnDefs {
		seen[c.Field]++
		if seen[c.Field] == 2 {
			dups = append(dups, c.Field)
		}
	}
	return dups
}

// ToMap returns the generic document form of the definition.
func (d *SerializedTableDefinition) ToMap() map[string]any {
	m := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		m[k] = v
	}

	httpMap := map[string]any{"url": d.HTTP.URL}
	if d.HTTP.Params != nil {
		httpMap["params"] = d.HTTP.Params
	}
	m["http"] = httpMap

	cols := make([]any, len(d.ColumnDefs))
	for i := range d.ColumnDefs {
		cols[i] = d.ColumnDefs[i].ToMap()
	}
	m["columnDefs"] = cols

	if d.DefaultSort != nil {
		m["defaultSort"] = map[string]any{
			"colId": d.DefaultSort.ColID,
			"sort":  string(d.DefaultSort.Sort),
		}
	}
	return m
}

// ToMap returns the generic document form of the column.
func (c *SerializedColumnSpec) ToMap() map[string]any {
	m := make(map[string]any, len(c.Extra)+7)
	for k, v := range c.Extra {
		m[k] = v
	}
	m["field"] = c.Field
	if c.HeaderName != "" {
		m["headerName"] = c.HeaderName
	}
	if c.Width != nil {
		m["width"] = *c.Width
	}
	if c.Flex != nil {
		m["flex"] = *c.Flex
	}
	if c.Renderer != "" {
		m["renderer"] = c.Renderer
	}
	if c.RendererParams != nil {
		m["rendererParams"] = c.RendererParams
	}
	if c.Formatter != nil {
		list := make([]any, len(c.Formatter))
		for i, src := range c.Formatter {
			list[i] = src
		}
		m["formatter"] = list
	}
	return m
}

// MarshalJSON encodes the definition in its document shape, extras included.
func (d SerializedTableDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToMap())
}

// UnmarshalJSON decodes a stored document without validating it.
// Use ParseDefinition for untrusted input.
func (d *SerializedTableDefinition) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := decodeJSON(data, &doc); err != nil {
		return err
	}
	decoded, err := decodeDefinition(doc)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// MarshalJSON encodes the column in its document shape, extras included.
func (c SerializedColumnSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

// decodeJSON decodes a single JSON value, keeping numbers as json.Number so
// integers beyond float64 precision survive a round trip.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

func decodeDefinition(doc map[string]any) (*SerializedTableDefinition, error) {
	var def SerializedTableDefinition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &def,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return &def, nil
}
