package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsDoc = `{
  "http": {"url": "/api/accounts", "params": {"tenant": "acme"}},
  "columnDefs": [
    {"field": "name", "headerName": "Name", "width": 200, "renderer": "link",
     "rendererParams": {"target": "_blank"}, "pinned": "left"},
    {"field": "createdAt", "headerName": "Created", "formatter": ["$cellValue | date"]},
    {"field": "tags", "flex": 1, "formatter": []}
  ],
  "defaultSort": {"colId": "createdAt", "sort": "desc"},
  "title": "Accounts"
}`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(accountsDoc))
	require.NoError(t, err)

	assert.Equal(t, "/api/accounts", def.HTTP.URL)
	assert.Equal(t, map[string]any{"tenant": "acme"}, def.HTTP.Params)
	require.Len(t, def.ColumnDefs, 3)

	name := def.ColumnDefs[0]
	assert.Equal(t, "name", name.Field)
	assert.Equal(t, "Name", name.HeaderName)
	require.NotNil(t, name.Width)
	assert.InDelta(t, 200.0, *name.Width, 0)
	assert.Equal(t, "link", name.Renderer)
	assert.Equal(t, map[string]any{"target": "_blank"}, name.RendererParams)
	assert.Equal(t, "left", name.Extra["pinned"], "unknown hints are kept in Extra")
	assert.False(t, name.HasFormatter())

	assert.Equal(t, []string{"$cellValue | date"}, def.ColumnDefs[1].Formatter)
	assert.True(t, def.ColumnDefs[1].HasFormatter())

	assert.False(t, def.ColumnDefs[2].HasFormatter(), "empty formatter means no formatting")

	require.NotNil(t, def.DefaultSort)
	assert.Equal(t, SortSpec{ColID: "createdAt", Sort: SortDesc}, *def.DefaultSort)
	assert.Equal(t, "Accounts", def.Extra["title"])
}

func TestDefinition_JSONRoundTripPreservesDocument(t *testing.T) {
	def, err := ParseDefinition([]byte(accountsDoc))
	require.NoError(t, err)

	out, err := json.Marshal(def)
	require.NoError(t, err)

	var want, got map[string]any
	require.NoError(t, json.Unmarshal([]byte(accountsDoc), &want))
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, want, got)

	var back SerializedTableDefinition
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, def.ColumnDefs[0].Extra, back.ColumnDefs[0].Extra)
	assert.NoError(t, back.Validate())
}

func TestDefinition_LargeIntegersRoundTrip(t *testing.T) {
	doc := `{"http":{"url":"/x","params":{"account":9007199254740993}},` +
		`"columnDefs":[{"field":"a","width":120,"maxValue":18014398509481985}],"seed":-9223372036854775807}`

	def, err := ParseDefinition([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), def.HTTP.Params["account"])
	require.NotNil(t, def.ColumnDefs[0].Width)
	assert.InDelta(t, 120.0, *def.ColumnDefs[0].Width, 0)

	out, err := json.Marshal(def)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"account":9007199254740993`)
	assert.Contains(t, string(out), `"maxValue":18014398509481985`)
	assert.Contains(t, string(out), `"seed":-9223372036854775807`)

	var back SerializedTableDefinition
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, def.ToMap(), back.ToMap())
}

func TestParseDefinition_TrailingData(t *testing.T) {
	_, err := ParseDefinition([]byte(`{"http":{"url":"/x"},"columnDefs":[{"field":"a"}]} {}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"$"}, verr.Paths())
}

func TestParseDefinition_ValidationPaths(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantPaths []string
	}{
		{
			name:      "malformed json",
			doc:       `{"http":`,
			wantPaths: []string{"$"},
		},
		{
			name:      "missing required sections",
			doc:       `{}`,
			wantPaths: []string{"http", "columnDefs"},
		},
		{
			name:      "empty url and unknown http key",
			doc:       `{"http":{"url":"  ","method":"POST"},"columnDefs":[{"field":"a"}]}`,
			wantPaths: []string{"http.url", "http.method"},
		},
		{
			name:      "params must be object",
			doc:       `{"http":{"url":"/x","params":[1]},"columnDefs":[{"field":"a"}]}`,
			wantPaths: []string{"http.params"},
		},
		{
			name:      "no columns",
			doc:       `{"http":{"url":"/x"},"columnDefs":[]}`,
			wantPaths: []string{"columnDefs"},
		},
		{
			name: "bad column entries",
			doc: `{"http":{"url":"/x"},"columnDefs":[
				{"headerName": 3},
				{"field":"b","width":-1,"flex":"big"},
				{"field":"c","renderer":"function(){}"},
				{"field":"d","formatter":"cellValue"},
				{"field":"e","formatter":["ok", 7, " "]},
				"oops"
			]}`,
			wantPaths: []string{
				"columnDefs[0].field",
				"columnDefs[0].headerName",
				"columnDefs[1].width",
				"columnDefs[1].flex",
				"columnDefs[2].renderer",
				"columnDefs[3].formatter",
				"columnDefs[4].formatter[1]",
				"columnDefs[4].formatter[2]",
				"columnDefs[5]",
			},
		},
		{
			name:      "bad default sort",
			doc:       `{"http":{"url":"/x"},"columnDefs":[{"field":"a"}],"defaultSort":{"colId":"","sort":"up"}}`,
			wantPaths: []string{"defaultSort.colId", "defaultSort.sort"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.doc))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
			assert.Equal(t, tt.wantPaths, verr.Paths())
		})
	}
}

func TestParseDefinition_RequiresAColumn(t *testing.T) {
	_, err := ParseDefinition([]byte(`{"http":{"url":"/x"},"columnDefs":[]}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, FieldError{Path: "columnDefs", Message: "must contain at least one column"}, verr.Fields[0])
}

func TestDefinition_DuplicateFields(t *testing.T) {
	def := &SerializedTableDefinition{
		HTTP: FetchSpec{URL: "/x"},
		ColumnDefs: []SerializedColumnSpec{
			{Field: "a"}, {Field: "b"}, {Field: "a"}, {Field: "a"}, {Field: "b"},
		},
	}
	assert.Equal(t, []string{"a", "b"}, def.DuplicateFields())
	assert.NoError(t, def.Validate(), "duplicate keys are documented, not enforced")

	col, ok := def.ColumnByField("b")
	require.True(t, ok)
	assert.Equal(t, "b", col.Field)
}
