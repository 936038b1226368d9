package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersDoc = `{
  "http": {"url": "/api/orders", "params": {"region": "eu"}},
  "columnDefs": [
    {"field": "number", "headerName": "Order", "width": 120},
    {"field": "total", "formatter": ["$cellValue | default(0)"], "cellClass": "num"}
  ],
  "defaultSort": {"colId": "number", "sort": "asc"},
  "title": "Orders"
}`

func ordersDefinition(t *testing.T) *core.SerializedTableDefinition {
	t.Helper()
	def, err := core.ParseDefinition([]byte(ordersDoc))
	require.NoError(t, err)
	return def
}

// runStoreConformance exercises the behavior every adapter must share.
func runStoreConformance(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and read round trip", func(t *testing.T) {
		s := open(t)
		def := ordersDefinition(t)

		id, err := s.Create(ctx, def)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, def.ToMap(), got.ToMap())
		assert.Equal(t, "Orders", got.Extra["title"])
		assert.Equal(t, "num", got.ColumnDefs[1].Extra["cellClass"])
	})

	t.Run("large integers survive", func(t *testing.T) {
		s := open(t)
		def, err := core.ParseDefinition([]byte(`{
			"http": {"url": "/api/orders", "params": {"account": 9007199254740993}},
			"columnDefs": [{"field": "id", "maxValue": 18014398509481985}]
		}`))
		require.NoError(t, err)

		id, err := s.Create(ctx, def)
		require.NoError(t, err)
		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, json.Number("9007199254740993"), got.HTTP.Params["account"])
		assert.Equal(t, json.Number("18014398509481985"), got.ColumnDefs[0].Extra["maxValue"])
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := open(t)
		a, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)
		b, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("read returns a private copy", func(t *testing.T) {
		s := open(t)
		id, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)

		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		got.ColumnDefs[0].HeaderName = "changed"

		again, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Order", again.ColumnDefs[0].HeaderName)
	})

	t.Run("update merges patch", func(t *testing.T) {
		s := open(t)
		id, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)

		patch, err := core.ParsePatch([]byte(`{"defaultSort": null, "title": "All orders"}`))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, id, patch))

		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.DefaultSort)
		assert.Equal(t, "All orders", got.Extra["title"])
		assert.Len(t, got.ColumnDefs, 2, "untouched keys survive")
	})

	t.Run("update rejects invalid merge", func(t *testing.T) {
		s := open(t)
		id, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)

		err = s.Update(ctx, id, core.DefinitionPatch{"columnDefs": []any{map[string]any{"headerName": "x"}}})
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "got %v", err)

		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "number", got.ColumnDefs[0].Field, "failed update leaves document intact")
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		id, err := s.Create(ctx, ordersDefinition(t))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Read(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := open(t)
		_, err := s.Read(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Update(ctx, "missing", core.DefinitionPatch{"title": "x"}), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})
}

func TestRegistry_Types(t *testing.T) {
	types := Types()
	assert.Contains(t, types, "memory")
	assert.Contains(t, types, "sqlite")
	assert.Contains(t, types, "postgres")
	assert.IsNonDecreasing(t, types)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Config{Type: "memory"})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{Type: "sqlite"})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(Migrator)
	assert.True(t, ok, "sql stores carry migrations")
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Type: "mongo"})
	var unknown *UnknownTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "mongo", unknown.Type)
	assert.Contains(t, err.Error(), "available: ")
	assert.Contains(t, unknown.Available, "memory")

	_, err = Open(context.Background(), Config{Type: "postgres"})
	assert.ErrorContains(t, err, "requires a dsn")
}

func TestUnknownTypeError_NoAdapters(t *testing.T) {
	err := &UnknownTypeError{Type: "x"}
	assert.Equal(t, `unknown storage type "x" (no adapters registered)`, err.Error())
}
