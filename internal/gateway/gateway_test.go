package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/gridweaver/internal/store"
	"github.com/leapstack-labs/gridweaver/internal/testutil"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret   = "s3cret"
	validDoc = `{"http": {"url": "/api/users"}, "columnDefs": [{"field": "email"}]}`
)

// countingStore records adapter calls.
type countingStore struct {
	store.Store
	calls int
}

func (s *countingStore) Create(ctx context.Context, def *core.SerializedTableDefinition) (string, error) {
	s.calls++
	return s.Store.Create(ctx, def)
}

func (s *countingStore) Read(ctx context.Context, id string) (*core.SerializedTableDefinition, error) {
	s.calls++
	return s.Store.Read(ctx, id)
}

func (s *countingStore) Update(ctx context.Context, id string, patch core.DefinitionPatch) error {
	s.calls++
	return s.Store.Update(ctx, id, patch)
}

func (s *countingStore) Delete(ctx context.Context, id string) error {
	s.calls++
	return s.Store.Delete(ctx, id)
}

func newGateway(t *testing.T, opts ...Option) (*Gateway, *countingStore) {
	t.Helper()
	cs := &countingStore{Store: store.NewMemoryStore()}
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return New(cs, opts...), cs
}

func TestGateway_CRUD(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, WithSecret(secret))
	assert.True(t, g.MutationEnabled())

	id, err := g.Create(ctx, secret, []byte(validDoc))
	require.NoError(t, err)

	def, err := g.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/api/users", def.HTTP.URL)

	require.NoError(t, g.Update(ctx, secret, id, []byte(`{"defaultSort": {"colId": "email", "sort": "asc"}}`)))
	def, err = g.Read(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, def.DefaultSort)
	assert.Equal(t, "email", def.DefaultSort.ColID)

	require.NoError(t, g.Delete(ctx, secret, id))
	_, err = g.Read(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGateway_MutationGuard(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    []Option
		secret  string
		payload string
	}{
		{name: "disabled without secret", secret: "", payload: validDoc},
		{name: "disabled ignores any header", secret: secret, payload: validDoc},
		{name: "wrong secret", opts: []Option{WithSecret(secret)}, secret: "nope", payload: validDoc},
		{name: "guard precedes validation", opts: []Option{WithSecret(secret)}, secret: "nope", payload: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, cs := newGateway(t, tt.opts...)

			_, err := g.Create(ctx, tt.secret, []byte(tt.payload))
			assert.ErrorIs(t, err, core.ErrUnauthorized)
			var verr *core.ValidationError
			assert.False(t, errors.As(err, &verr))

			assert.ErrorIs(t, g.Update(ctx, tt.secret, "x", []byte(tt.payload)), core.ErrUnauthorized)
			assert.ErrorIs(t, g.Delete(ctx, tt.secret, "x"), core.ErrUnauthorized)
			assert.Zero(t, cs.calls, "store is never reached")
		})
	}
}

func TestGateway_EmptySecretOptionKeepsMutationDisabled(t *testing.T) {
	g, _ := newGateway(t, WithSecret(""))
	assert.False(t, g.MutationEnabled())

	_, err := g.Create(context.Background(), "", []byte(validDoc))
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestGateway_ValidationBeforeStore(t *testing.T) {
	ctx := context.Background()
	g, cs := newGateway(t, WithSecret(secret))

	_, err := g.Create(ctx, secret, []byte(`{"http": {}, "columnDefs": [{"headerName": "x"}]}`))
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Contains(t, verr.Paths(), "columnDefs[0].field")

	err = g.Update(ctx, secret, "x", []byte(`{"http": null}`))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"http"}, verr.Paths())

	assert.Zero(t, cs.calls)
}

func TestGateway_ReadGuard(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	id, err := mem.Create(ctx, &core.SerializedTableDefinition{
		HTTP:       core.FetchSpec{URL: "/api/users"},
		ColumnDefs: []core.SerializedColumnSpec{{Field: "email"}},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		guard ReadGuard
		allow bool
	}{
		{name: "no guard", allow: true},
		{name: "allow", guard: func(context.Context, string) error { return nil }, allow: true},
		{name: "reject with sentinel", guard: func(context.Context, string) error { return core.ErrForbidden }},
		{name: "reject with cause", guard: func(context.Context, string) error { return errors.New("no session") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &countingStore{Store: mem}
			var opts []Option
			if tt.guard != nil {
				opts = append(opts, WithReadGuard(tt.guard))
			}
			g := New(cs, opts...)

			def, err := g.Read(ctx, id)
			if tt.allow {
				require.NoError(t, err)
				assert.Equal(t, "email", def.ColumnDefs[0].Field)
				assert.Equal(t, 1, cs.calls)
				return
			}
			assert.ErrorIs(t, err, core.ErrForbidden)
			assert.Zero(t, cs.calls, "adapter is never invoked")
		})
	}
}

func TestGateway_ReadGuardSeesID(t *testing.T) {
	var seen string
	g, _ := newGateway(t, WithReadGuard(func(_ context.Context, id string) error {
		seen = id
		return nil
	}))

	_, err := g.Read(context.Background(), "abc")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "abc", seen)
}

func TestGateway_NotFound(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, WithSecret(secret))

	assert.ErrorIs(t, g.Update(ctx, secret, "missing", []byte(`{"title": "x"}`)), core.ErrNotFound)
	assert.ErrorIs(t, g.Delete(ctx, secret, "missing"), core.ErrNotFound)
}

func TestGateway_StoreFailureIsWrapped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, _ := newGateway(t, WithSecret(secret))

	_, err := g.Create(ctx, secret, []byte(validDoc))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "failed to create definition")
}

func TestGateway_ReadDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, WithSecret(secret))
	id, err := g.Create(ctx, secret, []byte(validDoc))
	require.NoError(t, err)

	first, err := g.Read(ctx, id)
	require.NoError(t, err)
	first.ColumnDefs = nil

	second, err := g.Read(ctx, id)
	require.NoError(t, err)
	assert.Len(t, second.ColumnDefs, 1)
}
