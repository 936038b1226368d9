// Package gateway is the single entry point for reading and writing
// serialized table definitions.
//
// Every write is checked against the mutation guard first and validated
// second; only valid documents reach the storage adapter. Reads pass through
// an optional read guard.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/gridweaver/internal/store"
	"github.com/leapstack-labs/gridweaver/pkg/core"
)

// ReadGuard decides whether the caller in ctx may read definition id.
// Any non-nil error rejects the read.
type ReadGuard func(ctx context.Context, id string) error

// Option configures a Gateway.
type Option func(*Gateway)

// WithSecret enables mutation. Without a secret every mutating call is
// rejected.
func WithSecret(secret string) Option {
	return func(g *Gateway) {
		if secret != "" {
			g.secret = []byte(secret)
		}
	}
}

// WithReadGuard installs a read guard.
func WithReadGuard(guard ReadGuard) Option {
	return func(g *Gateway) {
		g.readGuard = guard
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway guards and validates access to a definition store.
type Gateway struct {
	store     store.Store
	secret    []byte
	readGuard ReadGuard
	notifier  *Notifier
	logger    *slog.Logger
}

// New creates a gateway over s.
func New(s store.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:    s,
		notifier: NewNotifier(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Changes returns the notifier that receives a Change after every
// successful mutation.
func (g *Gateway) Changes() *Notifier {
	return g.notifier
}

// MutationEnabled reports whether a mutation secret is configured.
func (g *Gateway) MutationEnabled() bool {
	return len(g.secret) > 0
}

func (g *Gateway) authorize(secret string) error {
	if !g.MutationEnabled() {
		return fmt.Errorf("%w: mutation is disabled", core.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare(g.secret, []byte(secret)) != 1 {
		return fmt.Errorf("%w: secret mismatch", core.ErrUnauthorized)
	}
	return nil
}

// Create validates raw and stores it, returning the new id.
func (g *Gateway) Create(ctx context.Context, secret string, raw []byte) (string, error) {
	if err := g.authorize(secret); err != nil {
		g.logger.Warn("mutation rejected", "op", "create", "error", err)
		return "", err
	}
	def, err := core.ParseDefinition(raw)
	if err != nil {
		return "", err
	}
	if dups := def.DuplicateFields(); len(dups) > 0 {
		g.logger.Warn("duplicate column keys", "fields", dups)
	}

	id, err := g.store.Create(ctx, def)
	if err != nil {
		return "", fmt.Errorf("failed to create definition: %w", err)
	}
	g.logger.Info("definition created", "id", id, "columns", len(def.ColumnDefs))
	g.notifier.Broadcast(Change{ID: id, Kind: ChangeCreated})
	return id, nil
}

// Read returns the stored definition unchanged.
func (g *Gateway) Read(ctx context.Context, id string) (*core.SerializedTableDefinition, error) {
	if g.readGuard != nil {
		if err := g.readGuard(ctx, id); err != nil {
			g.logger.Debug("read rejected", "id", id, "error", err)
			if errors.Is(err, core.ErrForbidden) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", core.ErrForbidden, err)
		}
	}
	def, err := g.store.Read(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return def, nil
}

// Update validates the partial document raw and merges it into id.
func (g *Gateway) Update(ctx context.Context, secret, id string, raw []byte) error {
	if err := g.authorize(secret); err != nil {
		g.logger.Warn("mutation rejected", "op", "update", "id", id, "error", err)
		return err
	}
	patch, err := core.ParsePatch(raw)
	if err != nil {
		return err
	}
	if err := g.store.Update(ctx, id, patch); err != nil {
		return wrapStoreErr("update", err)
	}
	g.logger.Info("definition updated", "id", id)
	g.notifier.Broadcast(Change{ID: id, Kind: ChangeUpdated})
	return nil
}

// Delete removes id.
func (g *Gateway) Delete(ctx context.Context, secret, id string) error {
	if err := g.authorize(secret); err != nil {
		g.logger.Warn("mutation rejected", "op", "delete", "id", id, "error", err)
		return err
	}
	if err := g.store.Delete(ctx, id); err != nil {
		return wrapStoreErr("delete", err)
	}
	g.logger.Info("definition deleted", "id", id)
	g.notifier.Broadcast(Change{ID: id, Kind: ChangeDeleted})
	return nil
}

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}

func wrapStoreErr(op string, err error) error {
	var verr *core.ValidationError
	if errors.Is(err, store.ErrNotFound) || errors.As(err, &verr) {
		return err
	}
	return fmt.Errorf("failed to %s definition: %w", op, err)
}
