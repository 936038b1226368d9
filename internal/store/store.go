// Package store persists serialized table definitions behind a pluggable
// adapter interface.
//
// Adapters register a factory under a type name (memory, sqlite, postgres)
// and are opened from configuration with Open.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/gridweaver/pkg/core"
)

// ErrNotFound is returned by Read, Update and Delete for unknown ids.
var ErrNotFound = core.ErrNotFound

// Store is a definition storage adapter. Documents are stored and returned
// exactly as written; adapters do not validate.
type Store interface {
	// Create persists def and returns its new identifier.
	Create(ctx context.Context, def *core.SerializedTableDefinition) (string, error)

	// Read returns the stored definition or ErrNotFound.
	Read(ctx context.Context, id string) (*core.SerializedTableDefinition, error)

	// Update merges patch into the stored definition.
	Update(ctx context.Context, id string, patch core.DefinitionPatch) error

	// Delete removes the definition.
	Delete(ctx context.Context, id string) error

	// Close releases the adapter's resources.
	Close() error
}

// Migrator is implemented by adapters with a schema.
type Migrator interface {
	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Version returns the applied schema version.
	Version(ctx context.Context) (int64, error)
}

// Config selects and configures an adapter.
type Config struct {
	Type   string       // Registered adapter name
	DSN    string       // Adapter-specific connection string
	Logger *slog.Logger // Nil uses a discard logger
}

// Factory opens an adapter.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an adapter factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Types returns all registered adapter names (sorted).
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the adapter named by cfg.Type.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("storage type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownTypeError{Type: cfg.Type, Available: Types()}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return factory(ctx, cfg)
}

// UnknownTypeError is returned when the storage type is not registered.
type UnknownTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown storage type %q (no adapters registered)", e.Type)
	}
	return fmt.Sprintf("unknown storage type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}
