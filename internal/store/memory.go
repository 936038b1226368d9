package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/gridweaver/pkg/core"
)

func init() {
	Register("memory", func(_ context.Context, _ Config) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore keeps encoded documents in a map. Callers never share memory
// with stored definitions.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, def *core.SerializedTableDefinition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode definition: %w", err)
	}

	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = doc
	return id, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, id string) (*core.SerializedTableDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeDocument(doc)
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id string, patch core.DefinitionPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	updated, err := applyPatch(doc, patch)
	if err != nil {
		return err
	}
	s.docs[id] = updated
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// Len returns the number of stored definitions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func decodeDocument(doc []byte) (*core.SerializedTableDefinition, error) {
	var def core.SerializedTableDefinition
	if err := json.Unmarshal(doc, &def); err != nil {
		return nil, fmt.Errorf("failed to decode stored definition: %w", err)
	}
	return &def, nil
}

// applyPatch merges patch into an encoded document and re-encodes it.
func applyPatch(doc []byte, patch core.DefinitionPatch) ([]byte, error) {
	current, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}
	updated, err := patch.Apply(current)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	return out, nil
}
