// Package core defines the shared language of the GridWeaver system.
//
// This package contains:
//   - Serialized definition entities (SerializedTableDefinition, SerializedColumnSpec)
//   - Hydrated counterparts (LiveTableDefinition, LiveColumnSpec)
//   - Service interfaces (PagedDataSource, Renderer)
//   - The normalized query descriptor shared by the translator and data sources
//   - The error taxonomy
//
// The Golden Rule: pkg/core imports ONLY third-party decoding helpers and stdlib.
// All other packages depend on core, not the reverse.
package core
