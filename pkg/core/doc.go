// Package core defines the shared language of ui4t.
//
// This package contains:
//   - Semantic column types and the Schema they form
//   - Table references, result sets and value coercion
//   - Dialect configuration data (no behavior)
//   - The error taxonomy shared by every component
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
