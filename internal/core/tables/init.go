// Package tables registers the importable tables with the core registry.
// Import it for its side effect.
package tables

// Each file registers one group of tables from init().
