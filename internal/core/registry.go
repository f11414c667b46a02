package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// TableInfo describes an importable table.
type TableInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Description string `json:"description,omitempty"`
}

// TableDefinition is everything the importer knows about a table.
type TableDefinition struct {
	Info TableInfo

	// Aliases are file base names that route to this table in a bundle.
	Aliases []string

	// IdentifierField is the identity used when a run does not choose one.
	IdentifierField CanonicalField

	// Fields lists the canonical fields the table usually carries.
	Fields []CanonicalField

	// NameParts build a display name for records that carry none, e.g.
	// first and last name for people.
	NameParts []CanonicalField
}

var (
	registry   = make(map[string]TableDefinition)
	aliases    = make(map[string]string)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if the key or one of its aliases is already taken.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	if def.IdentifierField == "" {
		def.IdentifierField = FieldID
	}

	names := append([]string{def.Info.Key}, def.Aliases...)
	for _, n := range names {
		key := NormalizeHeader(n)
		if owner, taken := aliases[key]; taken && owner != def.Info.Key {
			panic(fmt.Sprintf("alias %q of %s already registered by %s", n, def.Info.Key, owner))
		}
		aliases[key] = def.Info.Key
	}

	registry[def.Info.Key] = def
}

// Get returns a table definition by key.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Resolve maps a file name to a table by its base name. Trailing words
// are dropped one at a time, so "sites 2024-03.csv" resolves to sites.
func Resolve(fileName string) (TableDefinition, bool) {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.Fields(NormalizeHeader(base))

	registryMu.RLock()
	defer registryMu.RUnlock()

	for n := len(words); n > 0; n-- {
		if key, ok := aliases[strings.Join(words[:n], " ")]; ok {
			return registry[key], true
		}
	}
	return TableDefinition{}, false
}

// All returns all registered table definitions.
// Sorted by group then by key for consistent ordering.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
