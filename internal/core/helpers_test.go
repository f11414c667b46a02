package core

import (
	"archive/zip"
	"bytes"
	"sync"
	"testing"
)

var registerOnce sync.Once

// registerTestTables registers the tables the package tests import into.
// The real definitions live in the tables subpackage, which imports core.
func registerTestTables() {
	registerOnce.Do(func() {
		Register(TableDefinition{
			Info:    TableInfo{Key: "sites", Group: "Network", Label: "Sites"},
			Aliases: []string{"lieux", "clients"},
			Fields:  []CanonicalField{FieldName, FieldType, FieldAddress, FieldCity},
		})
		Register(TableDefinition{
			Info:      TableInfo{Key: "routes", Group: "Operations", Label: "Routes"},
			Aliases:   []string{"tournees"},
			NameParts: []CanonicalField{FieldTour},
		})
		Register(TableDefinition{
			Info:            TableInfo{Key: "users", Group: "People", Label: "Users"},
			IdentifierField: FieldEmail,
			NameParts:       []CanonicalField{FieldFirstName, FieldLastName},
		})
	})
}

func mustTable(t *testing.T, key string) TableDefinition {
	t.Helper()
	registerTestTables()
	def, ok := Get(key)
	if !ok {
		t.Fatalf("table %q not registered", key)
	}
	return def
}

// zipBundle builds an in-memory archive from name -> content pairs.
func zipBundle(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func fieldsOf(pairs ...string) map[CanonicalField]string {
	m := make(map[CanonicalField]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[CanonicalField(pairs[i])] = pairs[i+1]
	}
	return m
}
