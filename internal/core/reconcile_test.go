package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() *EntityIndex {
	return BuildIndex([]Entity{
		{ID: "abc", Fields: fieldsOf("name", "Clinique Pasteur", "phone", "05.61.00.00.00", "address", "12 rue X", "city", "Toulouse")},
		{ID: "def", Fields: fieldsOf("name", "Garage Central", "address", "3 place Y", "city", "Albi", "postalCode", "81000")},
		{ID: "ghi", Fields: fieldsOf("name", "Relais Colis", "address", "8 quai Z")},
	}, FieldID)
}

func record(pairs ...string) CanonicalRecord {
	return CanonicalRecord{Line: 2, Fields: fieldsOf(pairs...), Extra: map[string]string{}}
}

func TestReconcile(t *testing.T) {
	idx := snapshot()
	updates := Options{AllowUpdates: true}
	tests := []struct {
		name        string
		rec         CanonicalRecord
		opts        Options
		wantKind    DecisionKind
		wantID      string
		wantMatch   string
		wantChanged []CanonicalField
	}{
		{
			name:     "new record with id",
			rec:      record("id", "xyz", "name", "Pharmacie du Port"),
			opts:     updates,
			wantKind: DecisionInsert,
			wantID:   "xyz",
		},
		{
			name:     "new record without id",
			rec:      record("name", "Pharmacie du Port"),
			opts:     updates,
			wantKind: DecisionInsert,
		},
		{
			name:     "address only is enough to insert",
			rec:      record("address", "9 avenue Z"),
			opts:     updates,
			wantKind: DecisionInsert,
		},
		{
			name:     "nothing to match on",
			rec:      record("phone", "05.00.00.00.00"),
			opts:     updates,
			wantKind: DecisionReject,
		},
		{
			name:        "identifier match with change",
			rec:         record("id", "abc", "name", "Clinique Pasteur", "phone", "05.61.99.99.99"),
			opts:        updates,
			wantKind:    DecisionUpdate,
			wantID:      "abc",
			wantMatch:   MatchIdentifier,
			wantChanged: []CanonicalField{FieldPhone},
		},
		{
			name:      "identifier match unchanged",
			rec:       record("id", "abc", "name", "Clinique Pasteur", "phone", "05.61.00.00.00"),
			opts:      updates,
			wantKind:  DecisionSkipUnchanged,
			wantID:    "abc",
			wantMatch: MatchIdentifier,
		},
		{
			name:        "identifier wins over name",
			rec:         record("id", "def", "name", "Clinique Pasteur"),
			opts:        updates,
			wantKind:    DecisionUpdate,
			wantID:      "def",
			wantMatch:   MatchIdentifier,
			wantChanged: []CanonicalField{FieldName},
		},
		{
			name:        "unknown id falls back to name",
			rec:         record("id", "nope", "name", "clinique pasteur", "city", "Toulouse"),
			opts:        updates,
			wantKind:    DecisionUpdate,
			wantID:      "abc",
			wantMatch:   MatchName,
			wantChanged: []CanonicalField{FieldName},
		},
		{
			name:        "address match",
			rec:         record("name", "Garage du Centre", "address", "3 Place Y", "city", "ALBI", "postalCode", "81000"),
			opts:        updates,
			wantKind:    DecisionUpdate,
			wantID:      "def",
			wantMatch:   MatchAddress,
			wantChanged: []CanonicalField{FieldAddress, FieldCity, FieldName},
		},
		{
			name:     "street alone does not match",
			rec:      record("name", "Laboratoire Bio", "address", "3 Place Y"),
			opts:     updates,
			wantKind: DecisionInsert,
		},
		{
			name:     "entity without city or postal code is never an address match",
			rec:      record("name", "Point Relais", "address", "8 quai Z", "city", "Albi", "postalCode", "81000"),
			opts:     updates,
			wantKind: DecisionInsert,
		},
		{
			name:     "other street in the same town",
			rec:      record("name", "Laboratoire Bio", "address", "4 place Y", "city", "Albi", "postalCode", "81000"),
			opts:     updates,
			wantKind: DecisionInsert,
		},
		{
			name:        "change without updates is a collision",
			rec:         record("id", "abc", "phone", "05.61.99.99.99"),
			opts:        Options{},
			wantKind:    DecisionSkipDuplicateCollision,
			wantID:      "abc",
			wantMatch:   MatchIdentifier,
			wantChanged: []CanonicalField{FieldPhone},
		},
		{
			name:      "subset of stored fields is unchanged",
			rec:       record("name", "Garage Central"),
			opts:      Options{},
			wantKind:  DecisionSkipUnchanged,
			wantID:    "def",
			wantMatch: MatchName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Reconcile(tt.rec, idx, tt.opts)
			assert.Equal(t, tt.wantKind, d.Kind, "kind %s", d.Kind)
			assert.Equal(t, tt.wantID, d.EntityID)
			assert.Equal(t, tt.wantMatch, d.MatchedBy)
			assert.Equal(t, tt.wantChanged, d.Changed)
			if tt.wantMatch != "" {
				require.NotNil(t, d.Entity)
				assert.Equal(t, tt.wantID, d.Entity.ID)
			}
		})
	}
}

func TestReconcile_ExtrasNotCompared(t *testing.T) {
	rec := record("id", "def", "name", "Garage Central")
	rec.Extra["badge"] = "B99"
	d := Reconcile(rec, snapshot(), Options{AllowUpdates: true})
	assert.Equal(t, DecisionSkipUnchanged, d.Kind)
}

func TestReconcile_Deterministic(t *testing.T) {
	idx := snapshot()
	rec := record("name", "Garage du Centre", "address", "3 place Y", "phone", "01")
	first := Reconcile(rec, idx, Options{AllowUpdates: true})
	for range 20 {
		assert.Equal(t, first, Reconcile(rec, idx, Options{AllowUpdates: true}))
	}
}

// Records in the same file never see each other: both duplicates of a new
// site are inserts against the unchanged snapshot.
func TestReconcileAll_SnapshotIsFixed(t *testing.T) {
	idx := snapshot()
	recs := []CanonicalRecord{
		record("name", "Nouveau Site"),
		record("name", "Nouveau Site", "phone", "01"),
	}
	decisions := ReconcileAll(recs, idx, Options{AllowUpdates: true})
	require.Len(t, decisions, 2)
	assert.Equal(t, DecisionInsert, decisions[0].Kind)
	assert.Equal(t, DecisionInsert, decisions[1].Kind)
	assert.Equal(t, 3, idx.Len())
}

func TestReconcile_InsertKeepsIDOnlyForIDIdentifier(t *testing.T) {
	idx := BuildIndex([]Entity{
		{ID: "u1", Fields: fieldsOf("email", "alice@x.fr", "firstName", "Alice")},
	}, FieldEmail)

	d := Reconcile(record("id", "u1", "email", "bob@x.fr", "name", "Bob Durand"), idx, Options{})
	assert.Equal(t, DecisionInsert, d.Kind)
	assert.Empty(t, d.EntityID, "a document id is not carried when another field identifies")

	d = Reconcile(record("id", "s9", "name", "Pharmacie du Port"), snapshot(), Options{})
	assert.Equal(t, DecisionInsert, d.Kind)
	assert.Equal(t, "s9", d.EntityID)
}

func TestDecisionKind_String(t *testing.T) {
	assert.Equal(t, "insert", DecisionInsert.String())
	assert.Equal(t, "skip-duplicate", DecisionSkipDuplicateCollision.String())
	assert.Equal(t, "unknown", DecisionKind(42).String())
}
