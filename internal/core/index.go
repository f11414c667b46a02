package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/JonMunkholm/courierimport/internal/store"
)

// EntityIndex is a point-in-time lookup over a table's entities, built
// once before a run writes anything and never updated during the run.
type EntityIndex struct {
	identifier CanonicalField
	byID       map[string]*Entity
	byName     map[string]*Entity
	byAddress  map[string]*Entity
	size       int
}

// BuildIndex indexes entities by identifier, name and address. Entities
// are visited in id order and the first one to claim a key keeps it.
func BuildIndex(entities []Entity, identifier CanonicalField) *EntityIndex {
	if identifier == "" {
		identifier = FieldID
	}
	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &EntityIndex{
		identifier: identifier,
		byID:       make(map[string]*Entity),
		byName:     make(map[string]*Entity),
		byAddress:  make(map[string]*Entity),
		size:       len(sorted),
	}
	for i := range sorted {
		e := &sorted[i]
		claim(idx.byID, idx.entityIdentifier(e), e)
		claim(idx.byName, nameKey(e.Fields[FieldName]), e)
		claim(idx.byAddress, addressKey(e.Fields), e)
	}
	return idx
}

func claim(m map[string]*Entity, key string, e *Entity) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = e
	}
}

// Len is the number of entities in the snapshot.
func (idx *EntityIndex) Len() int { return idx.size }

func (idx *EntityIndex) entityIdentifier(e *Entity) string {
	if idx.identifier == FieldID {
		return strings.TrimSpace(e.ID)
	}
	return strings.TrimSpace(e.Fields[idx.identifier])
}

func (idx *EntityIndex) recordIdentifier(r CanonicalRecord) string {
	return strings.TrimSpace(r.Fields[idx.identifier])
}

// ByIdentifier looks up the identifier value.
func (idx *EntityIndex) ByIdentifier(key string) (*Entity, bool) {
	e, ok := idx.byID[strings.TrimSpace(key)]
	return e, ok
}

// ByName looks up a display name, ignoring case and surrounding blanks.
func (idx *EntityIndex) ByName(name string) (*Entity, bool) {
	key := nameKey(name)
	if key == "" {
		return nil, false
	}
	e, ok := idx.byName[key]
	return e, ok
}

// ByAddress looks up the address, city and postal code of fields.
func (idx *EntityIndex) ByAddress(fields map[CanonicalField]string) (*Entity, bool) {
	key := addressKey(fields)
	if key == "" {
		return nil, false
	}
	e, ok := idx.byAddress[key]
	return e, ok
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// addressKey joins address, city and postal code, lowercased without
// accents or whitespace. All three parts are required.
func addressKey(fields map[CanonicalField]string) string {
	parts := make([]string, 0, 3)
	for _, f := range []CanonicalField{FieldAddress, FieldCity, FieldPostalCode} {
		v := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, foldValue(fields[f]))
		if v == "" {
			return ""
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "|")
}

// EntitiesFromDocuments splits stored fields into canonical fields and
// pass-through extras.
func EntitiesFromDocuments(docs []store.Document) []Entity {
	out := make([]Entity, 0, len(docs))
	for _, d := range docs {
		e := Entity{
			ID:     d.ID,
			Fields: make(map[CanonicalField]string),
			Extra:  make(map[string]string),
		}
		for k, v := range d.Fields {
			if f := CanonicalField(k); IsCanonical(f) {
				e.Fields[f] = v
			} else {
				e.Extra[k] = v
			}
		}
		out = append(out, e)
	}
	return out
}

// document flattens an entity for storage.
func (e Entity) document() store.Document {
	fields := make(map[string]string, len(e.Fields)+len(e.Extra))
	for k, v := range e.Extra {
		fields[k] = v
	}
	for f, v := range e.Fields {
		if f == FieldID {
			continue
		}
		fields[string(f)] = v
	}
	return store.Document{ID: e.ID, Fields: fields}
}
