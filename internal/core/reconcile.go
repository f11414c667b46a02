package core

import "sort"

// Match sources, in cascade order.
const (
	MatchIdentifier = "identifier"
	MatchName       = "name"
	MatchAddress    = "address"
)

// Reconcile decides what to do with one record given the snapshot. It is
// a pure function of its arguments: the same record, index and options
// always give the same decision.
func Reconcile(rec CanonicalRecord, idx *EntityIndex, opts Options) Decision {
	d := Decision{Record: rec}

	candidate, matchedBy := findCandidate(rec, idx)
	if candidate == nil {
		if rec.Get(FieldName) == "" && rec.Get(FieldAddress) == "" {
			d.Kind = DecisionReject
			return d
		}
		d.Kind = DecisionInsert
		if idx.identifier == FieldID {
			d.EntityID = rec.Get(FieldID)
		}
		return d
	}

	d.EntityID = candidate.ID
	d.Entity = candidate
	d.MatchedBy = matchedBy
	d.Changed = changedFields(rec, candidate)

	switch {
	case len(d.Changed) == 0:
		d.Kind = DecisionSkipUnchanged
	case opts.AllowUpdates:
		d.Kind = DecisionUpdate
	default:
		d.Kind = DecisionSkipDuplicateCollision
	}
	return d
}

// findCandidate walks identifier, then name, then address. The first
// source that finds an entity wins.
func findCandidate(rec CanonicalRecord, idx *EntityIndex) (*Entity, string) {
	if key := idx.recordIdentifier(rec); key != "" {
		if e, ok := idx.ByIdentifier(key); ok {
			return e, MatchIdentifier
		}
	}
	if e, ok := idx.ByName(rec.Get(FieldName)); ok {
		return e, MatchName
	}
	if e, ok := idx.ByAddress(rec.Fields); ok {
		return e, MatchAddress
	}
	return nil, ""
}

// changedFields lists the record's canonical fields, other than id, whose
// value differs from the entity's. Pass-through columns are not compared.
func changedFields(rec CanonicalRecord, e *Entity) []CanonicalField {
	var changed []CanonicalField
	for f, v := range rec.Fields {
		if f == FieldID {
			continue
		}
		if e.Fields[f] != v {
			changed = append(changed, f)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed
}

// ReconcileAll reconciles every record against the same snapshot.
func ReconcileAll(records []CanonicalRecord, idx *EntityIndex, opts Options) []Decision {
	decisions := make([]Decision, len(records))
	for i, rec := range records {
		decisions[i] = Reconcile(rec, idx, opts)
	}
	return decisions
}
