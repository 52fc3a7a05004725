package table

import (
	"encoding/json"
	"sort"
)

// Selection is an immutable set of row ids that remembers insertion order.
// The zero value is the empty selection.
type Selection struct {
	ids []RowID
	set map[RowID]struct{}
}

// NewSelection builds a selection from ids, dropping empties and duplicates.
func NewSelection(ids ...RowID) Selection {
	s := Selection{
		ids: make([]RowID, 0, len(ids)),
		set: make(map[RowID]struct{}, len(ids)),
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.set[id]; ok {
			continue
		}
		s.set[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id RowID) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of selected ids.
func (s Selection) Len() int { return len(s.ids) }

// IDs returns a copy of the selected ids in insertion order.
func (s Selection) IDs() []RowID {
	out := make([]RowID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Equal reports set equality, ignoring order.
func (s Selection) Equal(o Selection) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, id := range s.ids {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the selection as an array of ids.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// NormalizeEvent turns a selection event from the presentation layer into an
// ordered id sequence. Accepted shapes are id slices ([]RowID, []string,
// []any of scalars), boolean maps keyed by id (true entries only), a
// Selection, or a single scalar id. nil clears the selection. ok is false for
// any other shape.
func NormalizeEvent(event any) (ids []RowID, ok bool) {
	switch v := event.(type) {
	case nil:
		return nil, true
	case Selection:
		return v.IDs(), true
	case []RowID:
		return v, true
	case []string:
		out := make([]RowID, 0, len(v))
		for _, s := range v {
			out = append(out, RowID(s))
		}
		return out, true
	case []any:
		out := make([]RowID, 0, len(v))
		for _, item := range v {
			if id, ok := scalarID(item); ok {
				out = append(out, id)
			}
		}
		return out, true
	case map[RowID]bool:
		out := make([]RowID, 0, len(v))
		for id, on := range v {
			if on {
				out = append(out, id)
			}
		}
		sortIDs(out)
		return out, true
	case map[string]bool:
		out := make([]RowID, 0, len(v))
		for id, on := range v {
			if on {
				out = append(out, RowID(id))
			}
		}
		sortIDs(out)
		return out, true
	case map[string]any:
		out := make([]RowID, 0, len(v))
		for id, on := range v {
			if b, ok := on.(bool); ok && b {
				out = append(out, RowID(id))
			}
		}
		sortIDs(out)
		return out, true
	default:
		if id, ok := scalarID(v); ok {
			return []RowID{id}, true
		}
		return nil, false
	}
}

func scalarID(v any) (RowID, bool) {
	switch v.(type) {
	case string, RowID, float64, float32, int, int64, int32, json.Number:
		return RowID(scalarString(v)), true
	default:
		return "", false
	}
}

func sortIDs(ids []RowID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Reconcile computes the selection that results from applying event to
// current. The event replaces the selection; ids that are unknown to index
// or belong to rows rejected by selectable are dropped. When the outcome is
// the same set as current, current itself is returned so callers can detect
// a no-op cheaply. An event whose shape NormalizeEvent cannot read leaves
// current in place. current is never modified.
func Reconcile(current Selection, event any, index Index, selectable SelectableFunc) Selection {
	if selectable == nil {
		selectable = AlwaysSelectable
	}

	incoming, ok := NormalizeEvent(event)
	if !ok {
		return current
	}
	accepted := make([]RowID, 0, len(incoming))
	for _, id := range incoming {
		row, ok := index[id]
		if !ok || !selectable(row) {
			continue
		}
		accepted = append(accepted, id)
	}

	next := NewSelection(accepted...)
	if next.Equal(current) {
		return current
	}
	return next
}

// Union returns a selection holding the ids of s followed by any new ids.
func (s Selection) Union(ids ...RowID) Selection {
	all := make([]RowID, 0, s.Len()+len(ids))
	all = append(all, s.ids...)
	all = append(all, ids...)
	return NewSelection(all...)
}
