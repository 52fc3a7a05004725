// Package table implements the paginated, selectable data-table controller
// shared by every list view of the dashboard (student rosters, credits
// completed, housing records).
//
// The package is split the same way the controller is composed:
//
//   - page.go: the page-slice engine, a pure function over a dataset
//   - selection.go: the immutable selection set and its reconciliation
//   - gate.go: the loading gate with its generation counter
//   - controller.go: the state machine tying the three together
//   - summary.go: the derived footer view
//
// Nothing in this package is safe for concurrent use. Callers serialize
// access, typically through a session event loop.
package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RowID identifies a row within one dataset version.
type RowID string

// Row is an opaque record of scalar values keyed by column name.
type Row map[string]any

// Dataset is an ordered sequence of rows. It is replaced wholesale on reload
// and never mutated in place.
type Dataset []Row

// RowIDFunc extracts the identity of a row.
type RowIDFunc func(Row) RowID

// SelectableFunc reports whether a row may be selected.
type SelectableFunc func(Row) bool

// DefaultIDField is the column read by the default RowIDFunc.
const DefaultIDField = "id"

// FieldID returns a RowIDFunc reading the named column. Missing or nil
// values produce an empty id, and such rows can never be selected.
func FieldID(field string) RowIDFunc {
	return func(r Row) RowID {
		v, ok := r[field]
		if !ok || v == nil {
			return ""
		}
		return RowID(scalarString(v))
	}
}

// AlwaysSelectable is the default selectability predicate.
func AlwaysSelectable(Row) bool { return true }

// BoolField returns a SelectableFunc that reads a boolean column. Rows
// without the column, or with a non-boolean value, stay selectable.
func BoolField(field string) SelectableFunc {
	return func(r Row) bool {
		if b, ok := r[field].(bool); ok {
			return b
		}
		return true
	}
}

// Index maps row ids to rows for one dataset version.
type Index map[RowID]Row

// BuildIndex indexes ds by id. Rows with an empty id are skipped and the
// first occurrence of a duplicated id wins.
func BuildIndex(ds Dataset, id RowIDFunc) Index {
	idx := make(Index, len(ds))
	for _, r := range ds {
		rid := id(r)
		if rid == "" {
			continue
		}
		if _, dup := idx[rid]; dup {
			continue
		}
		idx[rid] = r
	}
	return idx
}

// IDs returns the ids of ds in order, skipping rows without one.
func IDs(ds Dataset, id RowIDFunc) []RowID {
	out := make([]RowID, 0, len(ds))
	for _, r := range ds {
		if rid := id(r); rid != "" {
			out = append(out, rid)
		}
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case RowID:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
