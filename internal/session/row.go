package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Row holds the column values of one database row.
//
// Value kinds are restricted to what the schema can declare:
//
//	string              TypeString
//	int64               TypeInteger
//	bool                TypeBoolean
//	[]string            TypeSet without ref
//	[]uuid.UUID         TypeSet with ref
//	map[string]string   TypeMap
//
// Absent columns hold the column type's zero value semantically; callers
// use the typed accessors below rather than touching the map directly.
type Row map[string]any

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for col, val := range r {
		switch v := val.(type) {
		case []string:
			out[col] = append([]string(nil), v...)
		case []uuid.UUID:
			out[col] = append([]uuid.UUID(nil), v...)
		case map[string]string:
			m := make(map[string]string, len(v))
			for k, mv := range v {
				m[k] = mv
			}
			out[col] = m
		default:
			out[col] = v
		}
	}
	return out
}

// String returns the column as a string, or "" when absent.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Int returns the column as an integer and whether it is set.
func (r Row) Int(col string) (int64, bool) {
	n, ok := r[col].(int64)
	return n, ok
}

// Bool returns the column as a boolean and whether it is set.
func (r Row) Bool(col string) (bool, bool) {
	b, ok := r[col].(bool)
	return b, ok
}

// Strings returns the column as a string set, or nil when absent.
func (r Row) Strings(col string) []string {
	v, _ := r[col].([]string)
	return v
}

// Refs returns the column as a reference set, or nil when absent.
func (r Row) Refs(col string) []uuid.UUID {
	v, _ := r[col].([]uuid.UUID)
	return v
}

// Map returns the column as a string map, or nil when absent.
func (r Row) Map(col string) map[string]string {
	v, _ := r[col].(map[string]string)
	return v
}

// HasRef reports whether the reference set column contains id.
func (r Row) HasRef(col string, id uuid.UUID) bool {
	for _, ref := range r.Refs(col) {
		if ref == id {
			return true
		}
	}
	return false
}

// Equal reports whether two rows hold identical values.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for col, val := range r {
		ov, ok := other[col]
		if !ok || FormatValue(val) != FormatValue(ov) {
			return false
		}
	}
	return true
}

// FormatValue renders a row value the way command output and tables print
// it: scalars bare, sets bracketed and sorted, maps bracketed key=value
// pairs sorted by key.
func FormatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case []string:
		elems := append([]string(nil), v...)
		sort.Strings(elems)
		return "[" + strings.Join(elems, ", ") + "]"
	case []uuid.UUID:
		elems := make([]string, len(v))
		for i, id := range v {
			elems[i] = id.String()
		}
		sort.Strings(elems)
		return "[" + strings.Join(elems, ", ") + "]"
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + v[k]
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}
