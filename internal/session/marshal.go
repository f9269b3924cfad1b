package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/schema"
)

// marshalRow encodes a row as the JSON document stored in the remote store.
// References are stored as UUID strings; the schema disambiguates on load.
func marshalRow(row Row) ([]byte, error) {
	doc := make(map[string]any, len(row))
	for col, val := range row {
		switch v := val.(type) {
		case []uuid.UUID:
			refs := make([]string, len(v))
			for i, id := range v {
				refs[i] = id.String()
			}
			doc[col] = refs
		default:
			doc[col] = v
		}
	}
	return json.Marshal(doc)
}

// unmarshalRow decodes a stored JSON document using the table schema to
// recover the typed value kinds.
func unmarshalRow(tbl *schema.Table, data []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	row := make(Row, len(doc))
	for col, raw := range doc {
		cs, ok := tbl.Column(col)
		if !ok {
			// Column dropped from the schema; ignore the stale value.
			continue
		}
		val, err := decodeValue(cs, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		row[col] = val
	}
	return row, nil
}

func decodeValue(cs *schema.Column, raw any) (any, error) {
	switch cs.Type {
	case schema.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", raw)
		}
		return s, nil
	case schema.TypeInteger:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", raw)
		}
		return n.Int64()
	case schema.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("want boolean, got %T", raw)
		}
		return b, nil
	case schema.TypeSet:
		elems, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("want set, got %T", raw)
		}
		if cs.IsRef() {
			refs := make([]uuid.UUID, 0, len(elems))
			for _, e := range elems {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("want reference string, got %T", e)
				}
				id, err := uuid.Parse(s)
				if err != nil {
					return nil, err
				}
				refs = append(refs, id)
			}
			return refs, nil
		}
		strs := make([]string, 0, len(elems))
		for _, e := range elems {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("want string element, got %T", e)
			}
			strs = append(strs, s)
		}
		return strs, nil
	case schema.TypeMap:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("want map, got %T", raw)
		}
		out := make(map[string]string, len(m))
		for k, v := range m {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("want string value for key %q, got %T", k, v)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown column type %q", cs.Type)
	}
}
