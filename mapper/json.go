package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalState serializes a base-representable map to canonical JSON.
func marshalState(state map[string]any) ([]byte, error) {
	return json.Marshal(state)
}

// unmarshalState parses JSON into the base representation, preserving
// integers as int64 rather than collapsing everything to float64 (the
// default behavior of json.Unmarshal into map[string]any would lose
// precision for large ids). json.Number entries are normalized to int64
// when they parse as one, else float64.
func unmarshalState(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("mapper: unmarshalling state: %w", err)
	}
	normalized, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	return normalized.(map[string]any), nil
}

func normalize(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("mapper: normalizing number %q: %w", val.String(), err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return val, nil
	}
}
