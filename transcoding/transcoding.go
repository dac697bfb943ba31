// Package transcoding serializes domain event attribute values to and from
// a closed base representation (nil, bool, int64, float64, string, []any,
// map[string]any) so that the mapper package can hand the result to a
// compressor/cipher and then to a recorder without knowing anything about
// concrete Go types.
//
// Values outside the base set are handled by registering a Transcoding for
// their concrete type; encoded values are wrapped in a two-field envelope
// so decode can find its way back to the right Transcoding by name.
package transcoding

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrUnsupportedType is returned when a value's concrete type has no
// registered Transcoding and is not already part of the base set.
var ErrUnsupportedType = errors.New("transcoding: unsupported type")

// ErrUnknownTranscodingName is returned when a decoded envelope references
// a transcoding name that has not been registered.
var ErrUnknownTranscodingName = errors.New("transcoding: unknown transcoding name")

// typeKey and dataKey name the two fields of an encoded-custom-value
// envelope. Domain payloads must not produce a map with exactly these two
// keys by coincidence; callers that need to store such a map natively
// should register a Transcoding for it rather than relying on structural
// detection.
const (
	typeKey = "_type_"
	dataKey = "_data_"
)

// Transcoding associates a concrete Go type with a symbolic name and a pair
// of conversion functions to/from the base representation.
type Transcoding struct {
	Name   string
	Encode func(v any) (any, error)
	Decode func(base any) (any, error)
	typ    reflect.Type
}

// Transcoder is a registry of Transcodings plus the encode/decode entry
// points used by the mapper. The zero value is usable; Transcoder is safe
// for concurrent reads once registration is complete (registration itself
// is not synchronized — register all transcodings during process startup,
// before any concurrent use).
type Transcoder struct {
	byType map[reflect.Type]Transcoding
	byName map[string]Transcoding
}

// NewTranscoder returns an empty Transcoder.
func NewTranscoder() *Transcoder {
	return &Transcoder{
		byType: make(map[reflect.Type]Transcoding),
		byName: make(map[string]Transcoding),
	}
}

// Register adds a Transcoding for type T, inferred from a zero value of T.
// Register panics if name is already registered, mirroring the teacher's
// convention of failing fast on duplicate registration at process startup
// rather than masking a configuration bug.
func Register[T any](t *Transcoder, name string, encode func(T) (any, error), decode func(any) (T, error)) {
	var zero T
	typ := reflect.TypeOf(zero)
	if t.byType == nil {
		t.byType = make(map[reflect.Type]Transcoding)
	}
	if t.byName == nil {
		t.byName = make(map[string]Transcoding)
	}
	if _, exists := t.byName[name]; exists {
		panic(fmt.Sprintf("transcoding: name %q already registered", name))
	}
	tc := Transcoding{
		Name: name,
		Encode: func(v any) (any, error) {
			tv, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("%w: expected %T, got %T", ErrUnsupportedType, zero, v)
			}
			return encode(tv)
		},
		Decode: func(base any) (any, error) {
			return decode(base)
		},
		typ: typ,
	}
	t.byType[typ] = tc
	t.byName[name] = tc
}

// Encode converts an arbitrary value into the base representation,
// recursively encoding slice elements and map values and substituting a
// {_type_, _data_} envelope for any value whose concrete type has a
// registered Transcoding.
func (t *Transcoder) Encode(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val, nil
	case int:
		return int64(val), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			enc, err := t.Encode(elem)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			enc, err := t.Encode(elem)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	}

	typ := reflect.TypeOf(v)
	tc, ok := t.byType[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}
	base, err := tc.Encode(v)
	if err != nil {
		return nil, err
	}
	encodedBase, err := t.Encode(base)
	if err != nil {
		return nil, err
	}
	return map[string]any{typeKey: tc.Name, dataKey: encodedBase}, nil
}

// Decode is the inverse of Encode: it walks the base representation,
// resolving any {_type_, _data_} envelope back to its concrete Go value via
// the named Transcoding.
func (t *Transcoder) Decode(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			dec, err := t.Decode(elem)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case map[string]any:
		if name, data, ok := asEnvelope(val); ok {
			tc, known := t.byName[name]
			if !known {
				return nil, fmt.Errorf("%w: %s", ErrUnknownTranscodingName, name)
			}
			decodedData, err := t.Decode(data)
			if err != nil {
				return nil, err
			}
			return tc.Decode(decodedData)
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			dec, err := t.Decode(elem)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a base-representable value", ErrUnsupportedType, v)
	}
}

func asEnvelope(m map[string]any) (name string, data any, ok bool) {
	if len(m) != 2 {
		return "", nil, false
	}
	rawName, hasType := m[typeKey]
	data, hasData := m[dataKey]
	if !hasType || !hasData {
		return "", nil, false
	}
	name, isString := rawName.(string)
	if !isString {
		return "", nil, false
	}
	return name, data, true
}
