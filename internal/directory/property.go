package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PropertyKind tells how a property value was decoded.
type PropertyKind uint8

const (
	// PropertyRaw is a value that is not valid JSON and is kept verbatim.
	PropertyRaw PropertyKind = iota

	// PropertyJSON is a value that decoded as JSON.
	PropertyJSON
)

// String implements fmt.Stringer.
func (k PropertyKind) String() string {
	if k == PropertyJSON {
		return "json"
	}
	return "raw"
}

// PropertyValue is a device property: either decoded JSON or the raw
// string the controller sent when it is not JSON.
//
// The controller sends most properties as strings ("0", "true", "[\"lights\"]",
// "Living room lamp"). A failed decode is the expected path for plain text,
// not an error.
type PropertyValue struct {
	kind    PropertyKind
	raw     string
	decoded any
}

// ParseProperty decodes s as JSON, keeping it as a raw string when it is
// not valid JSON. Numbers are kept as json.Number.
func ParseProperty(s string) PropertyValue {
	if v, ok := decodeJSON([]byte(s)); ok {
		return PropertyValue{kind: PropertyJSON, raw: s, decoded: v}
	}
	return PropertyValue{kind: PropertyRaw, raw: s}
}

// RawProperty wraps s without attempting to decode it.
func RawProperty(s string) PropertyValue {
	return PropertyValue{kind: PropertyRaw, raw: s}
}

// propertyFromWire converts a property as it appears in the devices
// response. String values are decoded as ParseProperty does; any other
// JSON value is already decoded.
func propertyFromWire(msg json.RawMessage) PropertyValue {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return ParseProperty(s)
		}
	}
	if v, ok := decodeJSON(trimmed); ok {
		return PropertyValue{kind: PropertyJSON, raw: string(trimmed), decoded: v}
	}
	return RawProperty(string(trimmed))
}

func decodeJSON(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

// Kind returns how the value was decoded.
func (p PropertyValue) Kind() PropertyKind { return p.kind }

// IsJSON reports whether the value decoded as JSON.
func (p PropertyValue) IsJSON() bool { return p.kind == PropertyJSON }

// Raw returns the text the controller sent.
func (p PropertyValue) Raw() string { return p.raw }

// Value returns the decoded JSON value, or the raw string.
func (p PropertyValue) Value() any {
	if p.kind == PropertyJSON {
		return p.decoded
	}
	return p.raw
}

// String returns the raw text.
func (p PropertyValue) String() string { return p.raw }

// Float returns the value as a number. JSON numbers, booleans (as 0/1)
// and numeric strings convert; anything else reports false.
func (p PropertyValue) Float() (float64, bool) {
	switch v := p.Value().(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Truthy follows the controller's loose notion of "on": true, a non-zero
// number, or the strings "true"/"on".
func (p PropertyValue) Truthy() bool {
	switch v := p.Value().(type) {
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "on"
	default:
		return false
	}
}

// Strings returns the value as a list of strings when it is a JSON array.
// Non-string elements are formatted with fmt.Sprint.
func (p PropertyValue) Strings() ([]string, bool) {
	arr, ok := p.Value().([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out, true
}

// Equal reports whether two values have the same kind and raw text.
func (p PropertyValue) Equal(other PropertyValue) bool {
	return p.kind == other.kind && p.raw == other.raw
}

// MarshalJSON encodes the decoded value, or the raw text as a JSON string.
func (p PropertyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// UnmarshalJSON accepts either a JSON string (decoded like ParseProperty)
// or any other JSON value.
func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	*p = propertyFromWire(data)
	return nil
}
