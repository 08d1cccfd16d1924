package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueKind is the declared type of a metadata field.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindBool   ValueKind = "bool"
)

// Valid reports whether k is one of the supported kinds.
func (k ValueKind) Valid() bool {
	switch k {
	case KindString, KindInt, KindBool:
		return true
	default:
		return false
	}
}

// Value is a typed metadata value.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Bool bool
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// Interface returns the plain Go value (string, int64 or bool).
func (v Value) Interface() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindBool:
		return v.Bool
	default:
		return v.Str
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Metadata is the typed attribute mapping of a server entry.
type Metadata map[string]Value

// Clone returns an independent copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Plain converts the metadata to a map of plain Go values for serialization.
func (m Metadata) Plain() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// Limits on metadata accepted at REGISTER.
const (
	MaxMetadataStringLen = 256
)

// Schema is the fixed set of metadata keys a server may report, with their kinds.
type Schema map[string]ValueKind

// DefaultSchema is used when no schema is configured.
func DefaultSchema() Schema {
	return Schema{
		"mode":      KindString,
		"map":       KindString,
		"name":      KindString,
		"version":   KindString,
		"players":   KindInt,
		"capacity":  KindInt,
		"password":  KindBool,
		"dedicated": KindBool,
	}
}

// Fields returns the schema keys in sorted order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks the schema itself: non-empty keys with supported kinds.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("metadata schema must declare at least one field")
	}
	for k, kind := range s {
		if k == "" {
			return fmt.Errorf("metadata schema has an empty field name")
		}
		if !kind.Valid() {
			return fmt.Errorf("metadata field %q: kind must be string|int|bool, got %q", k, kind)
		}
	}
	return nil
}

// FieldError describes a metadata or filter field that does not fit the schema.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return "field " + strconv.Quote(e.Field) + ": " + e.Reason
}

// Coerce converts raw JSON-decoded metadata into typed Metadata. Unknown keys and values of the wrong kind are
// rejected with *FieldError. JSON numbers must be integral to fit an int field.
func (s Schema) Coerce(raw map[string]any) (Metadata, error) {
	out := make(Metadata, len(raw))
	for k, rv := range raw {
		kind, ok := s[k]
		if !ok {
			return nil, &FieldError{Field: k, Reason: "not in metadata schema"}
		}
		v, err := coerceValue(kind, rv)
		if err != nil {
			return nil, &FieldError{Field: k, Reason: err.Error()}
		}
		out[k] = v
	}
	return out, nil
}

func coerceValue(kind ValueKind, raw any) (Value, error) {
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		if len(s) > MaxMetadataStringLen {
			return Value{}, fmt.Errorf("string longer than %d bytes", MaxMetadataStringLen)
		}
		return StringValue(s), nil
	case KindInt:
		switch n := raw.(type) {
		case float64:
			if n != math.Trunc(n) || n >= 1<<63 || n < -(1<<63) {
				return Value{}, fmt.Errorf("expected integer, got %v", n)
			}
			return IntValue(int64(n)), nil
		case int:
			return IntValue(int64(n)), nil
		case int64:
			return IntValue(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return Value{}, fmt.Errorf("expected integer, got %s", n)
			}
			return IntValue(i), nil
		default:
			return Value{}, fmt.Errorf("expected integer, got %T", raw)
		}
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return BoolValue(b), nil
	default:
		return Value{}, fmt.Errorf("unsupported kind %q", kind)
	}
}

// ParseValue parses the textual form of a value of the given kind (used by query filters).
func ParseValue(kind ValueKind, s string) (Value, error) {
	switch kind {
	case KindString:
		return StringValue(s), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("expected integer, got %q", s)
		}
		return IntValue(i), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("expected bool, got %q", s)
		}
		return BoolValue(b), nil
	default:
		return Value{}, fmt.Errorf("unsupported kind %q", kind)
	}
}
