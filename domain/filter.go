package domain

import (
	"fmt"
	"strings"
)

// Operator is a comparison used in a query filter.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

func (o Operator) ordered() bool {
	switch o {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Condition is one field/operator/value triple of a filter.
type Condition struct {
	Field string
	Op    Operator
	Value Value
}

// Matches evaluates the condition against metadata. A missing field never matches.
func (c Condition) Matches(m Metadata) bool {
	v, ok := m[c.Field]
	if !ok || v.Kind != c.Value.Kind {
		return false
	}
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpNe:
		return v != c.Value
	}
	if v.Kind != KindInt {
		return false
	}
	switch c.Op {
	case OpLt:
		return v.Int < c.Value.Int
	case OpLte:
		return v.Int <= c.Value.Int
	case OpGt:
		return v.Int > c.Value.Int
	case OpGte:
		return v.Int >= c.Value.Int
	default:
		return false
	}
}

func (c Condition) String() string {
	return c.Field + ":" + string(c.Op) + ":" + c.Value.String()
}

// Filter is a conjunction of conditions. The empty filter matches everything.
type Filter []Condition

// Matches reports whether all conditions hold for m.
func (f Filter) Matches(m Metadata) bool {
	for _, c := range f {
		if !c.Matches(m) {
			return false
		}
	}
	return true
}

// Predicate adapts the filter to an entry predicate.
func (f Filter) Predicate() func(ServerEntry) bool {
	return func(e ServerEntry) bool { return f.Matches(e.Metadata) }
}

// RawCondition is an unvalidated filter triple as received on the wire.
type RawCondition struct {
	Field string
	Op    string
	Value string
}

// ParseRawCondition splits the "field:op:value" form. The value may itself contain ':'.
func ParseRawCondition(s string) (RawCondition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return RawCondition{}, &FieldError{Field: s, Reason: "filter must have the form field:op:value"}
	}
	return RawCondition{Field: parts[0], Op: parts[1], Value: parts[2]}, nil
}

// CompileFilter validates raw conditions against the schema so that only declared fields and operators valid for
// the field's kind reach the evaluator.
func (s Schema) CompileFilter(raw []RawCondition) (Filter, error) {
	out := make(Filter, 0, len(raw))
	for _, rc := range raw {
		kind, ok := s[rc.Field]
		if !ok {
			return nil, &FieldError{Field: rc.Field, Reason: "not in metadata schema"}
		}
		op := Operator(strings.ToLower(rc.Op))
		if !op.valid() {
			return nil, &FieldError{Field: rc.Field, Reason: fmt.Sprintf("unknown operator %q", rc.Op)}
		}
		if op.ordered() && kind != KindInt {
			return nil, &FieldError{Field: rc.Field, Reason: fmt.Sprintf("operator %s needs an int field", op)}
		}
		v, err := ParseValue(kind, rc.Value)
		if err != nil {
			return nil, &FieldError{Field: rc.Field, Reason: err.Error()}
		}
		out = append(out, Condition{Field: rc.Field, Op: op, Value: v})
	}
	return out, nil
}
