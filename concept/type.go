// Package concept turns raw byte keys from the store into typed handles:
// type vertices, thing instances, and edges. It is the component the spec
// calls C2 — the minimum range-scan API the rest of the engine needs, and
// nothing more (no schema-edit operations live here; see package schema).
package concept

import "fmt"

// Kind is one of the four type variants a TypeID can name.
type Kind uint8

const (
	KindEntity Kind = iota
	KindRelation
	KindAttribute
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TypeID is a type's 16-bit identifier. It is unique only within a
// Kind; the pair (Kind, TypeID) is globally unique.
type TypeID uint16

// Type is a typed handle over a (Kind, TypeID) pair — the smallest unit
// the planner and type-annotation engine reason about.
type Type struct {
	Kind Kind
	ID   TypeID
}

func (t Type) String() string { return fmt.Sprintf("%s#%d", t.Kind, t.ID) }

// Less gives Type a total order, used wherever the spec requires a
// deterministic tie-break (TypeAnnotations' sorted permitted-type lists,
// source-order-independent fixpoint results).
func (t Type) Less(o Type) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	return t.ID < o.ID
}

// Label is a scoped string name uniquely identifying a type. Scope is
// optional (e.g. a role label is scoped by its relation:
// "friendship:friend").
type Label struct {
	Scope string
	Name  string
}

func (l Label) String() string {
	if l.Scope == "" {
		return l.Name
	}
	return l.Scope + ":" + l.Name
}

// ValueType enumerates the value types an attribute type may carry.
type ValueType uint8

const (
	ValueTypeBoolean ValueType = iota
	ValueTypeInteger
	ValueTypeDouble
	ValueTypeDecimal
	ValueTypeDate
	ValueTypeDateTime
	ValueTypeDateTimeTZ
	ValueTypeDuration
	ValueTypeString
	ValueTypeStruct
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeBoolean:
		return "boolean"
	case ValueTypeInteger:
		return "integer"
	case ValueTypeDouble:
		return "double"
	case ValueTypeDecimal:
		return "decimal"
	case ValueTypeDate:
		return "date"
	case ValueTypeDateTime:
		return "datetime"
	case ValueTypeDateTimeTZ:
		return "datetime-tz"
	case ValueTypeDuration:
		return "duration"
	case ValueTypeString:
		return "string"
	case ValueTypeStruct:
		return "struct"
	default:
		return fmt.Sprintf("value-type(%d)", uint8(v))
	}
}

// IsInline reports whether the value type has a fixed-width encoding,
// versus a variable-length one (string, struct). Attribute vertex keys
// embed only boolean, integer, double and date values directly; every
// other value type, inline or not, is keyed by a hash (AttributeLocalID).
func (v ValueType) IsInline() bool {
	switch v {
	case ValueTypeString, ValueTypeStruct:
		return false
	default:
		return true
	}
}

// Numeric reports whether implicit numeric casting applies to this
// value type.
func (v ValueType) Numeric() bool {
	return v == ValueTypeInteger || v == ValueTypeDouble || v == ValueTypeDecimal
}
