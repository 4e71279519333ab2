// Package row defines the payload every executor stage passes along: a
// multiplicity-counted slice of variable values. A slot is Empty until an
// execution step materialises a binding into it; list slots carry whole
// lists produced by expressions.
package row

import (
	"github.com/typedb/typedb-sub006/concept"
)

// ValueKind tags which member of a VariableValue is populated.
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindType
	KindThing
	KindValue
	KindThingList
	KindValueList
)

// VariableValue is one row slot: empty, a schema type, an instance, a
// bare value, or a list of either.
type VariableValue struct {
	Kind      ValueKind
	Type      concept.Type
	Thing     concept.Thing
	Value     concept.Value
	ThingList []concept.Thing
	ValueList []concept.Value
}

func Empty() VariableValue { return VariableValue{} }

func OfType(t concept.Type) VariableValue { return VariableValue{Kind: KindType, Type: t} }

func OfThing(t concept.Thing) VariableValue { return VariableValue{Kind: KindThing, Thing: t} }

func OfValue(v concept.Value) VariableValue { return VariableValue{Kind: KindValue, Value: v} }

func OfValueList(vs []concept.Value) VariableValue {
	return VariableValue{Kind: KindValueList, ValueList: vs}
}

func (v VariableValue) IsEmpty() bool { return v.Kind == KindEmpty }

// Compare gives VariableValues a total order: by kind tag first, then by
// the populated member. Used by sort stages and distinct passes.
func Compare(a, b VariableValue) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case KindEmpty:
		return 0
	case KindType:
		switch {
		case a.Type.Less(b.Type):
			return -1
		case b.Type.Less(a.Type):
			return 1
		default:
			return 0
		}
	case KindThing:
		switch {
		case a.Thing.ID.Less(b.Thing.ID):
			return -1
		case b.Thing.ID.Less(a.Thing.ID):
			return 1
		default:
			return 0
		}
	case KindValue:
		if a.Value.Type != b.Value.Type {
			return int(a.Value.Type) - int(b.Value.Type)
		}
		return concept.Compare(a.Value, b.Value)
	case KindThingList:
		return listCompare(len(a.ThingList), len(b.ThingList), func(i int) int {
			switch {
			case a.ThingList[i].ID.Less(b.ThingList[i].ID):
				return -1
			case b.ThingList[i].ID.Less(a.ThingList[i].ID):
				return 1
			default:
				return 0
			}
		})
	default:
		return listCompare(len(a.ValueList), len(b.ValueList), func(i int) int {
			if a.ValueList[i].Type != b.ValueList[i].Type {
				return int(a.ValueList[i].Type) - int(b.ValueList[i].Type)
			}
			return concept.Compare(a.ValueList[i], b.ValueList[i])
		})
	}
}

func listCompare(la, lb int, cmp func(i int) int) int {
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if c := cmp(i); c != 0 {
			return c
		}
	}
	return la - lb
}

// Equal reports slot equality, consistent with Compare.
func Equal(a, b VariableValue) bool { return Compare(a, b) == 0 }

// Row is one answer in flight through the pipeline.
type Row struct {
	Multiplicity uint64
	Values       []VariableValue
}

func New(width int) Row {
	return Row{Multiplicity: 1, Values: make([]VariableValue, width)}
}

// Clone deep-copies the slot slice so a stage may extend a row without
// aliasing its upstream's storage. List payloads are shared; stages treat
// them as immutable.
func (r Row) Clone() Row {
	out := Row{Multiplicity: r.Multiplicity, Values: make([]VariableValue, len(r.Values))}
	copy(out.Values, r.Values)
	return out
}

// Widen returns a copy extended with empty slots up to width.
func (r Row) Widen(width int) Row {
	if len(r.Values) >= width {
		return r.Clone()
	}
	out := Row{Multiplicity: r.Multiplicity, Values: make([]VariableValue, width)}
	copy(out.Values, r.Values)
	return out
}

// EqualValues reports whether two rows bind identical slot values,
// multiplicity aside.
func EqualValues(a, b Row) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !Equal(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}
