// Package write compiles insert/update/delete blocks into flat
// instruction lists and applies them against a writable snapshot with
// referential and annotation validation. Compilation happens once per
// query; Execute runs per input row.
package write

import (
	"fmt"

	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/typeerr"
)

// ConceptKind tags a concept instruction.
type ConceptKind uint8

const (
	PutObject ConceptKind = iota
	PutAttribute
)

// ConceptInstruction creates one instance per input row and stores it at
// OutSlot, past the input width.
type ConceptInstruction struct {
	Kind    ConceptKind
	Type    concept.Type
	OutSlot int

	// PutAttribute: exactly one of ValueParam/ValueSlot supplies the value.
	HasValueParam bool
	ValueParam    pattern.ParameterID
	ValueSlot     int
	HasValueSlot  bool
}

// ConnectionKind tags a connection instruction.
type ConnectionKind uint8

const (
	ConnectHas ConnectionKind = iota
	ConnectLinks
)

// ConnectionInstruction adds one edge per input row between already
// materialised slots.
type ConnectionInstruction struct {
	Kind ConnectionKind

	// Has: A=owner slot, B=attribute slot.
	// Links: A=relation slot, B=player slot.
	A, B int

	// Links role: either a slot holding a type binding, or a statically
	// resolved role type.
	RoleSlot    int
	HasRoleSlot bool
	Role        concept.Type
}

// InsertExecutable is a compiled insert block.
type InsertExecutable struct {
	Concepts    []ConceptInstruction
	Connections []ConnectionInstruction
	OutputWidth int

	// Produced maps each inserted variable to its output slot.
	Produced map[pattern.VariableID]int
}

// CompileInsert lowers an insert block's constraints into instruction
// lists. Input variables (already bound by the preceding stage) are
// addressed through positions; every fresh variable gets a slot past
// inputWidth, in source order.
func CompileInsert(conj *pattern.Conjunction, block *pattern.Block, ann *annotate.TypeAnnotations, positions map[pattern.VariableID]int, inputWidth int) (*InsertExecutable, error) {
	x := &InsertExecutable{OutputWidth: inputWidth, Produced: map[pattern.VariableID]int{}}

	slotOf := func(v pattern.VariableID) (int, bool) {
		if s, ok := x.Produced[v]; ok {
			return s, true
		}
		s, ok := positions[v]
		return s, ok
	}

	for i := range conj.Constraints {
		cons := &conj.Constraints[i]
		if cons.Kind != pattern.ConstraintIsa {
			continue
		}
		if _, isInput := positions[cons.Var1]; isInput {
			return nil, typeerr.IsaForInputVariable(block.Registry.Get(cons.Var1).String())
		}
		t, err := singletonType(ann, cons.Var1, block, cons.Var1)
		if err != nil {
			return nil, err
		}
		instr := ConceptInstruction{Type: t, OutSlot: x.OutputWidth}
		if t.Kind == concept.KindAttribute {
			instr.Kind = PutAttribute
			src, err := attributeValueSource(conj, cons.Var1, slotOf)
			if err != nil {
				return nil, typeerr.ValueSourceMissing(block.Registry.Get(cons.Var1).String())
			}
			instr.HasValueParam = src.hasParam
			instr.ValueParam = src.param
			instr.HasValueSlot = src.hasSlot
			instr.ValueSlot = src.slot
		} else {
			instr.Kind = PutObject
		}
		x.Produced[cons.Var1] = x.OutputWidth
		x.OutputWidth++
		x.Concepts = append(x.Concepts, instr)
	}

	for i := range conj.Constraints {
		cons := &conj.Constraints[i]
		switch cons.Kind {
		case pattern.ConstraintHas:
			a, okA := slotOf(cons.Var1)
			b, okB := slotOf(cons.Var2)
			if !okA || !okB {
				return nil, fmt.Errorf("write: has endpoint not bound or produced")
			}
			x.Connections = append(x.Connections, ConnectionInstruction{Kind: ConnectHas, A: a, B: b})

		case pattern.ConstraintLinks:
			a, okA := slotOf(cons.Var1)
			b, okB := slotOf(cons.Var2)
			if !okA || !okB {
				return nil, fmt.Errorf("write: links endpoint not bound or produced")
			}
			conn := ConnectionInstruction{Kind: ConnectLinks, A: a, B: b}
			if slot, ok := slotOf(cons.Var3); ok {
				conn.RoleSlot, conn.HasRoleSlot = slot, true
			} else {
				role, err := singletonType(ann, cons.Var3, block, cons.Var3)
				if err != nil {
					return nil, err
				}
				if role.Kind != concept.KindRole {
					return nil, typeerr.IllegalInsertForRole(role.String())
				}
				conn.Role = role
			}
			x.Connections = append(x.Connections, conn)
		}
	}
	return x, nil
}

// singletonType resolves a variable's annotated type set to its unique
// member; ambiguity is a compile error.
func singletonType(ann *annotate.TypeAnnotations, v pattern.VariableID, block *pattern.Block, report pattern.VariableID) (concept.Type, error) {
	set := ann.VariableTypes(v)
	types := set.Slice()
	if len(types) == 1 {
		return types[0], nil
	}
	labels := make([]string, 0, len(types))
	for _, t := range types {
		labels = append(labels, t.String())
	}
	return concept.Type{}, typeerr.AmbiguousRoleType(block.Registry.Get(report).String(), labels)
}

type valueSource struct {
	hasParam bool
	param    pattern.ParameterID
	hasSlot  bool
	slot     int
}

// attributeValueSource finds the paired `$a == <source>` comparison that
// supplies an inserted attribute's value. Any comparator other than
// equality is a compile error.
func attributeValueSource(conj *pattern.Conjunction, attrVar pattern.VariableID, slotOf func(pattern.VariableID) (int, bool)) (valueSource, error) {
	for i := range conj.Constraints {
		cons := &conj.Constraints[i]
		if cons.Kind != pattern.ConstraintComparison || cons.Var1 != attrVar {
			continue
		}
		if cons.Comparator != pattern.CmpEq {
			return valueSource{}, fmt.Errorf("write: attribute value requires equality, got %s", cons.Comparator)
		}
		if cons.HasParam2 {
			return valueSource{hasParam: true, param: cons.Param2}, nil
		}
		if slot, ok := slotOf(cons.Var2); ok {
			return valueSource{hasSlot: true, slot: slot}, nil
		}
	}
	return valueSource{}, fmt.Errorf("write: no value source")
}

// Execute applies the compiled instructions for one input row, returning
// the extended row. A failed instruction leaves the write buffer as it
// was before that instruction ran.
func (x *InsertExecutable) Execute(w *concept.Writer, cache *schema.Cache, params *pattern.ParameterRegistry, in row.Row) (row.Row, error) {
	out := in.Widen(x.OutputWidth)

	for _, instr := range x.Concepts {
		info, ok := cache.TypeInfo(instr.Type)
		if ok {
			if _, abstract := schema.FindAnnotation(info.InheritedAnnots, schema.AnnotationAbstract); abstract {
				return out, typeerr.AbstractInstantiation(info.Label.String())
			}
		}
		switch instr.Kind {
		case PutObject:
			id, err := w.PutObject(instr.Type)
			if err != nil {
				return out, err
			}
			out.Values[instr.OutSlot] = row.OfThing(concept.Thing{ID: id})

		case PutAttribute:
			v, err := resolveValue(instr, params, out)
			if err != nil {
				return out, err
			}
			if err := validateAttributeValue(cache, instr.Type, v); err != nil {
				return out, err
			}
			id, err := w.PutAttribute(instr.Type, v)
			if err != nil {
				return out, err
			}
			out.Values[instr.OutSlot] = row.OfThing(concept.Thing{ID: id, Value: v})
		}
	}

	for _, conn := range x.Connections {
		switch conn.Kind {
		case ConnectHas:
			owner := out.Values[conn.A]
			attr := out.Values[conn.B]
			if owner.Kind != row.KindThing || attr.Kind != row.KindThing {
				return out, typeerr.DanglingReference(fmt.Sprintf("slot %d/%d", conn.A, conn.B))
			}
			if err := validateHas(w, cache, owner.Thing.ID, attr.Thing); err != nil {
				return out, err
			}
			w.PutHas(owner.Thing.ID, attr.Thing.ID, attr.Thing.Value)

		case ConnectLinks:
			rel := out.Values[conn.A]
			player := out.Values[conn.B]
			if rel.Kind != row.KindThing || player.Kind != row.KindThing {
				return out, typeerr.DanglingReference(fmt.Sprintf("slot %d/%d", conn.A, conn.B))
			}
			role := conn.Role
			if conn.HasRoleSlot {
				rv := out.Values[conn.RoleSlot]
				if rv.Kind != row.KindType {
					return out, typeerr.DanglingReference(fmt.Sprintf("slot %d", conn.RoleSlot))
				}
				role = rv.Type
			}
			w.PutLinks(rel.Thing.ID, player.Thing.ID, role)
		}
	}
	return out, nil
}

func resolveValue(instr ConceptInstruction, params *pattern.ParameterRegistry, r row.Row) (concept.Value, error) {
	if instr.HasValueParam {
		return params.Value(instr.ValueParam), nil
	}
	if instr.HasValueSlot {
		v := r.Values[instr.ValueSlot]
		switch v.Kind {
		case row.KindValue:
			return v.Value, nil
		case row.KindThing:
			if v.Thing.ID.Kind == concept.KindAttribute {
				return v.Thing.Value, nil
			}
		}
	}
	return concept.Value{}, fmt.Errorf("write: attribute value source empty")
}
