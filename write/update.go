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

// UpdateExecutable swaps an owner's attribute of one type for a new
// value: the existing has edges of that attribute type are removed and a
// single fresh edge inserted.
type UpdateExecutable struct {
	Updates     []UpdateHas
	OutputWidth int
}

type UpdateHas struct {
	OwnerSlot int
	AttrType  concept.Type
	OutSlot   int
	Source    valueSource
}

// CompileUpdate lowers an update block: every has constraint pairs a
// bound owner with a fresh attribute variable whose value source drives
// the replacement.
func CompileUpdate(conj *pattern.Conjunction, block *pattern.Block, ann *annotate.TypeAnnotations, positions map[pattern.VariableID]int, inputWidth int) (*UpdateExecutable, error) {
	x := &UpdateExecutable{OutputWidth: inputWidth}
	for i := range conj.Constraints {
		cons := &conj.Constraints[i]
		if cons.Kind != pattern.ConstraintHas {
			continue
		}
		ownerSlot, ok := positions[cons.Var1]
		if !ok {
			return nil, fmt.Errorf("write: update has references unbound owner")
		}
		attrType, err := singletonType(ann, cons.Var2, block, cons.Var2)
		if err != nil {
			return nil, err
		}
		src, err := attributeValueSource(conj, cons.Var2, func(v pattern.VariableID) (int, bool) {
			s, ok := positions[v]
			return s, ok
		})
		if err != nil {
			return nil, typeerr.ValueSourceMissing(block.Registry.Get(cons.Var2).String())
		}
		x.Updates = append(x.Updates, UpdateHas{OwnerSlot: ownerSlot, AttrType: attrType, OutSlot: x.OutputWidth, Source: src})
		x.OutputWidth++
	}
	return x, nil
}

// Execute applies the replacements for one input row.
func (x *UpdateExecutable) Execute(w *concept.Writer, cache *schema.Cache, params *pattern.ParameterRegistry, in row.Row) (row.Row, error) {
	out := in.Widen(x.OutputWidth)
	for _, u := range x.Updates {
		owner := out.Values[u.OwnerSlot]
		if owner.Kind != row.KindThing {
			return out, typeerr.DanglingReference(fmt.Sprintf("slot %d", u.OwnerSlot))
		}
		v, err := resolveValue(ConceptInstruction{
			HasValueParam: u.Source.hasParam, ValueParam: u.Source.param,
			HasValueSlot: u.Source.hasSlot, ValueSlot: u.Source.slot,
		}, params, out)
		if err != nil {
			return out, err
		}
		if err := validateAttributeValue(cache, u.AttrType, v); err != nil {
			return out, err
		}

		existing := w.HasByOwner(owner.Thing.ID, []concept.Type{u.AttrType})
		var stale []concept.ThingID
		for existing.Next() {
			stale = append(stale, existing.Tuple().Attr)
		}
		if err := existing.Err(); err != nil {
			existing.Close()
			return out, err
		}
		existing.Close()
		for _, attr := range stale {
			w.DeleteHas(owner.Thing.ID, attr)
		}

		id, err := w.PutAttribute(u.AttrType, v)
		if err != nil {
			return out, err
		}
		w.PutHas(owner.Thing.ID, id, v)
		out.Values[u.OutSlot] = row.OfThing(concept.Thing{ID: id, Value: v})
	}
	return out, nil
}
