package iterate

import (
	"fmt"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
)

// TupleIterator is one constraint's sorted tuple stream, configured for
// the (direction, iterate-mode) pair the planner picked. One struct
// covers every constraint kind; the variant behaviour lives in the source
// stream, the sort-key selector, and the row writer chosen at Open time,
// keeping the merge loop monomorphic.
type TupleIterator struct {
	instr planner.Instruction
	src   concept.Range

	sortSel func(concept.Tuple) row.VariableValue
	accept  func(concept.Tuple) bool
	write   func(concept.Tuple, *row.Row)

	cur    concept.Tuple
	peeked bool
	done   bool
}

// Open builds the iterator for one instruction given the current input
// row. The returned stream is sorted on the step's sort variable.
func Open(instr planner.Instruction, ctx *Context, input row.Row) (*TupleIterator, error) {
	it := &TupleIterator{instr: instr}
	cons := instr.Constraint

	switch cons.Kind {
	case pattern.ConstraintIsa:
		if err := openIsa(it, instr, ctx, input); err != nil {
			return nil, err
		}
	case pattern.ConstraintHas:
		if err := openHas(it, instr, ctx, input); err != nil {
			return nil, err
		}
	case pattern.ConstraintLinks:
		if err := openLinks(it, instr, ctx, input); err != nil {
			return nil, err
		}
	case pattern.ConstraintSub, pattern.ConstraintOwns, pattern.ConstraintPlays,
		pattern.ConstraintRelates, pattern.ConstraintLabel,
		pattern.ConstraintKindConstraint, pattern.ConstraintRoleName:
		openTypeLevel(it, instr, ctx)
	default:
		return nil, fmt.Errorf("iterate: constraint %s cannot drive an iterator", cons.Kind)
	}

	structural := it.accept
	if len(instr.Checks) > 0 {
		checks := newCheckSet(instr, ctx, input)
		inner := structural
		it.accept = func(t concept.Tuple) bool {
			if inner != nil && !inner(t) {
				return false
			}
			return checks.pass(t, it)
		}
	}
	return it, nil
}

// Peek returns the head tuple without consuming it.
func (it *TupleIterator) Peek() (concept.Tuple, bool) {
	if it.done {
		return concept.Tuple{}, false
	}
	if it.peeked {
		return it.cur, true
	}
	for it.src.Next() {
		t := it.src.Tuple()
		if it.accept != nil && !it.accept(t) {
			continue
		}
		it.cur = t
		it.peeked = true
		return t, true
	}
	it.done = true
	return concept.Tuple{}, false
}

// Advance consumes the head tuple.
func (it *TupleIterator) Advance() {
	if !it.peeked {
		it.Peek()
	}
	it.peeked = false
}

// SortValue projects a tuple onto the step's sort variable.
func (it *TupleIterator) SortValue(t concept.Tuple) row.VariableValue {
	return it.sortSel(t)
}

// SkipToSortedValue advances until the head's sort value is >= target.
func (it *TupleIterator) SkipToSortedValue(target row.VariableValue) {
	for {
		t, ok := it.Peek()
		if !ok || row.Compare(it.sortSel(t), target) >= 0 {
			return
		}
		it.Advance()
	}
}

// WriteValuesToRow materialises a tuple's components into their declared
// row slots.
func (it *TupleIterator) WriteValuesToRow(t concept.Tuple, out *row.Row) {
	it.write(t, out)
}

func (it *TupleIterator) Err() error { return it.src.Err() }

func (it *TupleIterator) Close() { it.src.Close() }

func sortByOwner(t concept.Tuple) row.VariableValue {
	return row.OfThing(concept.Thing{ID: t.Owner, Value: ownerValue(t)})
}

// ownerValue keeps attribute values attached when the owner side is
// itself an attribute instance (isa scans over attribute types).
func ownerValue(t concept.Tuple) concept.Value {
	if t.Owner.Kind == concept.KindAttribute {
		return t.Value
	}
	return concept.Value{}
}

func sortByAttr(t concept.Tuple) row.VariableValue {
	return row.OfThing(concept.Thing{ID: t.Attr, Value: t.Value})
}

func sortByRelation(t concept.Tuple) row.VariableValue {
	return row.OfThing(concept.Thing{ID: t.Relation})
}

func sortByPlayer(t concept.Tuple) row.VariableValue {
	return row.OfThing(concept.Thing{ID: t.Player})
}

func sortByRole(t concept.Tuple) row.VariableValue {
	return row.OfType(t.Role)
}

func openIsa(it *TupleIterator, instr planner.Instruction, ctx *Context, input row.Row) error {
	cons := instr.Constraint
	thingTypes := ctx.typesOf(cons.Var1)
	typeSet := ctx.Annotations.VariableTypes(cons.Var1)

	boundType := concept.Type{}
	haveBoundType := false
	switch {
	case instr.Mode == planner.IterateBoundFrom && instr.Direction == planner.DirectionForward:
		// Thing already bound: stream just its identity so the type slot
		// can materialise.
		thing, ok := thingAt(input, instr.Positions.From)
		if !ok {
			return fmt.Errorf("iterate: isa bound-from with empty input slot")
		}
		it.src = concept.NewSliceRange([]concept.Tuple{{Owner: thing.ID, Value: thing.Value}})
	default:
		// Thing unbound: scan instances of the annotated types; when the
		// type endpoint is already bound in the row, filter to it.
		if instr.Mode == planner.IterateBoundFrom && instr.Positions.HasTo {
			if t := typeAt(input, instr.Positions.To); t != (concept.Type{}) {
				boundType, haveBoundType = t, true
			}
		}
		it.src = ctx.Reader.ObjectsInAny(thingTypes)
	}
	it.sortSel = sortByOwner
	it.accept = func(t concept.Tuple) bool {
		if haveBoundType && t.Owner.Type() != boundType {
			return false
		}
		return typeSet.Contains(t.Owner.Type())
	}
	it.write = func(t concept.Tuple, out *row.Row) {
		if instr.Positions.HasFrom {
			out.Values[instr.Positions.From] = sortByOwner(t)
		}
		if instr.Positions.HasTo {
			out.Values[instr.Positions.To] = row.OfType(t.Owner.Type())
		}
	}
	return nil
}

func openHas(it *TupleIterator, instr planner.Instruction, ctx *Context, input row.Row) error {
	cons := instr.Constraint
	ownerTypes := ctx.typesOf(cons.Var1, concept.KindEntity, concept.KindRelation)
	attrTypes := ctx.typesOf(cons.Var2, concept.KindAttribute)
	ownerSet := ctx.Annotations.VariableTypes(cons.Var1)
	attrSet := ctx.Annotations.VariableTypes(cons.Var2)

	forward := instr.Direction == planner.DirectionForward
	switch {
	case instr.Mode == planner.IterateUnbound && forward:
		it.src = ctx.Reader.Has(ownerTypes)
		it.sortSel = sortByOwner
	case instr.Mode == planner.IterateUnboundInverted || (instr.Mode == planner.IterateUnbound && !forward):
		it.src = ctx.Reader.HasReverse(attrTypes)
		it.sortSel = sortByAttr
	case instr.Mode == planner.IterateBoundFrom && forward:
		owner, ok := thingAt(input, instr.Positions.From)
		if !ok {
			return fmt.Errorf("iterate: has bound-from with empty owner slot")
		}
		it.src = ctx.Reader.HasByOwner(owner.ID, attrTypes)
		it.sortSel = sortByAttr
	case instr.Mode == planner.IterateBoundFrom:
		attr, ok := thingAt(input, instr.Positions.To)
		if !ok {
			return fmt.Errorf("iterate: has reverse bound-from with empty attribute slot")
		}
		it.src = ctx.Reader.HasReverseByAttribute(attr.ID, ownerTypes)
		it.sortSel = sortByOwner
	default:
		owner, okO := thingAt(input, instr.Positions.From)
		attr, okA := thingAt(input, instr.Positions.To)
		if !okO || !okA {
			return fmt.Errorf("iterate: has bound-from-bound-to with empty slot")
		}
		it.src = ctx.Reader.HasByOwner(owner.ID, []concept.Type{attr.ID.Type()})
		it.sortSel = sortByAttr
		inner := attr.ID
		it.accept = func(t concept.Tuple) bool { return t.Attr == inner }
	}

	structural := it.accept
	it.accept = func(t concept.Tuple) bool {
		if structural != nil && !structural(t) {
			return false
		}
		if !ownerSet.Contains(t.Owner.Type()) || !attrSet.Contains(t.Attr.Type()) {
			return false
		}
		if pairs := ctx.Annotations.ConstraintPairs(cons); !pairs.IsEmpty() {
			return containsType(pairs.Forward(t.Owner.Type()), t.Attr.Type())
		}
		return true
	}
	it.write = func(t concept.Tuple, out *row.Row) {
		if instr.Positions.HasFrom {
			out.Values[instr.Positions.From] = row.OfThing(concept.Thing{ID: t.Owner})
		}
		if instr.Positions.HasTo {
			out.Values[instr.Positions.To] = sortByAttr(t)
		}
	}
	return nil
}

func openLinks(it *TupleIterator, instr planner.Instruction, ctx *Context, input row.Row) error {
	cons := instr.Constraint
	relTypes := ctx.typesOf(cons.Var1, concept.KindRelation)
	playerTypes := ctx.typesOf(cons.Var2, concept.KindEntity, concept.KindRelation)
	relSet := ctx.Annotations.VariableTypes(cons.Var1)
	playerSet := ctx.Annotations.VariableTypes(cons.Var2)
	roleSet := ctx.Annotations.VariableTypes(cons.Var3)

	forward := instr.Direction == planner.DirectionForward
	switch {
	case instr.Mode == planner.IterateUnbound && forward:
		it.src = ctx.Reader.Links(relTypes)
		it.sortSel = sortByRelation
	case instr.Mode == planner.IterateUnboundInverted || (instr.Mode == planner.IterateUnbound && !forward):
		it.src = ctx.Reader.LinksReverse(playerTypes)
		it.sortSel = sortByPlayer
	case instr.Mode == planner.IterateBoundFrom && forward:
		rel, ok := thingAt(input, instr.Positions.From)
		if !ok {
			return fmt.Errorf("iterate: links bound-from with empty relation slot")
		}
		it.src = ctx.Reader.LinksByRelation(rel.ID)
		it.sortSel = sortByPlayer
	case instr.Mode == planner.IterateBoundFrom:
		player, ok := thingAt(input, instr.Positions.To)
		if !ok {
			return fmt.Errorf("iterate: links reverse bound-from with empty player slot")
		}
		it.src = ctx.Reader.LinksByPlayer(player.ID)
		it.sortSel = sortByRelation
	default:
		rel, okR := thingAt(input, instr.Positions.From)
		player, okP := thingAt(input, instr.Positions.To)
		if !okR || !okP {
			return fmt.Errorf("iterate: links bound-from-bound-to with empty slot")
		}
		it.src = ctx.Reader.LinksByRelationAndPlayer(rel.ID, player.ID)
		it.sortSel = sortByRole
	}

	it.accept = func(t concept.Tuple) bool {
		return relSet.Contains(t.Relation.Type()) &&
			playerSet.Contains(t.Player.Type()) &&
			roleSet.Contains(t.Role)
	}
	it.write = func(t concept.Tuple, out *row.Row) {
		if instr.Positions.HasFrom {
			out.Values[instr.Positions.From] = row.OfThing(concept.Thing{ID: t.Relation})
		}
		if instr.Positions.HasTo {
			out.Values[instr.Positions.To] = row.OfThing(concept.Thing{ID: t.Player})
		}
		if instr.Positions.HasThird {
			out.Values[instr.Positions.Third] = row.OfType(t.Role)
		}
	}
	return nil
}

// openTypeLevel enumerates schema-level pairs from the annotations and
// cache; these sets are small, so a sorted slice source suffices.
func openTypeLevel(it *TupleIterator, instr planner.Instruction, ctx *Context) {
	cons := instr.Constraint
	var tuples []concept.Tuple

	switch cons.Kind {
	case pattern.ConstraintLabel, pattern.ConstraintKindConstraint, pattern.ConstraintRoleName:
		for _, t := range ctx.Annotations.VariableTypes(cons.Var1).Slice() {
			tuples = append(tuples, concept.Tuple{TypeA: t})
		}
	case pattern.ConstraintSub:
		for _, sub := range ctx.Annotations.VariableTypes(cons.Var1).Slice() {
			for _, super := range ctx.Annotations.VariableTypes(cons.Var2).Slice() {
				if ctx.Cache.IsSubtype(sub, super) {
					tuples = append(tuples, concept.Tuple{TypeA: sub, TypeB: super})
				}
			}
		}
	case pattern.ConstraintOwns:
		ownerSet := ctx.Annotations.VariableTypes(cons.Var1)
		attrSet := ctx.Annotations.VariableTypes(cons.Var2)
		for _, owner := range ownerSet.Slice() {
			for _, edge := range ctx.Cache.OwnsClosure(owner) {
				if attrSet.Contains(edge.Attribute) {
					tuples = append(tuples, concept.Tuple{TypeA: owner, TypeB: edge.Attribute})
				}
			}
		}
	case pattern.ConstraintPlays:
		playerSet := ctx.Annotations.VariableTypes(cons.Var1)
		roleSet := ctx.Annotations.VariableTypes(cons.Var2)
		for _, e := range ctx.Cache.PlaysEdges() {
			if playerSet.Contains(e.Player) && roleSet.Contains(e.Role) {
				tuples = append(tuples, concept.Tuple{TypeA: e.Player, TypeB: e.Role})
			}
		}
	case pattern.ConstraintRelates:
		relSet := ctx.Annotations.VariableTypes(cons.Var1)
		roleSet := ctx.Annotations.VariableTypes(cons.Var2)
		for _, e := range ctx.Cache.RelatesEdges() {
			if relSet.Contains(e.Relation) && roleSet.Contains(e.Role) {
				tuples = append(tuples, concept.Tuple{TypeA: e.Relation, TypeB: e.Role})
			}
		}
	}

	sortTypeTuples(tuples)
	it.src = concept.NewSliceRange(tuples)
	it.sortSel = func(t concept.Tuple) row.VariableValue { return row.OfType(t.TypeA) }
	it.write = func(t concept.Tuple, out *row.Row) {
		if instr.Positions.HasFrom {
			out.Values[instr.Positions.From] = row.OfType(t.TypeA)
		}
		if instr.Positions.HasTo && t.TypeB != (concept.Type{}) {
			out.Values[instr.Positions.To] = row.OfType(t.TypeB)
		}
	}
}

func sortTypeTuples(tuples []concept.Tuple) {
	for i := 1; i < len(tuples); i++ {
		for j := i; j > 0; j-- {
			a, b := tuples[j-1], tuples[j]
			if b.TypeA.Less(a.TypeA) || (b.TypeA == a.TypeA && b.TypeB.Less(a.TypeB)) {
				tuples[j-1], tuples[j] = b, a
			} else {
				break
			}
		}
	}
}

func thingAt(r row.Row, slot int) (concept.Thing, bool) {
	if slot < 0 || slot >= len(r.Values) {
		return concept.Thing{}, false
	}
	v := r.Values[slot]
	if v.Kind != row.KindThing {
		return concept.Thing{}, false
	}
	return v.Thing, true
}

func containsType(s []concept.Type, t concept.Type) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}
