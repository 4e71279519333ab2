package iterate

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
)

// checkSet evaluates the per-row predicates attached to one instruction:
// value comparisons and iid equality. A scratch row is reused per tuple
// so the predicates can read both the input bindings and the tuple's own
// components.
type checkSet struct {
	checks  []*pattern.Constraint
	ctx     *Context
	scratch row.Row
}

func newCheckSet(instr planner.Instruction, ctx *Context, input row.Row) *checkSet {
	width := len(input.Values)
	for _, p := range []struct {
		has  bool
		slot int
	}{
		{instr.Positions.HasFrom, instr.Positions.From},
		{instr.Positions.HasTo, instr.Positions.To},
		{instr.Positions.HasThird, instr.Positions.Third},
	} {
		if p.has && p.slot >= width {
			width = p.slot + 1
		}
	}
	return &checkSet{checks: instr.Checks, ctx: ctx, scratch: input.Widen(width)}
}

func (cs *checkSet) pass(t concept.Tuple, it *TupleIterator) bool {
	it.write(t, &cs.scratch)
	for _, c := range cs.checks {
		if !evalCheck(c, cs.ctx, cs.scratch) {
			return false
		}
	}
	return true
}

// evalCheck evaluates one comparison or iid predicate against a row.
func evalCheck(c *pattern.Constraint, ctx *Context, r row.Row) bool {
	switch c.Kind {
	case pattern.ConstraintComparison:
		left, ok := valueAt(r, ctx, c.Var1)
		if !ok {
			return false
		}
		var right concept.Value
		if c.HasParam2 {
			right = ctx.Params.Value(c.Param2)
		} else {
			rv, ok := valueAt(r, ctx, c.Var2)
			if !ok {
				return false
			}
			right = rv
		}
		return compareValues(c.Comparator, left, right)

	case pattern.ConstraintIid:
		slot, ok := ctx.slot(c.Var1)
		if !ok || slot >= len(r.Values) {
			return false
		}
		v := r.Values[slot]
		if v.Kind != row.KindThing {
			return false
		}
		iid, ok := ctx.Params.IID(c.Param1)
		if !ok {
			return false
		}
		return bytes.Equal(concept.EncodeThingVertex(v.Thing.ID), iid)

	default:
		return true
	}
}

// valueAt extracts the comparable value bound at a variable's slot: a
// bare value, or an attribute instance's value.
func valueAt(r row.Row, ctx *Context, v pattern.VariableID) (concept.Value, bool) {
	slot, ok := ctx.slot(v)
	if !ok || slot >= len(r.Values) {
		return concept.Value{}, false
	}
	vv := r.Values[slot]
	switch vv.Kind {
	case row.KindValue:
		return vv.Value, true
	case row.KindThing:
		if vv.Thing.ID.Kind == concept.KindAttribute {
			return vv.Thing.Value, true
		}
	}
	return concept.Value{}, false
}

func compareValues(op pattern.Comparator, left, right concept.Value) bool {
	// Numeric comparisons cast to double when the operand types differ.
	if left.Type != right.Type {
		lf, lok := asDouble(left)
		rf, rok := asDouble(right)
		if !lok || !rok {
			return false
		}
		left, right = concept.Dbl(lf), concept.Dbl(rf)
	}
	switch op {
	case pattern.CmpContains:
		return strings.Contains(left.Str, right.Str)
	case pattern.CmpLike:
		matched, err := regexp.MatchString(right.Str, left.Str)
		return err == nil && matched
	}
	c := concept.Compare(left, right)
	switch op {
	case pattern.CmpEq:
		return c == 0
	case pattern.CmpNeq:
		return c != 0
	case pattern.CmpLt:
		return c < 0
	case pattern.CmpLte:
		return c <= 0
	case pattern.CmpGt:
		return c > 0
	case pattern.CmpGte:
		return c >= 0
	default:
		return false
	}
}

func asDouble(v concept.Value) (float64, bool) {
	switch v.Type {
	case concept.ValueTypeInteger:
		return float64(v.Integer), true
	case concept.ValueTypeDouble:
		return v.Double, true
	case concept.ValueTypeDecimal:
		return v.Decimal.Float(), true
	default:
		return 0, false
	}
}

// EvalCheck is the exported entry the pipeline uses for post-match
// predicates (comparisons over expression-assigned variables).
func EvalCheck(c *pattern.Constraint, ctx *Context, r row.Row) bool {
	return evalCheck(c, ctx, r)
}
