package iterate

import (
	"strings"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/typeerr"
)

// ExecuteMatch drives a MatchExecutable's steps over one input row,
// calling emit for every answer row. Rows arrive sorted by the innermost
// intersection's sort variable; emit returning an error aborts the run.
func ExecuteMatch(plan *planner.MatchExecutable, ctx *Context, input row.Row, emit func(row.Row) error) error {
	if ctx.Positions == nil {
		ctx.Positions = plan.Positions
	}
	if ctx.Tables == nil {
		ctx.Tables = newTableState()
	}
	return executeSteps(plan, 0, ctx, input.Widen(plan.FinalWidth), emit)
}

func executeSteps(plan *planner.MatchExecutable, idx int, ctx *Context, current row.Row, emit func(row.Row) error) error {
	if ctx.interrupted() {
		return typeerr.Interrupted()
	}
	if idx >= len(plan.Steps) {
		return emit(current)
	}
	step := plan.Steps[idx]
	next := func(r row.Row) error { return executeSteps(plan, idx+1, ctx, r, emit) }

	switch step.Kind {
	case planner.StepIntersection:
		return runIntersection(step, ctx, current, next)

	case planner.StepCheck:
		ok, err := runCheck(step, ctx, current)
		if err != nil {
			return err
		}
		if ok {
			return next(current)
		}
		return nil

	case planner.StepNegation:
		matched, err := probe(step.SubPlan, ctx, current)
		if err != nil {
			return err
		}
		if !matched {
			return next(current)
		}
		return nil

	case planner.StepOptional:
		// Optionals constrain nothing on the outer row; the interior runs
		// for its side effects (errors) only and never filters or widens.
		if _, err := probe(step.SubPlan, ctx, current); err != nil {
			return err
		}
		return next(current)

	case planner.StepDisjunction:
		return runDisjunction(step, ctx, current, next)

	case planner.StepFunctionCall:
		return runFunctionCall(step, ctx, current, next)

	default:
		return next(current)
	}
}

// probe runs a sub-plan to its first answer.
func probe(sub *planner.MatchExecutable, ctx *Context, input row.Row) (bool, error) {
	matched := false
	subCtx := *ctx
	subCtx.Positions = sub.Positions
	err := ExecuteMatch(sub, &subCtx, input, func(row.Row) error {
		matched = true
		return errStopProbe
	})
	if err == errStopProbe {
		err = nil
	}
	return matched, err
}

type stopProbe struct{}

func (stopProbe) Error() string { return "stop" }

var errStopProbe = stopProbe{}

// runIntersection opens one sorted iterator per instruction and merges
// them on the step's sort variable: advance to a common sort value, emit
// the cartesian product of each iterator's tuple group at that value,
// then move past it.
func runIntersection(step planner.ExecutionStep, ctx *Context, current row.Row, next func(row.Row) error) error {
	iters := make([]*TupleIterator, 0, len(step.Instructions))
	defer func() {
		for _, it := range iters {
			it.Close()
		}
	}()
	for _, instr := range step.Instructions {
		it, err := Open(instr, ctx, current)
		if err != nil {
			return err
		}
		iters = append(iters, it)
	}
	if len(iters) == 0 {
		return next(current)
	}

	for {
		if ctx.interrupted() {
			return typeerr.Interrupted()
		}
		var maxVal row.VariableValue
		aligned := true
		for i, it := range iters {
			t, ok := it.Peek()
			if !ok {
				if err := it.Err(); err != nil {
					return err
				}
				return nil
			}
			v := it.SortValue(t)
			if i == 0 {
				maxVal = v
				continue
			}
			switch c := row.Compare(v, maxVal); {
			case c > 0:
				maxVal = v
				aligned = false
			case c < 0:
				aligned = false
			}
		}
		if !aligned {
			for _, it := range iters {
				it.SkipToSortedValue(maxVal)
			}
			continue
		}

		// All heads share the sort value: group each iterator's tuples at
		// that value, emit every combination, then continue past it.
		groups := make([][]concept.Tuple, len(iters))
		for i, it := range iters {
			for {
				t, ok := it.Peek()
				if !ok || row.Compare(it.SortValue(t), maxVal) != 0 {
					break
				}
				groups[i] = append(groups[i], t)
				it.Advance()
			}
			if err := it.Err(); err != nil {
				return err
			}
		}
		if err := emitProduct(groups, iters, step.OutputWidth, current, next); err != nil {
			return err
		}
	}
}

func emitProduct(groups [][]concept.Tuple, iters []*TupleIterator, width int, current row.Row, next func(row.Row) error) error {
	combo := make([]concept.Tuple, len(groups))
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(groups) {
			out := current.Widen(width)
			for k, t := range combo {
				iters[k].WriteValuesToRow(t, &out)
			}
			return next(out)
		}
		for _, t := range groups[i] {
			combo[i] = t
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}

// runCheck verifies fully-bound instructions against storage without
// widening the row.
func runCheck(step planner.ExecutionStep, ctx *Context, current row.Row) (bool, error) {
	for _, instr := range step.Instructions {
		ok, err := checkInstruction(instr, ctx, current)
		if err != nil || !ok {
			return false, err
		}
		for _, c := range instr.Checks {
			if !evalCheck(c, ctx, current) {
				return false, nil
			}
		}
	}
	return true, nil
}

func checkInstruction(instr planner.Instruction, ctx *Context, r row.Row) (bool, error) {
	cons := instr.Constraint
	switch cons.Kind {
	case pattern.ConstraintHas:
		owner, okO := thingAt(r, instr.Positions.From)
		attr, okA := thingAt(r, instr.Positions.To)
		if !okO || !okA {
			return false, nil
		}
		return ctx.Reader.HasExists(owner.ID, attr.ID)

	case pattern.ConstraintLinks:
		rel, okR := thingAt(r, instr.Positions.From)
		player, okP := thingAt(r, instr.Positions.To)
		if !okR || !okP {
			return false, nil
		}
		roles := ctx.Reader.LinksByRelationAndPlayer(rel.ID, player.ID)
		defer roles.Close()
		roleSet := ctx.Annotations.VariableTypes(cons.Var3)
		for roles.Next() {
			if roleSet.Contains(roles.Tuple().Role) {
				return true, nil
			}
		}
		return false, roles.Err()

	case pattern.ConstraintIsa:
		thing, ok := thingAt(r, instr.Positions.From)
		if !ok {
			return false, nil
		}
		return ctx.Annotations.VariableTypes(cons.Var1).Contains(thing.ID.Type()), nil

	default:
		// Type-level constraints re-verify against the schema cache.
		it := &TupleIterator{instr: instr}
		openTypeLevel(it, instr, ctx)
		want := typeAt(r, instr.Positions.From)
		for {
			t, ok := it.Peek()
			if !ok {
				return false, nil
			}
			if t.TypeA == want {
				return true, nil
			}
			it.Advance()
		}
	}
}

func typeAt(r row.Row, slot int) concept.Type {
	if slot < 0 || slot >= len(r.Values) || r.Values[slot].Kind != row.KindType {
		return concept.Type{}
	}
	return r.Values[slot].Type
}

// runDisjunction unions the branch sub-plans projected onto the selected
// variables, wrapped in a distinct pass so overlapping branches do not
// duplicate answers.
func runDisjunction(step planner.ExecutionStep, ctx *Context, current row.Row, next func(row.Row) error) error {
	seen := map[string]bool{}
	for _, branch := range step.Branches {
		branchCtx := *ctx
		branchCtx.Positions = branch.Positions
		err := ExecuteMatch(branch, &branchCtx, current, func(r row.Row) error {
			// Project onto the selected (outer) variables; branch-local
			// slots pad out as Empty.
			out := current.Widen(step.OutputWidth)
			for _, v := range step.SelectedVars {
				if slot, ok := branch.Positions[v]; ok && slot < len(r.Values) && slot < len(out.Values) {
					out.Values[slot] = r.Values[slot]
				}
			}
			key := rowKey(out)
			if seen[key] {
				return nil
			}
			seen[key] = true
			return next(out)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// rowKey renders a row's bindings into a comparable string for distinct
// passes.
func rowKey(r row.Row) string {
	var sb strings.Builder
	for _, v := range r.Values {
		sb.WriteByte(byte(v.Kind))
		switch v.Kind {
		case row.KindType:
			sb.Write(concept.EncodeTypeVertex(v.Type))
		case row.KindThing:
			sb.Write(concept.EncodeThingVertex(v.Thing.ID))
		case row.KindValue:
			sb.Write(v.Value.Encode())
		case row.KindValueList:
			for _, x := range v.ValueList {
				sb.Write(x.Encode())
			}
		case row.KindThingList:
			for _, x := range v.ThingList {
				sb.Write(concept.EncodeThingVertex(x.ID))
			}
		}
		sb.WriteByte(0)
	}
	return sb.String()
}
