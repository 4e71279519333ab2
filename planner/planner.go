package planner

import (
	"sort"

	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/schema"
)

// isTypeLevelConstraint reports whether a constraint ranges over types
// themselves, so the search should cost it with a TypePlanner rather than
// a ThingPlanner.
func isTypeLevelConstraint(k pattern.ConstraintKind) bool {
	switch k {
	case pattern.ConstraintSub, pattern.ConstraintOwns, pattern.ConstraintPlays,
		pattern.ConstraintRelates, pattern.ConstraintKindConstraint, pattern.ConstraintLabel,
		pattern.ConstraintRoleName:
		return true
	default:
		return false
	}
}

// Plan builds a MatchExecutable for one Conjunction's constraints, given
// its already-computed TypeAnnotations and the variables bound on entry
// (a pipeline stage's input row, or an outer scope's bound set for a
// nested pattern).
//
// The search greedily extends the ordered step sequence by the vertex
// minimising cumulative cost given the bound set; every other unplanned
// constraint that can iterate sorted on the chosen step's sort variable
// joins that step as an additional intersection instruction.
func Plan(c *pattern.Conjunction, annotations *annotate.TypeAnnotations, cache *schema.Cache, stats *schema.Statistics, boundInputs map[pattern.VariableID]bool) (*MatchExecutable, error) {
	positions := map[pattern.VariableID]int{}
	nextSlot := 0
	for _, v := range sortedVars(boundInputs) {
		positions[v] = nextSlot
		nextSlot++
	}
	return planWith(c, annotations, cache, stats, boundInputs, positions, nextSlot)
}

// planWith plans one conjunction against an existing slot layout, so
// nested sub-plans read their inputs from the same positions the outer
// plan materialised them into.
func planWith(c *pattern.Conjunction, annotations *annotate.TypeAnnotations, cache *schema.Cache, stats *schema.Statistics, boundInputs map[pattern.VariableID]bool, inputPositions map[pattern.VariableID]int, inputWidth int) (*MatchExecutable, error) {
	bound := map[pattern.VariableID]bool{}
	for v := range boundInputs {
		bound[v] = true
	}

	vertices := buildVertices(c, annotations, cache, stats)
	planned := make([]bool, len(vertices))
	checksAttached := map[*pattern.Constraint]bool{}

	var steps []ExecutionStep
	positions := map[pattern.VariableID]int{}
	for k, v := range inputPositions {
		positions[k] = v
	}
	nextSlot := inputWidth

	for {
		idx := pickNext(vertices, planned, bound)
		if idx < 0 {
			break
		}
		planned[idx] = true
		v := vertices[idx]

		allBound := true
		sortVar := pattern.VariableID(-1)
		for _, vid := range v.Variables() {
			if !bound[vid] {
				allBound = false
				if sortVar < 0 {
					sortVar = vid
				}
			}
		}

		group := []PlannerVertex{v}
		if !allBound {
			// Pull in every other constraint that can be driven sorted on
			// sortVar; they intersect in the same step instead of becoming
			// nested-loop follow-ups.
			for j, w := range vertices {
				if planned[j] || isTypeVertex(w) != isTypeVertex(v) {
					continue
				}
				if constraintOf(w) == nil || !touches(w, sortVar) {
					continue
				}
				group = append(group, w)
				planned[j] = true
			}
		}

		kind := StepIntersection
		if allBound {
			kind = StepCheck
		}

		stepPositions := map[pattern.VariableID]int{}
		for _, member := range group {
			for _, vid := range member.Variables() {
				if !bound[vid] {
					bound[vid] = true
					positions[vid] = nextSlot
					stepPositions[vid] = nextSlot
					nextSlot++
				}
			}
		}

		var instructions []Instruction
		for _, member := range group {
			cons := constraintOf(member)
			if cons == nil {
				continue
			}
			instr := instructionFor(cons, boundAtEntry(member, stepPositions, bound), sortVar)
			fillPositions(&instr, positions)
			instructions = append(instructions, instr)
		}

		// Attach every comparison or iid predicate whose variables are all
		// bound after this step and not yet claimed by an earlier one.
		if len(instructions) > 0 {
			for i := range c.Constraints {
				cons := &c.Constraints[i]
				if cons.Kind != pattern.ConstraintComparison && cons.Kind != pattern.ConstraintIid {
					continue
				}
				if checksAttached[cons] {
					continue
				}
				ready := true
				for _, vid := range cons.Variables() {
					if !bound[vid] {
						ready = false
						break
					}
				}
				if ready {
					instructions[0].Checks = append(instructions[0].Checks, cons)
					checksAttached[cons] = true
				}
			}
		}

		steps = append(steps, ExecutionStep{
			Kind:         kind,
			SortVar:      sortVar,
			Instructions: instructions,
			Positions:    stepPositions,
			OutputWidth:  nextSlot,
		})
	}

	for _, n := range c.Nested {
		step, err := planNested(n, annotations, cache, stats, bound, positions, nextSlot)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	for i := range c.Constraints {
		cons := &c.Constraints[i]
		if cons.Kind == pattern.ConstraintFunctionCallBinding {
			step, err := planFunctionCall(cons, bound, positions, &nextSlot)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
	}

	// Expression-assigned variables get slots past every step's width; the
	// match stage evaluates their compiled programs into them.
	exprSlots := map[pattern.VariableID]int{}
	for i := range c.Constraints {
		cons := &c.Constraints[i]
		if cons.Kind == pattern.ConstraintExpressionBinding && !bound[cons.Var1] {
			bound[cons.Var1] = true
			positions[cons.Var1] = nextSlot
			exprSlots[cons.Var1] = nextSlot
			nextSlot++
		}
	}

	var postChecks []*pattern.Constraint
	for i := range c.Constraints {
		cons := &c.Constraints[i]
		if (cons.Kind == pattern.ConstraintComparison || cons.Kind == pattern.ConstraintIid) && !checksAttached[cons] {
			postChecks = append(postChecks, cons)
		}
	}

	named := map[pattern.VariableID]bool{}
	for v := range bound {
		named[v] = true
	}

	posCopy := make(map[pattern.VariableID]int, len(positions))
	for k, v := range positions {
		posCopy[k] = v
	}

	return &MatchExecutable{
		Steps:           steps,
		NamedOutputs:    named,
		FinalWidth:      nextSlot,
		Positions:       posCopy,
		ExpressionSlots: exprSlots,
		PostChecks:      postChecks,
	}, nil
}

func sortedVars(bound map[pattern.VariableID]bool) []pattern.VariableID {
	out := make([]pattern.VariableID, 0, len(bound))
	for v := range bound {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func isTypeVertex(v PlannerVertex) bool {
	_, ok := v.(*TypePlanner)
	return ok
}

func constraintOf(v PlannerVertex) *pattern.Constraint {
	switch p := v.(type) {
	case *ThingPlanner:
		return p.Constraint
	case *TypePlanner:
		return p.Constraint
	default:
		return nil
	}
}

// touches reports whether v's constraint can produce a stream sorted on
// sortVar: the variable must be one of its two primary endpoints.
func touches(v PlannerVertex, sortVar pattern.VariableID) bool {
	vars := v.Variables()
	if len(vars) > 0 && vars[0] == sortVar {
		return true
	}
	if len(vars) > 1 && vars[1] == sortVar {
		return true
	}
	return false
}

// boundAtEntry reports which of the constraint's endpoints were bound
// before this step ran (i.e. excluding the slots the step itself adds).
func boundAtEntry(v PlannerVertex, stepPositions map[pattern.VariableID]int, bound map[pattern.VariableID]bool) map[pattern.VariableID]bool {
	out := map[pattern.VariableID]bool{}
	for _, vid := range v.Variables() {
		if _, fresh := stepPositions[vid]; bound[vid] && !fresh {
			out[vid] = true
		}
	}
	return out
}

// instructionFor picks direction and iterate mode so the produced stream
// is sorted on sortVar given the endpoints bound on entry.
func instructionFor(cons *pattern.Constraint, entryBound map[pattern.VariableID]bool, sortVar pattern.VariableID) Instruction {
	instr := Instruction{Constraint: cons, Direction: DirectionForward, Mode: IterateUnbound}
	vars := cons.Variables()
	if len(vars) == 0 {
		return instr
	}
	fromBound := entryBound[vars[0]]
	toBound := len(vars) > 1 && entryBound[vars[1]]

	switch {
	case fromBound && toBound:
		instr.Mode = IterateBoundFromBoundTo

	case sortVar == vars[0] && toBound:
		// Sorting on the from side while the to side is fixed: drive the
		// reverse index from the bound endpoint.
		instr.Direction = DirectionReverse
		instr.Mode = IterateBoundFrom

	case sortVar == vars[0]:
		instr.Direction = DirectionForward
		instr.Mode = IterateUnbound

	case len(vars) > 1 && sortVar == vars[1] && fromBound:
		instr.Direction = DirectionForward
		instr.Mode = IterateBoundFrom

	case len(vars) > 1 && sortVar == vars[1]:
		// Sorting on the to side with nothing bound: scan the reverse
		// copy, which is already ordered on that endpoint.
		instr.Direction = DirectionForward
		instr.Mode = IterateUnboundInverted

	case fromBound:
		instr.Mode = IterateBoundFrom

	case toBound:
		instr.Direction = DirectionReverse
		instr.Mode = IterateBoundFrom
	}
	return instr
}

func fillPositions(instr *Instruction, positions map[pattern.VariableID]int) {
	vars := instr.Constraint.Variables()
	if len(vars) > 0 {
		if slot, ok := positions[vars[0]]; ok {
			instr.Positions.From, instr.Positions.HasFrom = slot, true
		}
	}
	if len(vars) > 1 {
		if slot, ok := positions[vars[1]]; ok {
			instr.Positions.To, instr.Positions.HasTo = slot, true
		}
	}
	if len(vars) > 2 {
		if slot, ok := positions[vars[2]]; ok {
			instr.Positions.Third, instr.Positions.HasThird = slot, true
		}
	}
}

// buildVertices constructs one PlannerVertex per planned constraint in c,
// skipping ExpressionBinding/FunctionCallBinding (planned as their own
// step kinds) and Comparison/Iid (attached as check predicates, not
// planned as vertices).
func buildVertices(c *pattern.Conjunction, annotations *annotate.TypeAnnotations, cache *schema.Cache, stats *schema.Statistics) []PlannerVertex {
	var out []PlannerVertex
	for i := range c.Constraints {
		cons := &c.Constraints[i]
		switch cons.Kind {
		case pattern.ConstraintExpressionBinding, pattern.ConstraintFunctionCallBinding,
			pattern.ConstraintComparison, pattern.ConstraintIid:
			continue
		}
		if isTypeLevelConstraint(cons.Kind) {
			out = append(out, &TypePlanner{Constraint: cons, Annotations: annotations})
		} else {
			out = append(out, &ThingPlanner{Constraint: cons, Annotations: annotations, Cache: cache, Stats: stats, ValueBoundFactor: valueBoundFactor(cons, c)})
		}
	}
	return out
}

// valueBoundFactor narrows a ThingPlanner's branching factor when the
// same variable also carries a value-equality/lower/upper comparison
// elsewhere in the conjunction. This is a cost estimate only: for
// hash-keyed value types the storage scan cannot actually narrow, and
// the comparison still applies as a per-row check.
func valueBoundFactor(cons *pattern.Constraint, c *pattern.Conjunction) float64 {
	if cons.Kind != pattern.ConstraintHas {
		return 1
	}
	for _, other := range c.Constraints {
		if other.Kind != pattern.ConstraintComparison {
			continue
		}
		if other.Var1 == cons.Var2 || (!other.HasParam2 && other.Var2 == cons.Var2) {
			switch other.Comparator {
			case pattern.CmpEq:
				return 0.01
			case pattern.CmpLt, pattern.CmpLte, pattern.CmpGt, pattern.CmpGte:
				return 0.3
			}
		}
	}
	return 1
}

// pickNext greedily selects the next unplanned vertex minimising
// cumulative cost given the currently-bound set, breaking ties on
// (a) most newly-bound variables, (b) source order.
func pickNext(vertices []PlannerVertex, planned []bool, bound map[pattern.VariableID]bool) int {
	best := -1
	var bestCost float64
	var bestNewlyBound int
	var bestOrder int
	for i, v := range vertices {
		if planned[i] {
			continue
		}
		cost := v.Cost(bound).Total()
		nb := v.NewlyBound(bound)
		order := v.SourceOrder()
		if best < 0 ||
			cost < bestCost ||
			(cost == bestCost && nb > bestNewlyBound) ||
			(cost == bestCost && nb == bestNewlyBound && order < bestOrder) {
			best = i
			bestCost = cost
			bestNewlyBound = nb
			bestOrder = order
		}
	}
	return best
}

// planNested plans one nested pattern (disjunction/negation/optional)
// with the outer scope's bound set as input.
func planNested(n pattern.Nested, annotations *annotate.TypeAnnotations, cache *schema.Cache, stats *schema.Statistics, bound map[pattern.VariableID]bool, positions map[pattern.VariableID]int, width int) (ExecutionStep, error) {
	switch n.Kind {
	case pattern.NestedNegation, pattern.NestedOptional:
		sub, err := planWith(n.Branches[0], annotations, cache, stats, bound, positions, width)
		if err != nil {
			return ExecutionStep{}, err
		}
		kind := StepNegation
		if n.Kind == pattern.NestedOptional {
			kind = StepOptional
		}
		return ExecutionStep{Kind: kind, SubPlan: sub, OutputWidth: width}, nil

	case pattern.NestedDisjunction:
		var branches []*MatchExecutable
		maxWidth := width
		for _, b := range n.Branches {
			plan, err := planWith(b, annotations, cache, stats, bound, positions, width)
			if err != nil {
				return ExecutionStep{}, err
			}
			branches = append(branches, plan)
			if plan.FinalWidth > maxWidth {
				maxWidth = plan.FinalWidth
			}
		}
		return ExecutionStep{Kind: StepDisjunction, Branches: branches, SelectedVars: sortedVars(bound), OutputWidth: maxWidth}, nil

	default:
		return ExecutionStep{}, nil
	}
}

// planFunctionCall emits the step for one function-call binding. Tabled
// (recursive) calls are allowed; recursion through negation or
// aggregation is rejected earlier, at representation time.
func planFunctionCall(cons *pattern.Constraint, bound map[pattern.VariableID]bool, positions map[pattern.VariableID]int, nextSlot *int) (ExecutionStep, error) {
	stepPositions := map[pattern.VariableID]int{}
	for _, vid := range cons.Assigned {
		if !bound[vid] {
			bound[vid] = true
			positions[vid] = *nextSlot
			stepPositions[vid] = *nextSlot
			*nextSlot++
		}
	}
	return ExecutionStep{
		Kind:         StepFunctionCall,
		FunctionName: cons.FunctionName,
		Args:         cons.Args,
		Assigned:     cons.Assigned,
		Tabled:       cons.Tabled,
		Positions:    stepPositions,
		OutputWidth:  *nextSlot,
	}, nil
}
