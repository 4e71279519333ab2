// Package planner implements the match planner: given a Block plus its
// TypeAnnotations, emit an ordered MatchExecutable of ExecutionSteps for
// the executor to run against a snapshot. Ordering is a greedy cost
// search over a variable-constraint graph; nested patterns plan
// recursively with the outer scope's bindings as inputs.
package planner

import (
	"fmt"

	"github.com/typedb/typedb-sub006/pattern"
)

// Direction picks which endpoint of a binary constraint is treated as
// the iteration's "from" side.
type Direction uint8

const (
	DirectionForward Direction = iota
	DirectionReverse
)

// IterateMode selects one of the four constraint-iterator shapes, chosen
// by the planner from which endpoints are already bound on entry to a
// step.
type IterateMode uint8

const (
	IterateUnbound IterateMode = iota
	IterateUnboundInverted
	IterateBoundFrom
	IterateBoundFromBoundTo
)

func (m IterateMode) String() string {
	switch m {
	case IterateUnbound:
		return "unbound"
	case IterateUnboundInverted:
		return "unbound-inverted"
	case IterateBoundFrom:
		return "bound-from"
	case IterateBoundFromBoundTo:
		return "bound-from-bound-to"
	default:
		return "?"
	}
}

// TuplePositions records, for one constraint iterator's tuple, which row
// slot each component writes into — up to three components (e.g. Links'
// relation/player/role).
type TuplePositions struct {
	From, To, Third    int
	HasFrom, HasTo, HasThird bool
}

// Instruction is one constraint iterator contributing to an Intersection or
// Check step: a constraint plus the direction/mode the planner picked for
// it, and where its tuple components land in the output row.
type Instruction struct {
	Constraint *pattern.Constraint
	Direction  Direction
	Mode       IterateMode
	Positions  TuplePositions

	// Checks are per-row predicates (value comparisons, iid equality)
	// whose variables are all bound once this instruction runs; the
	// iterator applies them before a tuple may reach the row.
	Checks []*pattern.Constraint
}

// StepKind enumerates the ExecutionStep variants. Steps are a tagged
// struct rather than an interface hierarchy, matching this codebase's
// constraint/error sum-type idiom.
type StepKind uint8

const (
	StepIntersection StepKind = iota
	StepCheck
	StepNegation
	StepOptional
	StepDisjunction
	StepFunctionCall
)

func (k StepKind) String() string {
	switch k {
	case StepIntersection:
		return "intersection"
	case StepCheck:
		return "check"
	case StepNegation:
		return "negation"
	case StepOptional:
		return "optional"
	case StepDisjunction:
		return "disjunction"
	case StepFunctionCall:
		return "function-call"
	default:
		return "?"
	}
}

// ExecutionStep is one node of a MatchExecutable's step list.
type ExecutionStep struct {
	Kind StepKind

	// Intersection / Check
	SortVar      pattern.VariableID
	Instructions []Instruction

	// Intersection / Disjunction
	SelectedVars []pattern.VariableID

	// Positions maps every variable materialised by this step to its row
	// slot.
	Positions map[pattern.VariableID]int

	// OutputWidth is the number of row slots after this step executes.
	OutputWidth int

	// Negation
	SubPlan *MatchExecutable

	// Disjunction
	Branches []*MatchExecutable

	// FunctionCall
	FunctionName string
	Args         []pattern.VariableID
	Assigned     []pattern.VariableID
	Tabled       bool
}

func (s ExecutionStep) String() string {
	switch s.Kind {
	case StepIntersection, StepCheck:
		return fmt.Sprintf("%s(sort=%v, instructions=%d, width=%d)", s.Kind, s.SortVar, len(s.Instructions), s.OutputWidth)
	case StepNegation, StepOptional:
		return fmt.Sprintf("%s(sub_plan_steps=%d)", s.Kind, len(s.SubPlan.Steps))
	case StepDisjunction:
		return fmt.Sprintf("disjunction(branches=%d, width=%d)", len(s.Branches), s.OutputWidth)
	case StepFunctionCall:
		return fmt.Sprintf("function-call(%s, tabled=%v)", s.FunctionName, s.Tabled)
	default:
		return "?"
	}
}

// MatchExecutable is the planner's output: an ordered list of
// ExecutionSteps plus the final named-outputs set and row width.
type MatchExecutable struct {
	Steps        []ExecutionStep
	NamedOutputs map[pattern.VariableID]bool
	FinalWidth   int

	// Positions maps every variable the plan binds (inputs included) to
	// its row slot.
	Positions map[pattern.VariableID]int

	// ExpressionSlots maps expression-assigned variables to the slots the
	// match stage writes their evaluated results into.
	ExpressionSlots map[pattern.VariableID]int

	// PostChecks are comparison/iid predicates not claimed by any step —
	// typically those referencing expression-assigned variables — applied
	// by the match stage after expression evaluation.
	PostChecks []*pattern.Constraint
}

// ElementCost is a PlannerVertex's contribution to the search's
// cumulative cost sum.
type ElementCost struct {
	PerInput        float64
	PerOutput       float64
	BranchingFactor float64
}

// Total collapses an ElementCost into the single scalar the greedy search
// compares vertices by.
func (c ElementCost) Total() float64 {
	return c.PerInput + c.PerOutput*c.BranchingFactor
}

// PlannerVertex is one candidate the greedy search may pick next: a single
// constraint, as a ThingPlanner or TypePlanner. Input also implements it,
// but the search builds no Input vertices; variables bound on entry reach
// it through the bound set instead.
type PlannerVertex interface {
	// Cost estimates this vertex's cost given the variables already bound
	// when it is considered.
	Cost(bound map[pattern.VariableID]bool) ElementCost
	// Variables returns every VariableID this vertex touches.
	Variables() []pattern.VariableID
	// NewlyBound returns how many of Variables() are not yet in bound —
	// the greedy search's first tie-break.
	NewlyBound(bound map[pattern.VariableID]bool) int
	// SourceOrder is the second tie-break.
	SourceOrder() int
	String() string
}
